package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"dev/bravebird/tracker-check/pkg/config"
)

// RodLoader drives Chrome through go-rod.
type RodLoader struct {
	cfg    config.Config
	logger *zap.Logger
}

// NewRodLoader creates a go-rod backed loader.
func NewRodLoader(cfg config.Config, logger *zap.Logger) *RodLoader {
	return &RodLoader{cfg: cfg, logger: logger}
}

// Provision returns a browser binary, downloading one when none is
// installed.
func Provision(ctx context.Context) (string, error) {
	if path, ok := launcher.LookPath(); ok {
		return path, nil
	}

	b := launcher.NewBrowser()
	b.Context = ctx
	path, err := b.Get()
	if err != nil {
		return "", fmt.Errorf("failed to download browser: %w", err)
	}
	return path, nil
}

// Replaced in tests.
var provisionBrowser = Provision

// browserBin returns the configured binary, provisioning one when unset.
func browserBin(ctx context.Context, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return provisionBrowser(ctx)
}

// ScriptResources implements Loader.
func (r *RodLoader) ScriptResources(ctx context.Context, domain string) ([]string, error) {
	bin, err := browserBin(ctx, r.cfg.ChromeBin)
	if err != nil {
		return nil, err
	}

	l := launcher.New().Context(ctx).Bin(bin).Headless(r.cfg.Headless)

	// Flags needed when running inside containers
	l = l.Set("no-sandbox")
	l = l.Set("disable-gpu")
	l = l.Set("disable-dev-shm-usage")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer l.Cleanup()
	defer l.Kill()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	target := TargetURL(r.cfg.Scheme, domain)
	start := time.Now()
	if err := page.Navigate(target); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", target, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed waiting for %s to load: %w", target, err)
	}
	r.logger.Debug("Page loaded", zap.String("url", target), zap.Duration("elapsed", time.Since(start)))

	if err := wait(ctx, r.cfg.Wait); err != nil {
		return nil, err
	}

	res, err := page.Evaluate(&rod.EvalOptions{
		JS:      "() => " + ScriptResourcesJS,
		ByValue: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read resource timing: %w", err)
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode resource timing: %w", err)
	}
	var urls []string
	if err := json.Unmarshal(raw, &urls); err != nil {
		return nil, fmt.Errorf("failed to decode resource timing: %w", err)
	}

	return ResourceNames(urls)
}
