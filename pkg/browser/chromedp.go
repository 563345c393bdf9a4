package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"dev/bravebird/tracker-check/pkg/config"
)

// ChromedpLoader drives Chrome through chromedp.
type ChromedpLoader struct {
	cfg    config.Config
	logger *zap.Logger
}

// NewChromedpLoader creates a chromedp backed loader.
func NewChromedpLoader(cfg config.Config, logger *zap.Logger) *ChromedpLoader {
	return &ChromedpLoader{cfg: cfg, logger: logger}
}

func (c *ChromedpLoader) allocatorOptions(bin string) []chromedp.ExecAllocatorOption {
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("headless", c.cfg.Headless),
		chromedp.ExecPath(bin),
	)
}

// ScriptResources implements Loader.
func (c *ChromedpLoader) ScriptResources(ctx context.Context, domain string) ([]string, error) {
	bin, err := browserBin(ctx, c.cfg.ChromeBin)
	if err != nil {
		return nil, err
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocatorOptions(bin)...)
	defer cancelAlloc()

	sugar := c.logger.Sugar()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx,
		chromedp.WithDebugf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Errorf),
	)
	// Cancelling the first tab's context closes the browser.
	defer cancelTask()

	target := TargetURL(c.cfg.Scheme, domain)
	var urls []string
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(target),
		chromedp.Sleep(c.cfg.Wait),
		chromedp.Evaluate(ScriptResourcesJS, &urls),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", target, err)
	}

	return ResourceNames(urls)
}
