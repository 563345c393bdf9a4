// Package browser loads a page in a real browser and reports the script
// resources it fetched.
package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"dev/bravebird/tracker-check/pkg/config"
)

// ScriptResourcesJS evaluates to the URLs of every resource-timing entry that
// was initiated by a script.
const ScriptResourcesJS = `window.performance.getEntriesByType("resource")
	.filter(e => e.initiatorType === "script")
	.map(e => e.name)`

// ErrMalformedResource is returned when a resource URL has no path segment.
var ErrMalformedResource = errors.New("resource name has no path segment")

// ErrUnknownDriver is returned by New for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown browser driver")

var resourceNameRe = regexp.MustCompile(`.+/([^?]+)`)

// Loader opens a domain in a browser and returns the names of the script
// resources the page loaded during the wait window.
type Loader interface {
	ScriptResources(ctx context.Context, domain string) ([]string, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, domain string) ([]string, error)

// ScriptResources calls f.
func (f LoaderFunc) ScriptResources(ctx context.Context, domain string) ([]string, error) {
	return f(ctx, domain)
}

// New returns the Loader for cfg.Driver.
func New(cfg config.Config, logger *zap.Logger) (Loader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Driver {
	case config.DriverRod, "":
		return NewRodLoader(cfg, logger), nil
	case config.DriverChromedp:
		return NewChromedpLoader(cfg, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// TargetURL builds the address opened for domain.
func TargetURL(scheme, domain string) string {
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + domain
}

// ResourceName returns the final path segment of a resource URL, without
// its query string.
func ResourceName(rawURL string) (string, error) {
	m := resourceNameRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrMalformedResource, rawURL)
	}
	return m[1], nil
}

// ResourceNames maps ResourceName over urls, failing on the first malformed
// entry.
func ResourceNames(urls []string) ([]string, error) {
	names := make([]string, 0, len(urls))
	for _, u := range urls {
		name, err := ResourceName(u)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
