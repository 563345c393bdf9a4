package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dev/bravebird/tracker-check/pkg/browser"
	"dev/bravebird/tracker-check/pkg/config"
)

// stubLoaders swaps newLoader for one serving canned resources and returns
// the list of domains it was asked to load.
func stubLoaders(t *testing.T, resources map[string][]string, errs map[string]error) *[]string {
	t.Helper()

	for _, key := range []string{"TRACKERCHECK_DRIVER", "CHROME_BIN", "TRACKERCHECK_HEADLESS", "TRACKERCHECK_WAIT"} {
		t.Setenv(key, "")
	}

	logger = zap.NewNop()
	calls := &[]string{}
	orig := newLoader
	newLoader = func(cfg config.Config, _ *zap.Logger) (browser.Loader, error) {
		return browser.LoaderFunc(func(ctx context.Context, domain string) ([]string, error) {
			*calls = append(*calls, domain)
			if err := errs[domain]; err != nil {
				return nil, err
			}
			return resources[domain], nil
		}), nil
	}

	t.Cleanup(func() {
		newLoader = orig
		domains = nil
		configPath = ""
	})
	return calls
}

func newTestCmd(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetContext(context.Background())
	return cmd
}

func TestRunCheckPrintsRecords(t *testing.T) {
	calls := stubLoaders(t, map[string][]string{
		"example.com": {"jquery.js", "analytics.js", "chartbeat.js"},
		"other.com":   nil,
	}, nil)

	var out bytes.Buffer
	domains = []string{"example.com"}
	err := runCheck(newTestCmd(&out), []string{"other.com"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"URL":"example.com","Google Analytics":true,"Chartbeat":true,"Facebook Pixel":false}`, lines[0])
	assert.Equal(t, `{"URL":"other.com","Google Analytics":false,"Chartbeat":false,"Facebook Pixel":false}`, lines[1])
	assert.Equal(t, []string{"example.com", "other.com"}, *calls)
}

func TestRunCheckNoDomains(t *testing.T) {
	calls := stubLoaders(t, nil, nil)

	var out bytes.Buffer
	require.NoError(t, runCheck(newTestCmd(&out), nil))
	assert.Empty(t, out.String())
	assert.Empty(t, *calls)
}

func TestRunCheckAbortsOnFailure(t *testing.T) {
	boom := errors.New("net::ERR_NAME_NOT_RESOLVED")
	calls := stubLoaders(t, map[string][]string{"a.com": {"fbevents.js"}}, map[string]error{"bad.invalid": boom})

	var out bytes.Buffer
	domains = []string{"a.com", "bad.invalid", "c.com"}
	err := runCheck(newTestCmd(&out), nil)
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 1, strings.Count(out.String(), "\n"), "only the first record is printed")
	assert.Equal(t, []string{"a.com", "bad.invalid"}, *calls)
}

func TestRunCheckBadConfig(t *testing.T) {
	calls := stubLoaders(t, nil, nil)
	t.Setenv("TRACKERCHECK_WAIT", "forever")

	var out bytes.Buffer
	domains = []string{"a.com"}
	assert.Error(t, runCheck(newTestCmd(&out), nil))
	assert.Empty(t, *calls)
}

func TestTrackersCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newTestCmd(&out)
	require.NoError(t, listTrackers(cmd, nil))

	got := out.String()
	for _, want := range []string{"NAME", "Google Analytics", "analytics.js", "Chartbeat", "Facebook Pixel", "fbevents.js"} {
		assert.Contains(t, got, want)
	}
}

func TestRootCommandAcceptsDomainList(t *testing.T) {
	calls := stubLoaders(t, map[string][]string{
		"example.com": {"analytics.js"},
		"other.com":   {"chartbeat.js"},
	}, nil)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--domains", "example.com", "other.com"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	assert.Equal(t, []string{"example.com", "other.com"}, *calls)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"URL":"example.com","Google Analytics":true,"Chartbeat":false,"Facebook Pixel":false}`, lines[0])
	assert.Equal(t, `{"URL":"other.com","Google Analytics":false,"Chartbeat":true,"Facebook Pixel":false}`, lines[1])
}
