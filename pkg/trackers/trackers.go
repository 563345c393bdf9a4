// Package trackers holds the table of known analytics trackers and the
// substring test used to detect them in a page's script resources.
package trackers

import "strings"

// Tracker maps a human-readable tracker name to a substring expected in the
// name of one of its script resources.
type Tracker struct {
	Name    string `json:"name" yaml:"name"`
	Pattern string `json:"pattern" yaml:"pattern"`
}

// Tracker names, also used as keys in result records.
const (
	GoogleAnalytics = "Google Analytics"
	Chartbeat       = "Chartbeat"
	FacebookPixel   = "Facebook Pixel"
)

var table = []Tracker{
	{Name: GoogleAnalytics, Pattern: "analytics.js"},
	{Name: Chartbeat, Pattern: "chartbeat"},
	{Name: FacebookPixel, Pattern: "fbevents.js"},
}

// Default returns a copy of the built-in tracker table, in detection order.
func Default() []Tracker {
	out := make([]Tracker, len(table))
	copy(out, table)
	return out
}

// Contains reports whether pattern is a substring of any resource name.
func Contains(names []string, pattern string) bool {
	for _, name := range names {
		if strings.Contains(name, pattern) {
			return true
		}
	}
	return false
}
