package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// URLKey is the record key holding the checked domain.
const URLKey = "URL"

// ==================== Result Types ====================

// Detection is the outcome of one tracker test against a page.
type Detection struct {
	Name    string
	Present bool
}

// Result is the record produced for one checked domain. It serializes as a
// flat JSON object: URL first, then one boolean per tracker in table order.
type Result struct {
	URL      string
	Detected []Detection
}

// Has returns whether the named tracker was detected, and whether the
// record contains that tracker at all.
func (r Result) Has(name string) (present, ok bool) {
	for _, d := range r.Detected {
		if d.Name == name {
			return d.Present, true
		}
	}
	return false, false
}

// Keys returns the record keys in output order.
func (r Result) Keys() []string {
	keys := make([]string, 0, len(r.Detected)+1)
	keys = append(keys, URLKey)
	for _, d := range r.Detected {
		keys = append(keys, d.Name)
	}
	return keys
}

// MarshalJSON keeps URL first and trackers in detection order.
func (r Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	if err := writeField(&buf, URLKey, r.URL); err != nil {
		return nil, err
	}
	for _, d := range r.Detected {
		buf.WriteByte(',')
		if err := writeField(&buf, d.Name, d.Present); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, key string, value interface{}) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// UnmarshalJSON reads a record written by MarshalJSON, preserving key order.
func (r *Result) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("result must be a JSON object, got %v", tok)
	}

	out := Result{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", tok)
		}

		if key == URLKey {
			if err := dec.Decode(&out.URL); err != nil {
				return fmt.Errorf("failed to decode %s: %w", URLKey, err)
			}
			continue
		}

		var present bool
		if err := dec.Decode(&present); err != nil {
			return fmt.Errorf("failed to decode tracker %q: %w", key, err)
		}
		out.Detected = append(out.Detected, Detection{Name: key, Present: present})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = out
	return nil
}

// ==================== Check Envelopes ====================

// CheckResponse wraps a result with the ID assigned to the check.
type CheckResponse struct {
	ID     string  `json:"id"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// StreamRequest is the first message a client sends on a streaming check.
type StreamRequest struct {
	Domains []string `json:"domains"`
}
