package stream

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Scanner accumulates assistant text from a model response stream. Feed
// it raw byte chunks as they arrive; it splits them on newlines and
// extracts a text fragment from each complete JSON line. Lines that do
// not parse are framing noise and are skipped without error.
//
// The carry buffer holds raw bytes, so a multi-byte character split
// across chunk boundaries is only decoded once its line is complete.
type Scanner struct {
	carry []byte
	text  strings.Builder
}

// NewScanner returns an empty scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// Write feeds a chunk of stream bytes. It never fails; implementing
// io.Writer lets the scanner sit behind io.Copy.
func (s *Scanner) Write(p []byte) (int, error) {
	s.carry = append(s.carry, p...)
	for {
		i := bytes.IndexByte(s.carry, '\n')
		if i < 0 {
			break
		}
		s.scanLine(string(s.carry[:i]))
		s.carry = s.carry[i+1:]
	}
	return len(p), nil
}

// Finish processes any trailing line left in the carry buffer (a final
// chunk without a newline) and returns the accumulated text.
func (s *Scanner) Finish() string {
	if len(s.carry) > 0 {
		s.scanLine(string(s.carry))
		s.carry = nil
	}
	return s.text.String()
}

// scanLine extracts a text fragment from one stream line, if it has one.
func (s *Scanner) scanLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if line == "" || line == "[DONE]" {
		return
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		return
	}
	if fragment, ok := extractFragment(obj); ok {
		s.text.WriteString(fragment)
	}
}

// extractFragment pulls the text field out of a parsed stream object.
// Providers disagree on the field name; the first present wins.
func extractFragment(obj map[string]any) (string, bool) {
	for _, field := range []string{"response", "text", "content"} {
		if v, ok := obj[field].(string); ok {
			return v, true
		}
	}
	if delta, ok := obj["delta"].(map[string]any); ok {
		if v, ok := delta["content"].(string); ok {
			return v, true
		}
	}
	return "", false
}
