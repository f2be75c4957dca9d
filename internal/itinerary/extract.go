package itinerary

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
)

var (
	jsonFenceRe = regexp.MustCompile("(?s)```json\\s*\n(.*?)```")
	anyFenceRe  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\n(.*?)```")

	// Display-time fallbacks for replies that embed JSON without the marker.
	fencedJSONBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\{.*?\\}\\s*```")
	bareDaysObjectRe  = regexp.MustCompile(`(?s)\{\s*"days"\s*:.*\}`)
)

// Extract recovers an itinerary embedded in an assistant reply. The model
// is instructed to emit Marker followed by a fenced JSON block; when the
// marker is present, only text after it is considered. Without a marker
// the whole reply is scanned as a fallback.
//
// Candidate JSON is located by trying, in order: a ```json fence, any
// fence, then a bare object containing a "days" key. The first candidate
// that parses with "days" as an array wins. The result is normalized via
// Normalize with now as the base date. Returns false when nothing usable
// is found — extraction failure is never an error.
func Extract(text string, now time.Time) (*Itinerary, bool) {
	region := text
	if idx := strings.Index(text, Marker); idx >= 0 {
		region = text[idx+len(Marker):]
	}

	raw, ok := findItineraryObject(region)
	if !ok {
		return nil, false
	}
	return Normalize(raw, now)
}

// findItineraryObject locates and parses the first JSON object in region
// whose "days" field is an array.
func findItineraryObject(region string) (map[string]any, bool) {
	if m := jsonFenceRe.FindStringSubmatch(region); m != nil {
		if obj, ok := parseDaysObject(m[1]); ok {
			return obj, true
		}
	}

	if m := anyFenceRe.FindStringSubmatch(region); m != nil {
		if obj, ok := parseDaysObject(m[1]); ok {
			return obj, true
		}
	}

	// No usable fence: scan for a bare JSON object. A json.Decoder stops
	// at the end of the first value, so trailing prose doesn't matter.
	for i := 0; i < len(region); i++ {
		if region[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(region[i:]))
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			continue
		}
		if _, isArray := obj["days"].([]any); isArray {
			return obj, true
		}
	}

	return nil, false
}

func parseDaysObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil {
		return nil, false
	}
	if _, isArray := obj["days"].([]any); !isArray {
		return nil, false
	}
	return obj, true
}

// StripForDisplay removes the machine-readable tail from an assistant
// reply so only prose remains. Everything from the marker onward is cut;
// if no marker is present, JSON-looking fenced blocks and bare
// {"days":...} objects are removed best-effort.
func StripForDisplay(text string) string {
	if idx := strings.Index(text, Marker); idx >= 0 {
		return strings.TrimRight(text[:idx], " \t\n")
	}

	stripped := fencedJSONBlockRe.ReplaceAllString(text, "")
	stripped = bareDaysObjectRe.ReplaceAllString(stripped, "")
	return strings.TrimRight(stripped, " \t\n")
}

// RenderHTML renders an assistant reply's prose as HTML. The reply is
// stripped of its machine-readable tail first.
func RenderHTML(text string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(StripForDisplay(text)), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
