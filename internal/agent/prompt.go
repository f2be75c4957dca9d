package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wayfarer-ai/wayfarer/internal/conversation"
	"github.com/wayfarer-ai/wayfarer/internal/itinerary"
)

// Location is optional on-site context sent with a chat request.
type Location struct {
	Time string  `json:"time,omitempty"`
	Lat  float64 `json:"lat,omitempty"`
	Lon  float64 `json:"lon,omitempty"`
}

const promptTemplate = `You are an expert travel agent assistant. Help users plan and manage their travel itineraries.

User Preferences:
%s

Current Itinerary:
%s

Location/Time Context:
%s

Guidelines:
- Be concise, practical, and proactive
- Reference the itinerary when answering questions
- Consider user preferences (pace, diet, budget, travel mode)
- When the user is on-site, use their current location/time to suggest nearby options
- You can help modify the itinerary, suggest activities, find places near the user, and answer travel questions

When you create or change the itinerary, end your reply with the literal marker line
%s
followed by a fenced JSON code block containing the full updated itinerary, shaped exactly like:
{"days":[{"date":"YYYY-MM-DD","items":[{"id":"day-1-item-1","title":"...","timeRange":"...","notes":"..."}]}]}
Use only the field names "date", "items", "title" and "timeRange". Never use "day", "activities", "activity" or "time" as field names. Do not mention the marker or the JSON block in your prose.`

// BuildSystemPrompt assembles the system message for a chat turn. The
// current preferences, itinerary, and optional location context are
// embedded as JSON so the model can reference them, followed by the
// output contract the persistence parser relies on.
func BuildSystemPrompt(prefs conversation.Preferences, itin itinerary.Itinerary, loc *Location, now time.Time) string {
	if loc == nil {
		loc = &Location{}
	}
	if loc.Time == "" {
		loc.Time = now.Format(time.RFC3339)
	}

	return fmt.Sprintf(promptTemplate,
		mustJSON(prefs), mustJSON(itin), mustJSON(loc), itinerary.Marker)
}

// mustJSON renders v as indented JSON. The prompt types have no
// unmarshalable fields, so failure cannot happen in practice; fall back
// to an empty object rather than panicking in a prompt path.
func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
