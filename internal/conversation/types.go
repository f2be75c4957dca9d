// Package conversation implements the per-conversation state actor: one
// durable owner of a conversation's metadata, message log, itinerary, and
// preferences. A Manager serializes operations per conversation id so each
// conversation behaves like a single-threaded object.
package conversation

import (
	"errors"
	"time"

	"github.com/wayfarer-ai/wayfarer/internal/itinerary"
)

// ErrNotFound is returned when a conversation was never initialized.
var ErrNotFound = errors.New("conversation not found")

// DefaultTitle is assigned to freshly initialized conversations.
const DefaultTitle = "New Itinerary"

// Meta is a conversation's durable metadata record.
type Meta struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one chat message in a conversation's log.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Preferences holds the user's travel preferences. Updates replace the
// whole record; any merging happens in the caller before writing.
type Preferences struct {
	Diet          []string `json:"diet,omitempty"`
	TravelMode    string   `json:"travelMode,omitempty"`
	Pace          string   `json:"pace,omitempty"`
	BudgetLevel   string   `json:"budgetLevel,omitempty"`
	Miscellaneous string   `json:"miscellaneous,omitempty"`
}

// Data is the combined conversation view returned by the data endpoint:
// metadata plus the current itinerary and preferences, defaulted to empty
// when never written.
type Data struct {
	Meta
	Itinerary   itinerary.Itinerary `json:"itinerary"`
	Preferences Preferences         `json:"preferences"`
}

// Page is one slice of a conversation's message log. Cursor is the index
// to resume from, or nil when the log is exhausted.
type Page struct {
	Messages []Message `json:"messages"`
	Cursor   *int      `json:"cursor"`
}
