package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wayfarer-ai/wayfarer/internal/itinerary"
	"github.com/wayfarer-ai/wayfarer/internal/kv"
)

// Storage keys within a conversation's namespace. Messages are keyed by a
// zero-padded append index so lexicographic key order is append order.
const (
	keyMeta        = "meta"
	keyItinerary   = "itinerary"
	keyPreferences = "preferences"
	msgPrefix      = "msg:"
	msgKeyFormat   = "msg:%08d"
)

// Actor owns one conversation's durable state. All methods on an Actor
// obtained from a Manager are serialized per conversation id, so each
// operation observes the effects of every earlier one.
type Actor struct {
	id    string
	store kv.Store
	mu    *sync.Mutex
	now   func() time.Time
}

// ID returns the conversation id this actor owns.
func (a *Actor) ID() string { return a.id }

// Initialize writes fresh metadata, an empty itinerary, and empty
// preferences. It is not idempotent: calling it on an existing
// conversation resets those three records. Messages are keyed
// independently and survive.
func (a *Actor) Initialize(ctx context.Context) (Meta, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	meta := Meta{ID: a.id, Title: DefaultTitle, CreatedAt: now, UpdatedAt: now}
	if err := a.putJSON(ctx, keyMeta, meta); err != nil {
		return Meta{}, err
	}
	if err := a.putJSON(ctx, keyItinerary, itinerary.Empty()); err != nil {
		return Meta{}, err
	}
	if err := a.putJSON(ctx, keyPreferences, Preferences{}); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

// Meta returns the conversation's metadata, or ErrNotFound if it was
// never initialized.
func (a *Actor) Meta(ctx context.Context) (Meta, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loadMeta(ctx)
}

// Data returns metadata merged with the current itinerary and
// preferences. Missing itinerary or preferences records default to empty
// rather than erroring; a missing meta record is ErrNotFound.
func (a *Actor) Data(ctx context.Context) (Data, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	meta, err := a.loadMeta(ctx)
	if err != nil {
		return Data{}, err
	}

	data := Data{Meta: meta, Itinerary: itinerary.Empty()}
	if raw, err := a.store.Get(ctx, a.id, keyItinerary); err == nil {
		var itin itinerary.Itinerary
		if json.Unmarshal(raw, &itin) == nil {
			data.Itinerary = itin
		}
	} else if !errors.Is(err, kv.ErrNotFound) {
		return Data{}, fmt.Errorf("load itinerary: %w", err)
	}
	if raw, err := a.store.Get(ctx, a.id, keyPreferences); err == nil {
		var prefs Preferences
		if json.Unmarshal(raw, &prefs) == nil {
			data.Preferences = prefs
		}
	} else if !errors.Is(err, kv.ErrNotFound) {
		return Data{}, fmt.Errorf("load preferences: %w", err)
	}
	return data, nil
}

// Messages returns a page of the message log in append order. The cursor
// is the append index to start from (0 for the first page); the returned
// Page.Cursor is the index to resume from, nil when exhausted. Because
// the cursor names an index rather than a position, a page fetched after
// a concurrent append neither skips nor duplicates messages.
func (a *Actor) Messages(ctx context.Context, cursor, limit int) (Page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cursor < 0 {
		cursor = 0
	}
	if limit <= 0 {
		limit = 50
	}

	pairs, err := a.store.List(ctx, a.id, msgPrefix)
	if err != nil {
		return Page{}, fmt.Errorf("list messages: %w", err)
	}

	page := Page{Messages: []Message{}}
	for _, p := range pairs {
		idx, ok := msgIndex(p.Key)
		if !ok || idx < cursor {
			continue
		}
		if len(page.Messages) == limit {
			next := idx
			page.Cursor = &next
			break
		}
		var msg Message
		if err := json.Unmarshal(p.Value, &msg); err != nil {
			continue
		}
		page.Messages = append(page.Messages, msg)
	}
	return page, nil
}

// History returns the most recent limit messages whose role is not
// "system", in append order. It backs prompt assembly for chat.
func (a *Actor) History(ctx context.Context, limit int) ([]Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pairs, err := a.store.List(ctx, a.id, msgPrefix)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	msgs := make([]Message, 0, len(pairs))
	for _, p := range pairs {
		var msg Message
		if err := json.Unmarshal(p.Value, &msg); err != nil {
			continue
		}
		if msg.Role == "system" {
			continue
		}
		msgs = append(msgs, msg)
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// AppendMessage stores msg under the next append index, stamps its
// CreatedAt, and touches meta.UpdatedAt. No deduplication is attempted;
// appending the same content twice stores it twice.
func (a *Actor) AppendMessage(ctx context.Context, msg Message) (Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pairs, err := a.store.List(ctx, a.id, msgPrefix)
	if err != nil {
		return Message{}, fmt.Errorf("list messages: %w", err)
	}

	next := 0
	for _, p := range pairs {
		if idx, ok := msgIndex(p.Key); ok && idx >= next {
			next = idx + 1
		}
	}

	msg.CreatedAt = a.now()
	if err := a.putJSON(ctx, fmt.Sprintf(msgKeyFormat, next), msg); err != nil {
		return Message{}, err
	}
	if err := a.touch(ctx); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// UpdateItinerary replaces the stored itinerary wholesale and touches
// meta.UpdatedAt. Merging with a previous itinerary is the caller's
// concern; the actor always overwrites.
func (a *Actor) UpdateItinerary(ctx context.Context, itin itinerary.Itinerary) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.putJSON(ctx, keyItinerary, itin); err != nil {
		return err
	}
	return a.touch(ctx)
}

// UpdatePreferences replaces the stored preferences wholesale and touches
// meta.UpdatedAt.
func (a *Actor) UpdatePreferences(ctx context.Context, prefs Preferences) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.putJSON(ctx, keyPreferences, prefs); err != nil {
		return err
	}
	return a.touch(ctx)
}

// UpdateTitle replaces the conversation title. Unlike the other updates
// it requires an existing meta record and returns ErrNotFound otherwise.
func (a *Actor) UpdateTitle(ctx context.Context, title string) (Meta, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	meta, err := a.loadMeta(ctx)
	if err != nil {
		return Meta{}, err
	}
	meta.Title = title
	meta.UpdatedAt = a.now()
	if err := a.putJSON(ctx, keyMeta, meta); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

// Delete removes every stored key for the conversation, messages
// included. Deleting a conversation that was never initialized succeeds.
func (a *Actor) Delete(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.DeleteAll(ctx, a.id); err != nil {
		return fmt.Errorf("delete conversation %s: %w", a.id, err)
	}
	return nil
}

func (a *Actor) loadMeta(ctx context.Context) (Meta, error) {
	raw, err := a.store.Get(ctx, a.id, keyMeta)
	if errors.Is(err, kv.ErrNotFound) {
		return Meta{}, ErrNotFound
	}
	if err != nil {
		return Meta{}, fmt.Errorf("load meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Meta{}, fmt.Errorf("decode meta: %w", err)
	}
	return meta, nil
}

func (a *Actor) touch(ctx context.Context) error {
	meta, err := a.loadMeta(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	meta.UpdatedAt = a.now()
	return a.putJSON(ctx, keyMeta, meta)
}

func (a *Actor) putJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := a.store.Put(ctx, a.id, key, raw); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

// msgIndex parses the append index out of a message key.
func msgIndex(key string) (int, bool) {
	s, ok := strings.CutPrefix(key, msgPrefix)
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(s)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
