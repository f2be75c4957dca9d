package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/wayfarer-ai/wayfarer/internal/conversation"
	"github.com/wayfarer-ai/wayfarer/internal/itinerary"
	"github.com/wayfarer-ai/wayfarer/internal/jobs"
	"github.com/wayfarer-ai/wayfarer/internal/kv"
	"github.com/wayfarer-ai/wayfarer/internal/llm"
)

// fakeModel replays a canned stream and records the prompt it was given.
type fakeModel struct {
	stream string
	err    error
	prompt []llm.Message
}

func (f *fakeModel) Stream(_ context.Context, req llm.ChatRequest) (*llm.StreamResponse, error) {
	f.prompt = req.Messages
	if f.err != nil {
		return nil, f.err
	}
	return &llm.StreamResponse{Body: io.NopCloser(strings.NewReader(f.stream))}, nil
}

func (f *fakeModel) Model() string { return "fake-model" }

func testOrchestrator(t *testing.T, model llm.Client) (*Orchestrator, *conversation.Manager, *jobs.Registry) {
	t.Helper()
	manager := conversation.NewManager(kv.NewMemoryStore())
	registry := jobs.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	o := NewOrchestrator(manager, model, registry, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), 2048)
	o.now = func() time.Time { return time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC) }
	return o, manager, registry
}

func chatAndDrain(t *testing.T, o *Orchestrator, registry *jobs.Registry, req ChatRequest) string {
	t.Helper()
	resp, err := o.Chat(context.Background(), req)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := registry.Wait(ctx); err != nil {
		t.Fatalf("drain jobs: %v", err)
	}
	return string(body)
}

func TestChat_StreamsAndPersists(t *testing.T) {
	model := &fakeModel{stream: "{\"response\":\"Enjoy \"}\n{\"response\":\"Paris!\"}\n"}
	o, manager, registry := testOrchestrator(t, model)

	body := chatAndDrain(t, o, registry, ChatRequest{
		ConversationID: "c1",
		Messages:       []llm.Message{{Role: "user", Content: "plan a day in Paris"}},
	})

	// The client gets raw stream bytes, untouched by the parser.
	if !strings.Contains(body, "\"response\":\"Enjoy \"") {
		t.Errorf("client stream = %q", body)
	}

	page, err := manager.Actor("c1").Messages(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(page.Messages) != 2 {
		t.Fatalf("got %d persisted messages, want 2", len(page.Messages))
	}
	if page.Messages[0].Role != "user" || page.Messages[0].Content != "plan a day in Paris" {
		t.Errorf("user message = %+v", page.Messages[0])
	}
	if page.Messages[1].Role != "assistant" || page.Messages[1].Content != "Enjoy Paris!" {
		t.Errorf("assistant message = %+v", page.Messages[1])
	}
}

func TestChat_AutoInitializes(t *testing.T) {
	model := &fakeModel{stream: "{\"response\":\"hi\"}\n"}
	o, manager, registry := testOrchestrator(t, model)

	chatAndDrain(t, o, registry, ChatRequest{
		ConversationID: "fresh",
		Messages:       []llm.Message{{Role: "user", Content: "hello"}},
	})

	meta, err := manager.Actor("fresh").Meta(context.Background())
	if err != nil {
		t.Fatalf("meta after auto-init: %v", err)
	}
	if meta.Title != conversation.DefaultTitle {
		t.Errorf("title = %q", meta.Title)
	}
}

func TestChat_PromptShape(t *testing.T) {
	model := &fakeModel{stream: "{\"response\":\"ok\"}\n"}
	o, manager, registry := testOrchestrator(t, model)

	actor := manager.Actor("c1")
	actor.Initialize(context.Background())
	actor.AppendMessage(context.Background(), conversation.Message{Role: "user", Content: "earlier question"})
	actor.AppendMessage(context.Background(), conversation.Message{Role: "assistant", Content: "earlier answer"})
	actor.AppendMessage(context.Background(), conversation.Message{Role: "system", Content: "should be filtered"})

	chatAndDrain(t, o, registry, ChatRequest{
		ConversationID: "c1",
		Messages:       []llm.Message{{Role: "user", Content: "new question"}},
		Location:       &Location{Lat: 48.85, Lon: 2.35},
	})

	prompt := model.prompt
	if len(prompt) != 4 {
		t.Fatalf("prompt has %d messages, want 4: %+v", len(prompt), prompt)
	}
	if prompt[0].Role != "system" || !strings.Contains(prompt[0].Content, itinerary.Marker) {
		t.Errorf("system prompt missing marker contract")
	}
	if !strings.Contains(prompt[0].Content, "48.85") {
		t.Errorf("system prompt missing location context")
	}
	if prompt[1].Content != "earlier question" || prompt[2].Content != "earlier answer" {
		t.Errorf("history = %+v", prompt[1:3])
	}
	if prompt[3].Role != "user" || prompt[3].Content != "new question" {
		t.Errorf("trailing message = %+v", prompt[3])
	}
	for _, m := range prompt[1:] {
		if m.Role == "system" {
			t.Error("stored system message leaked into history")
		}
	}
}

func TestChat_ExtractsItinerary(t *testing.T) {
	reply := "Here is your plan.\\n" + itinerary.Marker +
		"\\n```json\\n{\\\"days\\\":[{\\\"date\\\":\\\"2025-05-02\\\",\\\"items\\\":[{\\\"title\\\":\\\"Old town walk\\\"}]}]}\\n```"
	model := &fakeModel{stream: "{\"response\":\"" + reply + "\"}\n"}
	o, manager, registry := testOrchestrator(t, model)

	chatAndDrain(t, o, registry, ChatRequest{
		ConversationID: "c1",
		Messages:       []llm.Message{{Role: "user", Content: "plan it"}},
	})

	data, err := manager.Actor("c1").Data(context.Background())
	if err != nil {
		t.Fatalf("data: %v", err)
	}
	if len(data.Itinerary.Days) != 1 {
		t.Fatalf("itinerary days = %d, want 1", len(data.Itinerary.Days))
	}
	item := data.Itinerary.Days[0].Items[0]
	if item.Title != "Old town walk" || item.ID != "day-1-item-1" {
		t.Errorf("item = %+v", item)
	}

	// The stored assistant message keeps the marker and JSON verbatim.
	page, _ := manager.Actor("c1").Messages(context.Background(), 0, 10)
	assistant := page.Messages[len(page.Messages)-1]
	if !strings.Contains(assistant.Content, itinerary.Marker) {
		t.Errorf("assistant message lost machine tail: %q", assistant.Content)
	}
}

// lingeringModel hands out a stream body bound to the context its
// Stream call received. Delivery of everything after the first chunk is
// held until gate closes, so a test can disconnect the client first.
type lingeringModel struct {
	ctx    context.Context
	gate   chan struct{}
	chunks []string
	pos    int
}

func (m *lingeringModel) Stream(ctx context.Context, _ llm.ChatRequest) (*llm.StreamResponse, error) {
	m.ctx = ctx
	return &llm.StreamResponse{Body: m}, nil
}

func (m *lingeringModel) Model() string { return "lingering" }

func (m *lingeringModel) Read(p []byte) (int, error) {
	if m.pos >= len(m.chunks) {
		return 0, io.EOF
	}
	if m.pos > 0 {
		<-m.gate
	}
	if err := m.ctx.Err(); err != nil {
		return 0, err
	}
	n := copy(p, m.chunks[m.pos])
	m.pos++
	return n, nil
}

func (m *lingeringModel) Close() error { return nil }

func TestChat_ClientDisconnectDoesNotTruncatePersistence(t *testing.T) {
	model := &lingeringModel{
		gate: make(chan struct{}),
		chunks: []string{
			"{\"response\":\"Day 1: \"}\n",
			"{\"response\":\"visit the old town and the harbor.\"}\n",
		},
	}
	o, manager, registry := testOrchestrator(t, model)

	ctx, cancel := context.WithCancel(context.Background())
	resp, err := o.Chat(ctx, ChatRequest{
		ConversationID: "c1",
		Messages:       []llm.Message{{Role: "user", Content: "plan day one"}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	// Read one chunk, then the client goes away: request context
	// canceled, client branch closed.
	buf := make([]byte, 64)
	if _, err := resp.Body.Read(buf); err != nil {
		t.Fatalf("first read: %v", err)
	}
	cancel()
	resp.Body.Close()
	close(model.gate)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := registry.Wait(waitCtx); err != nil {
		t.Fatalf("drain jobs: %v", err)
	}

	// The background job must see the full stream, not a truncation at
	// the disconnect point.
	page, _ := manager.Actor("c1").Messages(context.Background(), 0, 10)
	if len(page.Messages) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(page.Messages))
	}
	assistant := page.Messages[1]
	if assistant.Content != "Day 1: visit the old town and the harbor." {
		t.Errorf("assistant message = %q", assistant.Content)
	}
}

func TestChat_ModelFailureLeavesUserMessage(t *testing.T) {
	model := &fakeModel{err: errors.New("model down")}
	o, manager, registry := testOrchestrator(t, model)

	_, err := o.Chat(context.Background(), ChatRequest{
		ConversationID: "c1",
		Messages:       []llm.Message{{Role: "user", Content: "hello?"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	registry.Wait(context.Background())

	// The user message was persisted before the model call.
	page, _ := manager.Actor("c1").Messages(context.Background(), 0, 10)
	if len(page.Messages) != 1 || page.Messages[0].Content != "hello?" {
		t.Errorf("messages = %+v", page.Messages)
	}
}

func TestChat_RejectsNonUserTail(t *testing.T) {
	model := &fakeModel{stream: "{\"response\":\"x\"}\n"}
	o, _, _ := testOrchestrator(t, model)

	_, err := o.Chat(context.Background(), ChatRequest{
		ConversationID: "c1",
		Messages:       []llm.Message{{Role: "assistant", Content: "I go last"}},
	})
	if err == nil {
		t.Error("expected error for non-user trailing message")
	}
}

func TestChat_EmptyStreamPersistsNothing(t *testing.T) {
	model := &fakeModel{stream: "data: [DONE]\n"}
	o, manager, registry := testOrchestrator(t, model)

	chatAndDrain(t, o, registry, ChatRequest{
		ConversationID: "c1",
		Messages:       []llm.Message{{Role: "user", Content: "hi"}},
	})

	page, _ := manager.Actor("c1").Messages(context.Background(), 0, 10)
	if len(page.Messages) != 1 {
		t.Errorf("got %d messages, want only the user message", len(page.Messages))
	}
}
