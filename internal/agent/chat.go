// Package agent implements the chat orchestrator: it turns an incoming
// chat request into a model stream, forwards one copy to the client, and
// persists the other in the background.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/wayfarer-ai/wayfarer/internal/conversation"
	"github.com/wayfarer-ai/wayfarer/internal/events"
	"github.com/wayfarer-ai/wayfarer/internal/itinerary"
	"github.com/wayfarer-ai/wayfarer/internal/jobs"
	"github.com/wayfarer-ai/wayfarer/internal/llm"
	"github.com/wayfarer-ai/wayfarer/internal/stream"
)

// historyLimit caps how many past messages are replayed to the model.
const historyLimit = 20

// ChatRequest is one chat turn from the client. Messages is the
// client-side transcript; only a trailing user message is persisted, the
// rest is advisory.
type ChatRequest struct {
	ConversationID string
	Messages       []llm.Message
	Location       *Location
}

// Orchestrator coordinates conversation state, the model client, and
// background persistence for chat requests.
type Orchestrator struct {
	manager *conversation.Manager
	client  llm.Client
	jobs    *jobs.Registry
	bus     *events.Bus
	logger  *slog.Logger

	maxTokens int
	now       func() time.Time
}

// NewOrchestrator wires an orchestrator. bus may be nil.
func NewOrchestrator(manager *conversation.Manager, client llm.Client, registry *jobs.Registry, bus *events.Bus, logger *slog.Logger, maxTokens int) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		manager:   manager,
		client:    client,
		jobs:      registry,
		bus:       bus,
		logger:    logger,
		maxTokens: maxTokens,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Chat runs one chat turn. It persists the user's message, streams the
// model's answer, and returns the client's copy of the stream while a
// background job parses and persists the other copy. The caller owns
// closing the returned body; the background job's lifetime is
// independent of it.
func (o *Orchestrator) Chat(ctx context.Context, req ChatRequest) (*llm.StreamResponse, error) {
	actor := o.manager.Actor(req.ConversationID)

	data, err := actor.Data(ctx)
	if errors.Is(err, conversation.ErrNotFound) {
		// First chat on a fresh id creates the conversation.
		if _, err := actor.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("initialize conversation: %w", err)
		}
		o.bus.Emit(events.SourceConversation, events.KindConversationCreated,
			map[string]any{"conversation_id": req.ConversationID})
		data, err = actor.Data(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation data: %w", err)
	}

	// History is fetched before the new user message lands so the
	// prompt carries each turn exactly once.
	history, err := actor.History(ctx, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	userMsg, ok := trailingUserMessage(req.Messages)
	if !ok {
		return nil, fmt.Errorf("chat request must end with a user message")
	}
	if _, err := actor.AppendMessage(ctx, conversation.Message{Role: "user", Content: userMsg.Content}); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}
	o.bus.Emit(events.SourceChat, events.KindMessagePersisted,
		map[string]any{"conversation_id": req.ConversationID, "role": "user"})

	prompt := make([]llm.Message, 0, len(history)+2)
	prompt = append(prompt, llm.Message{
		Role:    "system",
		Content: BuildSystemPrompt(data.Preferences, data.Itinerary, req.Location, o.now()),
	})
	for _, m := range history {
		prompt = append(prompt, llm.Message{Role: m.Role, Content: m.Content})
	}
	prompt = append(prompt, userMsg)

	// The model call is detached from the request context: there is no
	// client-side abort once the stream has started, and a disconnect
	// must not truncate what the background job persists.
	resp, err := o.client.Stream(context.WithoutCancel(ctx), llm.ChatRequest{Messages: prompt, MaxTokens: o.maxTokens})
	if err != nil {
		return nil, fmt.Errorf("model stream: %w", err)
	}

	o.bus.Emit(events.SourceChat, events.KindChatStarted,
		map[string]any{"conversation_id": req.ConversationID, "model": o.client.Model()})

	clientCopy, persistCopy := stream.Fork(resp.Body)

	// The persistence job is detached from the request: the client may
	// disconnect mid-stream and the assistant message still lands.
	o.jobs.Go(context.WithoutCancel(ctx), "persist-chat", func(jobCtx context.Context) error {
		return o.persist(jobCtx, req.ConversationID, persistCopy)
	})

	return &llm.StreamResponse{Body: clientCopy, Header: resp.Header}, nil
}

// persist drains one copy of the model stream, accumulates the
// assistant's text, extracts an itinerary if the reply carries one, and
// appends the full text to the message log. Extraction failures are
// silent; only storage errors surface, and those reach logs, not the
// client.
func (o *Orchestrator) persist(ctx context.Context, conversationID string, src io.ReadCloser) error {
	defer src.Close()
	start := o.now()

	scanner := stream.NewScanner()
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			scanner.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}

	text := scanner.Finish()
	if strings.TrimSpace(text) == "" {
		o.logger.Warn("model stream produced no text", "conversation_id", conversationID)
		return nil
	}

	actor := o.manager.Actor(conversationID)

	itineraryFound := false
	if itin, ok := itinerary.Extract(text, o.now()); ok {
		if err := actor.UpdateItinerary(ctx, *itin); err != nil {
			o.logger.Error("persist itinerary", "conversation_id", conversationID, "error", err)
		} else {
			itineraryFound = true
			o.bus.Emit(events.SourceJobs, events.KindItineraryUpdated,
				map[string]any{"conversation_id": conversationID, "days": len(itin.Days)})
		}
	}

	// The full text is stored as-is, marker and JSON included; display
	// filtering happens at read time.
	if _, err := actor.AppendMessage(ctx, conversation.Message{Role: "assistant", Content: text}); err != nil {
		return fmt.Errorf("persist assistant message: %w", err)
	}
	o.bus.Emit(events.SourceJobs, events.KindMessagePersisted,
		map[string]any{"conversation_id": conversationID, "role": "assistant"})
	o.bus.Emit(events.SourceJobs, events.KindChatCompleted, map[string]any{
		"conversation_id": conversationID,
		"chars":           len(text),
		"itinerary_found": itineraryFound,
		"elapsed_ms":      o.now().Sub(start).Milliseconds(),
	})
	return nil
}

// trailingUserMessage returns the final message if it is from the user.
func trailingUserMessage(msgs []llm.Message) (llm.Message, bool) {
	if len(msgs) == 0 {
		return llm.Message{}, false
	}
	last := msgs[len(msgs)-1]
	if last.Role != "user" {
		return llm.Message{}, false
	}
	return last, true
}
