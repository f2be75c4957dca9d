package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/wayfarer-ai/wayfarer/internal/conversation"
	"github.com/wayfarer-ai/wayfarer/internal/events"
	"github.com/wayfarer-ai/wayfarer/internal/itinerary"
)

// handleConversationCreate mints a fresh conversation id and initializes
// its state.
func (s *Server) handleConversationCreate(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	if _, err := s.manager.Actor(id).Initialize(r.Context()); err != nil {
		s.logger.Error("initialize conversation", "conversation_id", id, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	s.bus.Emit(events.SourceConversation, events.KindConversationCreated,
		map[string]any{"conversation_id": id})

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"id": id}, s.logger)
}

// handleConversationList returns metadata for a client-supplied id set.
// The client tracks which conversations it owns; the server has no
// global index. Unknown ids are skipped silently.
func (s *Server) handleConversationList(w http.ResponseWriter, r *http.Request) {
	idsParam := r.URL.Query().Get("ids")
	metas := []conversation.Meta{}
	for _, id := range strings.Split(idsParam, ",") {
		if id == "" {
			continue
		}
		meta, err := s.manager.Actor(id).Meta(r.Context())
		if errors.Is(err, conversation.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Error("load meta", "conversation_id", id, "error", err)
			continue
		}
		metas = append(metas, meta)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"conversations": metas}, s.logger)
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	meta, err := s.manager.Actor(id).Initialize(r.Context())
	if err != nil {
		s.logger.Error("initialize conversation", "conversation_id", id, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to initialize conversation")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, meta, s.logger)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	data, err := s.manager.Actor(id).Data(r.Context())
	if errors.Is(err, conversation.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.logger.Error("load data", "conversation_id", id, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, data, s.logger)
}

// apiMessage is a stored message plus optional rendered HTML.
type apiMessage struct {
	conversation.Message
	HTML string `json:"html,omitempty"`
}

// handleMessages returns a page of the message log. Query parameters:
// cursor (resume index), limit (page size), and format=html to include
// a rendered copy of each message with machine-readable tails stripped.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()

	cursor := 0
	if v := q.Get("cursor"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.errorResponse(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		cursor = n
	}
	limit := 50
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.errorResponse(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	page, err := s.manager.Actor(id).Messages(r.Context(), cursor, limit)
	if err != nil {
		s.logger.Error("load messages", "conversation_id", id, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	msgs := make([]apiMessage, 0, len(page.Messages))
	renderHTML := q.Get("format") == "html"
	for _, m := range page.Messages {
		am := apiMessage{Message: m}
		if renderHTML {
			if html, err := itinerary.RenderHTML(m.Content); err == nil {
				am.HTML = html
			}
		}
		msgs = append(msgs, am)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"messages": msgs, "cursor": page.Cursor}, s.logger)
}

// handleMessageAppend stores one message in the conversation log. The
// chat endpoint appends user and assistant turns itself; this route
// exists for direct log writes (imports, front-end drafts).
func (s *Server) handleMessageAppend(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var msg conversation.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch msg.Role {
	case "user", "assistant", "system":
	default:
		s.errorResponse(w, http.StatusBadRequest, "role must be user, assistant, or system")
		return
	}
	if strings.TrimSpace(msg.Content) == "" {
		s.errorResponse(w, http.StatusBadRequest, "content is required")
		return
	}

	stored, err := s.manager.Actor(id).AppendMessage(r.Context(),
		conversation.Message{Role: msg.Role, Content: msg.Content})
	if err != nil {
		s.logger.Error("append message", "conversation_id", id, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to append message")
		return
	}
	s.bus.Emit(events.SourceConversation, events.KindMessagePersisted,
		map[string]any{"conversation_id": id, "role": stored.Role})

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, stored, s.logger)
}

func (s *Server) handlePreferencesUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var prefs conversation.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.manager.Actor(id).UpdatePreferences(r.Context(), prefs); err != nil {
		s.logger.Error("update preferences", "conversation_id", id, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to update preferences")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) handleItineraryUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var itin itinerary.Itinerary
	if err := json.NewDecoder(r.Body).Decode(&itin); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.manager.Actor(id).UpdateItinerary(r.Context(), itin); err != nil {
		s.logger.Error("update itinerary", "conversation_id", id, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to update itinerary")
		return
	}
	s.bus.Emit(events.SourceConversation, events.KindItineraryUpdated,
		map[string]any{"conversation_id": id, "days": len(itin.Days)})

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) handleTitleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Title) == "" {
		s.errorResponse(w, http.StatusBadRequest, "title is required")
		return
	}

	meta, err := s.manager.Actor(id).UpdateTitle(r.Context(), body.Title)
	if errors.Is(err, conversation.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.logger.Error("update title", "conversation_id", id, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to update title")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, meta, s.logger)
}

func (s *Server) handleConversationDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.manager.Actor(id).Delete(r.Context()); err != nil {
		s.logger.Error("delete conversation", "conversation_id", id, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	s.manager.Forget(id)
	s.bus.Emit(events.SourceConversation, events.KindConversationDeleted,
		map[string]any{"conversation_id": id})

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "deleted"}, s.logger)
}
