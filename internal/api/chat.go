package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/wayfarer-ai/wayfarer/internal/agent"
	"github.com/wayfarer-ai/wayfarer/internal/llm"
)

// chatRequest is the wire format of a chat turn.
type chatRequest struct {
	Messages []llm.Message   `json:"messages"`
	Location *agent.Location `json:"location,omitempty"`
}

// handleChat runs one chat turn and streams the model's raw response to
// the client as it arrives. Persistence of the assistant's reply happens
// in the background and does not gate this response.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		s.errorResponse(w, http.StatusBadRequest, "messages are required")
		return
	}

	resp, err := s.orchestrator.Chat(r.Context(), agent.ChatRequest{
		ConversationID: id,
		Messages:       req.Messages,
		Location:       req.Location,
	})
	if err != nil {
		s.logger.Error("chat failed", "conversation_id", id, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "chat failed")
		return
	}
	defer resp.Body.Close()

	// Pass the model's response headers through so the client sees the
	// original content type and framing.
	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/x-ndjson")
	}
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				// Client went away; the background job still persists.
				s.logger.Debug("chat stream write failed", "conversation_id", id, "error", werr)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			s.logger.Warn("chat stream read failed", "conversation_id", id, "error", err)
			return
		}
	}
}
