package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/wayfarer-ai/wayfarer/internal/conversation"
)

// handleShareQR renders a QR code pointing at the conversation's share
// URL, for handing a plan to a phone. Requires share_url in config.
func (s *Server) handleShareQR(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if s.shareURL == "" {
		s.errorResponse(w, http.StatusNotFound, "sharing is not configured")
		return
	}

	// Only existing conversations get a code.
	if _, err := s.manager.Actor(id).Meta(r.Context()); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logger.Error("load meta", "conversation_id", id, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	size := 256
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 64 || n > 1024 {
			s.errorResponse(w, http.StatusBadRequest, "size must be between 64 and 1024")
			return
		}
		size = n
	}

	target := fmt.Sprintf("%s/c/%s", s.shareURL, id)
	png, err := qrcode.Encode(target, qrcode.Medium, size)
	if err != nil {
		s.logger.Error("encode qr", "conversation_id", id, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to render QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}
