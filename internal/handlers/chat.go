package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"kyro-backend/internal/middleware"
	"kyro-backend/internal/models"
	"kyro-backend/internal/services"
	"kyro-backend/internal/session"
)

type chatRelay interface {
	Chat(ctx context.Context, message, sessionID string) (*services.Reply, error)
	Clear(ctx context.Context, sessionID string) error
}

type ChatHandler struct {
	relay            chatRelay
	defaultSessionID string
}

func NewChatHandler(relay chatRelay, defaultSessionID string) *ChatHandler {
	return &ChatHandler{relay: relay, defaultSessionID: defaultSessionID}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ChatResponse{Response: "Invalid request body.", Status: models.StatusError})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = h.defaultSessionID
	}

	reply, err := h.relay.Chat(r.Context(), req.Message, h.scoped(r, sessionID))
	if err != nil {
		handleChatError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Response: reply.Text, Status: reply.Status})
}

func (h *ChatHandler) ClearChat(w http.ResponseWriter, r *http.Request) {
	var req models.ClearChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.StatusResponse{Status: models.StatusError, Message: "Invalid request body"})
		return
	}

	sessionID := req.SessionID
	if sessionID != "" {
		sessionID = h.scoped(r, sessionID)
	}

	if err := h.relay.Clear(r.Context(), sessionID); err != nil {
		var vErr *services.ValidationError
		if errors.As(err, &vErr) {
			writeJSON(w, http.StatusBadRequest, models.StatusResponse{Status: models.StatusError, Message: vErr.Message})
			return
		}
		log.Printf("[chat] clear failed (request %s): %v", r.Header.Get("X-Request-ID"), err)
		writeJSON(w, http.StatusInternalServerError, models.StatusResponse{Status: models.StatusError, Message: "Failed to clear chat history"})
		return
	}

	writeJSON(w, http.StatusOK, models.StatusResponse{Status: models.StatusSuccess, Message: "Chat history cleared"})
}

// scoped namespaces the client's session id by the authenticated user, if any.
func (h *ChatHandler) scoped(r *http.Request, sessionID string) string {
	return session.ScopedID(middleware.GetUserID(r.Context()), sessionID)
}

func handleChatError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *services.ValidationError
	var upErr *services.UpstreamError

	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, models.ChatResponse{Response: vErr.Message, Status: models.StatusError})
	case errors.As(err, &upErr):
		writeJSON(w, http.StatusInternalServerError, models.ChatResponse{Response: services.ApologyText, Status: models.StatusError})
	default:
		log.Printf("[chat] unexpected error (request %s): %v", r.Header.Get("X-Request-ID"), err)
		writeJSON(w, http.StatusInternalServerError, models.ChatResponse{Response: services.GenericErrorText, Status: models.StatusError})
	}
}
