package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/bloom/internal/assistant"
	"github.com/dukerupert/bloom/internal/store"
)

type ChatHandler struct {
	assistant    *assistant.Assistant
	profileStore *store.ProfileStore
	logger       *slog.Logger
}

func NewChatHandler(a *assistant.Assistant, ps *store.ProfileStore, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{assistant: a, profileStore: ps, logger: logger}
}

type chatRequest struct {
	Message string `json:"message"`
}

// Send answers one message. Profile lookup failures only drop the profile
// context from the prompt.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := context.WithoutCancel(r.Context())
	profile, err := loadProfile(ctx, h.profileStore)
	if err != nil {
		h.logger.Warn("load profile for chat", "error", err)
		profile = nil
	}

	reply, err := h.assistant.Reply(ctx, profile, req.Message)
	if errors.Is(err, assistant.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
