package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/safespace/safespace/internal/chat"
	"github.com/safespace/safespace/internal/storage"
)

type sessionView struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func viewSession(s storage.ChatSession) sessionView {
	return sessionView{ID: s.ID, Status: s.Status, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

type messageView struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func viewMessage(m chat.Message) messageView {
	return messageView{ID: m.ID, SessionID: m.SessionID, Sender: m.Sender, Content: m.Content, CreatedAt: m.CreatedAt}
}

func handleGetOrCreateSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identityFrom(r.Context())
		sess, created, err := deps.Chat.GetOrCreate(id.UserID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to open session: %v", err)
			return
		}
		code := http.StatusOK
		if created {
			code = http.StatusCreated
		}
		writeJSON(w, code, viewSession(sess))
	}
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type sendMessageResponse struct {
	UserMessage messageView `json:"user_message"`
	BotMessage  messageView `json:"bot_message"`
	Escalated   bool        `json:"escalated"`
	TicketID    string      `json:"escalation_ticket_id,omitempty"`
}

func handleSendMessage(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		if !decodeBody(w, r, &req) {
			return
		}

		id := identityFrom(r.Context())
		ex, err := deps.Chat.HandleMessage(chi.URLParam(r, "id"), id.UserID, req.Content)
		switch {
		case errors.Is(err, chat.ErrValidation):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		case errors.Is(err, storage.ErrNotFound), errors.Is(err, chat.ErrNotOwner):
			// Non-owners get the same 404 as a missing session.
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		case errors.Is(err, chat.ErrSessionClosed):
			httpError(w, http.StatusConflict, "invalid_state", "this session is closed")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to send message: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, sendMessageResponse{
			UserMessage: viewMessage(ex.UserMessage),
			BotMessage:  viewMessage(ex.BotMessage),
			Escalated:   ex.Escalated,
			TicketID:    ex.TicketID,
		})
	}
}

func handleListMessages(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identityFrom(r.Context())
		messages, err := deps.Chat.Messages(chi.URLParam(r, "id"), id.UserID)
		switch {
		case errors.Is(err, storage.ErrNotFound), errors.Is(err, chat.ErrNotOwner):
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list messages: %v", err)
			return
		}

		views := make([]messageView, 0, len(messages))
		for _, m := range messages {
			views = append(views, viewMessage(m))
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleCloseSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identityFrom(r.Context())
		sess, err := deps.Chat.Close(chi.URLParam(r, "id"), id.UserID)
		switch {
		case errors.Is(err, storage.ErrNotFound), errors.Is(err, chat.ErrNotOwner):
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to close session: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, viewSession(sess))
	}
}
