package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/safespace/safespace/internal/accounts"
	"github.com/safespace/safespace/internal/chat"
	"github.com/safespace/safespace/internal/consent"
	"github.com/safespace/safespace/internal/escalation"
	"github.com/safespace/safespace/internal/history"
	"github.com/safespace/safespace/internal/journal"
)

const maxRequestBodySize = 1 << 20 // 1MB

// AppDeps carries the services the handlers depend on.
type AppDeps struct {
	Accounts *accounts.Service
	Tokens   *accounts.TokenIssuer
	Journal  *journal.Service
	Chat     *chat.Coordinator
	Router   *escalation.Router
	Consent  *consent.Registry
	History  *history.Builder
}

// NewAppHandler builds the REST surface consumed by the UI.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Post("/auth/register", handleRegister(deps))
	r.Post("/auth/login", handleLogin(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Tokens))

		r.Post("/journal/", handleCreateJournalEntry(deps))
		r.Get("/journal/", handleListJournalEntries(deps))

		r.Post("/chat/sessions/", handleGetOrCreateSession(deps))
		r.Post("/chat/sessions/{id}/message/", handleSendMessage(deps))
		r.Get("/chat/sessions/{id}/messages/", handleListMessages(deps))
		r.Post("/chat/sessions/{id}/close/", handleCloseSession(deps))

		r.Get("/professionals/", handleListProfessionals(deps))
		r.Post("/professionals/apply/", handleApplyProfessional(deps))
		r.Get("/professionals/escalations/", handleAssignedEscalations(deps))
		r.Get("/professionals/escalations/mine/", handleMyEscalations(deps))
		r.Get("/professionals/escalations/{id}/", handleEscalationDetail(deps))
		r.Post("/professionals/escalations/{id}/verdict/", handleSubmitVerdict(deps))
		r.Get("/professionals/patients/{user_id}/history/", handlePatientHistory(deps))

		r.Post("/consent/grant/", handleGrantConsent(deps))
		r.Get("/consent/status/", handleConsentStatus(deps))

		r.Post("/history/generate/", handleGenerateHistory(deps))
		r.Get("/history/pdf/{snapshot_id}/", handleHistoryPDF(deps))
	})

	return r
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
