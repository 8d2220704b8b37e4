package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/safespace/safespace/internal/escalation"
	"github.com/safespace/safespace/internal/storage"
)

type ticketView struct {
	ID                     string     `json:"id"`
	SourceType             string     `json:"source_type"`
	SourceID               string     `json:"source_id"`
	UserID                 string     `json:"user_id"`
	AssignedProfessionalID string     `json:"assigned_professional_id,omitempty"`
	Reason                 string     `json:"reason"`
	Status                 string     `json:"status"`
	Verdict                string     `json:"verdict,omitempty"`
	ProfessionalNotes      string     `json:"professional_notes,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	ResolvedAt             *time.Time `json:"resolved_at,omitempty"`
}

func viewTicket(t storage.EscalationTicket) ticketView {
	return ticketView{
		ID:                     t.ID,
		SourceType:             t.SourceType,
		SourceID:               t.SourceID,
		UserID:                 t.UserID,
		AssignedProfessionalID: t.AssignedProfessionalID,
		Reason:                 t.Reason,
		Status:                 t.Status,
		Verdict:                t.Verdict,
		ProfessionalNotes:      t.ProfessionalNotes,
		CreatedAt:              t.CreatedAt,
		ResolvedAt:             t.ResolvedAt,
	}
}

func viewTickets(tickets []storage.EscalationTicket) []ticketView {
	views := make([]ticketView, 0, len(tickets))
	for _, t := range tickets {
		views = append(views, viewTicket(t))
	}
	return views
}

// handleAssignedEscalations lists pending tickets assigned to the calling
// professional.
func handleAssignedEscalations(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		professionalID, ok := requireProfessional(w, r, deps)
		if !ok {
			return
		}
		tickets, err := deps.Router.AssignedTickets(professionalID, true)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list escalations: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, viewTickets(tickets))
	}
}

// handleMyEscalations lists tickets whose subject is the calling user.
func handleMyEscalations(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identityFrom(r.Context())
		tickets, err := deps.Router.TicketsAbout(id.UserID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list escalations: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, viewTickets(tickets))
	}
}

func handleEscalationDetail(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		professionalID, ok := requireProfessional(w, r, deps)
		if !ok {
			return
		}

		ticket, err := deps.Router.GetTicket(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "ticket not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get ticket: %v", err)
			return
		}
		if ticket.AssignedProfessionalID != professionalID {
			httpError(w, http.StatusNotFound, "not_found", "ticket not found")
			return
		}
		writeJSON(w, http.StatusOK, viewTicket(ticket))
	}
}

type verdictRequest struct {
	Verdict           string `json:"verdict"`
	ProfessionalNotes string `json:"professional_notes"`
}

func handleSubmitVerdict(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		professionalID, ok := requireProfessional(w, r, deps)
		if !ok {
			return
		}

		var req verdictRequest
		if !decodeBody(w, r, &req) {
			return
		}

		ticket, err := deps.Router.SubmitVerdict(chi.URLParam(r, "id"), req.Verdict, req.ProfessionalNotes, professionalID)
		switch {
		case errors.Is(err, escalation.ErrInvalidVerdict):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		case errors.Is(err, storage.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found", "ticket not found")
			return
		case errors.Is(err, escalation.ErrUnauthorized):
			httpError(w, http.StatusForbidden, "forbidden", "you are not assigned to this ticket")
			return
		case errors.Is(err, escalation.ErrInvalidState):
			httpError(w, http.StatusConflict, "invalid_state", "ticket has already been resolved")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to submit verdict: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, viewTicket(ticket))
	}
}
