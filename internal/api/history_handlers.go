package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/safespace/safespace/internal/consent"
	"github.com/safespace/safespace/internal/history"
	"github.com/safespace/safespace/internal/storage"
)

type grantConsentRequest struct {
	ProfessionalID string `json:"professional_id"`
}

type consentView struct {
	ProfessionalID string    `json:"professional_id"`
	Active         bool      `json:"active"`
	GrantedAt      time.Time `json:"granted_at"`
}

func handleGrantConsent(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req grantConsentRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.ProfessionalID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "professional_id is required")
			return
		}

		id := identityFrom(r.Context())
		grant, err := deps.Consent.Grant(id.UserID, req.ProfessionalID)
		if errors.Is(err, consent.ErrProfessionalNotEligible) {
			httpError(w, http.StatusNotFound, "not_found", "professional not found or not verified")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to grant consent: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, consentView{
			ProfessionalID: grant.ProfessionalID,
			Active:         grant.Active,
			GrantedAt:      grant.GrantedAt,
		})
	}
}

func handleConsentStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identityFrom(r.Context())
		grants, err := deps.Consent.Status(id.UserID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get consent status: %v", err)
			return
		}
		views := make([]consentView, 0, len(grants))
		for _, g := range grants {
			views = append(views, consentView{
				ProfessionalID: g.ProfessionalID,
				Active:         g.Active,
				GrantedAt:      g.GrantedAt,
			})
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleGenerateHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identityFrom(r.Context())
		snap, err := deps.History.Generate(id.UserID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to generate snapshot: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"snapshot_id":  snap.ID,
			"generated_at": snap.GeneratedAt,
		})
	}
}

// requesterProfile resolves the caller's professional profile id, or "" for
// plain users. Used by reads that may be made by either the owner or a
// consenting professional.
func requesterProfile(r *http.Request, deps AppDeps) (userID, professionalID string, err error) {
	id := identityFrom(r.Context())
	p, ok, err := deps.Accounts.IsProfessional(id.UserID)
	if err != nil {
		return "", "", err
	}
	if ok {
		return id.UserID, p.ID, nil
	}
	return id.UserID, "", nil
}

func handleHistoryPDF(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, professionalID, err := requesterProfile(r, deps)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to resolve requester: %v", err)
			return
		}

		snapshotID := chi.URLParam(r, "snapshot_id")
		pdfBytes, err := deps.History.Render(snapshotID, userID, professionalID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found", "snapshot not found")
			return
		case errors.Is(err, history.ErrForbidden):
			httpError(w, http.StatusForbidden, "forbidden", "no active consent for this snapshot")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to render snapshot: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "patient_history_"+snapshotID+".pdf"))
		w.Write(pdfBytes)
	}
}

// handlePatientHistory serves a consenting professional the patient's latest
// snapshot, generating one if none exists yet.
func handlePatientHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		professionalID, ok := requireProfessional(w, r, deps)
		if !ok {
			return
		}

		patientID := chi.URLParam(r, "user_id")
		authorized, err := deps.Consent.IsAuthorized(professionalID, patientID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to check consent: %v", err)
			return
		}
		if !authorized {
			httpError(w, http.StatusForbidden, "forbidden", "no active consent found for this patient")
			return
		}

		snap, err := deps.History.LatestOrGenerate(patientID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "patient not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load history: %v", err)
			return
		}

		var content json.RawMessage = []byte(snap.Content)
		writeJSON(w, http.StatusOK, map[string]any{
			"snapshot_id":  snap.ID,
			"generated_at": snap.GeneratedAt,
			"content":      content,
		})
	}
}
