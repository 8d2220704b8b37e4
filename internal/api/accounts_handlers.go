package api

import (
	"errors"
	"net/http"

	"github.com/safespace/safespace/internal/accounts"
	"github.com/safespace/safespace/internal/storage"
)

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

type userView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func viewUser(u storage.User) userView {
	return userView{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, Role: u.Role}
}

func handleRegister(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if !decodeBody(w, r, &req) {
			return
		}

		u, token, err := deps.Accounts.Register(req.Email, req.DisplayName, req.Password)
		if errors.Is(err, accounts.ErrValidation) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if errors.Is(err, accounts.ErrEmailTaken) {
			httpError(w, http.StatusConflict, "conflict", "email already registered")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to register: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, authResponse{Token: token, User: viewUser(u)})
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func handleLogin(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeBody(w, r, &req) {
			return
		}

		u, token, err := deps.Accounts.Login(req.Email, req.Password)
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			httpError(w, http.StatusUnauthorized, "authentication_error", "invalid email or password")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to log in: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, authResponse{Token: token, User: viewUser(u)})
	}
}

type professionalView struct {
	ID               string                `json:"id"`
	ProfessionalType string                `json:"professional_type"`
	Specialization   string                `json:"specialization"`
	City             string                `json:"city"`
	Verified         bool                  `json:"verified"`
	Availability     accounts.Availability `json:"availability"`
}

func viewProfessional(p storage.Professional) professionalView {
	return professionalView{
		ID:               p.ID,
		ProfessionalType: p.ProfessionalType,
		Specialization:   p.Specialization,
		City:             p.City,
		Verified:         p.Verified,
		Availability:     accounts.ParseAvailability(p.AvailabilityJSON),
	}
}

func handleListProfessionals(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pros, err := deps.Accounts.ListVerifiedProfessionals()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list professionals: %v", err)
			return
		}
		views := make([]professionalView, 0, len(pros))
		for _, p := range pros {
			views = append(views, viewProfessional(p))
		}
		writeJSON(w, http.StatusOK, views)
	}
}

type applyRequest struct {
	ProfessionalType string                `json:"professional_type"`
	Specialization   string                `json:"specialization"`
	City             string                `json:"city"`
	Availability     accounts.Availability `json:"availability"`
	RegistryID       string                `json:"registry_id"`
	DegreeFile       string                `json:"degree_file"`
	UniversityName   string                `json:"university_name"`
}

func handleApplyProfessional(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req applyRequest
		if !decodeBody(w, r, &req) {
			return
		}

		id := identityFrom(r.Context())
		p, err := deps.Accounts.ApplyProfessional(id.UserID, accounts.ProfessionalApplication{
			ProfessionalType: req.ProfessionalType,
			Specialization:   req.Specialization,
			City:             req.City,
			Availability:     req.Availability,
			RegistryID:       req.RegistryID,
			DegreeFile:       req.DegreeFile,
			UniversityName:   req.UniversityName,
		})
		if errors.Is(err, accounts.ErrValidation) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to apply: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, viewProfessional(p))
	}
}
