// Package accounts owns users, authentication tokens, and professional
// profiles, including the single IsProfessional capability query the rest of
// the system relies on.
package accounts

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/safespace/safespace/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNotProfessional    = errors.New("not a professional")
	ErrValidation         = errors.New("validation failed")
)

type Service struct {
	store  *storage.Store
	tokens *TokenIssuer
}

func NewService(store *storage.Store, tokens *TokenIssuer) *Service {
	return &Service{store: store, tokens: tokens}
}

// Register creates a user account and returns it with a fresh token.
func (s *Service) Register(email, displayName, password string) (storage.User, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return storage.User{}, "", fmt.Errorf("%w: valid email required", ErrValidation)
	}
	if displayName == "" {
		return storage.User{}, "", fmt.Errorf("%w: display name required", ErrValidation)
	}
	if len(password) < 8 {
		return storage.User{}, "", fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}

	if _, err := s.store.GetUserByEmail(email); err == nil {
		return storage.User{}, "", ErrEmailTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storage.User{}, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return storage.User{}, "", fmt.Errorf("hashing password: %w", err)
	}

	u := storage.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(email),
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         storage.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(u); err != nil {
		return storage.User{}, "", fmt.Errorf("creating user: %w", err)
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return storage.User{}, "", err
	}
	return u, token, nil
}

// Login verifies credentials and returns the user with a fresh token.
func (s *Service) Login(email, password string) (storage.User, string, error) {
	u, err := s.store.GetUserByEmail(email)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return storage.User{}, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return storage.User{}, "", ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(u)
	if err != nil {
		return storage.User{}, "", err
	}
	return u, token, nil
}

func (s *Service) GetUser(id string) (storage.User, error) {
	return s.store.GetUser(id)
}

// IsProfessional is the one capability query for professional status,
// computed from the normalized role field. Returns the profile when the
// capability holds.
func (s *Service) IsProfessional(userID string) (storage.Professional, bool, error) {
	u, err := s.store.GetUser(userID)
	if err != nil {
		return storage.Professional{}, false, err
	}
	if u.Role != storage.RoleProfessional {
		return storage.Professional{}, false, nil
	}
	p, err := s.store.GetProfessionalByUser(userID)
	if errors.Is(err, storage.ErrNotFound) {
		// Role says professional but the profile is gone; treat the
		// capability as absent rather than failing the caller.
		return storage.Professional{}, false, nil
	}
	if err != nil {
		return storage.Professional{}, false, err
	}
	return p, true, nil
}

// ProfessionalApplication carries the fields of an apply request.
type ProfessionalApplication struct {
	ProfessionalType string
	Specialization   string
	City             string
	Availability     Availability
	RegistryID       string
	DegreeFile       string
	UniversityName   string
}

// ApplyProfessional creates (or completes) the caller's professional profile.
// Verification is automatic once the credentials for the declared type are
// complete: psychiatrists need a registry id, therapists and psychologists
// need a degree document plus university.
func (s *Service) ApplyProfessional(userID string, app ProfessionalApplication) (storage.Professional, error) {
	switch app.ProfessionalType {
	case storage.TypePsychiatrist, storage.TypeTherapist, storage.TypePsychologist:
	default:
		return storage.Professional{}, fmt.Errorf("%w: unknown professional type %q", ErrValidation, app.ProfessionalType)
	}

	if _, err := s.store.GetUser(userID); err != nil {
		return storage.Professional{}, err
	}

	availability := app.Availability
	if availability == nil {
		availability = DefaultAvailability()
	}
	availabilityJSON, err := availability.Encode()
	if err != nil {
		return storage.Professional{}, err
	}

	p := storage.Professional{
		UserID:           userID,
		ProfessionalType: app.ProfessionalType,
		Specialization:   strings.TrimSpace(app.Specialization),
		City:             strings.TrimSpace(app.City),
		AvailabilityJSON: availabilityJSON,
		RegistryID:       strings.TrimSpace(app.RegistryID),
		DegreeFile:       app.DegreeFile,
		UniversityName:   strings.TrimSpace(app.UniversityName),
	}
	p.Verified = credentialsComplete(p)

	existing, err := s.store.GetProfessionalByUser(userID)
	switch {
	case err == nil:
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
		if err := s.store.UpdateProfessionalProfile(p); err != nil {
			return storage.Professional{}, fmt.Errorf("updating professional profile: %w", err)
		}
	case errors.Is(err, storage.ErrNotFound):
		p.ID = uuid.New().String()
		p.CreatedAt = time.Now().UTC()
		if err := s.store.CreateProfessional(p); err != nil {
			return storage.Professional{}, fmt.Errorf("creating professional profile: %w", err)
		}
	default:
		return storage.Professional{}, err
	}

	if err := s.store.SetUserRole(userID, storage.RoleProfessional); err != nil {
		return storage.Professional{}, fmt.Errorf("setting role: %w", err)
	}
	return p, nil
}

func credentialsComplete(p storage.Professional) bool {
	if p.ProfessionalType == storage.TypePsychiatrist {
		return p.RegistryID != ""
	}
	return p.DegreeFile != "" && p.UniversityName != ""
}

// ListVerifiedProfessionals returns the public directory of verified
// professionals.
func (s *Service) ListVerifiedProfessionals() ([]storage.Professional, error) {
	return s.store.ListVerifiedProfessionals()
}
