// Package consent tracks which professional may read which user's history.
// Grants are explicit and, in the current product, never revoked; the sole
// authorization predicate for cross-user reads is IsAuthorized.
package consent

import (
	"errors"
	"fmt"
	"time"

	"github.com/safespace/safespace/internal/storage"
)

// ErrProfessionalNotEligible is returned when consent targets a professional
// that does not exist or is not verified.
var ErrProfessionalNotEligible = errors.New("professional not found or not verified")

type Registry struct {
	store *storage.Store
}

func NewRegistry(store *storage.Store) *Registry {
	return &Registry{store: store}
}

// Grant activates consent from the user to the professional. Granting an
// already-active consent is a no-op returning the existing record; at most
// one active grant ever exists per pair.
func (r *Registry) Grant(userID, professionalID string) (storage.ConsentGrant, error) {
	p, err := r.store.GetProfessional(professionalID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.ConsentGrant{}, ErrProfessionalNotEligible
	}
	if err != nil {
		return storage.ConsentGrant{}, err
	}
	if !p.Verified {
		return storage.ConsentGrant{}, ErrProfessionalNotEligible
	}

	g, _, err := r.store.UpsertConsentGrant(userID, professionalID, time.Now().UTC())
	if err != nil {
		return storage.ConsentGrant{}, fmt.Errorf("granting consent: %w", err)
	}
	return g, nil
}

// Status returns the user's active grants.
func (r *Registry) Status(userID string) ([]storage.ConsentGrant, error) {
	grants, err := r.store.ListConsentGrants(userID)
	if err != nil {
		return nil, err
	}
	if grants == nil {
		grants = []storage.ConsentGrant{}
	}
	return grants, nil
}

// IsAuthorized reports whether the professional holds active consent from the
// user. Every read of another user's data must pass through this predicate.
func (r *Registry) IsAuthorized(professionalID, userID string) (bool, error) {
	return r.store.HasActiveConsent(professionalID, userID)
}
