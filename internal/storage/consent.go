package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertConsentGrant activates consent for the (user, professional) pair.
// The composite primary key plus ON CONFLICT makes this an atomic upsert:
// repeated grants reactivate the single existing row, never add a second.
// Returns the grant and whether a new row was created.
func (s *Store) UpsertConsentGrant(userID, professionalID string, now time.Time) (ConsentGrant, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return ConsentGrant{}, false, fmt.Errorf("beginning grant transaction: %w", err)
	}
	defer tx.Rollback()

	var existed int
	if err := tx.QueryRow(`
		SELECT COUNT(*) FROM consent_grants WHERE user_id = ? AND professional_id = ?`,
		userID, professionalID).Scan(&existed); err != nil {
		return ConsentGrant{}, false, err
	}

	if _, err := tx.Exec(`
		INSERT INTO consent_grants (user_id, professional_id, active, granted_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(user_id, professional_id) DO UPDATE SET active = 1`,
		userID, professionalID, formatTime(now)); err != nil {
		return ConsentGrant{}, false, err
	}

	g, err := scanGrant(tx.QueryRow(`
		SELECT user_id, professional_id, active, granted_at
		FROM consent_grants WHERE user_id = ? AND professional_id = ?`,
		userID, professionalID).Scan)
	if err != nil {
		return ConsentGrant{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return ConsentGrant{}, false, fmt.Errorf("committing grant: %w", err)
	}
	return g, existed == 0, nil
}

// ListConsentGrants returns the user's active grants, newest first.
func (s *Store) ListConsentGrants(userID string) ([]ConsentGrant, error) {
	rows, err := s.db.Query(`
		SELECT user_id, professional_id, active, granted_at
		FROM consent_grants WHERE user_id = ? AND active = 1
		ORDER BY granted_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ConsentGrant
	for rows.Next() {
		g, err := scanGrant(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, g)
	}
	return results, rows.Err()
}

// HasActiveConsent reports whether the professional holds active consent from
// the user. This is the sole authorization predicate for cross-user reads.
func (s *Store) HasActiveConsent(professionalID, userID string) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM consent_grants
		WHERE user_id = ? AND professional_id = ? AND active = 1`,
		userID, professionalID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanGrant(scan func(dest ...any) error) (ConsentGrant, error) {
	var g ConsentGrant
	var active int
	var grantedAt string
	err := scan(&g.UserID, &g.ProfessionalID, &active, &grantedAt)
	if err == sql.ErrNoRows {
		return ConsentGrant{}, ErrNotFound
	}
	if err != nil {
		return ConsentGrant{}, err
	}
	g.Active = active != 0
	if g.GrantedAt, err = parseTime(grantedAt); err != nil {
		return ConsentGrant{}, fmt.Errorf("parsing granted_at: %w", err)
	}
	return g, nil
}
