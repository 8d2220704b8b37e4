package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const ticketColumns = `id, source_type, source_id, user_id, assigned_professional_id,
	reason, status, verdict, professional_notes, created_at, resolved_at`

// OpenTicket creates a pending ticket for the source unless one already
// exists, in which case the existing ticket is returned and created is false.
// Assignment picks the next eligible professional by advancing the shared
// round-robin cursor. The existence check, the cursor advance, and the insert
// all run in one transaction: two concurrent opens for the same source can
// never both insert, and two opens for different sources can never read the
// same cursor position.
//
// If no eligible professional exists the ticket is still created, unassigned,
// for the sweep to retry later.
func (s *Store) OpenTicket(sourceType, sourceID, userID, reason, newID string, now time.Time) (EscalationTicket, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return EscalationTicket{}, false, fmt.Errorf("beginning open transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanTicket(tx.QueryRow(`
		SELECT `+ticketColumns+` FROM escalation_tickets
		WHERE source_type = ? AND source_id = ? AND status = ?`,
		sourceType, sourceID, TicketPending).Scan)
	if err == nil {
		return existing, false, nil
	}
	if err != sql.ErrNoRows {
		return EscalationTicket{}, false, fmt.Errorf("checking pending ticket: %w", err)
	}

	assignee, err := nextAssignee(tx)
	if err != nil {
		return EscalationTicket{}, false, err
	}

	t := EscalationTicket{
		ID:                     newID,
		SourceType:             sourceType,
		SourceID:               sourceID,
		UserID:                 userID,
		AssignedProfessionalID: assignee,
		Reason:                 reason,
		Status:                 TicketPending,
		CreatedAt:              now.UTC(),
	}
	if _, err := tx.Exec(`
		INSERT INTO escalation_tickets (`+ticketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		t.ID, t.SourceType, t.SourceID, t.UserID, t.AssignedProfessionalID,
		t.Reason, t.Status, t.Verdict, t.ProfessionalNotes, formatTime(t.CreatedAt),
	); err != nil {
		return EscalationTicket{}, false, fmt.Errorf("inserting ticket: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return EscalationTicket{}, false, fmt.Errorf("committing open: %w", err)
	}
	return t, true, nil
}

// nextAssignee advances the round-robin cursor and returns the id of the
// eligible professional at the new position, or "" when the eligible set is
// empty. Must be called inside a transaction.
func nextAssignee(tx *sql.Tx) (string, error) {
	rows, err := tx.Query(`
		SELECT id, professional_type FROM professionals
		WHERE verified = 1 AND professional_type != ''
		ORDER BY created_at, id`)
	if err != nil {
		return "", fmt.Errorf("listing eligible professionals: %w", err)
	}
	var eligible []string
	for rows.Next() {
		var id, ptype string
		if err := rows.Scan(&id, &ptype); err != nil {
			rows.Close()
			return "", err
		}
		eligible = append(eligible, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(eligible) == 0 {
		return "", nil
	}

	var position int64
	if err := tx.QueryRow(`
		UPDATE assignment_cursor SET position = position + 1 WHERE id = 1
		RETURNING position`).Scan(&position); err != nil {
		return "", fmt.Errorf("advancing assignment cursor: %w", err)
	}
	return eligible[(position-1)%int64(len(eligible))], nil
}

// AssignTicket sets the assignee on a pending, unassigned ticket by advancing
// the round-robin cursor. Used by the sweep for tickets opened while no
// professional was eligible. Returns ErrNotFound if the ticket was resolved or
// assigned in the meantime and ErrNoAssignee if the eligible set is empty.
func (s *Store) AssignTicket(ticketID string) (string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning assign transaction: %w", err)
	}
	defer tx.Rollback()

	assignee, err := nextAssignee(tx)
	if err != nil {
		return "", err
	}
	if assignee == "" {
		return "", ErrNoAssignee
	}

	res, err := tx.Exec(`
		UPDATE escalation_tickets SET assigned_professional_id = ?
		WHERE id = ? AND status = ? AND assigned_professional_id = ''`,
		assignee, ticketID, TicketPending)
	if err != nil {
		return "", err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing assign: %w", err)
	}
	return assignee, nil
}

// ErrNoAssignee is returned when no verified, eligible professional exists.
var ErrNoAssignee = fmt.Errorf("no eligible professional")

func (s *Store) GetTicket(id string) (EscalationTicket, error) {
	t, err := scanTicket(s.db.QueryRow(
		`SELECT `+ticketColumns+` FROM escalation_tickets WHERE id = ?`, id).Scan)
	if err == sql.ErrNoRows {
		return EscalationTicket{}, ErrNotFound
	}
	return t, err
}

// ResolveTicket transitions a pending ticket to resolved. The status guard in
// the WHERE clause makes the transition happen at most once; a second resolve
// reports zero affected rows.
func (s *Store) ResolveTicket(id, verdict, notes string, now time.Time) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE escalation_tickets
		SET status = ?, verdict = ?, professional_notes = ?, resolved_at = ?
		WHERE id = ? AND status = ?`,
		TicketResolved, verdict, notes, formatTime(now), id, TicketPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListTicketsByAssignee returns tickets assigned to the professional, newest
// first, optionally filtered by status ("" = all).
func (s *Store) ListTicketsByAssignee(professionalID, status string) ([]EscalationTicket, error) {
	query := `SELECT ` + ticketColumns + ` FROM escalation_tickets WHERE assigned_professional_id = ?`
	args := []any{professionalID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	return s.listTickets(query, args...)
}

// ListTicketsByUser returns tickets about the given user, newest first.
func (s *Store) ListTicketsByUser(userID string) ([]EscalationTicket, error) {
	return s.listTickets(`
		SELECT `+ticketColumns+` FROM escalation_tickets
		WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

// ListUnassignedPendingTickets returns pending tickets with no assignee,
// oldest first, for the retry sweep.
func (s *Store) ListUnassignedPendingTickets(limit int) ([]EscalationTicket, error) {
	return s.listTickets(`
		SELECT `+ticketColumns+` FROM escalation_tickets
		WHERE status = ? AND assigned_professional_id = ''
		ORDER BY created_at LIMIT ?`, TicketPending, limit)
}

func (s *Store) listTickets(query string, args ...any) ([]EscalationTicket, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []EscalationTicket
	for rows.Next() {
		t, err := scanTicket(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

func scanTicket(scan func(dest ...any) error) (EscalationTicket, error) {
	var t EscalationTicket
	var createdAt string
	var resolvedAt sql.NullString
	err := scan(&t.ID, &t.SourceType, &t.SourceID, &t.UserID, &t.AssignedProfessionalID,
		&t.Reason, &t.Status, &t.Verdict, &t.ProfessionalNotes, &createdAt, &resolvedAt)
	if err != nil {
		return EscalationTicket{}, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return EscalationTicket{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if resolvedAt.Valid {
		rt, err := parseTime(resolvedAt.String)
		if err != nil {
			return EscalationTicket{}, fmt.Errorf("parsing resolved_at: %w", err)
		}
		t.ResolvedAt = &rt
	}
	return t, nil
}
