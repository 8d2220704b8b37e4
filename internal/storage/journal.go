package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const journalColumns = `id, user_id, content_sealed, ai_summary, sentiment_score,
	intensity_score, key_themes, risk_flags, suggest_start_chat, checkin_mood, created_at`

// SaveJournalEntry inserts an entry with its derived fields. Derived fields
// are written exactly once here and never updated in place.
func (s *Store) SaveJournalEntry(e JournalEntry) error {
	var intensity sql.NullFloat64
	if e.IntensityScore != nil {
		intensity = sql.NullFloat64{Float64: *e.IntensityScore, Valid: true}
	}
	_, err := s.db.Exec(`
		INSERT INTO journal_entries (`+journalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.ContentSealed, e.AISummary, e.SentimentScore,
		intensity, e.KeyThemes, e.RiskFlags, boolToInt(e.SuggestChat),
		e.CheckinMood, formatTime(e.CreatedAt),
	)
	return err
}

func (s *Store) GetJournalEntry(id string) (JournalEntry, error) {
	row := s.db.QueryRow(`SELECT `+journalColumns+` FROM journal_entries WHERE id = ?`, id)
	e, err := scanJournalEntry(row.Scan)
	if err == sql.ErrNoRows {
		return JournalEntry{}, ErrNotFound
	}
	return e, err
}

// ListJournalEntries returns the user's entries newest first.
func (s *Store) ListJournalEntries(userID string, limit int) ([]JournalEntry, error) {
	rows, err := s.db.Query(`
		SELECT `+journalColumns+` FROM journal_entries
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []JournalEntry
	for rows.Next() {
		e, err := scanJournalEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// ListJournalEntriesSince returns the user's entries created at or after the
// cutoff, newest first. Used by the 7-day trend window and snapshot builder.
func (s *Store) ListJournalEntriesSince(userID string, cutoff time.Time) ([]JournalEntry, error) {
	rows, err := s.db.Query(`
		SELECT `+journalColumns+` FROM journal_entries
		WHERE user_id = ? AND created_at >= ? ORDER BY created_at DESC`,
		userID, formatTime(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []JournalEntry
	for rows.Next() {
		e, err := scanJournalEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

func scanJournalEntry(scan func(dest ...any) error) (JournalEntry, error) {
	var e JournalEntry
	var intensity sql.NullFloat64
	var suggest int
	var createdAt string
	err := scan(&e.ID, &e.UserID, &e.ContentSealed, &e.AISummary, &e.SentimentScore,
		&intensity, &e.KeyThemes, &e.RiskFlags, &suggest, &e.CheckinMood, &createdAt)
	if err != nil {
		return JournalEntry{}, err
	}
	if intensity.Valid {
		v := intensity.Float64
		e.IntensityScore = &v
	}
	e.SuggestChat = suggest != 0
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return JournalEntry{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return e, nil
}
