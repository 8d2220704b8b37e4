package storage

import (
	"database/sql"
	"fmt"
)

// SaveHistorySnapshot inserts a snapshot. Snapshots are append-only; there is
// deliberately no update method for this table.
func (s *Store) SaveHistorySnapshot(snap HistorySnapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO history_snapshots (id, user_id, content, generated_at)
		VALUES (?, ?, ?, ?)`,
		snap.ID, snap.UserID, snap.Content, formatTime(snap.GeneratedAt),
	)
	return err
}

func (s *Store) GetHistorySnapshot(id string) (HistorySnapshot, error) {
	var snap HistorySnapshot
	var generatedAt string
	err := s.db.QueryRow(`
		SELECT id, user_id, content, generated_at
		FROM history_snapshots WHERE id = ?`, id,
	).Scan(&snap.ID, &snap.UserID, &snap.Content, &generatedAt)
	if err == sql.ErrNoRows {
		return HistorySnapshot{}, ErrNotFound
	}
	if err != nil {
		return HistorySnapshot{}, err
	}
	if snap.GeneratedAt, err = parseTime(generatedAt); err != nil {
		return HistorySnapshot{}, fmt.Errorf("parsing generated_at: %w", err)
	}
	return snap, nil
}

// LatestHistorySnapshot returns the user's most recent snapshot.
func (s *Store) LatestHistorySnapshot(userID string) (HistorySnapshot, error) {
	var snap HistorySnapshot
	var generatedAt string
	err := s.db.QueryRow(`
		SELECT id, user_id, content, generated_at
		FROM history_snapshots WHERE user_id = ?
		ORDER BY generated_at DESC, id DESC LIMIT 1`, userID,
	).Scan(&snap.ID, &snap.UserID, &snap.Content, &generatedAt)
	if err == sql.ErrNoRows {
		return HistorySnapshot{}, ErrNotFound
	}
	if err != nil {
		return HistorySnapshot{}, err
	}
	if snap.GeneratedAt, err = parseTime(generatedAt); err != nil {
		return HistorySnapshot{}, fmt.Errorf("parsing generated_at: %w", err)
	}
	return snap, nil
}
