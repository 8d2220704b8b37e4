package storage

import (
	"database/sql"
	"fmt"
	"sort"
	"time"
)

func (s *Store) CreateChatSession(sess ChatSession) error {
	_, err := s.db.Exec(`
		INSERT INTO chat_sessions (id, user_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Status, formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt),
	)
	return err
}

func (s *Store) GetChatSession(id string) (ChatSession, error) {
	return s.scanSession(s.db.QueryRow(`
		SELECT id, user_id, status, created_at, updated_at
		FROM chat_sessions WHERE id = ?`, id))
}

// GetOpenChatSession returns the user's most recent open session, if any.
func (s *Store) GetOpenChatSession(userID string) (ChatSession, error) {
	return s.scanSession(s.db.QueryRow(`
		SELECT id, user_id, status, created_at, updated_at
		FROM chat_sessions WHERE user_id = ? AND status = ?
		ORDER BY created_at DESC LIMIT 1`, userID, SessionOpen))
}

func (s *Store) scanSession(row *sql.Row) (ChatSession, error) {
	var sess ChatSession
	var createdAt, updatedAt string
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return ChatSession{}, ErrNotFound
	}
	if err != nil {
		return ChatSession{}, err
	}
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return ChatSession{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if sess.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return ChatSession{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return sess, nil
}

// ListChatSessionsSince returns the user's sessions created at or after the
// cutoff, newest first.
func (s *Store) ListChatSessionsSince(userID string, cutoff time.Time) ([]ChatSession, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, status, created_at, updated_at
		FROM chat_sessions WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at DESC`, userID, formatTime(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ChatSession
	for rows.Next() {
		var sess ChatSession
		var createdAt, updatedAt string
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if sess.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if sess.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		results = append(results, sess)
	}
	return results, rows.Err()
}

func (s *Store) UpdateChatSessionStatus(id, status string, now time.Time) error {
	res, err := s.db.Exec(`UPDATE chat_sessions SET status = ?, updated_at = ? WHERE id = ?`,
		status, formatTime(now), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SaveChatMessage(m ChatMessage) error {
	_, err := s.db.Exec(`
		INSERT INTO chat_messages (id, session_id, sender, content_sealed, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.Sender, m.ContentSealed, formatTime(m.CreatedAt),
	)
	return err
}

// ListChatMessages returns a session's messages ordered by created_at, then
// id. The SQL ordering is re-checked on the parsed timestamps so transport
// reorderings can never leak through.
func (s *Store) ListChatMessages(sessionID string) ([]ChatMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, sender, content_sealed, created_at
		FROM chat_messages WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.ContentSealed, &createdAt); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.Before(results[j].CreatedAt)
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

func (s *Store) CountChatMessages(sessionID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM chat_messages WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
