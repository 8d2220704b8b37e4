package storage

import (
	"database/sql"
	"fmt"
	"strings"
)

func (s *Store) CreateUser(u User) error {
	_, err := s.db.Exec(`
		INSERT INTO users (id, email, display_name, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, strings.ToLower(u.Email), u.DisplayName, u.PasswordHash, u.Role, formatTime(u.CreatedAt),
	)
	return err
}

func (s *Store) GetUser(id string) (User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, email, display_name, password_hash, role, created_at
		FROM users WHERE id = ?`, id))
}

func (s *Store) GetUserByEmail(email string) (User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, email, display_name, password_hash, role, created_at
		FROM users WHERE email = ?`, strings.ToLower(email)))
}

func (s *Store) scanUser(row *sql.Row) (User, error) {
	var u User
	var createdAt string
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Role, &createdAt)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return User{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return u, nil
}

// SetUserRole updates the normalized role field that capability checks read.
func (s *Store) SetUserRole(id, role string) error {
	res, err := s.db.Exec(`UPDATE users SET role = ? WHERE id = ?`, role, id)
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

const professionalColumns = `id, user_id, professional_type, specialization, city,
	availability_json, verified, registry_id, degree_file, university_name, created_at`

func (s *Store) CreateProfessional(p Professional) error {
	_, err := s.db.Exec(`
		INSERT INTO professionals (`+professionalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.ProfessionalType, p.Specialization, p.City,
		p.AvailabilityJSON, boolToInt(p.Verified), p.RegistryID, p.DegreeFile,
		p.UniversityName, formatTime(p.CreatedAt),
	)
	return err
}

func (s *Store) GetProfessional(id string) (Professional, error) {
	return s.scanProfessional(s.db.QueryRow(
		`SELECT `+professionalColumns+` FROM professionals WHERE id = ?`, id))
}

func (s *Store) GetProfessionalByUser(userID string) (Professional, error) {
	return s.scanProfessional(s.db.QueryRow(
		`SELECT `+professionalColumns+` FROM professionals WHERE user_id = ?`, userID))
}

func (s *Store) scanProfessional(row *sql.Row) (Professional, error) {
	var p Professional
	var verified int
	var createdAt string
	err := row.Scan(&p.ID, &p.UserID, &p.ProfessionalType, &p.Specialization, &p.City,
		&p.AvailabilityJSON, &verified, &p.RegistryID, &p.DegreeFile, &p.UniversityName, &createdAt)
	if err == sql.ErrNoRows {
		return Professional{}, ErrNotFound
	}
	if err != nil {
		return Professional{}, err
	}
	p.Verified = verified != 0
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return Professional{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return p, nil
}

// ListVerifiedProfessionals returns verified profiles in stable
// (created_at, id) order. This is the order the round-robin cursor indexes
// into, so it must be deterministic.
func (s *Store) ListVerifiedProfessionals() ([]Professional, error) {
	rows, err := s.db.Query(
		`SELECT ` + professionalColumns + ` FROM professionals WHERE verified = 1 ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Professional
	for rows.Next() {
		var p Professional
		var verified int
		var createdAt string
		if err := rows.Scan(&p.ID, &p.UserID, &p.ProfessionalType, &p.Specialization, &p.City,
			&p.AvailabilityJSON, &verified, &p.RegistryID, &p.DegreeFile, &p.UniversityName, &createdAt); err != nil {
			return nil, err
		}
		p.Verified = verified != 0
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func (s *Store) UpdateProfessionalProfile(p Professional) error {
	res, err := s.db.Exec(`
		UPDATE professionals
		SET professional_type = ?, specialization = ?, city = ?, availability_json = ?,
		    verified = ?, registry_id = ?, degree_file = ?, university_name = ?
		WHERE id = ?`,
		p.ProfessionalType, p.Specialization, p.City, p.AvailabilityJSON,
		boolToInt(p.Verified), p.RegistryID, p.DegreeFile, p.UniversityName, p.ID,
	)
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

func (s *Store) CreateSOPDoc(d SOPDoc) error {
	_, err := s.db.Exec(`
		INSERT INTO sop_docs (id, title, category, content, keywords, active, effective_at, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.Category, d.Content, d.Keywords, boolToInt(d.Active),
		formatTime(d.EffectiveAt), d.CreatedBy, formatTime(d.CreatedAt),
	)
	return err
}

func (s *Store) ListActiveSOPDocs() ([]SOPDoc, error) {
	rows, err := s.db.Query(`
		SELECT id, title, category, content, keywords, active, effective_at, created_by, created_at
		FROM sop_docs WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SOPDoc
	for rows.Next() {
		var d SOPDoc
		var active int
		var effectiveAt, createdAt string
		if err := rows.Scan(&d.ID, &d.Title, &d.Category, &d.Content, &d.Keywords,
			&active, &effectiveAt, &d.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		d.Active = active != 0
		if d.EffectiveAt, err = parseTime(effectiveAt); err != nil {
			return nil, fmt.Errorf("parsing effective_at: %w", err)
		}
		if d.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
