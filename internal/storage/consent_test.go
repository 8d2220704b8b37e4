package storage

import (
	"testing"
	"time"
)

// TestUpsertConsentGrantIdempotent verifies repeated grants keep a single
// active row for the pair.
func TestUpsertConsentGrantIdempotent(t *testing.T) {
	s := openTestStore(t)
	u := seedTestUser(t, s, "user-1")
	p := seedTestProfessional(t, s, "pro-1", time.Now().UTC())

	g1, created, err := s.UpsertConsentGrant(u.ID, p.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("first UpsertConsentGrant: %v", err)
	}
	if !created {
		t.Error("first grant should create")
	}
	if !g1.Active {
		t.Error("grant not active")
	}

	g2, created, err := s.UpsertConsentGrant(u.ID, p.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("second UpsertConsentGrant: %v", err)
	}
	if created {
		t.Error("second grant must not create a new row")
	}
	if !g2.Active {
		t.Error("grant deactivated by repeat")
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM consent_grants WHERE user_id = ? AND professional_id = ?`,
		u.ID, p.ID).Scan(&count); err != nil {
		t.Fatalf("counting grants: %v", err)
	}
	if count != 1 {
		t.Errorf("%d rows for the pair, want 1", count)
	}
}

func TestHasActiveConsent(t *testing.T) {
	s := openTestStore(t)
	u := seedTestUser(t, s, "user-1")
	p := seedTestProfessional(t, s, "pro-1", time.Now().UTC())
	other := seedTestProfessional(t, s, "pro-2", time.Now().UTC())

	ok, err := s.HasActiveConsent(p.ID, u.ID)
	if err != nil {
		t.Fatalf("HasActiveConsent before grant: %v", err)
	}
	if ok {
		t.Error("consent reported before any grant")
	}

	if _, _, err := s.UpsertConsentGrant(u.ID, p.ID, time.Now().UTC()); err != nil {
		t.Fatalf("UpsertConsentGrant: %v", err)
	}

	ok, err = s.HasActiveConsent(p.ID, u.ID)
	if err != nil {
		t.Fatalf("HasActiveConsent: %v", err)
	}
	if !ok {
		t.Error("consent not reported after grant")
	}

	// Consent is pairwise: another professional gains nothing.
	ok, err = s.HasActiveConsent(other.ID, u.ID)
	if err != nil {
		t.Fatalf("HasActiveConsent other: %v", err)
	}
	if ok {
		t.Error("consent leaked to a professional without a grant")
	}
}

func TestListConsentGrants(t *testing.T) {
	s := openTestStore(t)
	u := seedTestUser(t, s, "user-1")
	p1 := seedTestProfessional(t, s, "pro-1", time.Now().UTC())
	p2 := seedTestProfessional(t, s, "pro-2", time.Now().UTC())

	now := time.Now().UTC()
	if _, _, err := s.UpsertConsentGrant(u.ID, p1.ID, now); err != nil {
		t.Fatalf("grant 1: %v", err)
	}
	if _, _, err := s.UpsertConsentGrant(u.ID, p2.ID, now.Add(time.Second)); err != nil {
		t.Fatalf("grant 2: %v", err)
	}

	grants, err := s.ListConsentGrants(u.ID)
	if err != nil {
		t.Fatalf("ListConsentGrants: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("got %d grants, want 2", len(grants))
	}
	// Newest first.
	if grants[0].ProfessionalID != p2.ID {
		t.Errorf("first grant is %s, want newest %s", grants[0].ProfessionalID, p2.ID)
	}
}
