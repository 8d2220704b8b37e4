package accounts

import (
	"errors"
	"testing"
	"time"

	"github.com/safespace/safespace/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewService(store, NewTokenIssuer("test-secret", time.Hour)), store
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)

	u, token, err := svc.Register("Aisha@Example.com", "Aisha", "long-enough-pass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if token == "" {
		t.Error("no token issued on register")
	}
	if u.Role != storage.RoleUser {
		t.Errorf("role = %q, want user", u.Role)
	}
	if u.Email != "aisha@example.com" {
		t.Errorf("email not normalized: %q", u.Email)
	}

	got, token, err := svc.Login("Aisha@Example.com", "long-enough-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != u.ID || token == "" {
		t.Errorf("login returned %+v", got)
	}

	if _, _, err := svc.Login("Aisha@Example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login("nobody@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)

	cases := []struct {
		name, email, display, password string
	}{
		{"missing email", "", "A", "long-enough-pass"},
		{"no at sign", "not-an-email", "A", "long-enough-pass"},
		{"missing display name", "a@example.com", "", "long-enough-pass"},
		{"short password", "a@example.com", "A", "short"},
	}
	for _, tc := range cases {
		if _, _, err := svc.Register(tc.email, tc.display, tc.password); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: got %v, want ErrValidation", tc.name, err)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)

	if _, _, err := svc.Register("a@example.com", "A", "long-enough-pass"); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, _, err := svc.Register("a@example.com", "A2", "long-enough-pass"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate: got %v, want ErrEmailTaken", err)
	}
}

// TestApplyProfessionalVerification exercises the automatic verification
// rules: psychiatrists verify on a registry id, therapists and psychologists
// on degree plus university.
func TestApplyProfessionalVerification(t *testing.T) {
	svc, _ := newTestService(t)

	u, _, err := svc.Register("pro@example.com", "Pro", "long-enough-pass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Psychiatrist without a registry id stays unverified.
	p, err := svc.ApplyProfessional(u.ID, ProfessionalApplication{
		ProfessionalType: storage.TypePsychiatrist,
	})
	if err != nil {
		t.Fatalf("ApplyProfessional: %v", err)
	}
	if p.Verified {
		t.Error("verified without registry id")
	}

	// Reapplying with the registry id completes verification on the same
	// profile.
	p2, err := svc.ApplyProfessional(u.ID, ProfessionalApplication{
		ProfessionalType: storage.TypePsychiatrist,
		RegistryID:       "PMDC-12345",
	})
	if err != nil {
		t.Fatalf("reapply: %v", err)
	}
	if !p2.Verified {
		t.Error("not verified with registry id")
	}
	if p2.ID != p.ID {
		t.Errorf("reapply created a new profile: %s vs %s", p2.ID, p.ID)
	}

	// The role flips to professional and the capability query reports it.
	got, ok, err := svc.IsProfessional(u.ID)
	if err != nil {
		t.Fatalf("IsProfessional: %v", err)
	}
	if !ok || got.ID != p.ID {
		t.Errorf("IsProfessional = %v/%+v", ok, got)
	}
}

func TestApplyTherapistNeedsDegree(t *testing.T) {
	svc, _ := newTestService(t)
	u, _, err := svc.Register("t@example.com", "T", "long-enough-pass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	p, err := svc.ApplyProfessional(u.ID, ProfessionalApplication{
		ProfessionalType: storage.TypeTherapist,
		DegreeFile:       "degrees/t.pdf",
	})
	if err != nil {
		t.Fatalf("ApplyProfessional: %v", err)
	}
	if p.Verified {
		t.Error("verified without university name")
	}

	p, err = svc.ApplyProfessional(u.ID, ProfessionalApplication{
		ProfessionalType: storage.TypeTherapist,
		DegreeFile:       "degrees/t.pdf",
		UniversityName:   "Test University",
	})
	if err != nil {
		t.Fatalf("reapply: %v", err)
	}
	if !p.Verified {
		t.Error("not verified with degree and university")
	}
}

func TestApplyUnknownType(t *testing.T) {
	svc, _ := newTestService(t)
	u, _, err := svc.Register("x@example.com", "X", "long-enough-pass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.ApplyProfessional(u.ID, ProfessionalApplication{ProfessionalType: "astrologer"}); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown type: got %v, want ErrValidation", err)
	}
}

func TestIsProfessionalPlainUser(t *testing.T) {
	svc, _ := newTestService(t)
	u, _, err := svc.Register("plain@example.com", "P", "long-enough-pass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, ok, err := svc.IsProfessional(u.ID)
	if err != nil {
		t.Fatalf("IsProfessional: %v", err)
	}
	if ok {
		t.Error("plain user reported as professional")
	}
}
