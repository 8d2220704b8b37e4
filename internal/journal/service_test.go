package journal

import (
	"errors"
	"testing"
	"time"

	"github.com/safespace/safespace/internal/escalation"
	"github.com/safespace/safespace/internal/scoring"
	"github.com/safespace/safespace/internal/secrets"
	"github.com/safespace/safespace/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	key, err := secrets.NewRandomKey()
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	box, err := secrets.NewBox(key)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}

	svc := NewService(store, scoring.NewRuleScorer(), box, escalation.NewRouter(store), TrendThresholds{
		AvgSentiment:  -0.3,
		RiskFlagCount: 2,
	})
	return svc, store
}

func seedUser(t *testing.T, store *storage.Store, id string) storage.User {
	t.Helper()
	u := storage.User{
		ID: id, Email: id + "@example.com", DisplayName: id,
		PasswordHash: "x", Role: storage.RoleUser, CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateUser(u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func seedProfessional(t *testing.T, store *storage.Store, id string) storage.Professional {
	t.Helper()
	u := storage.User{
		ID: "u-" + id, Email: id + "@pro.example.com", DisplayName: id,
		PasswordHash: "x", Role: storage.RoleProfessional, CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateUser(u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	p := storage.Professional{
		ID: id, UserID: u.ID, ProfessionalType: storage.TypeTherapist,
		Verified: true, CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateProfessional(p); err != nil {
		t.Fatalf("CreateProfessional: %v", err)
	}
	return p
}

func TestCreateValidation(t *testing.T) {
	svc, store := newTestService(t)
	u := seedUser(t, store, "user-1")

	if _, err := svc.Create(u.ID, "", "sad"); !errors.Is(err, ErrValidation) {
		t.Errorf("empty text: got %v, want ErrValidation", err)
	}
}

// TestCreateDerivedFieldsStoredOnce verifies an entry is stored with scores,
// themes, and flags derived at write time, and that content is sealed.
func TestCreateDerivedFieldsStoredOnce(t *testing.T) {
	svc, store := newTestService(t)
	u := seedUser(t, store, "user-1")

	text := "I am anxious and worried about work deadlines"
	entry, err := svc.Create(u.ID, text, "anxious")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if entry.SentimentScore >= 0 {
		t.Errorf("sentiment = %v, want negative", entry.SentimentScore)
	}
	if entry.AISummary == "" {
		t.Error("no summary derived")
	}
	if entry.Escalated {
		t.Error("escalated without a self-harm flag")
	}

	stored, err := store.GetJournalEntry(entry.ID)
	if err != nil {
		t.Fatalf("GetJournalEntry: %v", err)
	}
	if string(stored.ContentSealed) == text {
		t.Error("entry content stored in plaintext")
	}

	// Get decrypts for the owner.
	_, plain, err := svc.Get(u.ID, entry.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if plain != text {
		t.Errorf("decrypted content = %q, want original", plain)
	}
}

// TestCreateSelfHarmEscalates verifies a self-harm flag opens a ticket for
// the entry while other risk signals only set the advisory suggestion.
func TestCreateSelfHarmEscalates(t *testing.T) {
	svc, store := newTestService(t)
	u := seedUser(t, store, "user-1")
	pro := seedProfessional(t, store, "pro-1")

	entry, err := svc.Create(u.ID, "I feel completely hopeless and want to disappear", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !entry.RiskFlags["self_harm_risk"] {
		t.Fatal("self_harm_risk not flagged")
	}
	if !entry.Escalated {
		t.Error("entry not escalated")
	}
	if !entry.SuggestChat {
		t.Error("chat not suggested on a risky entry")
	}

	tickets, err := store.ListTicketsByUser(u.ID)
	if err != nil {
		t.Fatalf("ListTicketsByUser: %v", err)
	}
	if len(tickets) != 1 {
		t.Fatalf("got %d tickets, want 1", len(tickets))
	}
	if tickets[0].SourceType != storage.SourceJournal || tickets[0].SourceID != entry.ID {
		t.Errorf("ticket source = %s/%s, want journal_entry/%s", tickets[0].SourceType, tickets[0].SourceID, entry.ID)
	}
	if tickets[0].AssignedProfessionalID != pro.ID {
		t.Errorf("ticket assigned to %q, want %s", tickets[0].AssignedProfessionalID, pro.ID)
	}
}

// TestCreatePanicSuggestsWithoutTicket verifies non-self-harm risk raises the
// suggestion but opens no ticket.
func TestCreatePanicSuggestsWithoutTicket(t *testing.T) {
	svc, store := newTestService(t)
	u := seedUser(t, store, "user-1")
	seedProfessional(t, store, "pro-1")

	entry, err := svc.Create(u.ID, "heart racing, can't breathe, another panic attack", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !entry.RiskFlags["panic"] {
		t.Fatal("panic not flagged")
	}
	if entry.Escalated {
		t.Error("panic flag should not escalate directly")
	}
	if !entry.SuggestChat {
		t.Error("chat not suggested for a risky entry")
	}

	tickets, err := store.ListTicketsByUser(u.ID)
	if err != nil {
		t.Fatalf("ListTicketsByUser: %v", err)
	}
	if len(tickets) != 0 {
		t.Errorf("got %d tickets, want 0", len(tickets))
	}
}

// TestSuggestChatOnNegativeTrend writes several negative entries and verifies
// the rolling average triggers the advisory suggestion without any risk flag.
func TestSuggestChatOnNegativeTrend(t *testing.T) {
	svc, store := newTestService(t)
	u := seedUser(t, store, "user-1")

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(u.ID, "feeling sad and exhausted and frustrated", ""); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	entry, err := svc.Create(u.ID, "another sad and tired day", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if entry.RiskFlags["self_harm_risk"] {
		t.Fatal("test text unexpectedly flagged")
	}
	if !entry.SuggestChat {
		t.Error("suggestion not raised on a persistently negative window")
	}
}

func TestSuggestChatNotRaisedOnPositiveWindow(t *testing.T) {
	svc, store := newTestService(t)
	u := seedUser(t, store, "user-1")

	entry, err := svc.Create(u.ID, "grateful and happy today, things are improving", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if entry.SuggestChat {
		t.Error("suggestion raised on a positive entry")
	}
}

func TestGetOtherUsersEntryHidden(t *testing.T) {
	svc, store := newTestService(t)
	owner := seedUser(t, store, "owner")
	stranger := seedUser(t, store, "stranger")

	entry, err := svc.Create(owner.ID, "private thoughts", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, _, err := svc.Get(stranger.ID, entry.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("stranger read: got %v, want ErrNotFound", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	svc, store := newTestService(t)
	u := seedUser(t, store, "user-1")

	for _, text := range []string{"first entry", "second entry", "third entry"} {
		if _, err := svc.Create(u.ID, text, ""); err != nil {
			t.Fatalf("Create: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	entries, err := svc.List(u.ID, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].CreatedAt.After(entries[i-1].CreatedAt) {
			t.Errorf("entries not newest-first at %d", i)
		}
	}
}
