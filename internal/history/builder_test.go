package history

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/safespace/safespace/internal/consent"
	"github.com/safespace/safespace/internal/escalation"
	"github.com/safespace/safespace/internal/scoring"
	"github.com/safespace/safespace/internal/secrets"
	"github.com/safespace/safespace/internal/storage"
)

func newTestBuilder(t *testing.T) (*Builder, *consent.Registry, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := consent.NewRegistry(store)
	return NewBuilder(store, registry), registry, store
}

func seedUser(t *testing.T, store *storage.Store, id string) storage.User {
	t.Helper()
	u := storage.User{
		ID: id, Email: id + "@example.com", DisplayName: "Display " + id,
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

func seedEntry(t *testing.T, store *storage.Store, userID, id string, sentiment float64, age time.Duration, flags string) {
	t.Helper()
	e := storage.JournalEntry{
		ID: id, UserID: userID, ContentSealed: []byte{1},
		AISummary:      "Summary for " + id,
		SentimentScore: sentiment,
		KeyThemes:      `["anxiety","sleep"]`,
		RiskFlags:      flags,
		CreatedAt:      time.Now().UTC().Add(-age),
	}
	if err := store.SaveJournalEntry(e); err != nil {
		t.Fatalf("SaveJournalEntry: %v", err)
	}
}

// TestGenerateAggregatesWindow verifies the snapshot contains only the 7-day
// window of journals and sessions, with deterministic theme ranking.
func TestGenerateAggregatesWindow(t *testing.T) {
	b, _, store := newTestBuilder(t)
	u := seedUser(t, store, "user-1")

	seedEntry(t, store, u.ID, "entry-recent", -0.6, time.Hour, `{"self_harm_risk":true}`)
	seedEntry(t, store, u.ID, "entry-mid", -0.2, 3*24*time.Hour, `{}`)
	seedEntry(t, store, u.ID, "entry-old", 0.9, 30*24*time.Hour, `{}`)

	snap, err := b.Generate(u.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var agg Aggregate
	if err := json.Unmarshal([]byte(snap.Content), &agg); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if agg.UserID != u.ID || agg.DisplayName != u.DisplayName {
		t.Errorf("identity fields: %+v", agg)
	}
	if len(agg.JournalSummaries) != 2 {
		t.Fatalf("got %d journal summaries, want 2 (old entry excluded)", len(agg.JournalSummaries))
	}
	if agg.Trends.TotalJournalEntries != 2 {
		t.Errorf("TotalJournalEntries = %d, want 2", agg.Trends.TotalJournalEntries)
	}
	if agg.Trends.RiskFlaggedEntries != 1 {
		t.Errorf("RiskFlaggedEntries = %d, want 1", agg.Trends.RiskFlaggedEntries)
	}
	if agg.Trends.Classification != TrendNegative {
		t.Errorf("classification = %s, want negative", agg.Trends.Classification)
	}
	if len(agg.TopThemes) != 2 {
		t.Fatalf("got %d themes, want 2", len(agg.TopThemes))
	}
	// Equal counts tie-break alphabetically.
	if agg.TopThemes[0].Theme != "anxiety" || agg.TopThemes[0].Count != 2 {
		t.Errorf("top theme = %+v, want anxiety x2", agg.TopThemes[0])
	}
}

// TestGenerateAppendOnly verifies regenerating produces a new snapshot and
// leaves the earlier one untouched.
func TestGenerateAppendOnly(t *testing.T) {
	b, _, store := newTestBuilder(t)
	u := seedUser(t, store, "user-1")
	seedEntry(t, store, u.ID, "entry-1", -0.5, time.Hour, `{}`)

	first, err := b.Generate(u.ID)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}

	seedEntry(t, store, u.ID, "entry-2", 0.5, time.Minute, `{}`)
	second, err := b.Generate(u.ID)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("regeneration reused the snapshot id")
	}

	stored, err := store.GetHistorySnapshot(first.ID)
	if err != nil {
		t.Fatalf("GetHistorySnapshot: %v", err)
	}
	if stored.Content != first.Content {
		t.Error("earlier snapshot content changed after regeneration")
	}
}

// TestSnapshotConsentGate verifies the ownership-or-consent rule: the owner
// always reads, a professional only after a grant, and granting later does not
// alter the stored snapshot.
func TestSnapshotConsentGate(t *testing.T) {
	b, registry, store := newTestBuilder(t)
	u := seedUser(t, store, "user-1")
	pro := seedProfessional(t, store, "pro-1")
	seedEntry(t, store, u.ID, "entry-1", -0.4, time.Hour, `{}`)

	snap, err := b.Generate(u.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// Owner reads their own snapshot.
	if _, err := b.Snapshot(snap.ID, u.ID, ""); err != nil {
		t.Errorf("owner read: %v", err)
	}

	// A professional without consent is refused.
	if _, err := b.Snapshot(snap.ID, "u-pro-1", pro.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("before grant: got %v, want ErrForbidden", err)
	}
	// So is a plain non-owner user.
	stranger := seedUser(t, store, "stranger")
	if _, err := b.Snapshot(snap.ID, stranger.ID, ""); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger read: got %v, want ErrForbidden", err)
	}

	if _, err := registry.Grant(u.ID, pro.ID); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	got, err := b.Snapshot(snap.ID, "u-pro-1", pro.ID)
	if err != nil {
		t.Fatalf("after grant: %v", err)
	}
	if got.Content != snap.Content {
		t.Error("snapshot content differs after consent grant")
	}

	if _, err := b.Snapshot("missing", u.ID, ""); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing snapshot: got %v, want ErrNotFound", err)
	}
}

func TestLatestOrGenerate(t *testing.T) {
	b, _, store := newTestBuilder(t)
	u := seedUser(t, store, "user-1")
	seedEntry(t, store, u.ID, "entry-1", 0.2, time.Hour, `{}`)

	first, err := b.LatestOrGenerate(u.ID)
	if err != nil {
		t.Fatalf("LatestOrGenerate (empty): %v", err)
	}

	again, err := b.LatestOrGenerate(u.ID)
	if err != nil {
		t.Fatalf("LatestOrGenerate (existing): %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("second call generated %s, want existing %s", again.ID, first.ID)
	}
}

// TestGenerateEmptyHistory verifies a user with no activity still gets a
// well-formed neutral snapshot.
func TestGenerateEmptyHistory(t *testing.T) {
	b, _, store := newTestBuilder(t)
	u := seedUser(t, store, "user-1")

	snap, err := b.Generate(u.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var agg Aggregate
	if err := json.Unmarshal([]byte(snap.Content), &agg); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if agg.Trends.Classification != TrendNeutral {
		t.Errorf("classification = %s, want neutral", agg.Trends.Classification)
	}
	if agg.JournalSummaries == nil || agg.ChatHighlights == nil || agg.TopThemes == nil {
		t.Error("empty collections serialized as null")
	}
}

// seedBoxedSession adds a chat session with a couple of sealed messages so
// chat highlights have something to count.
func seedBoxedSession(t *testing.T, store *storage.Store, userID string) storage.ChatSession {
	t.Helper()
	key, err := secrets.NewRandomKey()
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	box, err := secrets.NewBox(key)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}

	now := time.Now().UTC()
	sess := storage.ChatSession{ID: "sess-1", UserID: userID, Status: storage.SessionOpen, CreatedAt: now, UpdatedAt: now}
	if err := store.CreateChatSession(sess); err != nil {
		t.Fatalf("CreateChatSession: %v", err)
	}
	for i, text := range []string{"hello", "hi there"} {
		sealed, err := box.Seal(text)
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		m := storage.ChatMessage{
			ID: "msg-" + string(rune('a'+i)), SessionID: sess.ID,
			Sender: storage.SenderUser, ContentSealed: sealed,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}
		if err := store.SaveChatMessage(m); err != nil {
			t.Fatalf("SaveChatMessage: %v", err)
		}
	}
	return sess
}

// TestChatHighlightsCountMessages verifies highlights carry message counts
// without exposing message content.
func TestChatHighlightsCountMessages(t *testing.T) {
	b, _, store := newTestBuilder(t)
	u := seedUser(t, store, "user-1")
	seedBoxedSession(t, store, u.ID)

	snap, err := b.Generate(u.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var agg Aggregate
	if err := json.Unmarshal([]byte(snap.Content), &agg); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if len(agg.ChatHighlights) != 1 {
		t.Fatalf("got %d highlights, want 1", len(agg.ChatHighlights))
	}
	if agg.ChatHighlights[0].MessageCount != 2 {
		t.Errorf("message count = %d, want 2", agg.ChatHighlights[0].MessageCount)
	}
}

// TestEscalationOutcomesAllTime verifies escalation outcomes are not limited
// to the 7-day window.
func TestEscalationOutcomesAllTime(t *testing.T) {
	b, _, store := newTestBuilder(t)
	u := seedUser(t, store, "user-1")
	seedProfessional(t, store, "pro-1")

	router := escalation.NewRouter(store)
	ticket, err := router.OpenTicket(escalation.Source{Type: storage.SourceJournal, ID: "entry-x"}, u.ID, "risk")
	if err != nil {
		t.Fatalf("OpenTicket: %v", err)
	}
	if _, err := router.SubmitVerdict(ticket.ID, storage.VerdictMonitor, "", ticket.AssignedProfessionalID); err != nil {
		t.Fatalf("SubmitVerdict: %v", err)
	}

	snap, err := b.Generate(u.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var agg Aggregate
	if err := json.Unmarshal([]byte(snap.Content), &agg); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if len(agg.EscalationOutcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(agg.EscalationOutcomes))
	}
	if agg.EscalationOutcomes[0].Verdict != storage.VerdictMonitor || agg.EscalationOutcomes[0].ResolvedAt == "" {
		t.Errorf("outcome = %+v", agg.EscalationOutcomes[0])
	}

	// A neutral window with a risky past still classifies by the window.
	if agg.Trends.Classification != TrendNeutral {
		t.Errorf("classification = %s, want neutral for an empty window", agg.Trends.Classification)
	}
}

// TestRiskFlagNamesMatchScorer pins the snapshot's flag vocabulary to the
// scorer's, so the two never drift apart silently.
func TestRiskFlagNamesMatchScorer(t *testing.T) {
	b, _, store := newTestBuilder(t)
	u := seedUser(t, store, "user-1")
	seedEntry(t, store, u.ID, "entry-1", -0.9, time.Hour, `{"`+scoring.FlagSelfHarm+`":true}`)

	snap, err := b.Generate(u.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var agg Aggregate
	if err := json.Unmarshal([]byte(snap.Content), &agg); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if agg.Trends.RiskFlaggedEntries != 1 {
		t.Errorf("scorer flag name not recognized by the builder")
	}
}
