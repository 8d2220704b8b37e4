// Package history assembles immutable point-in-time snapshots of a user's
// journal, chat, and escalation history, and renders them as PDF for sharing
// with consenting professionals.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/safespace/safespace/internal/consent"
	"github.com/safespace/safespace/internal/storage"
)

// ErrForbidden is returned when a requester without consent asks for another
// user's snapshot.
var ErrForbidden = errors.New("no active consent for this user")

const snapshotWindow = 7 * 24 * time.Hour

// Trend classifications derived from the 7-day average sentiment.
const (
	TrendPositive = "positive"
	TrendNeutral  = "neutral"
	TrendNegative = "negative"
)

// Aggregate is the serialized snapshot content. Once stored it is never
// touched again; regenerating produces a new snapshot id.
type Aggregate struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	GeneratedAt string `json:"generated_at"`
	Period      string `json:"period"`

	JournalSummaries   []JournalSummary    `json:"journal_summaries"`
	ChatHighlights     []ChatHighlight     `json:"chat_highlights"`
	EscalationOutcomes []EscalationOutcome `json:"escalation_outcomes"`
	TopThemes          []ThemeCount        `json:"top_themes"`
	Trends             Trends              `json:"trends"`
}

type JournalSummary struct {
	Date           string   `json:"date"`
	Summary        string   `json:"summary"`
	SentimentScore float64  `json:"sentiment_score"`
	IntensityScore *float64 `json:"intensity_score"`
	KeyThemes      []string `json:"key_themes"`
	RiskFlagged    bool     `json:"risk_flagged"`
}

type ChatHighlight struct {
	SessionID    string `json:"session_id"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	MessageCount int    `json:"message_count"`
}

type EscalationOutcome struct {
	TicketID   string `json:"ticket_id"`
	Status     string `json:"status"`
	Verdict    string `json:"verdict,omitempty"`
	CreatedAt  string `json:"created_at"`
	ResolvedAt string `json:"resolved_at,omitempty"`
}

type ThemeCount struct {
	Theme string `json:"theme"`
	Count int    `json:"count"`
}

type Trends struct {
	AverageSentiment    float64 `json:"average_sentiment"`
	AverageIntensity    float64 `json:"average_intensity"`
	RiskFlaggedEntries  int     `json:"risk_flagged_entries"`
	TotalJournalEntries int     `json:"total_journal_entries"`
	TotalChatSessions   int     `json:"total_chat_sessions"`
	Classification      string  `json:"classification"`
}

type Builder struct {
	store   *storage.Store
	consent *consent.Registry
	logger  *slog.Logger
}

func NewBuilder(store *storage.Store, registry *consent.Registry) *Builder {
	return &Builder{store: store, consent: registry, logger: slog.Default()}
}

// Generate assembles a deterministic aggregate of the user's last 7 days and
// writes it as a new immutable snapshot. Concurrent calls for the same user
// may both succeed and produce two snapshots; that is fine, snapshots are
// append-only.
func (b *Builder) Generate(userID string) (storage.HistorySnapshot, error) {
	user, err := b.store.GetUser(userID)
	if err != nil {
		return storage.HistorySnapshot{}, err
	}

	now := time.Now().UTC()
	agg, err := b.assemble(user, now)
	if err != nil {
		return storage.HistorySnapshot{}, err
	}

	content, err := json.Marshal(agg)
	if err != nil {
		return storage.HistorySnapshot{}, fmt.Errorf("encoding snapshot: %w", err)
	}

	snap := storage.HistorySnapshot{
		ID:          uuid.New().String(),
		UserID:      userID,
		Content:     string(content),
		GeneratedAt: now,
	}
	if err := b.store.SaveHistorySnapshot(snap); err != nil {
		return storage.HistorySnapshot{}, fmt.Errorf("saving snapshot: %w", err)
	}
	b.logger.Info("history snapshot generated", "snapshot_id", snap.ID, "user_id", userID)
	return snap, nil
}

func (b *Builder) assemble(user storage.User, now time.Time) (Aggregate, error) {
	cutoff := now.Add(-snapshotWindow)

	entries, err := b.store.ListJournalEntriesSince(user.ID, cutoff)
	if err != nil {
		return Aggregate{}, fmt.Errorf("listing journal entries: %w", err)
	}
	sessions, err := b.store.ListChatSessionsSince(user.ID, cutoff)
	if err != nil {
		return Aggregate{}, fmt.Errorf("listing chat sessions: %w", err)
	}
	tickets, err := b.store.ListTicketsByUser(user.ID)
	if err != nil {
		return Aggregate{}, fmt.Errorf("listing tickets: %w", err)
	}

	agg := Aggregate{
		UserID:             user.ID,
		DisplayName:        user.DisplayName,
		GeneratedAt:        now.Format(time.RFC3339),
		Period:             "7_days",
		JournalSummaries:   []JournalSummary{},
		ChatHighlights:     []ChatHighlight{},
		EscalationOutcomes: []EscalationOutcome{},
		TopThemes:          []ThemeCount{},
	}

	themeCounts := make(map[string]int)
	var sentimentSum, intensitySum float64
	intensityCount := 0
	for _, e := range entries {
		var themes []string
		if err := json.Unmarshal([]byte(e.KeyThemes), &themes); err != nil {
			themes = nil
		}
		var flags map[string]bool
		if err := json.Unmarshal([]byte(e.RiskFlags), &flags); err != nil {
			flags = nil
		}
		flagged := false
		for _, v := range flags {
			if v {
				flagged = true
				break
			}
		}
		for _, t := range themes {
			themeCounts[t]++
		}
		sentimentSum += e.SentimentScore
		if e.IntensityScore != nil {
			intensitySum += *e.IntensityScore
			intensityCount++
		}
		if themes == nil {
			themes = []string{}
		}
		agg.JournalSummaries = append(agg.JournalSummaries, JournalSummary{
			Date:           e.CreatedAt.Format(time.RFC3339),
			Summary:        e.AISummary,
			SentimentScore: e.SentimentScore,
			IntensityScore: e.IntensityScore,
			KeyThemes:      themes,
			RiskFlagged:    flagged,
		})
		if flagged {
			agg.Trends.RiskFlaggedEntries++
		}
	}

	for _, sess := range sessions {
		count, err := b.store.CountChatMessages(sess.ID)
		if err != nil {
			return Aggregate{}, fmt.Errorf("counting messages: %w", err)
		}
		agg.ChatHighlights = append(agg.ChatHighlights, ChatHighlight{
			SessionID:    sess.ID,
			Status:       sess.Status,
			CreatedAt:    sess.CreatedAt.Format(time.RFC3339),
			MessageCount: count,
		})
	}

	for _, t := range tickets {
		outcome := EscalationOutcome{
			TicketID:  t.ID,
			Status:    t.Status,
			Verdict:   t.Verdict,
			CreatedAt: t.CreatedAt.Format(time.RFC3339),
		}
		if t.ResolvedAt != nil {
			outcome.ResolvedAt = t.ResolvedAt.Format(time.RFC3339)
		}
		agg.EscalationOutcomes = append(agg.EscalationOutcomes, outcome)
	}

	for theme, count := range themeCounts {
		agg.TopThemes = append(agg.TopThemes, ThemeCount{Theme: theme, Count: count})
	}
	// Frequency rank, name tiebreak, so the aggregate is deterministic.
	sort.Slice(agg.TopThemes, func(i, j int) bool {
		if agg.TopThemes[i].Count != agg.TopThemes[j].Count {
			return agg.TopThemes[i].Count > agg.TopThemes[j].Count
		}
		return agg.TopThemes[i].Theme < agg.TopThemes[j].Theme
	})

	agg.Trends.TotalJournalEntries = len(entries)
	agg.Trends.TotalChatSessions = len(sessions)
	if len(entries) > 0 {
		agg.Trends.AverageSentiment = round2(sentimentSum / float64(len(entries)))
	}
	if intensityCount > 0 {
		agg.Trends.AverageIntensity = round2(intensitySum / float64(intensityCount))
	}
	agg.Trends.Classification = classify(agg.Trends.AverageSentiment, len(entries))
	return agg, nil
}

func classify(avgSentiment float64, entryCount int) string {
	if entryCount == 0 {
		return TrendNeutral
	}
	switch {
	case avgSentiment > 0.1:
		return TrendPositive
	case avgSentiment < -0.1:
		return TrendNegative
	default:
		return TrendNeutral
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Snapshot returns a stored snapshot gated by ownership or consent: the owner
// may always read it, anyone else must be a professional holding active
// consent from the owner.
func (b *Builder) Snapshot(snapshotID, requesterUserID, requesterProfessionalID string) (storage.HistorySnapshot, error) {
	snap, err := b.store.GetHistorySnapshot(snapshotID)
	if err != nil {
		return storage.HistorySnapshot{}, err
	}
	if snap.UserID == requesterUserID {
		return snap, nil
	}
	if requesterProfessionalID == "" {
		return storage.HistorySnapshot{}, ErrForbidden
	}
	ok, err := b.consent.IsAuthorized(requesterProfessionalID, snap.UserID)
	if err != nil {
		return storage.HistorySnapshot{}, err
	}
	if !ok {
		return storage.HistorySnapshot{}, ErrForbidden
	}
	return snap, nil
}

// LatestOrGenerate returns the user's most recent snapshot, generating one if
// none exists. Consent gating is the caller's responsibility via Snapshot; this
// path serves the consent-checked professional history endpoint.
func (b *Builder) LatestOrGenerate(userID string) (storage.HistorySnapshot, error) {
	snap, err := b.store.LatestHistorySnapshot(userID)
	if errors.Is(err, storage.ErrNotFound) {
		return b.Generate(userID)
	}
	return snap, err
}
