// Package journal owns journal entry creation: sealing content, deriving
// scores exactly once at write time, and the 7-day trend that suggests
// starting a chat.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/safespace/safespace/internal/escalation"
	"github.com/safespace/safespace/internal/scoring"
	"github.com/safespace/safespace/internal/secrets"
	"github.com/safespace/safespace/internal/storage"
)

// ErrValidation is returned for malformed input.
var ErrValidation = errors.New("validation failed")

const trendWindow = 7 * 24 * time.Hour

// TrendThresholds configure when the 7-day window suggests starting a chat.
type TrendThresholds struct {
	// AvgSentiment: suggest below this 7-day average.
	AvgSentiment float64
	// RiskFlagCount: suggest when more than this many window entries carry
	// a risk flag.
	RiskFlagCount int
}

type Service struct {
	store  *storage.Store
	scorer scoring.Scorer
	box    *secrets.Box
	router *escalation.Router
	trend  TrendThresholds
	logger *slog.Logger
}

func NewService(store *storage.Store, scorer scoring.Scorer, box *secrets.Box, router *escalation.Router, trend TrendThresholds) *Service {
	return &Service{
		store:  store,
		scorer: scorer,
		box:    box,
		router: router,
		trend:  trend,
		logger: slog.Default(),
	}
}

// Entry is the caller-facing view of a created entry, carrying the scorer
// output contract plus the advisory chat suggestion.
type Entry struct {
	ID             string
	AISummary      string
	SentimentScore float64
	IntensityScore *float64
	KeyThemes      []string
	RiskFlags      map[string]bool
	SuggestChat    bool
	Escalated      bool
	CreatedAt      time.Time
}

// Create persists a new entry with derived fields computed exactly once.
// Scoring fails open: if the scorer errors, the entry is stored with neutral
// derived fields rather than blocking the user's write. A self-harm flag on
// the entry opens an escalation ticket directly; every other signal only
// feeds the advisory suggestion.
func (s *Service) Create(userID, text, mood string) (Entry, error) {
	if text == "" {
		return Entry{}, fmt.Errorf("%w: text is required", ErrValidation)
	}

	res, err := s.scorer.Score(text)
	if err != nil {
		s.logger.Error("scorer failed, storing neutral result", "error", err)
		res = scoring.Neutral()
	}

	sealed, err := s.box.Seal(text)
	if err != nil {
		return Entry{}, fmt.Errorf("sealing entry: %w", err)
	}

	now := time.Now().UTC()
	suggest, err := s.suggestChat(userID, res, now)
	if err != nil {
		// The suggestion is advisory; losing it must not fail the write.
		s.logger.Warn("trend evaluation failed", "error", err)
		suggest = res.HasRisk()
	}

	themesJSON, err := json.Marshal(res.Themes)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding themes: %w", err)
	}
	flagsJSON, err := json.Marshal(res.RiskFlags)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding risk flags: %w", err)
	}

	e := storage.JournalEntry{
		ID:             uuid.New().String(),
		UserID:         userID,
		ContentSealed:  sealed,
		AISummary:      scoring.Summarize(res),
		SentimentScore: res.Sentiment,
		IntensityScore: res.Intensity,
		KeyThemes:      string(themesJSON),
		RiskFlags:      string(flagsJSON),
		SuggestChat:    suggest,
		CheckinMood:    mood,
		CreatedAt:      now,
	}
	if err := s.store.SaveJournalEntry(e); err != nil {
		return Entry{}, fmt.Errorf("saving entry: %w", err)
	}

	escalated := false
	if res.RiskFlags[scoring.FlagSelfHarm] {
		src := escalation.Source{Type: storage.SourceJournal, ID: e.ID}
		reason := fmt.Sprintf("Self-harm risk flagged in journal entry %s", e.ID)
		if _, err := s.router.OpenTicket(src, userID, reason); err != nil {
			// Escalation failure is reported, never surfaced as a write
			// failure to a distressed user.
			s.logger.Error("journal escalation failed", "entry_id", e.ID, "error", err)
		} else {
			escalated = true
		}
	}

	return Entry{
		ID:             e.ID,
		AISummary:      e.AISummary,
		SentimentScore: e.SentimentScore,
		IntensityScore: e.IntensityScore,
		KeyThemes:      res.Themes,
		RiskFlags:      res.RiskFlags,
		SuggestChat:    suggest,
		Escalated:      escalated,
		CreatedAt:      e.CreatedAt,
	}, nil
}

// suggestChat recomputes the rolling 7-day window including the entry being
// created. The suggestion is surfaced to the UI only; it never opens a ticket
// by itself.
func (s *Service) suggestChat(userID string, current scoring.Result, now time.Time) (bool, error) {
	if current.HasRisk() {
		return true, nil
	}

	window, err := s.store.ListJournalEntriesSince(userID, now.Add(-trendWindow))
	if err != nil {
		return false, err
	}

	sum := current.Sentiment
	count := 1
	flagged := 0
	if current.HasRisk() {
		flagged++
	}
	for _, e := range window {
		sum += e.SentimentScore
		count++
		var flags map[string]bool
		if err := json.Unmarshal([]byte(e.RiskFlags), &flags); err != nil {
			continue
		}
		for _, v := range flags {
			if v {
				flagged++
				break
			}
		}
	}

	if sum/float64(count) < s.trend.AvgSentiment {
		return true, nil
	}
	return flagged > s.trend.RiskFlagCount, nil
}

// Get returns one of the user's entries with content decrypted.
func (s *Service) Get(userID, entryID string) (storage.JournalEntry, string, error) {
	e, err := s.store.GetJournalEntry(entryID)
	if err != nil {
		return storage.JournalEntry{}, "", err
	}
	if e.UserID != userID {
		return storage.JournalEntry{}, "", storage.ErrNotFound
	}
	text, err := s.box.Open(e.ContentSealed)
	if err != nil {
		return storage.JournalEntry{}, "", fmt.Errorf("opening entry content: %w", err)
	}
	return e, text, nil
}

// List returns the user's entries, newest first, without decrypting content.
func (s *Service) List(userID string, limit int) ([]storage.JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.store.ListJournalEntries(userID, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []storage.JournalEntry{}
	}
	return entries, nil
}
