package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/safespace/safespace/internal/journal"
)

type createJournalRequest struct {
	Text        string `json:"text"`
	CheckinMood string `json:"checkin_mood"`
}

// journalEntryView surfaces the derived scores alongside the entry id.
type journalEntryView struct {
	ID             string          `json:"id"`
	AISummary      string          `json:"ai_summary"`
	SentimentScore float64         `json:"sentiment_score"`
	IntensityScore *float64        `json:"intensity_score"`
	KeyThemes      []string        `json:"detected_emotions"`
	RiskFlags      map[string]bool `json:"risk_flags"`
	SuggestChat    bool            `json:"suggest_start_chat"`
	Escalated      bool            `json:"escalated"`
	CreatedAt      time.Time       `json:"created_at"`
}

func handleCreateJournalEntry(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createJournalRequest
		if !decodeBody(w, r, &req) {
			return
		}

		id := identityFrom(r.Context())
		entry, err := deps.Journal.Create(id.UserID, req.Text, req.CheckinMood)
		if errors.Is(err, journal.ErrValidation) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create entry: %v", err)
			return
		}

		writeJSON(w, http.StatusCreated, journalEntryView{
			ID:             entry.ID,
			AISummary:      entry.AISummary,
			SentimentScore: entry.SentimentScore,
			IntensityScore: entry.IntensityScore,
			KeyThemes:      entry.KeyThemes,
			RiskFlags:      entry.RiskFlags,
			SuggestChat:    entry.SuggestChat,
			Escalated:      entry.Escalated,
			CreatedAt:      entry.CreatedAt,
		})
	}
}

type journalListItem struct {
	ID             string          `json:"id"`
	AISummary      string          `json:"ai_summary"`
	SentimentScore float64         `json:"sentiment_score"`
	IntensityScore *float64        `json:"intensity_score"`
	KeyThemes      []string        `json:"detected_emotions"`
	RiskFlags      map[string]bool `json:"risk_flags"`
	SuggestChat    bool            `json:"suggest_start_chat"`
	CheckinMood    string          `json:"checkin_mood"`
	CreatedAt      time.Time       `json:"created_at"`
}

func handleListJournalEntries(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 200)

		id := identityFrom(r.Context())
		entries, err := deps.Journal.List(id.UserID, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list entries: %v", err)
			return
		}

		items := make([]journalListItem, 0, len(entries))
		for _, e := range entries {
			var themes []string
			if err := json.Unmarshal([]byte(e.KeyThemes), &themes); err != nil || themes == nil {
				themes = []string{}
			}
			var flags map[string]bool
			if err := json.Unmarshal([]byte(e.RiskFlags), &flags); err != nil || flags == nil {
				flags = map[string]bool{}
			}
			items = append(items, journalListItem{
				ID:             e.ID,
				AISummary:      e.AISummary,
				SentimentScore: e.SentimentScore,
				IntensityScore: e.IntensityScore,
				KeyThemes:      themes,
				RiskFlags:      flags,
				SuggestChat:    e.SuggestChat,
				CheckinMood:    e.CheckinMood,
				CreatedAt:      e.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, items)
	}
}
