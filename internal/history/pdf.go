package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/safespace/safespace/internal/storage"
)

// Render produces the PDF export of a snapshot, applying the same
// ownership-or-consent gate as Snapshot. The snapshot content itself is never
// re-derived: the PDF is a view over the stored immutable aggregate.
func (b *Builder) Render(snapshotID, requesterUserID, requesterProfessionalID string) ([]byte, error) {
	snap, err := b.Snapshot(snapshotID, requesterUserID, requesterProfessionalID)
	if err != nil {
		return nil, err
	}
	return renderPDF(snap)
}

func renderPDF(snap storage.HistorySnapshot) ([]byte, error) {
	var agg Aggregate
	if err := json.Unmarshal([]byte(snap.Content), &agg); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", snap.ID, err)
	}

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle("Patient History", false)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 20)
	doc.SetTextColor(37, 99, 235)
	doc.CellFormat(0, 12, "Patient History Report", "", 1, "C", false, 0, "")

	doc.SetFont("Helvetica", "", 10)
	doc.SetTextColor(80, 80, 80)
	doc.CellFormat(0, 6, fmt.Sprintf("%s - generated %s (%s)", agg.DisplayName, agg.GeneratedAt, agg.Period), "", 1, "C", false, 0, "")
	doc.Ln(4)

	section := func(title string) {
		doc.SetFont("Helvetica", "B", 13)
		doc.SetTextColor(30, 64, 175)
		doc.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 10)
		doc.SetTextColor(0, 0, 0)
	}

	section("Trends")
	doc.MultiCell(0, 5, fmt.Sprintf(
		"Overall trend: %s\nAverage sentiment: %.2f\nAverage intensity: %.2f\nRisk-flagged entries: %d\nJournal entries: %d\nChat sessions: %d",
		agg.Trends.Classification, agg.Trends.AverageSentiment, agg.Trends.AverageIntensity,
		agg.Trends.RiskFlaggedEntries, agg.Trends.TotalJournalEntries, agg.Trends.TotalChatSessions,
	), "", "L", false)
	doc.Ln(2)

	if len(agg.TopThemes) > 0 {
		section("Recurring Themes")
		parts := make([]string, 0, len(agg.TopThemes))
		for _, t := range agg.TopThemes {
			parts = append(parts, fmt.Sprintf("%s (%d)", t.Theme, t.Count))
		}
		doc.MultiCell(0, 5, strings.Join(parts, ", "), "", "L", false)
		doc.Ln(2)
	}

	section("Journal Summaries")
	if len(agg.JournalSummaries) == 0 {
		doc.MultiCell(0, 5, "No journal entries in this period.", "", "L", false)
	}
	for _, j := range agg.JournalSummaries {
		line := fmt.Sprintf("%s - sentiment %.2f", j.Date, j.SentimentScore)
		if j.IntensityScore != nil {
			line += fmt.Sprintf(", intensity %.2f", *j.IntensityScore)
		}
		if j.RiskFlagged {
			line += " [risk flagged]"
		}
		doc.SetFont("Helvetica", "B", 10)
		doc.MultiCell(0, 5, line, "", "L", false)
		doc.SetFont("Helvetica", "", 10)
		doc.MultiCell(0, 5, j.Summary, "", "L", false)
		doc.Ln(1)
	}
	doc.Ln(2)

	section("Chat Highlights")
	if len(agg.ChatHighlights) == 0 {
		doc.MultiCell(0, 5, "No chat sessions in this period.", "", "L", false)
	}
	for _, c := range agg.ChatHighlights {
		doc.MultiCell(0, 5, fmt.Sprintf("Session %s - %s, %d messages, started %s",
			c.SessionID, c.Status, c.MessageCount, c.CreatedAt), "", "L", false)
	}
	doc.Ln(2)

	section("Escalation Outcomes")
	if len(agg.EscalationOutcomes) == 0 {
		doc.MultiCell(0, 5, "No escalations on record.", "", "L", false)
	}
	for _, e := range agg.EscalationOutcomes {
		line := fmt.Sprintf("Ticket %s - %s", e.TicketID, e.Status)
		if e.Verdict != "" {
			line += ", verdict: " + e.Verdict
		}
		line += ", opened " + e.CreatedAt
		if e.ResolvedAt != "" {
			line += ", resolved " + e.ResolvedAt
		}
		doc.MultiCell(0, 5, line, "", "L", false)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering pdf: %w", err)
	}
	return buf.Bytes(), nil
}
