package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User roles. Role is the single normalized field every capability check
// derives from; callers must not infer professional status any other way.
const (
	RoleUser         = "user"
	RoleProfessional = "professional"
)

type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// Professional profile types.
const (
	TypePsychiatrist = "psychiatrist"
	TypeTherapist    = "therapist"
	TypePsychologist = "psychologist"
)

type Professional struct {
	ID               string
	UserID           string
	ProfessionalType string
	Specialization   string
	City             string
	AvailabilityJSON string // weekly schedule, parsed/validated at the boundary
	Verified         bool
	RegistryID       string // licensing registry id (psychiatrists)
	DegreeFile       string // degree document reference (therapists/psychologists)
	UniversityName   string
	CreatedAt        time.Time
}

// EscalationEligible reports whether the professional participates in
// round-robin ticket assignment.
func (p Professional) EscalationEligible() bool {
	return p.Verified && p.ProfessionalType != ""
}

type SOPDoc struct {
	ID          string
	Title       string
	Category    string
	Content     string
	Keywords    string // JSON array stored as text
	Active      bool
	EffectiveAt time.Time
	CreatedBy   string
	CreatedAt   time.Time
}

type JournalEntry struct {
	ID             string
	UserID         string
	ContentSealed  []byte // encrypted at rest
	AISummary      string
	SentimentScore float64
	IntensityScore *float64 // nil when sentiment is positive
	KeyThemes      string   // JSON array stored as text
	RiskFlags      string   // JSON object stored as text
	SuggestChat    bool
	CheckinMood    string
	CreatedAt      time.Time
}

// Chat session statuses.
const (
	SessionOpen      = "open"
	SessionEscalated = "escalated"
	SessionClosed    = "closed"
)

type ChatSession struct {
	ID        string
	UserID    string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chat message senders.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

type ChatMessage struct {
	ID            string
	SessionID     string
	Sender        string
	ContentSealed []byte
	CreatedAt     time.Time
}

// Escalation ticket sources and statuses.
const (
	SourceJournal = "journal_entry"
	SourceChat    = "chat_session"

	TicketPending  = "pending"
	TicketResolved = "resolved"
)

// Verdict values a professional may submit.
const (
	VerdictConsultRequired = "consult_required"
	VerdictMonitor         = "monitor"
	VerdictNoAction        = "no_action"
)

type EscalationTicket struct {
	ID                     string
	SourceType             string
	SourceID               string
	UserID                 string
	AssignedProfessionalID string // empty until assigned, immutable after
	Reason                 string
	Status                 string
	Verdict                string // empty until resolved
	ProfessionalNotes      string
	CreatedAt              time.Time
	ResolvedAt             *time.Time
}

type ConsentGrant struct {
	UserID         string
	ProfessionalID string
	Active         bool
	GrantedAt      time.Time
}

type HistorySnapshot struct {
	ID          string
	UserID      string
	Content     string // immutable serialized aggregate
	GeneratedAt time.Time
}
