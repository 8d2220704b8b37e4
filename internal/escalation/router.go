// Package escalation drives the ticket workflow that hands high-risk
// situations to exactly one verified professional.
package escalation

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/safespace/safespace/internal/storage"
)

var (
	// ErrUnauthorized is returned when the verdict actor is not the
	// assigned professional.
	ErrUnauthorized = errors.New("not the assigned professional")
	// ErrInvalidState is returned when a verdict targets a ticket that is
	// no longer pending. Resolution is terminal.
	ErrInvalidState = errors.New("ticket is not pending")
	// ErrInvalidVerdict is returned for verdict values outside the allowed set.
	ErrInvalidVerdict = errors.New("invalid verdict")
)

// Source identifies what triggered a ticket: exactly one journal entry or
// chat session.
type Source struct {
	Type string // storage.SourceJournal or storage.SourceChat
	ID   string
}

func (s Source) key() string { return s.Type + ":" + s.ID }

// Router opens and resolves escalation tickets. Opening is idempotent per
// source: concurrent duplicate triggers (keyword fast-path and full-scorer
// path firing near-simultaneously) collapse onto one pending ticket.
type Router struct {
	store  *storage.Store
	logger *slog.Logger

	mu       sync.Mutex
	sourceMu map[string]*sync.Mutex
}

func NewRouter(store *storage.Store) *Router {
	return &Router{
		store:    store,
		logger:   slog.Default(),
		sourceMu: make(map[string]*sync.Mutex),
	}
}

// lockSource serializes ticket opens per source key on top of the storage
// transaction, keeping contention off the single database connection.
func (r *Router) lockSource(src Source) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.sourceMu[src.key()]
	if !ok {
		m = &sync.Mutex{}
		r.sourceMu[src.key()] = m
	}
	return m
}

// OpenTicket creates a pending ticket for the source, or returns the existing
// pending one. Assignment is round-robin over verified, eligible
// professionals via a shared cursor advanced atomically with the insert. When
// no professional is eligible the ticket is created unassigned and left for
// the sweep; that condition is reported, not fatal.
func (r *Router) OpenTicket(src Source, userID, reason string) (storage.EscalationTicket, error) {
	m := r.lockSource(src)
	m.Lock()
	defer m.Unlock()

	t, created, err := r.store.OpenTicket(src.Type, src.ID, userID, reason, uuid.New().String(), time.Now().UTC())
	if err != nil {
		return storage.EscalationTicket{}, fmt.Errorf("opening ticket: %w", err)
	}
	if !created {
		return t, nil
	}

	if t.AssignedProfessionalID == "" {
		r.logger.Warn("ticket opened with no eligible professional", "ticket_id", t.ID, "source", src.key())
	} else {
		r.logger.Info("escalation ticket opened",
			"ticket_id", t.ID, "source", src.key(), "assignee", t.AssignedProfessionalID)
	}
	return t, nil
}

// SubmitVerdict resolves a pending ticket. Only the assigned professional may
// act, and resolution happens exactly once; later attempts fail with
// ErrInvalidState regardless of actor.
func (r *Router) SubmitVerdict(ticketID, verdict, notes, actorProfessionalID string) (storage.EscalationTicket, error) {
	switch verdict {
	case storage.VerdictConsultRequired, storage.VerdictMonitor, storage.VerdictNoAction:
	default:
		return storage.EscalationTicket{}, fmt.Errorf("%w: %q", ErrInvalidVerdict, verdict)
	}

	t, err := r.store.GetTicket(ticketID)
	if err != nil {
		return storage.EscalationTicket{}, err
	}
	if t.AssignedProfessionalID != actorProfessionalID {
		return storage.EscalationTicket{}, ErrUnauthorized
	}

	ok, err := r.store.ResolveTicket(ticketID, verdict, notes, time.Now().UTC())
	if err != nil {
		return storage.EscalationTicket{}, fmt.Errorf("resolving ticket: %w", err)
	}
	if !ok {
		return storage.EscalationTicket{}, ErrInvalidState
	}

	resolved, err := r.store.GetTicket(ticketID)
	if err != nil {
		return storage.EscalationTicket{}, err
	}
	r.logger.Info("escalation ticket resolved", "ticket_id", ticketID, "verdict", verdict)
	return resolved, nil
}

// AssignedTickets lists tickets assigned to the professional, optionally
// filtered to pending.
func (r *Router) AssignedTickets(professionalID string, pendingOnly bool) ([]storage.EscalationTicket, error) {
	status := ""
	if pendingOnly {
		status = storage.TicketPending
	}
	tickets, err := r.store.ListTicketsByAssignee(professionalID, status)
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []storage.EscalationTicket{}
	}
	return tickets, nil
}

// TicketsAbout lists tickets whose subject is the given user.
func (r *Router) TicketsAbout(userID string) ([]storage.EscalationTicket, error) {
	tickets, err := r.store.ListTicketsByUser(userID)
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []storage.EscalationTicket{}
	}
	return tickets, nil
}

// GetTicket returns a ticket by id.
func (r *Router) GetTicket(id string) (storage.EscalationTicket, error) {
	return r.store.GetTicket(id)
}
