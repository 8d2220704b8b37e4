package escalation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/safespace/safespace/internal/storage"
)

const sweepBatchSize = 50

// Sweep retries assignment of tickets that were opened while no professional
// was eligible. It is a liveness aid, not correctness-critical: skipping a
// cycle under load is safe because tickets stay pending until assigned.
type Sweep struct {
	store    *storage.Store
	interval time.Duration
	logger   *slog.Logger
}

// NewSweep creates a Sweep. If interval is <= 0, it defaults to 30s.
func NewSweep(store *storage.Store, interval time.Duration) *Sweep {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweep{
		store:    store,
		interval: interval,
		logger:   slog.Default(),
	}
}

// Run retries orphaned tickets on a fixed interval until ctx is cancelled.
func (s *Sweep) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(); err != nil {
				s.logger.Error("assignment sweep failed", "error", err)
			}
		}
	}
}

// RunOnce assigns as many unassigned pending tickets as the eligible pool
// allows and returns how many were assigned.
func (s *Sweep) RunOnce() (int, error) {
	orphans, err := s.store.ListUnassignedPendingTickets(sweepBatchSize)
	if err != nil {
		return 0, err
	}

	assigned := 0
	for _, t := range orphans {
		professionalID, err := s.store.AssignTicket(t.ID)
		if errors.Is(err, storage.ErrNoAssignee) {
			// Still nobody eligible; later tickets won't fare better.
			return assigned, nil
		}
		if errors.Is(err, storage.ErrNotFound) {
			// Resolved or assigned since we listed it.
			continue
		}
		if err != nil {
			return assigned, err
		}
		assigned++
		s.logger.Info("orphaned ticket assigned", "ticket_id", t.ID, "assignee", professionalID)
	}
	return assigned, nil
}
