package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/quitpal/notifier/internal/domain"
	"github.com/quitpal/notifier/internal/store"
)

const (
	// pollInterval is the fixed poll cadence. Tunable constant, not runtime
	// configuration.
	pollInterval = 60 * time.Second

	// dueBatchSize bounds the work done in one tick.
	dueBatchSize = 50
)

// Dispatcher is the minimal interface the poller needs to deliver one
// message now. push.Client implements it.
type Dispatcher interface {
	SendNow(ctx context.Context, userID, message string, data map[string]string) error
}

// Scheduler periodically polls the store and dispatches due notifications.
type Scheduler struct {
	repo     store.Repo
	dispatch Dispatcher
	log      *zap.Logger
	interval time.Duration
	ticking  atomic.Bool
}

// New creates a poller over the given store and dispatcher.
func New(repo store.Repo, dispatch Dispatcher, log *zap.Logger) *Scheduler {
	return &Scheduler{
		repo:     repo,
		dispatch: dispatch,
		log:      log,
		interval: pollInterval,
	}
}

// Run starts the poll loop until ctx is canceled. An in-flight tick runs to
// completion; cancellation only prevents future ticks.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("poller stopping")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one poll cycle: query due records, dispatch each, mark sent.
// At most one tick runs at a time; overlapping invocations are dropped.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.ticking.CompareAndSwap(false, true) {
		s.log.Warn("previous tick still running, skipping")
		return
	}
	defer s.ticking.Store(false)

	now := time.Now().UTC()
	due, err := s.repo.ListDue(ctx, now, dueBatchSize)
	if err != nil {
		s.log.Error("list due failed", zap.Error(err))
		return
	}

	for _, n := range due {
		s.deliver(ctx, n, now)
	}
}

// deliver sends one record and records the send. A failed dispatch leaves
// the record unsent so the next tick retries it; one bad record never stops
// the rest of the batch.
func (s *Scheduler) deliver(ctx context.Context, n domain.Notification, now time.Time) {
	data := map[string]string{
		"template_id": n.TemplateID,
		"category":    string(n.Category),
	}
	if err := s.dispatch.SendNow(ctx, n.UserID, n.Message, data); err != nil {
		s.log.Error("dispatch failed",
			zap.Error(err),
			zap.String("id", n.ID),
			zap.Int("day", n.Day),
		)
		return
	}
	if err := s.repo.MarkSent(ctx, n.ID, now); err != nil {
		s.log.Error("mark sent failed", zap.Error(err), zap.String("id", n.ID))
	}
}
