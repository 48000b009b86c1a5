// Package scheduler enqueues periodic sync jobs for a fixed set of users.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/joseph-ayodele/purchase-sync/internal/async"
)

// UserSource returns the users to sync on each tick.
type UserSource func(ctx context.Context) ([]string, error)

type Scheduler struct {
	cron     *cron.Cron
	entryID  cron.EntryID
	spec     string
	lookback time.Duration
	users    UserSource
	queue    async.Queue
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// New builds a scheduler. spec is a robfig/cron expression such as
// "@every 15m" or "0 */10 * * * *" (seconds are allowed).
func New(spec string, lookback time.Duration, users UserSource, queue async.Queue, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		spec:     spec,
		lookback: lookback,
		users:    users,
		queue:    queue,
		now:      time.Now,
		logger:   logger,
	}
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	id, err := s.cron.AddFunc(s.spec, func() { s.Tick(context.Background()) })
	if err != nil {
		return fmt.Errorf("add cron job %q: %w", s.spec, err)
	}
	s.entryID = id
	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler.started", "spec", s.spec)
	return nil
}

// Stop waits for a running tick to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		s.logger.Info("scheduler.stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler.stop_timeout")
	}
	s.running = false
}

// Tick enqueues one job per user. It is what every cron firing runs.
func (s *Scheduler) Tick(ctx context.Context) {
	users, err := s.users(ctx)
	if err != nil {
		s.logger.Error("scheduler.users_failed", "error", err)
		return
	}
	var since time.Time
	if s.lookback > 0 {
		since = s.now().Add(-s.lookback)
	}
	for _, u := range users {
		if err := s.queue.Enqueue(ctx, async.Job{UserID: u, Since: since}); err != nil {
			s.logger.Error("scheduler.enqueue_failed", "user_id", u, "error", err)
		}
	}
	s.logger.Info("scheduler.tick", "users", len(users))
}

// StaticUsers serves a fixed list.
func StaticUsers(users []string) UserSource {
	return func(context.Context) ([]string, error) { return users, nil }
}
