// Package scheduler runs named daily triggers at fixed local wall-clock
// times. It deliberately avoids a cron dependency: the trigger set is a small
// finite list of "HH:MM" firing points, each firing at most once per date,
// with handlers that are idempotent (daily-once guarded) so the restart
// catch-up pass may safely re-invoke them.
package scheduler

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/silverfox-lab/silverfox-trading/internal/logger"
	"github.com/silverfox-lab/silverfox-trading/pkg/errors"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

var clockPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// Handler runs one trigger. Errors are logged; the trigger is still marked
// fired for the date, the handler's own guard owns retry semantics.
type Handler func(ctx context.Context, now time.Time) error

type trigger struct {
	name    string
	at      string
	handler Handler

	lastFired string
}

// Scheduler ticks once per second and fires due triggers.
type Scheduler struct {
	log *logger.Logger
	now func() time.Time

	mu       sync.Mutex
	triggers []*trigger
	running  bool
}

func NewScheduler(log *logger.Logger) *Scheduler {
	return &Scheduler{log: log, now: time.Now}
}

// Add registers a named trigger at the local "HH:MM" firing point. Triggers
// must be added before Run.
func (s *Scheduler) Add(name, at string, handler Handler) error {
	if !clockPattern.MatchString(at) {
		return errors.Newf(errors.ErrCodeInvalidParameter, "invalid trigger time %q for %s", at, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New(errors.ErrCodeInvalidParameter, "cannot add triggers while running")
	}

	s.triggers = append(s.triggers, &trigger{name: name, at: at, handler: handler})
	sort.SliceStable(s.triggers, func(i, j int) bool { return s.triggers[i].at < s.triggers[j].at })

	return nil
}

// Run blocks until the context is cancelled. On start it fires, in firing
// order, every trigger whose time already passed today (restart catch-up),
// then ticks once per second firing triggers as their times come due.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.fireDue(ctx, s.now())

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return errors.Wrap(errors.ErrCodeSchedulerStopped, "scheduler stopped", ctx.Err())
		case <-ticker.C:
			s.fireDue(ctx, s.now())
		}
	}
}

// fireDue runs every trigger whose firing point is at or before now and has
// not fired today yet.
func (s *Scheduler) fireDue(ctx context.Context, now time.Time) {
	date := now.Format(dateLayout)
	clock := now.Format(clockLayout)

	s.mu.Lock()
	var due []*trigger
	for _, t := range s.triggers {
		if t.at <= clock && t.lastFired != date {
			t.lastFired = date
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		s.log.Info("firing scheduled trigger",
			zap.String("trigger", t.name),
			zap.String("at", t.at),
		)

		if err := t.handler(ctx, now); err != nil {
			s.log.Error("scheduled trigger failed",
				zap.String("trigger", t.name),
				zap.Error(err),
			)
		}
	}
}
