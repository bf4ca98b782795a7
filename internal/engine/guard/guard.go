// Package guard provides restart-safe, at-most-once-per-date execution of
// side-effecting daily tasks.
package guard

import (
	"sync"

	"go.uber.org/zap"

	"github.com/silverfox-lab/silverfox-trading/internal/logger"
	"github.com/silverfox-lab/silverfox-trading/internal/store"
	"github.com/silverfox-lab/silverfox-trading/pkg/errors"
)

// DailyOnce executes a task at most once per date, within a process lifetime
// and across restarts. The check-and-run sequence is serialized, so two
// trigger sources (scheduler tick, restart catch-up, quote tick) cannot
// double-run the same day's task.
type DailyOnce struct {
	store *store.Store
	log   *logger.Logger

	mu       sync.Mutex
	lastRuns map[string]string // in-memory mirror of the persisted markers
}

// NewDailyOnce creates a guard backed by the given store.
func NewDailyOnce(store *store.Store, log *logger.Logger) *DailyOnce {
	return &DailyOnce{
		store:    store,
		log:      log,
		lastRuns: map[string]string{},
	}
}

// RunOnce runs fn if the task has not yet run for the given date. It returns
// whether fn was executed. If fn fails, the date is not marked as run, so the
// next invocation retries.
func (g *DailyOnce) RunOnce(taskID, date string, fn func() error) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lastRuns[taskID] == date {
		return false, nil
	}

	// The in-memory mirror starts empty after a restart; consult the
	// persisted marker before deciding this is a catch-up run.
	lastRun, err := g.store.TaskMarker(taskID)
	if err != nil {
		return false, err
	}

	if lastRun == date {
		g.lastRuns[taskID] = date

		return false, nil
	}

	if err := fn(); err != nil {
		g.log.Warn("Daily task failed, will retry on next trigger",
			zap.String("task", taskID),
			zap.String("date", date),
			zap.Error(err),
		)

		return false, errors.Wrapf(errors.ErrCodeGuardTaskFailed, err, "daily task %s failed", taskID)
	}

	if err := g.store.MarkTask(taskID, date); err != nil {
		return true, err
	}

	g.lastRuns[taskID] = date
	g.log.Info("Daily task completed",
		zap.String("task", taskID),
		zap.String("date", date),
	)

	return true, nil
}
