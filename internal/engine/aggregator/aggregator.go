// Package aggregator debounces bursty quote pushes into at most one decision
// cycle per wall-clock second. It is the sole admission point into the
// decision pipeline: selection, risk, and dispatch all run synchronously
// inside the single admitted cycle, so the decision logic itself needs no
// locking.
package aggregator

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/silverfox-lab/silverfox-trading/internal/logger"
	"github.com/silverfox-lab/silverfox-trading/internal/market"
	"github.com/silverfox-lab/silverfox-trading/internal/types"
	"github.com/silverfox-lab/silverfox-trading/pkg/errors"
)

const dateLayout = "2006-01-02"

// CycleFunc runs one decision cycle over the batch accumulated since the
// previous cycle. Instruments with no update since the last cycle are absent
// from the batch, not carried forward.
type CycleFunc func(now time.Time, batch map[string]types.Quote) error

// Aggregator buffers quote pushes keyed by instrument with last-value-wins
// semantics and hands the buffer to the cycle once per distinct second.
type Aggregator struct {
	calendar market.Calendar
	cycle    CycleFunc
	log      *logger.Logger
	now      func() time.Time

	mu         sync.Mutex
	buffer     map[string]types.Quote
	lastSecond int64
	lastMinute int64
	cycleCount uint64

	// cycleMu serializes cycle execution: the per-second gate admits at
	// most one batch per second, and this lock guarantees a cycle that
	// outlives its second still finishes before the next one starts, so
	// the decision logic never runs concurrently with itself.
	cycleMu sync.Mutex

	tradingDate string
	tradingOpen bool
}

// NewAggregator builds an aggregator feeding the given cycle. The calendar
// decides whether a date admits decision cycles at all.
func NewAggregator(calendar market.Calendar, cycle CycleFunc, log *logger.Logger) *Aggregator {
	return &Aggregator{
		calendar:   calendar,
		cycle:      cycle,
		log:        log,
		now:        time.Now,
		buffer:     make(map[string]types.Quote),
		lastSecond: -1,
		lastMinute: -1,
	}
}

// OnQuotes ingests one quote push. It merges the push into the buffer under a
// short-held lock and, when the wall-clock second has advanced since the last
// admitted cycle, swaps the buffer out and runs the cycle on the calling
// goroutine. Cycle errors and panics are contained: they are logged and the
// next second's cycle proceeds independently.
func (a *Aggregator) OnQuotes(quotes map[string]types.Quote) {
	a.mu.Lock()

	for code, quote := range quotes {
		a.buffer[code] = quote
	}

	now := a.now()
	second := now.Unix()
	if second == a.lastSecond {
		a.mu.Unlock()
		return
	}
	a.lastSecond = second

	batch := a.buffer
	a.buffer = make(map[string]types.Quote, len(batch))
	a.cycleCount++

	if minute := second / 60; minute != a.lastMinute {
		a.lastMinute = minute
		a.log.Debug("aggregator heartbeat",
			zap.Uint64("cycles", a.cycleCount),
			zap.Int("buffered", len(batch)),
		)
	}

	open := a.tradingOpenLocked(now)
	a.mu.Unlock()

	// The buffer is drained either way to bound memory; on a closed day
	// the batch is simply discarded.
	if !open {
		return
	}

	a.runCycle(now, batch)
}

// tradingOpenLocked answers whether now's date is an open session, caching
// the calendar answer per date. Caller holds a.mu.
func (a *Aggregator) tradingOpenLocked(now time.Time) bool {
	date := now.Format(dateLayout)
	if date == a.tradingDate {
		return a.tradingOpen
	}

	open, err := a.calendar.IsTradingDay(date)
	if err != nil {
		a.log.Error("trading calendar query failed",
			zap.String("date", date),
			zap.Error(errors.Wrap(errors.ErrCodeCalendarQuery, "calendar query failed", err)),
		)
		return false
	}

	a.tradingDate = date
	a.tradingOpen = open

	return open
}

func (a *Aggregator) runCycle(now time.Time, batch map[string]types.Quote) {
	a.cycleMu.Lock()
	defer a.cycleMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("decision cycle panicked",
				zap.Any("panic", r),
				zap.Int("batch_size", len(batch)),
			)
		}
	}()

	if err := a.cycle(now, batch); err != nil {
		a.log.Error("decision cycle failed",
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)
	}
}
