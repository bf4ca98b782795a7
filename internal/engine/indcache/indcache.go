// Package indcache maintains the per-instrument indicator snapshots derived
// from historical daily bars. The cache is rebuilt once per trading day as a
// full replacement, persisted per date so a same-day restart reloads it
// without refetching, and instruments with incomplete windows are excluded
// rather than defaulted.
package indcache

import (
	"strings"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/silverfox-lab/silverfox-trading/internal/config"
	"github.com/silverfox-lab/silverfox-trading/internal/logger"
	"github.com/silverfox-lab/silverfox-trading/internal/market"
	"github.com/silverfox-lab/silverfox-trading/internal/store"
	"github.com/silverfox-lab/silverfox-trading/internal/types"
	"github.com/silverfox-lab/silverfox-trading/pkg/errors"
)

const dateLayout = "2006-01-02"

// Cache holds the indicator snapshots for the current trading day.
type Cache struct {
	cfg      config.Config
	history  market.HistoryProvider
	calendar market.Calendar
	store    *store.Store
	log      *logger.Logger

	mu        sync.RWMutex
	snapshots map[string]types.IndicatorSnapshot
}

// NewCache creates an empty indicator cache.
func NewCache(cfg config.Config, history market.HistoryProvider, calendar market.Calendar,
	store *store.Store, log *logger.Logger) *Cache {
	return &Cache{
		cfg:       cfg,
		history:   history,
		calendar:  calendar,
		store:     store,
		log:       log,
		snapshots: map[string]types.IndicatorSnapshot{},
	}
}

// Refresh rebuilds the cache for the trading day containing asOf and returns
// the number of instruments cached. If a snapshot for the date was already
// persisted (same-day restart), it is reloaded instead of refetched.
func (c *Cache) Refresh(asOf time.Time) (int, error) {
	date := asOf.Format(dateLayout)

	saved, err := c.store.LoadIndicators(date)
	if err != nil {
		c.log.Warn("Failed to load persisted indicators, refetching",
			zap.String("date", date),
			zap.Error(err),
		)
	} else if len(saved) > 0 {
		c.replace(saved)
		c.log.Info("Indicators reloaded from disk",
			zap.String("date", date),
			zap.Int("count", len(saved)),
		)

		return len(saved), nil
	}

	start, err := c.calendar.PrevTradingDate(asOf, c.cfg.Indicator.HistoryDays)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeCalendarQuery, "failed to resolve window start", err)
	}

	end, err := c.calendar.PrevTradingDate(asOf, 1)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeCalendarQuery, "failed to resolve window end", err)
	}

	universe, err := c.history.Universe()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeBarsFetchFailed, "failed to list universe", err)
	}

	codes := filterByPrefix(universe, c.cfg.CodePrefixes)
	fresh := map[string]types.IndicatorSnapshot{}

	// Chunked fetch. A failing chunk is logged and skipped; the other
	// chunks still populate the cache.
	for offset := 0; offset < len(codes); offset += c.cfg.Indicator.FetchChunkSize {
		limit := offset + c.cfg.Indicator.FetchChunkSize
		if limit > len(codes) {
			limit = len(codes)
		}

		chunk := codes[offset:limit]

		bars, err := c.history.FetchBars(chunk, start, end)
		if err != nil {
			c.log.Warn("Bars fetch failed for chunk",
				zap.String("first_code", chunk[0]),
				zap.Int("size", len(chunk)),
				zap.Error(err),
			)

			continue
		}

		for _, code := range chunk {
			if snapshot, ok := snapshotFromBars(bars[code], c.cfg); ok {
				fresh[code] = snapshot
			}
		}
	}

	c.replace(fresh)

	if err := c.store.SaveIndicators(date, fresh); err != nil {
		c.log.Warn("Failed to persist indicator snapshot",
			zap.String("date", date),
			zap.Error(err),
		)
	}

	c.log.Info("Indicators refreshed",
		zap.String("start", start),
		zap.String("end", end),
		zap.Int("universe", len(codes)),
		zap.Int("count", len(fresh)),
	)

	return len(fresh), nil
}

// Get returns the snapshot for a code, or None if the instrument is not
// ready today.
func (c *Cache) Get(code string) optional.Option[types.IndicatorSnapshot] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot, ok := c.snapshots[code]
	if !ok {
		return optional.None[types.IndicatorSnapshot]()
	}

	return optional.Some(snapshot)
}

// Size returns the number of cached instruments.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.snapshots)
}

func (c *Cache) replace(snapshots map[string]types.IndicatorSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = snapshots
}

// snapshotFromBars derives one instrument's snapshot from its historical
// window. It reports false when the window is shorter than configured or
// carries missing values.
func snapshotFromBars(bars []types.Bar, cfg config.Config) (types.IndicatorSnapshot, bool) {
	if len(bars) != cfg.Indicator.HistoryDays {
		return types.IndicatorSnapshot{}, false
	}

	for _, bar := range bars {
		if !bar.IsComplete() {
			return types.IndicatorSnapshot{}, false
		}
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))

	for i, bar := range bars {
		closes[i] = bar.Close
		highs[i] = bar.High
		lows[i] = bar.Low
	}

	trail := cfg.Indicator.TrailDays

	return types.IndicatorSnapshot{
		MeanShort: tailMean(closes, cfg.Buy.WindowShort-1),
		MeanMid:   tailMean(closes, cfg.Buy.WindowMid-1),
		MeanLong:  tailMean(closes, cfg.Buy.WindowLong-1),
		BaseClose: closes[len(closes)-cfg.Indicator.BaseCloseDays],
		Closes:    append([]float64{}, closes[len(closes)-trail:]...),
		Highs:     append([]float64{}, highs[len(highs)-trail:]...),
		Lows:      append([]float64{}, lows[len(lows)-trail:]...),
	}, true
}

func tailMean(values []float64, n int) float64 {
	tail := values[len(values)-n:]

	sum := 0.0
	for _, v := range tail {
		sum += v
	}

	return sum / float64(n)
}

func filterByPrefix(codes, prefixes []string) []string {
	if len(prefixes) == 0 {
		return codes
	}

	var filtered []string

	for _, code := range codes {
		for _, prefix := range prefixes {
			if strings.HasPrefix(code, prefix) {
				filtered = append(filtered, code)

				break
			}
		}
	}

	return filtered
}
