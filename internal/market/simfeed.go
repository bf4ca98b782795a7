package market

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/silverfox-lab/silverfox-trading/internal/types"
	"github.com/silverfox-lab/silverfox-trading/pkg/errors"
)

// SimFeedConfig holds the configuration for the simulated quote feed.
type SimFeedConfig struct {
	// Codes are the instruments to generate quotes for.
	Codes []string

	// InitialPrice is the starting price for every code.
	InitialPrice float64

	// VolatilityPercent controls the per-tick random move.
	VolatilityPercent float64

	// Interval is the delay between pushes (default: 200ms).
	Interval time.Duration

	// Seed for reproducible random generation.
	Seed int64
}

// SimFeed is a QuoteFeed that generates random-walk quotes, used by
// cmd/trading for dry runs and by tests. Quotes can also be pushed directly
// with Push, which delivers synchronously to the subscribed handler.
type SimFeed struct {
	config  SimFeedConfig
	mu      sync.Mutex
	handler QuoteHandler
	prices  map[string]*simPrice
	rng     *rand.Rand
}

type simPrice struct {
	open      float64
	lastClose float64
	last      float64
	high      float64
	low       float64
}

// NewSimFeed creates a new simulated feed.
func NewSimFeed(config SimFeedConfig) *SimFeed {
	if config.Interval == 0 {
		config.Interval = 200 * time.Millisecond
	}

	if config.InitialPrice == 0 {
		config.InitialPrice = 10.0
	}

	if config.VolatilityPercent == 0 {
		config.VolatilityPercent = 0.5
	}

	prices := make(map[string]*simPrice, len(config.Codes))
	rng := rand.New(rand.NewSource(config.Seed))

	for _, code := range config.Codes {
		base := config.InitialPrice
		open := base * (1 + (rng.Float64()-0.5)*config.VolatilityPercent/100)
		prices[code] = &simPrice{
			open:      open,
			lastClose: base,
			last:      open,
			high:      open,
			low:       open,
		}
	}

	return &SimFeed{
		config:  config,
		handler: nil,
		prices:  prices,
		rng:     rng,
	}
}

// Subscribe implements QuoteFeed.
func (f *SimFeed) Subscribe(handler QuoteHandler) error {
	if handler == nil {
		return errors.New(errors.ErrCodeFeedSubscribe, "nil quote handler")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler

	return nil
}

// Unsubscribe implements QuoteFeed.
func (f *SimFeed) Unsubscribe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = nil
}

// Push delivers a quote batch synchronously to the subscribed handler.
// Batches pushed while unsubscribed are dropped, matching a real feed.
func (f *SimFeed) Push(quotes map[string]types.Quote) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()

	if handler != nil {
		handler(quotes)
	}
}

// Run generates random-walk quote pushes until the context is cancelled.
func (f *SimFeed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Push(f.nextBatch())
		}
	}
}

// nextBatch advances every simulated price one tick and snapshots the batch.
func (f *SimFeed) nextBatch() map[string]types.Quote {
	f.mu.Lock()
	defer f.mu.Unlock()

	batch := make(map[string]types.Quote, len(f.prices))

	for code, p := range f.prices {
		move := (f.rng.Float64() - 0.5) * 2 * f.config.VolatilityPercent / 100
		p.last *= 1 + move

		if p.last > p.high {
			p.high = p.last
		}

		if p.last < p.low {
			p.low = p.last
		}

		batch[code] = types.Quote{
			Code:      code,
			LastPrice: p.last,
			Open:      p.open,
			LastClose: p.lastClose,
			High:      p.high,
			Low:       p.low,
			AskPrices: []float64{p.last, p.last * 1.001, p.last * 1.002},
		}
	}

	return batch
}

// Verify SimFeed implements the QuoteFeed interface.
var _ QuoteFeed = (*SimFeed)(nil)
