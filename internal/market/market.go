// Package market defines the collaborator interfaces the decision engine
// depends on for market data: the live quote feed, the historical bar
// provider used to seed indicators, and the trading-calendar oracle.
package market

import (
	"time"

	"github.com/silverfox-lab/silverfox-trading/internal/types"
)

// QuoteHandler receives a batch of quote pushes. Each push may cover one or
// many instruments; delivery frequency and batching are feed-controlled.
type QuoteHandler func(quotes map[string]types.Quote)

// QuoteFeed is the inbound live quote collaborator.
type QuoteFeed interface {
	// Subscribe registers the handler and starts delivery. Handlers may be
	// invoked from arbitrary goroutines.
	Subscribe(handler QuoteHandler) error
	// Unsubscribe stops delivery. Safe to call when not subscribed.
	Unsubscribe()
}

// HistoryProvider is the outbound historical data collaborator, used only by
// the indicator cache during its daily refresh and by the blacklist task.
type HistoryProvider interface {
	// FetchBars returns, per code, the daily bars between start and end
	// inclusive (dates formatted as 2006-01-02). Codes with no data may be
	// absent from the result.
	FetchBars(codes []string, start, end string) (map[string][]types.Bar, error)
	// Universe returns every instrument code the provider knows about.
	Universe() ([]string, error)
	// RecentListings returns the codes first listed on or after the given
	// date, used to blacklist young instruments.
	RecentListings(since string) ([]string, error)
}

// Calendar is the trading-day oracle.
type Calendar interface {
	// IsTradingDay reports whether the date (2006-01-02) is an open session.
	IsTradingDay(date string) (bool, error)
	// PrevTradingDate returns the date n trading days before from.
	PrevTradingDate(from time.Time, n int) (string, error)
}
