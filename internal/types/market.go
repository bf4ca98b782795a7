package types

import "math"

// Quote is a per-instrument snapshot of live trading data. Quotes are
// ephemeral: within an aggregation window the latest push for a code
// overwrites any earlier one, and they are never persisted.
type Quote struct {
	Code      string    `json:"code" yaml:"code"`
	LastPrice float64   `json:"last_price" yaml:"last_price"`
	Open      float64   `json:"open" yaml:"open"`
	LastClose float64   `json:"last_close" yaml:"last_close"`
	High      float64   `json:"high" yaml:"high"`
	Low       float64   `json:"low" yaml:"low"`
	AskPrices []float64 `json:"ask_prices" yaml:"ask_prices"`
}

// Bar is one daily bar of historical data for an instrument.
// Missing values are represented as NaN and make the containing window
// incomplete.
type Bar struct {
	Date  string  `json:"date" yaml:"date"`
	Close float64 `json:"close" yaml:"close"`
	High  float64 `json:"high" yaml:"high"`
	Low   float64 `json:"low" yaml:"low"`
}

// IsComplete reports whether the bar carries no missing values.
func (b Bar) IsComplete() bool {
	return !math.IsNaN(b.Close) && !math.IsNaN(b.High) && !math.IsNaN(b.Low)
}
