// Package indicator implements the technical indicator math used by the
// decision engine. Every function is pure: it takes a historical window plus
// an optional live value and returns a number, so the rules built on top are
// testable without any live feed.
package indicator

import (
	"math"

	"github.com/silverfox-lab/silverfox-trading/pkg/errors"
)

// SMA returns the simple moving average of the trailing period values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	if len(values) < period {
		return 0, errors.NewIncompleteWindowError(period, len(values), "",
			"not enough values for SMA")
	}

	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}

	return sum / float64(period), nil
}

// ATR returns the average true range over the trailing period bars using
// Wilder smoothing. The first range is undefined without a prior close, so
// the slices must carry at least period+1 entries.
func ATR(closes, highs, lows []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	n := len(closes)
	if len(highs) != n || len(lows) != n {
		return 0, errors.New(errors.ErrCodeInvalidParameter, "close/high/low windows must have equal length")
	}

	if n < period+1 {
		return 0, errors.NewIncompleteWindowError(period+1, n, "",
			"not enough bars for ATR")
	}

	trueRanges := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		prevClose := closes[i-1]
		tr := math.Max(
			math.Max(
				highs[i]-lows[i],
				math.Abs(highs[i]-prevClose),
			),
			math.Abs(lows[i]-prevClose),
		)
		trueRanges = append(trueRanges, tr)
	}

	// Seed with the plain average of the first period ranges, then apply
	// Wilder smoothing over the rest.
	atr := 0.0
	for _, tr := range trueRanges[:period] {
		atr += tr
	}

	atr /= float64(period)

	for _, tr := range trueRanges[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}

	return atr, nil
}

// BlendMean provisionally updates a cached trailing mean with today's
// not-yet-final close: (cachedMean*(window-1) + live) / window.
func BlendMean(cachedMean float64, window int, live float64) float64 {
	return (cachedMean*float64(window-1) + live) / float64(window)
}

// Band is a volatility-adjusted price corridor.
type Band struct {
	Upper float64
	Lower float64
}

// TrailingBand appends the live close/high/low to the cached short windows
// and derives the adaptive exit corridor: SMA(smaDays) +/- ATR(atrDays)
// scaled by the configured multipliers.
func TrailingBand(closes, highs, lows []float64, liveClose, liveHigh, liveLow float64,
	smaDays, atrDays int, upperMulti, lowerMulti float64) (Band, error) {
	fullCloses := append(append([]float64{}, closes...), liveClose)
	fullHighs := append(append([]float64{}, highs...), liveHigh)
	fullLows := append(append([]float64{}, lows...), liveLow)

	sma, err := SMA(fullCloses, smaDays)
	if err != nil {
		return Band{}, err
	}

	atr, err := ATR(fullCloses, fullHighs, fullLows, atrDays)
	if err != nil {
		return Band{}, err
	}

	return Band{
		Upper: sma + atr*upperMulti,
		Lower: sma - atr*lowerMulti,
	}, nil
}
