package types

// IndicatorSnapshot holds the cached historical statistics for one instrument
// as of the prior trading day. It is rebuilt once per trading day and seeds
// the intraday SMA/ATR math without refetching history every cycle.
type IndicatorSnapshot struct {
	// MeanShort/MeanMid/MeanLong are the mean closes over the trailing
	// Short-1 / Mid-1 / Long-1 sessions. Blended with the live price they
	// reproduce the Short/Mid/Long moving averages provisionally updated
	// with today's not-yet-final close.
	MeanShort float64 `json:"mean_short" yaml:"mean_short"`
	MeanMid   float64 `json:"mean_mid" yaml:"mean_mid"`
	MeanLong  float64 `json:"mean_long" yaml:"mean_long"`

	// BaseClose is the close from the configured number of sessions back,
	// used to bound already-extended moves.
	BaseClose float64 `json:"base_close" yaml:"base_close"`

	// Closes/Highs/Lows are the trailing short windows appended with the
	// live quote to recompute the trailing band intraday.
	Closes []float64 `json:"closes" yaml:"closes"`
	Highs  []float64 `json:"highs" yaml:"highs"`
	Lows   []float64 `json:"lows" yaml:"lows"`
}

// HasTrail reports whether the snapshot carries the short windows needed for
// the trailing band.
func (s IndicatorSnapshot) HasTrail() bool {
	return len(s.Closes) > 0 && len(s.Closes) == len(s.Highs) && len(s.Closes) == len(s.Lows)
}
