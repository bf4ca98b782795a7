// Package selection implements the entry rule families. Both evaluators are
// pure functions over a live quote and a cached indicator snapshot; no
// external state is consulted, so each rule is testable in isolation.
package selection

import (
	"strings"
	"sync"

	"github.com/silverfox-lab/silverfox-trading/internal/config"
	"github.com/silverfox-lab/silverfox-trading/internal/indicator"
	"github.com/silverfox-lab/silverfox-trading/internal/types"
)

// Strategy names accepted in configuration.
const (
	StrategyBreakout  = "breakout"
	StrategyReversion = "reversion"
)

// BreakoutDetail carries the provisional moving averages computed during a
// breakout evaluation, for logging and selection records.
type BreakoutDetail struct {
	BlendShort float64
	BlendMid   float64
	BlendLong  float64
}

// EvaluateBreakout applies the breakout entry rule: an up candle with a
// minimum gap between close and open, with the close/open straddling the
// short, mid, and long moving averages provisionally updated with today's
// not-yet-final close. All comparisons are strict.
//
// The gap threshold in this family is measured against the live close, not
// the open; the reversion family measures its gap against the prior close.
// The asymmetry is intentional.
func EvaluateBreakout(quote types.Quote, snap types.IndicatorSnapshot, cfg config.BuyConfig) (bool, BreakoutDetail) {
	close, open := quote.LastPrice, quote.Open

	detail := BreakoutDetail{
		BlendShort: indicator.BlendMean(snap.MeanShort, cfg.WindowShort, close),
		BlendMid:   indicator.BlendMean(snap.MeanMid, cfg.WindowMid, close),
		BlendLong:  indicator.BlendMean(snap.MeanLong, cfg.WindowLong, close),
	}

	if close <= open {
		return false, detail
	}
	if close-open <= cfg.GapRatio*close {
		return false, detail
	}

	for _, blended := range []float64{detail.BlendLong, detail.BlendMid, detail.BlendShort} {
		if !(open < blended && blended < close) {
			return false, detail
		}
	}

	return true, detail
}

// ReversionDetail carries the price bands computed during a mean-reversion
// evaluation.
type ReversionDetail struct {
	TurnLower float64
	TurnUpper float64
	BaseLower float64
	BaseUpper float64
}

// EvaluateReversion applies the mean-reversion entry rule: the open gapped
// down below the prior close, the live price has turned positive within a
// narrow band over the prior close, and the live price sits in a bounded
// band over the close from several sessions back so already-extended moves
// are not chased. All comparisons are strict.
func EvaluateReversion(quote types.Quote, snap types.IndicatorSnapshot, cfg config.BuyConfig) (bool, ReversionDetail) {
	price := quote.LastPrice

	detail := ReversionDetail{
		TurnLower: quote.LastClose * cfg.TurnRedLower,
		TurnUpper: quote.LastClose * cfg.TurnRedUpper,
		BaseLower: snap.BaseClose * cfg.BaseLower,
		BaseUpper: snap.BaseClose * cfg.BaseUpper,
	}

	if quote.Open >= quote.LastClose*cfg.LowOpen {
		return false, detail
	}
	if !(detail.TurnLower < price && price < detail.TurnUpper) {
		return false, detail
	}
	if !(detail.BaseLower < price && price < detail.BaseUpper) {
		return false, detail
	}

	return true, detail
}

// Screen filters the instruments the selection rules are allowed to consider:
// only codes under the configured exchange prefixes, minus the blacklisted
// recent listings. Safe for concurrent use; the blacklist is refreshed by the
// daily tasks while quote cycles read it.
type Screen struct {
	prefixes []string

	mu        sync.RWMutex
	blacklist map[string]struct{}
}

// NewScreen builds a screen. An empty prefix list admits every code.
func NewScreen(prefixes, blacklist []string) *Screen {
	blocked := make(map[string]struct{}, len(blacklist))
	for _, code := range blacklist {
		blocked[code] = struct{}{}
	}

	return &Screen{prefixes: prefixes, blacklist: blocked}
}

// Replace swaps the blacklist for the given codes. Codes absent from the new
// set are admitted again, so a daily refresh ages recent listings out.
func (s *Screen) Replace(codes []string) {
	blocked := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		blocked[code] = struct{}{}
	}

	s.mu.Lock()
	s.blacklist = blocked
	s.mu.Unlock()
}

// Admits reports whether the code may be evaluated.
func (s *Screen) Admits(code string) bool {
	s.mu.RLock()
	_, blocked := s.blacklist[code]
	s.mu.RUnlock()

	if blocked {
		return false
	}
	if len(s.prefixes) == 0 {
		return true
	}

	for _, prefix := range s.prefixes {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}

	return false
}
