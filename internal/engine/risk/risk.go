// Package risk evaluates exit rules for held positions. Evaluation is a pure
// decision over the position, the live quote, the holding age, and the cached
// indicator snapshot: at most one sell intent per position per cycle.
package risk

import (
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/silverfox-lab/silverfox-trading/internal/config"
	"github.com/silverfox-lab/silverfox-trading/internal/indicator"
	"github.com/silverfox-lab/silverfox-trading/internal/logger"
	"github.com/silverfox-lab/silverfox-trading/internal/types"
)

const clockLayout = "15:04"

// Manager decides exits for open positions.
type Manager struct {
	sell     config.SellConfig
	premium  float64
	strategy string
	log      *logger.Logger
}

// NewManager builds a risk manager. The premium widens the sell limit price
// downward so exits fill in one shot.
func NewManager(cfg config.Config, log *logger.Logger) *Manager {
	return &Manager{
		sell:     cfg.Sell,
		premium:  cfg.Buy.OrderPremium,
		strategy: cfg.StrategyName,
		log:      log,
	}
}

// Evaluate applies the exit rules to one position and returns at most one
// sell intent. Positions held less than one full session are never sold.
//
// Rule order: with the indicator available the adaptive trailing band is
// consulted first and supersedes the fixed ratios; without it the fixed
// stop-loss and take-profit apply; the switch-out band is checked last.
func (m *Manager) Evaluate(
	now time.Time,
	pos types.Position,
	quote types.Quote,
	snap optional.Option[types.IndicatorSnapshot],
	heldDays int,
) optional.Option[types.OrderIntent] {
	if heldDays < 1 {
		return optional.None[types.OrderIntent]()
	}

	price := quote.LastPrice
	cost := pos.OpenPrice

	remark, bandActive := m.bandExit(pos.Code, quote, snap)
	if remark != "" {
		return optional.Some(m.sellIntent(pos, price, remark))
	}

	if !bandActive {
		if price <= cost*m.sell.StopLossRatio {
			return optional.Some(m.sellIntent(pos, price, types.RemarkFixedStopLoss))
		}
		if price >= cost*m.sell.TakeProfitRatio {
			return optional.Some(m.sellIntent(pos, price, types.RemarkFixedTakeProf))
		}
	}

	if m.switchOut(now, heldDays, price, cost) {
		return optional.Some(m.sellIntent(pos, price, types.RemarkSwitchSell))
	}

	return optional.None[types.OrderIntent]()
}

// bandExit recomputes the trailing band with today's live values appended.
// It returns the triggered remark ("" when the band is quiet) and whether the
// band is active; an inactive band hands control back to the fixed ratios.
func (m *Manager) bandExit(code string, quote types.Quote, snap optional.Option[types.IndicatorSnapshot]) (string, bool) {
	if snap.IsNone() || !snap.Unwrap().HasTrail() {
		return "", false
	}

	s := snap.Unwrap()
	band, err := indicator.TrailingBand(
		s.Closes, s.Highs, s.Lows,
		quote.LastPrice, quote.High, quote.Low,
		m.sell.SMADays, m.sell.ATRDays,
		m.sell.ATRUpper, m.sell.ATRLower,
	)
	if err != nil {
		m.log.Warn("trailing band unavailable, using fixed ratios",
			zap.String("code", code),
			zap.Error(err),
		)
		return "", false
	}

	// Touching the band counts, same as the fixed-ratio comparisons.
	if quote.LastPrice <= band.Lower {
		return types.RemarkBandStopLoss, true
	}
	if quote.LastPrice >= band.Upper {
		return types.RemarkBandTakeProfit, true
	}

	return "", true
}

// switchOut frees the slot when an aged position idles in the narrow band
// between the stop floor and a modest profit.
func (m *Manager) switchOut(now time.Time, heldDays int, price, cost float64) bool {
	if heldDays <= m.sell.SwitchHoldDays {
		return false
	}
	if now.Format(clockLayout) < m.sell.SwitchBegin {
		return false
	}

	return cost*m.sell.StopLossRatio < price && price < cost*m.sell.SwitchIncome
}

func (m *Manager) sellIntent(pos types.Position, price float64, remark string) types.OrderIntent {
	return types.OrderIntent{
		ID:              uuid.NewString(),
		Side:            types.SideSell,
		Code:            pos.Code,
		Price:           price,
		Volume:          pos.Volume,
		Remark:          remark,
		PriceMultiplier: 1 - m.premium,
		Strategy:        m.strategy,
	}
}
