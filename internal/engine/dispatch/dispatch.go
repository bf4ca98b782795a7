// Package dispatch turns rule-passed candidates into buy orders under the
// hard quotas: free slots, affordable slots, candidate count, and the
// per-cycle throughput cap. The day's selection record guarantees at most one
// buy intent per instrument per day, restarts included.
package dispatch

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/silverfox-lab/silverfox-trading/internal/broker"
	"github.com/silverfox-lab/silverfox-trading/internal/config"
	"github.com/silverfox-lab/silverfox-trading/internal/logger"
	"github.com/silverfox-lab/silverfox-trading/internal/store"
	"github.com/silverfox-lab/silverfox-trading/internal/types"
	"github.com/silverfox-lab/silverfox-trading/pkg/errors"
)

// Candidate is one instrument that passed the selection rules this cycle.
type Candidate struct {
	Code  string
	Price float64
}

// Dispatcher submits buy intents toward the broker collaborator.
type Dispatcher struct {
	buy      config.BuyConfig
	strategy string
	store    *store.Store
	broker   broker.Broker
	log      *logger.Logger
}

func NewDispatcher(cfg config.Config, st *store.Store, br broker.Broker, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		buy:      cfg.Buy,
		strategy: cfg.StrategyName,
		store:    st,
		broker:   br,
		log:      log,
	}
}

// Dispatch records every candidate in the day's selection record and submits
// buy intents for the fresh ones, cheapest first, until the quota is spent.
// Candidates that round down to zero lots or are already held are skipped
// without consuming quota. Returns the submitted intents.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	date string,
	candidates []Candidate,
	positions map[string]types.Position,
	asset types.Asset,
) ([]types.OrderIntent, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	codes := make([]string, 0, len(candidates))
	for _, c := range candidates {
		codes = append(codes, c.Code)
	}

	fresh, err := d.store.RecordSelections(date, codes)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to record selections", err)
	}

	freshSet := make(map[string]struct{}, len(fresh))
	for _, code := range fresh {
		freshSet[code] = struct{}{}
	}

	quota := d.quota(len(candidates), len(positions), asset.Cash)
	if quota <= 0 {
		return nil, nil
	}

	sorted := append([]Candidate{}, candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	var intents []types.OrderIntent
	for _, c := range sorted {
		if quota == 0 {
			break
		}
		if _, ok := freshSet[c.Code]; !ok {
			continue
		}
		if _, held := positions[c.Code]; held {
			continue
		}

		volume := d.lotVolume(c.Price)
		if volume == 0 {
			d.log.Info("candidate skipped, below one lot",
				zap.String("code", c.Code),
				zap.Float64("price", c.Price),
			)
			continue
		}

		intent := types.OrderIntent{
			ID:              uuid.NewString(),
			Side:            types.SideBuy,
			Code:            c.Code,
			Price:           c.Price,
			Volume:          volume,
			Remark:          types.RemarkSelectionBuy,
			PriceMultiplier: 1 + d.buy.OrderPremium,
			Strategy:        d.strategy,
		}

		if err := d.broker.SubmitOrder(ctx, intent); err != nil {
			d.log.Error("buy order submission failed",
				zap.String("code", c.Code),
				zap.Error(err),
			)
			continue
		}

		intents = append(intents, intent)
		quota--
	}

	return intents, nil
}

// quota is min(free slots, affordable slots, candidates, per-cycle cap),
// clamped at zero.
func (d *Dispatcher) quota(candidates, openPositions int, cash float64) int {
	free := d.buy.SlotCount - openPositions

	affordable := int(decimal.NewFromFloat(cash).
		Div(decimal.NewFromFloat(d.buy.SlotCapacity)).
		IntPart())

	quota := free
	for _, limit := range []int{affordable, candidates, d.buy.PerCycleBuyCap} {
		if limit < quota {
			quota = limit
		}
	}

	if quota < 0 {
		return 0
	}

	return quota
}

// lotVolume is the share count one slot's capacity buys at the price, rounded
// down to whole lots.
func (d *Dispatcher) lotVolume(price float64) int {
	if price <= 0 {
		return 0
	}

	lot := decimal.NewFromInt(int64(d.buy.LotSize))
	lots := decimal.NewFromFloat(d.buy.SlotCapacity).
		Div(decimal.NewFromFloat(price)).
		Div(lot).
		IntPart()

	return int(lots) * d.buy.LotSize
}
