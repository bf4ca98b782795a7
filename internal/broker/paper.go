package broker

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/silverfox-lab/silverfox-trading/internal/logger"
	"github.com/silverfox-lab/silverfox-trading/internal/types"
	"github.com/silverfox-lab/silverfox-trading/pkg/errors"
)

// PaperBroker is an in-memory Broker that fills every accepted intent
// immediately at the padded limit price. It backs dry runs and tests; the
// production binary swaps in the terminal-connected implementation.
type PaperBroker struct {
	mu           sync.Mutex
	cash         decimal.Decimal
	positions    map[string]*paperPosition
	onFill       FillHandler
	onOrderError OrderErrorHandler
	log          *logger.Logger
}

type paperPosition struct {
	volume int
	cost   decimal.Decimal // total cash spent on the open volume
}

// NewPaperBroker creates a paper broker with the given starting cash.
func NewPaperBroker(cash float64, log *logger.Logger) *PaperBroker {
	return &PaperBroker{
		cash:         decimal.NewFromFloat(cash),
		positions:    map[string]*paperPosition{},
		onFill:       nil,
		onOrderError: nil,
		log:          log,
	}
}

// SubmitOrder implements Broker. Validation failures are returned directly;
// rejections (no cash, no position) are delivered through the order-error
// handler to model the asynchronous broker response.
func (b *PaperBroker) SubmitOrder(ctx context.Context, intent types.OrderIntent) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeBrokerNotConnected, "submit cancelled", err)
	}

	if err := intent.Validate(); err != nil {
		return err
	}

	execPrice := decimal.NewFromFloat(intent.Price).
		Mul(decimal.NewFromFloat(intent.PriceMultiplier))

	switch intent.Side {
	case types.SideBuy:
		b.fillBuy(intent, execPrice)
	case types.SideSell:
		b.fillSell(intent, execPrice)
	}

	return nil
}

func (b *PaperBroker) fillBuy(intent types.OrderIntent, execPrice decimal.Decimal) {
	b.mu.Lock()

	cost := execPrice.Mul(decimal.NewFromInt(int64(intent.Volume)))
	if cost.GreaterThan(b.cash) {
		b.mu.Unlock()
		b.reject(intent, errors.Newf(errors.ErrCodeInsufficientCash,
			"buy %s needs %s, cash %s", intent.Code, cost, b.cash))

		return
	}

	b.cash = b.cash.Sub(cost)

	position, ok := b.positions[intent.Code]
	if !ok {
		position = &paperPosition{volume: 0, cost: decimal.Zero}
		b.positions[intent.Code] = position
	}

	position.volume += intent.Volume
	position.cost = position.cost.Add(cost)
	b.mu.Unlock()

	b.notifyFill(intent, execPrice)
}

func (b *PaperBroker) fillSell(intent types.OrderIntent, execPrice decimal.Decimal) {
	b.mu.Lock()

	position, ok := b.positions[intent.Code]
	if !ok || position.volume < intent.Volume {
		b.mu.Unlock()
		b.reject(intent, errors.Newf(errors.ErrCodePositionNotFound,
			"sell %s for %d shares exceeds holding", intent.Code, intent.Volume))

		return
	}

	proceeds := execPrice.Mul(decimal.NewFromInt(int64(intent.Volume)))
	b.cash = b.cash.Add(proceeds)

	// Reduce the cost basis proportionally before shrinking the volume.
	sold := decimal.NewFromInt(int64(intent.Volume)).
		Div(decimal.NewFromInt(int64(position.volume)))
	position.cost = position.cost.Sub(position.cost.Mul(sold))
	position.volume -= intent.Volume

	if position.volume == 0 {
		delete(b.positions, intent.Code)
	}

	b.mu.Unlock()

	b.notifyFill(intent, execPrice)
}

func (b *PaperBroker) notifyFill(intent types.OrderIntent, execPrice decimal.Decimal) {
	price, _ := execPrice.Float64()

	if b.log != nil {
		b.log.Info("Order filled",
			zap.String("code", intent.Code),
			zap.String("side", string(intent.Side)),
			zap.Int("volume", intent.Volume),
			zap.Float64("price", price),
			zap.String("remark", intent.Remark),
		)
	}

	b.mu.Lock()
	handler := b.onFill
	b.mu.Unlock()

	if handler != nil {
		handler(types.Fill{
			Code:   intent.Code,
			Side:   intent.Side,
			Volume: intent.Volume,
			Price:  price,
			Remark: intent.Remark,
		})
	}
}

func (b *PaperBroker) reject(intent types.OrderIntent, err error) {
	if b.log != nil {
		b.log.Warn("Order rejected",
			zap.String("code", intent.Code),
			zap.String("side", string(intent.Side)),
			zap.Error(err),
		)
	}

	b.mu.Lock()
	handler := b.onOrderError
	b.mu.Unlock()

	if handler != nil {
		handler(intent, err)
	}
}

// Positions implements Broker.
func (b *PaperBroker) Positions() ([]types.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	positions := make([]types.Position, 0, len(b.positions))

	for code, p := range b.positions {
		openPrice := decimal.Zero
		if p.volume > 0 {
			openPrice = p.cost.Div(decimal.NewFromInt(int64(p.volume)))
		}

		price, _ := openPrice.Float64()
		positions = append(positions, types.Position{
			Code:      code,
			OpenPrice: price,
			Volume:    p.volume,
		})
	}

	return positions, nil
}

// Asset implements Broker.
func (b *PaperBroker) Asset() (types.Asset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cash, _ := b.cash.Float64()

	return types.Asset{Cash: cash}, nil
}

// OnFill implements Broker.
func (b *PaperBroker) OnFill(handler FillHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onFill = handler
}

// OnOrderError implements Broker.
func (b *PaperBroker) OnOrderError(handler OrderErrorHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onOrderError = handler
}

// Verify PaperBroker implements the Broker interface.
var _ Broker = (*PaperBroker)(nil)
