// Package broker defines the trading collaborator the decision engine
// submits order intents to, plus an in-memory paper implementation.
package broker

import (
	"context"

	"github.com/silverfox-lab/silverfox-trading/internal/types"
)

// FillHandler receives trade-fill notifications. Fills are the only way
// position state changes become visible to the engine's persisted bookkeeping.
type FillHandler func(fill types.Fill)

// OrderErrorHandler receives asynchronous order rejections.
type OrderErrorHandler func(intent types.OrderIntent, err error)

// Broker is the outbound trading collaborator. Order submission is
// fire-and-forget: SubmitOrder returns once the intent is accepted for
// processing, and outcomes arrive through the registered handlers.
type Broker interface {
	// SubmitOrder submits a single order intent.
	SubmitOrder(ctx context.Context, intent types.OrderIntent) error
	// Positions returns the currently open positions.
	Positions() ([]types.Position, error)
	// Asset returns the current account snapshot.
	Asset() (types.Asset, error)
	// OnFill registers the fill notification handler.
	OnFill(handler FillHandler)
	// OnOrderError registers the order rejection handler.
	OnOrderError(handler OrderErrorHandler)
}
