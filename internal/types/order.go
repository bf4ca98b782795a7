package types

import (
	"github.com/go-playground/validator/v10"

	"github.com/silverfox-lab/silverfox-trading/pkg/errors"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order intent remarks used by the decision engine. They travel with the
// intent to the broker and show up in fill notifications and logs.
const (
	RemarkSelectionBuy   string = "selection_buy"
	RemarkSwitchSell     string = "switch_sell"
	RemarkFixedStopLoss  string = "fixed_stop_loss"
	RemarkFixedTakeProf  string = "fixed_take_profit"
	RemarkBandStopLoss   string = "band_stop_loss"
	RemarkBandTakeProfit string = "band_take_profit"
)

// OrderIntent is a request toward the broker collaborator. Submission is
// fire-and-forget: position and cash effects are observed later as fills.
type OrderIntent struct {
	ID     string  `json:"id" yaml:"id" validate:"required,uuid"`
	Side   Side    `json:"side" yaml:"side" validate:"required,oneof=BUY SELL"`
	Code   string  `json:"code" yaml:"code" validate:"required"`
	Price  float64 `json:"price" yaml:"price" validate:"required,gt=0"`
	Volume int     `json:"volume" yaml:"volume" validate:"required,gt=0"`
	Remark string  `json:"remark" yaml:"remark" validate:"required"`
	// PriceMultiplier is the premium applied to the limit price so the
	// order fills in one shot (>1 for buys, <1 for sells).
	PriceMultiplier float64 `json:"price_multiplier" yaml:"price_multiplier" validate:"required,gt=0"`
	Strategy        string  `json:"strategy" yaml:"strategy" validate:"required"`
}

// Validate validates the OrderIntent struct.
func (o *OrderIntent) Validate() error {
	validate := validator.New()

	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrderIntent, "invalid order intent", err)
	}

	return nil
}

// Fill is a trade-fill notification from the broker collaborator.
type Fill struct {
	Code   string  `json:"code" yaml:"code"`
	Side   Side    `json:"side" yaml:"side"`
	Volume int     `json:"volume" yaml:"volume"`
	Price  float64 `json:"price" yaml:"price"`
	Remark string  `json:"remark" yaml:"remark"`
}

// Position is a broker-owned fact about an open holding. It is read-only to
// the decision engine; mutations happen only via submitted orders observed
// later as fills.
type Position struct {
	Code      string  `json:"code" yaml:"code"`
	OpenPrice float64 `json:"open_price" yaml:"open_price"`
	Volume    int     `json:"volume" yaml:"volume"`
}

// Asset is the account snapshot reported by the broker collaborator.
type Asset struct {
	Cash float64 `json:"cash" yaml:"cash"`
}
