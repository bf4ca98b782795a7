// Package config defines the immutable strategy configuration. Every tunable
// of the decision engine is an explicit field; the structure is built once at
// startup, validated, and never mutated afterwards.
package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/silverfox-lab/silverfox-trading/pkg/errors"
)

// BuyConfig holds the entry-side tunables.
type BuyConfig struct {
	// SlotCount is the maximum number of concurrently held positions.
	SlotCount int `yaml:"slot_count" validate:"required,gt=0"`
	// SlotCapacity is the cash budget for one position slot.
	SlotCapacity float64 `yaml:"slot_capacity" validate:"required,gt=0"`
	// PerCycleBuyCap bounds buy intents submitted in one decision cycle.
	PerCycleBuyCap int `yaml:"per_cycle_buy_cap" validate:"required,gt=0"`
	// LotSize is the exchange board lot; volumes round down to it.
	LotSize int `yaml:"lot_size" validate:"required,gt=0"`
	// OrderPremium pads the limit price so intents fill in one shot.
	OrderPremium float64 `yaml:"order_premium" validate:"gte=0,lt=1"`

	// Breakout rule family.
	GapRatio    float64 `yaml:"gap_ratio" validate:"gt=0,lt=1"`
	WindowShort int     `yaml:"window_short" validate:"required,gt=1"`
	WindowMid   int     `yaml:"window_mid" validate:"required,gt=1"`
	WindowLong  int     `yaml:"window_long" validate:"required,gt=1"`

	// Mean-reversion rule family.
	LowOpen      float64 `yaml:"low_open" validate:"gt=0,lt=1"`
	TurnRedLower float64 `yaml:"turn_red_lower" validate:"gt=1"`
	TurnRedUpper float64 `yaml:"turn_red_upper" validate:"gt=1"`
	BaseLower    float64 `yaml:"base_lower" validate:"gt=0"`
	BaseUpper    float64 `yaml:"base_upper" validate:"gt=0"`
}

// SellConfig holds the exit-side tunables.
type SellConfig struct {
	// StopLossRatio and TakeProfitRatio are the fixed floor/ceiling
	// applied to the cost price when the trailing band is unavailable.
	StopLossRatio   float64 `yaml:"stop_loss_ratio" validate:"gt=0,lt=1"`
	TakeProfitRatio float64 `yaml:"take_profit_ratio" validate:"gt=1"`

	// Switch-out: free a slot held past SwitchHoldDays once the local
	// time reaches SwitchBegin and the position sits in the
	// not-worth-holding band below SwitchIncome.
	SwitchHoldDays int     `yaml:"switch_hold_days" validate:"gte=0"`
	SwitchBegin    string  `yaml:"switch_begin" validate:"required,datetime=15:04"`
	SwitchIncome   float64 `yaml:"switch_income" validate:"gt=1"`

	// Trailing band: SMA(smaDays) +/- ATR(atrDays) * multiplier.
	SMADays  int     `yaml:"sma_days" validate:"required,gt=0"`
	ATRDays  int     `yaml:"atr_days" validate:"required,gt=0"`
	ATRUpper float64 `yaml:"atr_upper" validate:"gt=0"`
	ATRLower float64 `yaml:"atr_lower" validate:"gt=0"`
}

// IndicatorConfig holds the daily indicator-cache refresh tunables.
type IndicatorConfig struct {
	// HistoryDays is the exact window length of trailing daily bars an
	// instrument must have to enter the cache.
	HistoryDays int `yaml:"history_days" validate:"required,gt=1"`
	// TrailDays is how many trailing sessions of close/high/low are kept
	// for the intraday band recomputation.
	TrailDays int `yaml:"trail_days" validate:"required,gt=0"`
	// BaseCloseDays is how many sessions back the reversion base close is
	// sampled.
	BaseCloseDays int `yaml:"base_close_days" validate:"required,gt=0"`
	// FetchChunkSize bounds the number of instruments per history request.
	FetchChunkSize int `yaml:"fetch_chunk_size" validate:"required,gt=0"`
	// BlockNewDays excludes instruments listed within this many trading
	// days (the new-listing blacklist).
	BlockNewDays int `yaml:"block_new_days" validate:"gte=0"`
}

// ScheduleConfig holds the local wall-clock firing points of the daily tasks
// and the trading windows of the decision cycle.
type ScheduleConfig struct {
	HeldIncreaseAt     string `yaml:"held_increase_at" validate:"required,datetime=15:04"`
	BlacklistRefreshAt string `yaml:"blacklist_refresh_at" validate:"required,datetime=15:04"`
	IndicatorRefreshAt string `yaml:"indicator_refresh_at" validate:"required,datetime=15:04"`
	SubscribeAt        string `yaml:"subscribe_at" validate:"required,datetime=15:04"`
	UnsubscribeAt      string `yaml:"unsubscribe_at" validate:"required,datetime=15:04"`

	MorningOpen    string `yaml:"morning_open" validate:"required,datetime=15:04"`
	MorningClose   string `yaml:"morning_close" validate:"required,datetime=15:04"`
	AfternoonOpen  string `yaml:"afternoon_open" validate:"required,datetime=15:04"`
	AfternoonClose string `yaml:"afternoon_close" validate:"required,datetime=15:04"`
}

// Config is the root strategy configuration.
type Config struct {
	StrategyName string `yaml:"strategy_name" validate:"required"`
	// RuleFamily selects the entry rule the engine trades: "breakout" or
	// "reversion".
	RuleFamily string `yaml:"rule_family" validate:"required,oneof=breakout reversion"`
	// DataDir is where the persisted state files live.
	DataDir string `yaml:"data_dir" validate:"required"`
	// CodePrefixes is the instrument universe filter; empty means all.
	CodePrefixes []string `yaml:"code_prefixes"`

	Buy       BuyConfig       `yaml:"buy" validate:"required"`
	Sell      SellConfig      `yaml:"sell" validate:"required"`
	Indicator IndicatorConfig `yaml:"indicator" validate:"required"`
	Schedule  ScheduleConfig  `yaml:"schedule" validate:"required"`
}

// DefaultConfig returns the configuration with every tunable at the value the
// strategy trades with in production.
func DefaultConfig() Config {
	return Config{
		StrategyName: "silverfox",
		RuleFamily:   "breakout",
		DataDir:      "_cache/silverfox",
		CodePrefixes: []string{
			"000", "001", "002", "003",
			"600", "601", "603", "605",
		},
		Buy: BuyConfig{
			SlotCount:      10,
			SlotCapacity:   10000,
			PerCycleBuyCap: 5,
			LotSize:        100,
			OrderPremium:   0.005,
			GapRatio:       0.0618,
			WindowShort:    20,
			WindowMid:      40,
			WindowLong:     60,
			LowOpen:        0.98,
			TurnRedLower:   1.02,
			TurnRedUpper:   1.025,
			BaseLower:      1.0,
			BaseUpper:      1.3,
		},
		Sell: SellConfig{
			StopLossRatio:   0.94,
			TakeProfitRatio: 1.168,
			SwitchHoldDays:  0,
			SwitchBegin:     "09:31",
			SwitchIncome:    1.05,
			SMADays:         3,
			ATRDays:         3,
			ATRUpper:        1.15,
			ATRLower:        0.85,
		},
		Indicator: IndicatorConfig{
			HistoryDays:    59,
			TrailDays:      3,
			BaseCloseDays:  7,
			FetchChunkSize: 500,
			BlockNewDays:   60,
		},
		Schedule: ScheduleConfig{
			HeldIncreaseAt:     "09:10",
			BlacklistRefreshAt: "09:11",
			IndicatorRefreshAt: "09:15",
			SubscribeAt:        "09:25",
			UnsubscribeAt:      "15:00",
			MorningOpen:        "09:30",
			MorningClose:       "11:30",
			AfternoonOpen:      "13:00",
			AfternoonClose:     "14:56",
		},
	}
}

// LoadConfig reads a YAML file over the defaults and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to read config file", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config file", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate validates the configuration, including the cross-field ordering of
// the exit ratios.
func (c *Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	if !(c.Sell.StopLossRatio < 1 && 1 < c.Sell.SwitchIncome && c.Sell.SwitchIncome < c.Sell.TakeProfitRatio) {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"exit ratios must satisfy stop < 1 < switch < take, got stop=%v switch=%v take=%v",
			c.Sell.StopLossRatio, c.Sell.SwitchIncome, c.Sell.TakeProfitRatio)
	}

	if !(c.Buy.WindowShort < c.Buy.WindowMid && c.Buy.WindowMid < c.Buy.WindowLong) {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"breakout windows must be strictly increasing, got %d/%d/%d",
			c.Buy.WindowShort, c.Buy.WindowMid, c.Buy.WindowLong)
	}

	if c.Indicator.HistoryDays < c.Buy.WindowLong-1 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"history_days %d too short for the long breakout window %d",
			c.Indicator.HistoryDays, c.Buy.WindowLong)
	}

	// The indicator cache slices the trailing bars from the end of the
	// history window, so both lookbacks must fit inside it.
	if c.Indicator.BaseCloseDays > c.Indicator.HistoryDays {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"base_close_days %d exceeds history_days %d",
			c.Indicator.BaseCloseDays, c.Indicator.HistoryDays)
	}

	if c.Indicator.TrailDays > c.Indicator.HistoryDays {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"trail_days %d exceeds history_days %d",
			c.Indicator.TrailDays, c.Indicator.HistoryDays)
	}

	if c.Buy.TurnRedLower >= c.Buy.TurnRedUpper {
		return errors.New(errors.ErrCodeInvalidConfiguration, "turn_red_lower must be below turn_red_upper")
	}

	if c.Buy.BaseLower >= c.Buy.BaseUpper {
		return errors.New(errors.ErrCodeInvalidConfiguration, "base_lower must be below base_upper")
	}

	return nil
}
