// Package engine wires the decision pipeline together: quote batches admitted
// by the aggregator flow through the risk scan and the selection rules, and
// surviving candidates reach the dispatcher. The engine also owns the daily
// bootstrap tasks and the fill bookkeeping that keeps HeldDays and MaxPrice in
// step with the broker.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/silverfox-lab/silverfox-trading/internal/broker"
	"github.com/silverfox-lab/silverfox-trading/internal/config"
	"github.com/silverfox-lab/silverfox-trading/internal/engine/aggregator"
	"github.com/silverfox-lab/silverfox-trading/internal/engine/dispatch"
	"github.com/silverfox-lab/silverfox-trading/internal/engine/guard"
	"github.com/silverfox-lab/silverfox-trading/internal/engine/indcache"
	"github.com/silverfox-lab/silverfox-trading/internal/engine/risk"
	"github.com/silverfox-lab/silverfox-trading/internal/engine/selection"
	"github.com/silverfox-lab/silverfox-trading/internal/logger"
	"github.com/silverfox-lab/silverfox-trading/internal/market"
	"github.com/silverfox-lab/silverfox-trading/internal/notify"
	"github.com/silverfox-lab/silverfox-trading/internal/scheduler"
	"github.com/silverfox-lab/silverfox-trading/internal/store"
	"github.com/silverfox-lab/silverfox-trading/internal/types"
	"github.com/silverfox-lab/silverfox-trading/pkg/errors"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"

	taskHeldIncrease     = "held_increase"
	taskBlacklistRefresh = "blacklist_refresh"
	taskIndicatorRefresh = "indicator_refresh"
)

// Engine runs one strategy against one account.
type Engine struct {
	cfg config.Config
	log *logger.Logger

	store    *store.Store
	guard    *guard.DailyOnce
	cache    *indcache.Cache
	screen   *selection.Screen
	risk     *risk.Manager
	dispatch *dispatch.Dispatcher
	agg      *aggregator.Aggregator

	feed     market.QuoteFeed
	history  market.HistoryProvider
	calendar market.Calendar
	broker   broker.Broker
	notifier notify.Notifier

	ctx context.Context
}

// New assembles the engine and registers its fill handlers on the broker.
func New(
	cfg config.Config,
	st *store.Store,
	feed market.QuoteFeed,
	history market.HistoryProvider,
	calendar market.Calendar,
	br broker.Broker,
	notifier notify.Notifier,
	log *logger.Logger,
) *Engine {
	e := &Engine{
		cfg:      cfg,
		log:      log,
		store:    st,
		guard:    guard.NewDailyOnce(st, log),
		cache:    indcache.NewCache(cfg, history, calendar, st, log),
		screen:   selection.NewScreen(cfg.CodePrefixes, nil),
		risk:     risk.NewManager(cfg, log),
		feed:     feed,
		history:  history,
		calendar: calendar,
		broker:   br,
		notifier: notifier,
		ctx:      context.Background(),
	}

	e.dispatch = dispatch.NewDispatcher(cfg, st, br, log)
	e.agg = aggregator.NewAggregator(calendar, e.Cycle, log)

	br.OnFill(e.onFill)
	br.OnOrderError(e.onOrderError)

	return e
}

// Start registers the daily triggers and runs the scheduler until the context
// is cancelled. The quote feed is subscribed and released by the triggers,
// not here.
func (e *Engine) Start(ctx context.Context, sched *scheduler.Scheduler) error {
	e.ctx = ctx

	triggers := []struct {
		name    string
		at      string
		handler scheduler.Handler
	}{
		{taskHeldIncrease, e.cfg.Schedule.HeldIncreaseAt, e.heldIncreaseTask},
		{taskBlacklistRefresh, e.cfg.Schedule.BlacklistRefreshAt, e.blacklistRefreshTask},
		{taskIndicatorRefresh, e.cfg.Schedule.IndicatorRefreshAt, e.indicatorRefreshTask},
		{"feed_subscribe", e.cfg.Schedule.SubscribeAt, e.subscribeTask},
		{"feed_unsubscribe", e.cfg.Schedule.UnsubscribeAt, e.unsubscribeTask},
	}

	for _, t := range triggers {
		if err := sched.Add(t.name, t.at, t.handler); err != nil {
			return errors.Wrapf(errors.ErrCodeEngineInitFailed, err, "failed to register trigger %s", t.name)
		}
	}

	defer e.feed.Unsubscribe()

	return sched.Run(ctx)
}

// OnQuotes is the feed entry point.
func (e *Engine) OnQuotes(quotes map[string]types.Quote) {
	e.agg.OnQuotes(quotes)
}

// Cycle runs one admitted decision cycle: bootstrap catch-up, high-water
// bookkeeping, risk scan, and inside an entry window the selection rules and
// the dispatcher. Breakout entries stay open through the afternoon session;
// reversion setups decay after the open, so that family buys mornings only.
func (e *Engine) Cycle(now time.Time, batch map[string]types.Quote) error {
	date := now.Format(dateLayout)
	e.bootstrap(now, date)

	morning, afternoon := e.window(now)
	if !morning && !afternoon {
		return nil
	}

	positions, err := e.broker.Positions()
	if err != nil {
		return errors.Wrap(errors.ErrCodePositionQuery, "position query failed", err)
	}

	held := make(map[string]types.Position, len(positions))
	for _, pos := range positions {
		held[pos.Code] = pos
	}

	heldDays, err := e.store.HeldDays()
	if err != nil {
		return err
	}

	e.trackHighWater(held, batch)
	e.scanPositions(now, positions, batch, heldDays)

	if !e.entryWindow(morning, afternoon) {
		return nil
	}

	return e.selectAndDispatch(date, batch, held)
}

// bootstrap retries the guarded daily tasks on every cycle until each has
// succeeded once for the date. A failed indicator refresh therefore cannot
// leave the engine trading all day on stale data.
func (e *Engine) bootstrap(now time.Time, date string) {
	tasks := []struct {
		id string
		fn func(now time.Time) error
	}{
		{taskHeldIncrease, e.increaseHeld},
		{taskBlacklistRefresh, e.refreshBlacklist},
		{taskIndicatorRefresh, e.refreshIndicators},
	}

	for _, task := range tasks {
		fn := task.fn
		if _, err := e.guard.RunOnce(task.id, date, func() error { return fn(now) }); err != nil {
			e.log.Error("daily task failed, will retry",
				zap.String("task", task.id),
				zap.Error(err),
			)
		}
	}
}

func (e *Engine) window(now time.Time) (morning, afternoon bool) {
	clock := now.Format(clockLayout)
	s := e.cfg.Schedule

	morning = s.MorningOpen <= clock && clock < s.MorningClose
	afternoon = s.AfternoonOpen <= clock && clock < s.AfternoonClose

	return morning, afternoon
}

func (e *Engine) entryWindow(morning, afternoon bool) bool {
	if morning {
		return true
	}

	return afternoon && e.cfg.RuleFamily == selection.StrategyBreakout
}

// trackHighWater pushes the live prices of held instruments into the
// persisted high-water marks.
func (e *Engine) trackHighWater(held map[string]types.Position, batch map[string]types.Quote) {
	prices := make(map[string]float64)
	for code, quote := range batch {
		if _, ok := held[code]; ok {
			prices[code] = quote.LastPrice
		}
	}
	if len(prices) == 0 {
		return
	}

	if _, err := e.store.UpdateMaxPrices(prices); err != nil {
		e.log.Error("high-water update failed", zap.Error(err))
	}
}

// scanPositions runs the exit rules for every open position with a live
// quote in the batch.
func (e *Engine) scanPositions(
	now time.Time,
	positions []types.Position,
	batch map[string]types.Quote,
	heldDays map[string]int,
) {
	for _, pos := range positions {
		quote, ok := batch[pos.Code]
		if !ok {
			continue
		}

		intent := e.risk.Evaluate(now, pos, quote, e.cache.Get(pos.Code), heldDays[pos.Code])
		if intent.IsNone() {
			continue
		}

		if err := e.broker.SubmitOrder(e.ctx, intent.Unwrap()); err != nil {
			e.log.Error("sell order submission failed",
				zap.String("code", pos.Code),
				zap.String("remark", intent.Unwrap().Remark),
				zap.Error(err),
			)
		}
	}
}

// selectAndDispatch evaluates the configured entry rule over the batch and
// hands the passing candidates to the dispatcher.
func (e *Engine) selectAndDispatch(date string, batch map[string]types.Quote, held map[string]types.Position) error {
	var candidates []dispatch.Candidate

	for code, quote := range batch {
		if !e.screen.Admits(code) {
			continue
		}

		snap := e.cache.Get(code)
		if snap.IsNone() {
			continue
		}

		if e.passes(quote, snap.Unwrap()) {
			candidates = append(candidates, dispatch.Candidate{Code: code, Price: quote.LastPrice})
		}
	}

	if len(candidates) == 0 {
		return nil
	}

	asset, err := e.broker.Asset()
	if err != nil {
		return errors.Wrap(errors.ErrCodeAssetQuery, "asset query failed", err)
	}

	intents, err := e.dispatch.Dispatch(e.ctx, date, candidates, held, asset)
	if err != nil {
		return err
	}

	for _, intent := range intents {
		e.log.Info("buy order submitted",
			zap.String("code", intent.Code),
			zap.Float64("price", intent.Price),
			zap.Int("volume", intent.Volume),
		)
	}

	return nil
}

func (e *Engine) passes(quote types.Quote, snap types.IndicatorSnapshot) bool {
	switch e.cfg.RuleFamily {
	case selection.StrategyReversion:
		passed, _ := selection.EvaluateReversion(quote, snap, e.cfg.Buy)
		return passed
	default:
		passed, _ := selection.EvaluateBreakout(quote, snap, e.cfg.Buy)
		return passed
	}
}

// onFill keeps the persisted position bookkeeping in step with the broker:
// a buy creates the day-0 held entry and seeds the high-water mark, a sell
// removes both.
func (e *Engine) onFill(fill types.Fill) {
	switch fill.Side {
	case types.SideBuy:
		if err := e.store.NewHeld([]string{fill.Code}); err != nil {
			e.log.Error("held-days create failed", zap.String("code", fill.Code), zap.Error(err))
		}
		if _, err := e.store.UpdateMaxPrices(map[string]float64{fill.Code: fill.Price}); err != nil {
			e.log.Error("high-water seed failed", zap.String("code", fill.Code), zap.Error(err))
		}
	case types.SideSell:
		if err := e.store.DelHeld([]string{fill.Code}); err != nil {
			e.log.Error("held-days delete failed", zap.String("code", fill.Code), zap.Error(err))
		}
	}

	e.notifier.Notify(fmt.Sprintf("%s %s %d @ %.3f (%s)",
		fill.Side, fill.Code, fill.Volume, fill.Price, fill.Remark), fill.Side)
}

func (e *Engine) onOrderError(intent types.OrderIntent, err error) {
	e.log.Error("order rejected",
		zap.String("code", intent.Code),
		zap.String("side", string(intent.Side)),
		zap.String("remark", intent.Remark),
		zap.Error(err),
	)
}

// Daily task handlers. The first three are persistently guarded so a restart
// cannot repeat them; feed subscription is per-process and relies on the
// scheduler's own once-per-date firing.

func (e *Engine) heldIncreaseTask(ctx context.Context, now time.Time) error {
	_, err := e.guard.RunOnce(taskHeldIncrease, now.Format(dateLayout), func() error {
		return e.increaseHeld(now)
	})
	return err
}

func (e *Engine) blacklistRefreshTask(ctx context.Context, now time.Time) error {
	_, err := e.guard.RunOnce(taskBlacklistRefresh, now.Format(dateLayout), func() error {
		return e.refreshBlacklist(now)
	})
	return err
}

func (e *Engine) indicatorRefreshTask(ctx context.Context, now time.Time) error {
	_, err := e.guard.RunOnce(taskIndicatorRefresh, now.Format(dateLayout), func() error {
		return e.refreshIndicators(now)
	})
	return err
}

func (e *Engine) subscribeTask(ctx context.Context, now time.Time) error {
	open, err := e.calendar.IsTradingDay(now.Format(dateLayout))
	if err != nil {
		return errors.Wrap(errors.ErrCodeCalendarQuery, "calendar query failed", err)
	}
	if !open {
		return nil
	}

	if err := e.feed.Subscribe(e.agg.OnQuotes); err != nil {
		return errors.Wrap(errors.ErrCodeFeedSubscribe, "feed subscribe failed", err)
	}

	e.log.Info("quote feed subscribed")

	return nil
}

func (e *Engine) unsubscribeTask(ctx context.Context, now time.Time) error {
	e.feed.Unsubscribe()
	e.log.Info("quote feed unsubscribed")

	return nil
}

func (e *Engine) increaseHeld(now time.Time) error {
	open, err := e.calendar.IsTradingDay(now.Format(dateLayout))
	if err != nil {
		return errors.Wrap(errors.ErrCodeCalendarQuery, "calendar query failed", err)
	}
	if !open {
		return nil
	}

	count, err := e.store.IncreaseAllHeld()
	if err != nil {
		return err
	}

	e.log.Info("held days aged", zap.Int("positions", count))

	return nil
}

// refreshBlacklist excludes instruments listed within the lookback window.
func (e *Engine) refreshBlacklist(now time.Time) error {
	if e.cfg.Indicator.BlockNewDays <= 0 {
		return nil
	}

	since, err := e.calendar.PrevTradingDate(now, e.cfg.Indicator.BlockNewDays)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCalendarQuery, "lookback date query failed", err)
	}

	codes, err := e.history.RecentListings(since)
	if err != nil {
		return errors.Wrap(errors.ErrCodeListingsFailed, "recent listings query failed", err)
	}

	e.screen.Replace(codes)
	e.log.Info("blacklist refreshed", zap.Int("blocked", len(codes)))

	return nil
}

func (e *Engine) refreshIndicators(now time.Time) error {
	count, err := e.cache.Refresh(now)
	if err != nil {
		return err
	}

	e.log.Info("indicator cache refreshed", zap.Int("instruments", count))

	return nil
}
