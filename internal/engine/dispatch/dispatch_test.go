package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/silverfox-lab/silverfox-trading/internal/broker"
	"github.com/silverfox-lab/silverfox-trading/internal/config"
	"github.com/silverfox-lab/silverfox-trading/internal/logger"
	"github.com/silverfox-lab/silverfox-trading/internal/store"
	"github.com/silverfox-lab/silverfox-trading/internal/types"
	"github.com/silverfox-lab/silverfox-trading/pkg/errors"
)

type fakeBroker struct {
	submitted []types.OrderIntent
	failCodes map[string]bool
}

func (b *fakeBroker) SubmitOrder(ctx context.Context, intent types.OrderIntent) error {
	if b.failCodes[intent.Code] {
		return errors.New(errors.ErrCodeOrderRejected, "rejected")
	}
	b.submitted = append(b.submitted, intent)
	return nil
}

func (b *fakeBroker) Positions() ([]types.Position, error) { return nil, nil }
func (b *fakeBroker) Asset() (types.Asset, error)          { return types.Asset{}, nil }
func (b *fakeBroker) OnFill(handler broker.FillHandler)    {}
func (b *fakeBroker) OnOrderError(handler broker.OrderErrorHandler) {
}

var _ broker.Broker = (*fakeBroker)(nil)

type DispatchTestSuite struct {
	suite.Suite
	cfg        config.Config
	store      *store.Store
	broker     *fakeBroker
	dispatcher *Dispatcher
}

func TestDispatchSuite(t *testing.T) {
	suite.Run(t, new(DispatchTestSuite))
}

func (suite *DispatchTestSuite) SetupTest() {
	suite.cfg = config.DefaultConfig()

	st, err := store.NewStore(suite.T().TempDir())
	suite.Require().NoError(err)
	suite.store = st

	suite.broker = &fakeBroker{failCodes: map[string]bool{}}
	suite.dispatcher = NewDispatcher(suite.cfg, suite.store, suite.broker, logger.NewNopLogger())
}

func (suite *DispatchTestSuite) dispatch(candidates []Candidate, positions map[string]types.Position, cash float64) []types.OrderIntent {
	intents, err := suite.dispatcher.Dispatch(
		context.Background(), "2024-05-21", candidates, positions, types.Asset{Cash: cash})
	suite.Require().NoError(err)
	return intents
}

func (suite *DispatchTestSuite) TestQuotaIsMinOfAllLimits() {
	candidates := []Candidate{
		{Code: "000004.SZ", Price: 13.0},
		{Code: "000001.SZ", Price: 10.0},
		{Code: "000002.SZ", Price: 11.0},
		{Code: "000003.SZ", Price: 12.0},
	}
	positions := map[string]types.Position{
		"600000.SH": {}, "600001.SH": {}, "600002.SH": {},
	}

	// Free slots 7, affordable slots floor(25000/10000) = 2, four
	// candidates, per-cycle cap 5: quota 2, cheapest first.
	intents := suite.dispatch(candidates, positions, 25000)
	suite.Require().Len(intents, 2)
	suite.Equal("000001.SZ", intents[0].Code)
	suite.Equal("000002.SZ", intents[1].Code)
}

func (suite *DispatchTestSuite) TestVolumeRoundsDownToLots() {
	intents := suite.dispatch([]Candidate{{Code: "000001.SZ", Price: 9.18}}, nil, 100000)
	suite.Require().Len(intents, 1)

	// 10000 / 9.18 = 1089.3 shares, 10 whole lots.
	suite.Equal(1000, intents[0].Volume)
	suite.Equal(types.SideBuy, intents[0].Side)
	suite.InDelta(1.005, intents[0].PriceMultiplier, 1e-9)
	suite.Equal(types.RemarkSelectionBuy, intents[0].Remark)
}

func (suite *DispatchTestSuite) TestZeroLotCandidateSkipped() {
	// 10000/15000 rounds to zero lots: skipped, and the skip does not
	// abort the rest of the cycle.
	candidates := []Candidate{
		{Code: "000001.SZ", Price: 15000},
		{Code: "000002.SZ", Price: 10.0},
	}
	intents := suite.dispatch(candidates, nil, 100000)
	suite.Require().Len(intents, 1)
	suite.Equal("000002.SZ", intents[0].Code)
}

func (suite *DispatchTestSuite) TestHeldSkipDoesNotConsumeQuota() {
	suite.cfg.Buy.PerCycleBuyCap = 1
	suite.dispatcher = NewDispatcher(suite.cfg, suite.store, suite.broker, logger.NewNopLogger())

	// The held instrument sorts first; with a quota of one the skip must
	// leave the quota for the next candidate.
	positions := map[string]types.Position{"000001.SZ": {Code: "000001.SZ"}}
	candidates := []Candidate{
		{Code: "000001.SZ", Price: 10.0},
		{Code: "000002.SZ", Price: 11.0},
	}

	intents := suite.dispatch(candidates, positions, 100000)
	suite.Require().Len(intents, 1)
	suite.Equal("000002.SZ", intents[0].Code)
}

func (suite *DispatchTestSuite) TestAtMostOneBuyPerInstrumentPerDay() {
	candidates := []Candidate{{Code: "000001.SZ", Price: 10.0}}

	intents := suite.dispatch(candidates, nil, 100000)
	suite.Len(intents, 1)

	intents = suite.dispatch(candidates, nil, 100000)
	suite.Empty(intents)
}

func (suite *DispatchTestSuite) TestSelectionRecordSurvivesRestart() {
	candidates := []Candidate{{Code: "000001.SZ", Price: 10.0}}
	suite.dispatch(candidates, nil, 100000)

	restarted := NewDispatcher(suite.cfg, suite.store, suite.broker, logger.NewNopLogger())
	intents, err := restarted.Dispatch(
		context.Background(), "2024-05-21", candidates, nil, types.Asset{Cash: 100000})
	suite.Require().NoError(err)
	suite.Empty(intents)
}

func (suite *DispatchTestSuite) TestQuotaExhaustedCandidatesStillRecorded() {
	suite.cfg.Buy.PerCycleBuyCap = 1
	suite.dispatcher = NewDispatcher(suite.cfg, suite.store, suite.broker, logger.NewNopLogger())

	candidates := []Candidate{
		{Code: "000001.SZ", Price: 10.0},
		{Code: "000002.SZ", Price: 11.0},
	}
	intents := suite.dispatch(candidates, nil, 100000)
	suite.Require().Len(intents, 1)

	// The unbought candidate was still recorded, so it is not retried
	// later in the day.
	intents = suite.dispatch([]Candidate{{Code: "000002.SZ", Price: 11.0}}, nil, 100000)
	suite.Empty(intents)
}

func (suite *DispatchTestSuite) TestSubmissionFailureDoesNotAbortCycle() {
	suite.broker.failCodes["000001.SZ"] = true

	candidates := []Candidate{
		{Code: "000001.SZ", Price: 10.0},
		{Code: "000002.SZ", Price: 11.0},
	}
	intents := suite.dispatch(candidates, nil, 100000)
	suite.Require().Len(intents, 1)
	suite.Equal("000002.SZ", intents[0].Code)
}

func (suite *DispatchTestSuite) TestNoCashNoIntents() {
	intents := suite.dispatch([]Candidate{{Code: "000001.SZ", Price: 10.0}}, nil, 5000)
	suite.Empty(intents)
}
