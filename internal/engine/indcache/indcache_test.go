package indcache

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/silverfox-lab/silverfox-trading/internal/config"
	"github.com/silverfox-lab/silverfox-trading/internal/logger"
	"github.com/silverfox-lab/silverfox-trading/internal/market"
	"github.com/silverfox-lab/silverfox-trading/internal/store"
	"github.com/silverfox-lab/silverfox-trading/internal/types"
)

// fakeHistory serves canned bars and records fetch calls.
type fakeHistory struct {
	universe  []string
	bars      map[string][]types.Bar
	failCodes map[string]bool // fail any chunk containing one of these
	fetches   int
}

func (f *fakeHistory) FetchBars(codes []string, start, end string) (map[string][]types.Bar, error) {
	f.fetches++

	for _, code := range codes {
		if f.failCodes[code] {
			return nil, fmt.Errorf("simulated fetch failure")
		}
	}

	result := map[string][]types.Bar{}
	for _, code := range codes {
		if bars, ok := f.bars[code]; ok {
			result[code] = bars
		}
	}

	return result, nil
}

func (f *fakeHistory) Universe() ([]string, error) {
	return f.universe, nil
}

func (f *fakeHistory) RecentListings(since string) ([]string, error) {
	return nil, nil
}

var _ market.HistoryProvider = (*fakeHistory)(nil)

type IndCacheTestSuite struct {
	suite.Suite
	cfg     config.Config
	history *fakeHistory
	store   *store.Store
	asOf    time.Time
}

func TestIndCacheSuite(t *testing.T) {
	suite.Run(t, new(IndCacheTestSuite))
}

func (suite *IndCacheTestSuite) SetupTest() {
	suite.cfg = config.DefaultConfig()
	suite.cfg.Indicator.HistoryDays = 9
	suite.cfg.Indicator.TrailDays = 3
	suite.cfg.Indicator.BaseCloseDays = 7
	suite.cfg.Indicator.FetchChunkSize = 2
	suite.cfg.Buy.WindowShort = 3
	suite.cfg.Buy.WindowMid = 5
	suite.cfg.Buy.WindowLong = 9
	suite.cfg.CodePrefixes = []string{"000", "600"}

	suite.history = &fakeHistory{
		universe:  nil,
		bars:      map[string][]types.Bar{},
		failCodes: map[string]bool{},
	}

	st, err := store.NewStore(suite.T().TempDir())
	suite.Require().NoError(err)
	suite.store = st

	// A Tuesday.
	suite.asOf = time.Date(2024, 5, 21, 9, 15, 0, 0, time.Local)
}

func (suite *IndCacheTestSuite) newCache() *Cache {
	return NewCache(suite.cfg, suite.history, market.WeekdayCalendar{}, suite.store, logger.NewNopLogger())
}

// flatBars builds a complete window of n identical bars.
func flatBars(n int, close float64) []types.Bar {
	bars := make([]types.Bar, n)
	for i := range bars {
		bars[i] = types.Bar{
			Date:  fmt.Sprintf("2024-05-%02d", i+1),
			Close: close,
			High:  close + 0.1,
			Low:   close - 0.1,
		}
	}

	return bars
}

func (suite *IndCacheTestSuite) TestRefreshBuildsSnapshots() {
	suite.history.universe = []string{"000001.SZ", "600000.SH"}
	suite.history.bars["000001.SZ"] = flatBars(9, 10.0)
	suite.history.bars["600000.SH"] = flatBars(9, 20.0)

	cache := suite.newCache()

	count, err := cache.Refresh(suite.asOf)
	suite.Require().NoError(err)
	suite.Equal(2, count)
	suite.Equal(2, cache.Size())

	snapshot := cache.Get("000001.SZ")
	suite.Require().True(snapshot.IsSome())

	s := snapshot.Unwrap()
	suite.InDelta(10.0, s.MeanShort, 1e-9)
	suite.InDelta(10.0, s.MeanLong, 1e-9)
	suite.InDelta(10.0, s.BaseClose, 1e-9)
	suite.Len(s.Closes, 3)
	suite.Len(s.Highs, 3)
	suite.Len(s.Lows, 3)
}

func (suite *IndCacheTestSuite) TestShortWindowExcluded() {
	suite.history.universe = []string{"000001.SZ"}
	suite.history.bars["000001.SZ"] = flatBars(8, 10.0)

	cache := suite.newCache()

	count, err := cache.Refresh(suite.asOf)
	suite.Require().NoError(err)
	suite.Equal(0, count)
	suite.True(cache.Get("000001.SZ").IsNone())
}

func (suite *IndCacheTestSuite) TestMissingValuesExcluded() {
	bars := flatBars(9, 10.0)
	bars[4].Close = math.NaN()

	suite.history.universe = []string{"000001.SZ"}
	suite.history.bars["000001.SZ"] = bars

	cache := suite.newCache()

	count, err := cache.Refresh(suite.asOf)
	suite.Require().NoError(err)
	suite.Equal(0, count)
}

func (suite *IndCacheTestSuite) TestChunkFailuresAreIndependent() {
	// Chunk size 2: {000001, 000002} fails, {600000} succeeds.
	suite.history.universe = []string{"000001.SZ", "000002.SZ", "600000.SH"}
	suite.history.bars["000001.SZ"] = flatBars(9, 10.0)
	suite.history.bars["000002.SZ"] = flatBars(9, 11.0)
	suite.history.bars["600000.SH"] = flatBars(9, 20.0)
	suite.history.failCodes["000001.SZ"] = true

	cache := suite.newCache()

	count, err := cache.Refresh(suite.asOf)
	suite.Require().NoError(err)
	suite.Equal(1, count)
	suite.True(cache.Get("600000.SH").IsSome())
	suite.True(cache.Get("000001.SZ").IsNone())
}

func (suite *IndCacheTestSuite) TestUniversePrefixFilter() {
	suite.history.universe = []string{"000001.SZ", "300750.SZ"}
	suite.history.bars["000001.SZ"] = flatBars(9, 10.0)
	suite.history.bars["300750.SZ"] = flatBars(9, 10.0)

	cache := suite.newCache()

	count, err := cache.Refresh(suite.asOf)
	suite.Require().NoError(err)
	suite.Equal(1, count)
	suite.True(cache.Get("300750.SZ").IsNone())
}

func (suite *IndCacheTestSuite) TestRefreshReplacesPreviousDay() {
	suite.history.universe = []string{"000001.SZ", "600000.SH"}
	suite.history.bars["000001.SZ"] = flatBars(9, 10.0)
	suite.history.bars["600000.SH"] = flatBars(9, 20.0)

	cache := suite.newCache()

	_, err := cache.Refresh(suite.asOf)
	suite.Require().NoError(err)

	// Next day 000001 drops out of the universe: the new cache must not
	// carry it forward.
	suite.history.universe = []string{"600000.SH"}

	nextDay := suite.asOf.AddDate(0, 0, 1)
	count, err := cache.Refresh(nextDay)
	suite.Require().NoError(err)
	suite.Equal(1, count)
	suite.True(cache.Get("000001.SZ").IsNone())
}

func (suite *IndCacheTestSuite) TestSameDayRestartReloadsFromDisk() {
	suite.history.universe = []string{"000001.SZ"}
	suite.history.bars["000001.SZ"] = flatBars(9, 10.0)

	cache := suite.newCache()

	_, err := cache.Refresh(suite.asOf)
	suite.Require().NoError(err)

	fetchesBefore := suite.history.fetches

	// A fresh cache over the same store must reload without refetching.
	restarted := suite.newCache()

	count, err := restarted.Refresh(suite.asOf)
	suite.Require().NoError(err)
	suite.Equal(1, count)
	suite.Equal(fetchesBefore, suite.history.fetches)
	suite.True(restarted.Get("000001.SZ").IsSome())
}
