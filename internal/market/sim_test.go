package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/silverfox-lab/silverfox-trading/internal/types"
)

type SimTestSuite struct {
	suite.Suite
	calendar WeekdayCalendar
}

func TestSimSuite(t *testing.T) {
	suite.Run(t, new(SimTestSuite))
}

func (suite *SimTestSuite) TestWeekdayCalendar() {
	open, err := suite.calendar.IsTradingDay("2024-05-21")
	suite.Require().NoError(err)
	suite.True(open)

	open, err = suite.calendar.IsTradingDay("2024-05-25")
	suite.Require().NoError(err)
	suite.False(open)

	_, err = suite.calendar.IsTradingDay("21/05/2024")
	suite.Error(err)
}

func (suite *SimTestSuite) TestPrevTradingDateSkipsWeekends() {
	// Monday minus one trading day is Friday.
	monday := time.Date(2024, 5, 20, 10, 0, 0, 0, time.Local)

	date, err := suite.calendar.PrevTradingDate(monday, 1)
	suite.Require().NoError(err)
	suite.Equal("2024-05-17", date)

	date, err = suite.calendar.PrevTradingDate(monday, 6)
	suite.Require().NoError(err)
	suite.Equal("2024-05-10", date)

	_, err = suite.calendar.PrevTradingDate(monday, 0)
	suite.Error(err)
}

// The bar window between PrevTradingDate(n) and PrevTradingDate(1) must span
// exactly n sessions, since the indicator cache requires exact-length
// windows.
func (suite *SimTestSuite) TestHistoryWindowLengthMatchesCalendar() {
	asOf := time.Date(2024, 5, 21, 9, 15, 0, 0, time.Local)

	start, err := suite.calendar.PrevTradingDate(asOf, 59)
	suite.Require().NoError(err)
	end, err := suite.calendar.PrevTradingDate(asOf, 1)
	suite.Require().NoError(err)

	history := NewSimHistory([]string{"000001.SZ"}, 10.0)
	bars, err := history.FetchBars([]string{"000001.SZ"}, start, end)
	suite.Require().NoError(err)
	suite.Len(bars["000001.SZ"], 59)
}

func (suite *SimTestSuite) TestHistoryIsDeterministicPerCode() {
	history := NewSimHistory([]string{"000001.SZ", "600000.SH"}, 10.0)

	first, err := history.FetchBars([]string{"000001.SZ"}, "2024-05-06", "2024-05-10")
	suite.Require().NoError(err)
	second, err := history.FetchBars([]string{"000001.SZ"}, "2024-05-06", "2024-05-10")
	suite.Require().NoError(err)

	suite.Equal(first["000001.SZ"], second["000001.SZ"])
	suite.Len(first["000001.SZ"], 5)
}

func (suite *SimTestSuite) TestFeedPushDelivery() {
	feed := NewSimFeed(SimFeedConfig{Codes: []string{"000001.SZ"}})

	var got map[string]types.Quote
	suite.Require().NoError(feed.Subscribe(func(quotes map[string]types.Quote) { got = quotes }))

	feed.Push(map[string]types.Quote{"000001.SZ": {Code: "000001.SZ", LastPrice: 10.0}})
	suite.Require().NotNil(got)
	suite.InDelta(10.0, got["000001.SZ"].LastPrice, 1e-9)

	feed.Unsubscribe()
	got = nil
	feed.Push(map[string]types.Quote{"000001.SZ": {Code: "000001.SZ", LastPrice: 11.0}})
	suite.Nil(got)
}
