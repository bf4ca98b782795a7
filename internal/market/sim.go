package market

import (
	"math/rand"
	"time"

	"github.com/silverfox-lab/silverfox-trading/internal/types"
	"github.com/silverfox-lab/silverfox-trading/pkg/errors"
)

const dateLayout = "2006-01-02"

// WeekdayCalendar is a Calendar that treats every weekday as an open session.
// It stands in for the exchange calendar in dry runs and tests.
type WeekdayCalendar struct{}

// IsTradingDay implements Calendar.
func (WeekdayCalendar) IsTradingDay(date string) (bool, error) {
	t, err := time.ParseInLocation(dateLayout, date, time.Local)
	if err != nil {
		return false, errors.Wrapf(errors.ErrCodeCalendarQuery, err, "invalid date %q", date)
	}

	weekday := t.Weekday()

	return weekday != time.Saturday && weekday != time.Sunday, nil
}

// PrevTradingDate implements Calendar.
func (WeekdayCalendar) PrevTradingDate(from time.Time, n int) (string, error) {
	if n <= 0 {
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "n must be positive, got %d", n)
	}

	t := from
	for remaining := n; remaining > 0; {
		t = t.AddDate(0, 0, -1)
		if weekday := t.Weekday(); weekday != time.Saturday && weekday != time.Sunday {
			remaining--
		}
	}

	return t.Format(dateLayout), nil
}

// SimHistory is a HistoryProvider that generates deterministic random-walk
// daily bars, seeded per instrument so repeated fetches agree.
type SimHistory struct {
	codes        []string
	initialPrice float64
}

// NewSimHistory creates a simulated history provider over the given universe.
func NewSimHistory(codes []string, initialPrice float64) *SimHistory {
	if initialPrice == 0 {
		initialPrice = 10.0
	}

	return &SimHistory{
		codes:        codes,
		initialPrice: initialPrice,
	}
}

// FetchBars implements HistoryProvider.
func (h *SimHistory) FetchBars(codes []string, start, end string) (map[string][]types.Bar, error) {
	startT, err := time.ParseInLocation(dateLayout, start, time.Local)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeBarsFetchFailed, err, "invalid start date %q", start)
	}

	endT, err := time.ParseInLocation(dateLayout, end, time.Local)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeBarsFetchFailed, err, "invalid end date %q", end)
	}

	var dates []string

	for t := startT; !t.After(endT); t = t.AddDate(0, 0, 1) {
		if weekday := t.Weekday(); weekday != time.Saturday && weekday != time.Sunday {
			dates = append(dates, t.Format(dateLayout))
		}
	}

	result := make(map[string][]types.Bar, len(codes))

	for _, code := range codes {
		rng := rand.New(rand.NewSource(seedFor(code)))
		price := h.initialPrice

		bars := make([]types.Bar, 0, len(dates))
		for _, date := range dates {
			move := (rng.Float64() - 0.5) * 0.04
			price *= 1 + move

			bars = append(bars, types.Bar{
				Date:  date,
				Close: price,
				High:  price * (1 + rng.Float64()*0.02),
				Low:   price * (1 - rng.Float64()*0.02),
			})
		}

		result[code] = bars
	}

	return result, nil
}

// Universe implements HistoryProvider.
func (h *SimHistory) Universe() ([]string, error) {
	return append([]string{}, h.codes...), nil
}

// RecentListings implements HistoryProvider. The simulated universe has no
// young listings.
func (h *SimHistory) RecentListings(since string) ([]string, error) {
	return nil, nil
}

func seedFor(code string) int64 {
	var seed int64
	for _, r := range code {
		seed = seed*31 + int64(r)
	}

	return seed
}

// Verify interface compliance.
var (
	_ Calendar        = WeekdayCalendar{}
	_ HistoryProvider = (*SimHistory)(nil)
)
