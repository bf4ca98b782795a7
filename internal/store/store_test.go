package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/silverfox-lab/silverfox-trading/internal/types"
	"github.com/silverfox-lab/silverfox-trading/pkg/errors"
)

type StoreTestSuite struct {
	suite.Suite
	store *Store
	dir   string
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (suite *StoreTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()

	store, err := NewStore(suite.dir)
	suite.Require().NoError(err)
	suite.store = store
}

func (suite *StoreTestSuite) TestColdStartReadsEmpty() {
	held, err := suite.store.HeldDays()
	suite.Require().NoError(err)
	suite.Empty(held)

	maxPrices, err := suite.store.MaxPrices()
	suite.Require().NoError(err)
	suite.Empty(maxPrices)

	marker, err := suite.store.TaskMarker("prepare_indicators")
	suite.Require().NoError(err)
	suite.Empty(marker)
}

func (suite *StoreTestSuite) TestHeldDaysLifecycle() {
	suite.Require().NoError(suite.store.NewHeld([]string{"000001.SZ", "600000.SH"}))

	held, err := suite.store.HeldDays()
	suite.Require().NoError(err)
	suite.Equal(map[string]int{"000001.SZ": 0, "600000.SH": 0}, held)

	count, err := suite.store.IncreaseAllHeld()
	suite.Require().NoError(err)
	suite.Equal(2, count)

	// A duplicate fill must not reset the age.
	suite.Require().NoError(suite.store.NewHeld([]string{"000001.SZ"}))

	held, err = suite.store.HeldDays()
	suite.Require().NoError(err)
	suite.Equal(map[string]int{"000001.SZ": 1, "600000.SH": 1}, held)

	suite.Require().NoError(suite.store.DelHeld([]string{"000001.SZ"}))

	held, err = suite.store.HeldDays()
	suite.Require().NoError(err)
	suite.Equal(map[string]int{"600000.SH": 1}, held)
}

func (suite *StoreTestSuite) TestDelHeldDropsMaxPrice() {
	suite.Require().NoError(suite.store.NewHeld([]string{"000001.SZ"}))

	_, err := suite.store.UpdateMaxPrices(map[string]float64{"000001.SZ": 12.5})
	suite.Require().NoError(err)

	suite.Require().NoError(suite.store.DelHeld([]string{"000001.SZ"}))

	maxPrices, err := suite.store.MaxPrices()
	suite.Require().NoError(err)
	suite.Empty(maxPrices)
}

func (suite *StoreTestSuite) TestMaxPriceOnlyMovesUp() {
	_, err := suite.store.UpdateMaxPrices(map[string]float64{"000001.SZ": 12.5})
	suite.Require().NoError(err)

	updated, err := suite.store.UpdateMaxPrices(map[string]float64{"000001.SZ": 11.0})
	suite.Require().NoError(err)
	suite.InDelta(12.5, updated["000001.SZ"], 1e-9)

	updated, err = suite.store.UpdateMaxPrices(map[string]float64{"000001.SZ": 13.2})
	suite.Require().NoError(err)
	suite.InDelta(13.2, updated["000001.SZ"], 1e-9)
}

func (suite *StoreTestSuite) TestTaskMarkers() {
	suite.Require().NoError(suite.store.MarkTask("prepare_indicators", "2024-05-20"))

	marker, err := suite.store.TaskMarker("prepare_indicators")
	suite.Require().NoError(err)
	suite.Equal("2024-05-20", marker)

	// Markers survive a reopen.
	reopened, err := NewStore(suite.dir)
	suite.Require().NoError(err)

	marker, err = reopened.TaskMarker("prepare_indicators")
	suite.Require().NoError(err)
	suite.Equal("2024-05-20", marker)
}

func (suite *StoreTestSuite) TestSelectionRecord() {
	added, err := suite.store.RecordSelections("2024-05-20", []string{"000001.SZ", "600000.SH"})
	suite.Require().NoError(err)
	suite.Equal([]string{"000001.SZ", "600000.SH"}, added)

	// Duplicates are not re-added.
	added, err = suite.store.RecordSelections("2024-05-20", []string{"000001.SZ", "002594.SZ"})
	suite.Require().NoError(err)
	suite.Equal([]string{"002594.SZ"}, added)

	selected, err := suite.store.Selections("2024-05-20")
	suite.Require().NoError(err)
	suite.True(selected["000001.SZ"])
	suite.True(selected["600000.SH"])
	suite.True(selected["002594.SZ"])
}

func (suite *StoreTestSuite) TestSelectionRecordRollsOverByDate() {
	_, err := suite.store.RecordSelections("2024-05-20", []string{"000001.SZ"})
	suite.Require().NoError(err)

	_, err = suite.store.RecordSelections("2024-05-21", []string{"600000.SH"})
	suite.Require().NoError(err)

	yesterday, err := suite.store.Selections("2024-05-20")
	suite.Require().NoError(err)
	suite.Empty(yesterday)

	today, err := suite.store.Selections("2024-05-21")
	suite.Require().NoError(err)
	suite.True(today["600000.SH"])
}

func (suite *StoreTestSuite) TestSelectionRecordSurvivesReload() {
	_, err := suite.store.RecordSelections("2024-05-20", []string{"000001.SZ"})
	suite.Require().NoError(err)

	reopened, err := NewStore(suite.dir)
	suite.Require().NoError(err)

	selected, err := reopened.Selections("2024-05-20")
	suite.Require().NoError(err)
	suite.True(selected["000001.SZ"])
}

func (suite *StoreTestSuite) TestIndicatorSnapshotRoundTrip() {
	snapshot := map[string]types.IndicatorSnapshot{
		"000001.SZ": {
			MeanShort: 10.1,
			MeanMid:   10.2,
			MeanLong:  10.3,
			BaseClose: 9.8,
			Closes:    []float64{10.0, 10.1, 10.2},
			Highs:     []float64{10.2, 10.3, 10.4},
			Lows:      []float64{9.9, 10.0, 10.1},
		},
	}

	suite.Require().NoError(suite.store.SaveIndicators("2024-05-20", snapshot))

	loaded, err := suite.store.LoadIndicators("2024-05-20")
	suite.Require().NoError(err)
	suite.Equal(snapshot, loaded)

	// A different date reads as empty.
	loaded, err = suite.store.LoadIndicators("2024-05-21")
	suite.Require().NoError(err)
	suite.Empty(loaded)
}

func (suite *StoreTestSuite) TestCorruptedTable() {
	path := filepath.Join(suite.dir, "held_days.json")
	suite.Require().NoError(os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := suite.store.HeldDays()
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStoreCorrupted))
}
