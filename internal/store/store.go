// Package store persists the engine's durable cross-restart state as one
// JSON file per logical table under a data directory: held days, max prices,
// daily task markers, per-day selection records, and the daily indicator
// snapshot. All disk operations share one mutex and writes are atomic
// (temp file + rename), so a crash never leaves a half-written table.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/silverfox-lab/silverfox-trading/internal/types"
	"github.com/silverfox-lab/silverfox-trading/pkg/errors"
)

const (
	fileHeldDays    = "held_days.json"
	fileMaxPrice    = "max_price.json"
	fileTaskMarkers = "task_markers.json"
	fileSelections  = "selections.json"

	fileIndicatorsPattern = "indicators-%s.json"
)

// Store is a JSON file backed state store. The zero value is not usable;
// construct with NewStore.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a store rooted at dir, creating the directory if needed.
// Cold start from an empty directory is valid: every table reads as empty.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to create data directory", err)
	}

	return &Store{dir: dir}, nil
}

// HeldDays returns the code -> days-held table.
func (s *Store) HeldDays() (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := map[string]int{}
	if err := s.read(fileHeldDays, &held); err != nil {
		return nil, err
	}

	return held, nil
}

// NewHeld creates day-0 entries for codes that just filled a buy. Existing
// entries are left untouched, so a duplicate fill cannot reset the age.
func (s *Store) NewHeld(codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := map[string]int{}
	if err := s.read(fileHeldDays, &held); err != nil {
		return err
	}

	for _, code := range codes {
		if _, ok := held[code]; !ok {
			held[code] = 0
		}
	}

	return s.write(fileHeldDays, held)
}

// DelHeld removes entries for codes whose sell just filled, together with
// their max-price high-water marks.
func (s *Store) DelHeld(codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := map[string]int{}
	if err := s.read(fileHeldDays, &held); err != nil {
		return err
	}

	maxPrices := map[string]float64{}
	if err := s.read(fileMaxPrice, &maxPrices); err != nil {
		return err
	}

	for _, code := range codes {
		delete(held, code)
		delete(maxPrices, code)
	}

	if err := s.write(fileHeldDays, held); err != nil {
		return err
	}

	return s.write(fileMaxPrice, maxPrices)
}

// IncreaseAllHeld increments every held-days entry by one. Runs once per
// trading day under the daily-once guard.
func (s *Store) IncreaseAllHeld() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := map[string]int{}
	if err := s.read(fileHeldDays, &held); err != nil {
		return 0, err
	}

	for code := range held {
		held[code]++
	}

	if err := s.write(fileHeldDays, held); err != nil {
		return 0, err
	}

	return len(held), nil
}

// MaxPrices returns the code -> highest-observed-price table.
func (s *Store) MaxPrices() (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxPrices := map[string]float64{}
	if err := s.read(fileMaxPrice, &maxPrices); err != nil {
		return nil, err
	}

	return maxPrices, nil
}

// UpdateMaxPrices raises the high-water marks with the latest observed
// prices and returns the updated table. A price only ever moves up.
func (s *Store) UpdateMaxPrices(latest map[string]float64) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxPrices := map[string]float64{}
	if err := s.read(fileMaxPrice, &maxPrices); err != nil {
		return nil, err
	}

	for code, price := range latest {
		if current, ok := maxPrices[code]; !ok || price > current {
			maxPrices[code] = price
		}
	}

	if err := s.write(fileMaxPrice, maxPrices); err != nil {
		return nil, err
	}

	return maxPrices, nil
}

// TaskMarker returns the last run date recorded for a task, or "" if the
// task never ran.
func (s *Store) TaskMarker(taskID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	markers := map[string]string{}
	if err := s.read(fileTaskMarkers, &markers); err != nil {
		return "", err
	}

	return markers[taskID], nil
}

// MarkTask records that a task ran for the given date.
func (s *Store) MarkTask(taskID, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	markers := map[string]string{}
	if err := s.read(fileTaskMarkers, &markers); err != nil {
		return err
	}

	markers[taskID] = date

	return s.write(fileTaskMarkers, markers)
}

// Selections returns the set of codes already recorded for the given date.
func (s *Store) Selections(date string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDate := map[string][]string{}
	if err := s.read(fileSelections, &byDate); err != nil {
		return nil, err
	}

	selected := map[string]bool{}
	for _, code := range byDate[date] {
		selected[code] = true
	}

	return selected, nil
}

// RecordSelections adds codes to the date's selection record and returns the
// ones that were not recorded before. Records for other dates are dropped:
// the table is keyed by calendar date, so it resets itself each day.
func (s *Store) RecordSelections(date string, codes []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDate := map[string][]string{}
	if err := s.read(fileSelections, &byDate); err != nil {
		return nil, err
	}

	existing := map[string]bool{}
	for _, code := range byDate[date] {
		existing[code] = true
	}

	var added []string

	for _, code := range codes {
		if !existing[code] {
			existing[code] = true
			added = append(added, code)
		}
	}

	if len(added) == 0 {
		return nil, nil
	}

	today := append(append([]string{}, byDate[date]...), added...)

	if err := s.write(fileSelections, map[string][]string{date: today}); err != nil {
		return nil, err
	}

	return added, nil
}

// SaveIndicators persists the daily indicator snapshot keyed by date so a
// same-day restart can reload it without refetching history.
func (s *Store) SaveIndicators(date string, indicators map[string]types.IndicatorSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(fmt.Sprintf(fileIndicatorsPattern, date), indicators)
}

// LoadIndicators returns the persisted snapshot for the date, or an empty map
// if none was saved.
func (s *Store) LoadIndicators(date string) (map[string]types.IndicatorSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	indicators := map[string]types.IndicatorSnapshot{}
	if err := s.read(fmt.Sprintf(fileIndicatorsPattern, date), &indicators); err != nil {
		return nil, err
	}

	return indicators, nil
}

// read unmarshals a table file into v. A missing file is an empty table.
// Callers must hold s.mu.
func (s *Store) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return errors.Wrapf(errors.ErrCodeStoreReadFailed, err, "failed to read %s", name)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(errors.ErrCodeStoreCorrupted, err, "failed to parse %s", name)
	}

	return nil
}

// write marshals v and atomically replaces the table file.
// Callers must hold s.mu.
func (s *Store) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStoreWriteFailed, err, "failed to marshal %s", name)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(errors.ErrCodeStoreWriteFailed, err, "failed to write %s", name)
	}

	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(errors.ErrCodeStoreWriteFailed, err, "failed to replace %s", name)
	}

	return nil
}
