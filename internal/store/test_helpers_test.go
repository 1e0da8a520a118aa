package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/rateguard/internal/rules"
)

// createTestStore creates a fresh on-disk store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func day(d int) time.Time {
	return time.Date(2026, time.December, d, 0, 0, 0, 0, time.UTC)
}

// makeRule creates a minimal valid rule covering Dec start..end.
func makeRule(id string, priority int, active bool, start, end int) *rules.PricingRule {
	return &rules.PricingRule{
		ID:       id,
		Name:     "rule " + id,
		Priority: priority,
		Active:   active,
		Start:    day(start),
		End:      day(end),
		Scope:    rules.ScopeAll(),
		Action:   rules.IncreasePercent{Percent: 10},
	}
}

// makeEvent creates a minimal confirmed event covering Dec start..end.
func makeEvent(id, ruleID string, start, end int) *rules.Event {
	return &rules.Event{
		ID:       id,
		Title:    "event " + id,
		Start:    day(start),
		End:      day(end),
		Category: rules.CategoryLocalFestival,
		Status:   rules.StatusConfirmed,
		RuleID:   ruleID,
	}
}
