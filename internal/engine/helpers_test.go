package engine

import (
	"fmt"
	"time"

	"github.com/roach88/rateguard/internal/policy"
	"github.com/roach88/rateguard/internal/rules"
	"github.com/roach88/rateguard/internal/testutil"
)

// day returns midnight UTC on the given December 2026 day.
func day(d int) time.Time {
	return time.Date(2026, time.December, d, 0, 0, 0, 0, time.UTC)
}

func testPolicy() policy.Policy {
	return policy.Policy{
		OverrideBand: policy.Band{Min: 1, Max: 5},
		EventBand:    policy.Band{Min: 11, Max: 20},
		BasePriorities: map[rules.Category]int{
			rules.CategoryNationalHoliday:      11,
			rules.CategoryRoyalEvent:           11,
			rules.CategoryInternationalConcert: 14,
			rules.CategoryMajorSports:          14,
			rules.CategoryLocalFestival:        17,
			rules.CategoryBusinessConference:   18,
		},
		PrioritySearchBound:  5,
		IncoherenceThreshold: 30,
		LeadWindowDays:       7,
	}
}

type testEngine struct {
	*Engine
	store    *fakeStore
	clock    *testutil.FakeClock
	notifier *testutil.RecordingNotifier
	audit    *testutil.RecordingAuditLog
}

// newTestEngine wires an engine over the in-memory store with a clock
// frozen at Dec 1 2026 and sequential ids id-01, id-02, ...
func newTestEngine() *testEngine {
	fs := newFakeStore()
	clock := testutil.NewFakeClock(day(1))
	notifier := &testutil.RecordingNotifier{}
	audit := &testutil.RecordingAuditLog{}
	ids := make([]string, 0, 32)
	for i := 1; i <= 32; i++ {
		ids = append(ids, fmt.Sprintf("id-%02d", i))
	}
	e := New(fs, testPolicy(),
		WithClock(clock),
		WithIDGenerator(NewFixedIDGenerator(ids...)),
		WithNotifier(notifier),
		WithAuditLog(audit),
	)
	return &testEngine{Engine: e, store: fs, clock: clock, notifier: notifier, audit: audit}
}

// seedRule inserts an active rule directly into the fake store.
func (te *testEngine) seedRule(id string, priority int, start, end time.Time, action rules.Action) *rules.PricingRule {
	r := &rules.PricingRule{
		ID:       id,
		Name:     "rule " + id,
		Priority: priority,
		Active:   true,
		Start:    start,
		End:      end,
		Scope:    rules.ScopeAll(),
		Action:   action,
		Meta:     rules.Meta{Source: rules.SourceManual},
	}
	te.store.rules[id] = r
	return r
}

func makeEvent(id string, cat rules.Category, start, end time.Time) *rules.Event {
	return &rules.Event{
		ID:       id,
		Title:    "event " + id,
		Start:    start,
		End:      end,
		Category: cat,
		Status:   rules.StatusConfirmed,
	}
}
