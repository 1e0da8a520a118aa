package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/rateguard/internal/rules"
	"github.com/roach88/rateguard/internal/store"
)

// fakeStore is an in-memory Store with the same ordering and not-found
// semantics as internal/store. failRuleUpdate injects per-rule update
// errors for partial-failure tests.
type fakeStore struct {
	rules  map[string]*rules.PricingRule
	events map[string]*rules.Event

	failRuleUpdate map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rules:          make(map[string]*rules.PricingRule),
		events:         make(map[string]*rules.Event),
		failRuleUpdate: make(map[string]error),
	}
}

func cloneRule(r *rules.PricingRule) *rules.PricingRule {
	c := *r
	c.Meta.SuspendedRuleIDs = append([]string(nil), r.Meta.SuspendedRuleIDs...)
	c.Scope.RoomTypes = append([]string(nil), r.Scope.RoomTypes...)
	return &c
}

func cloneEvent(e *rules.Event) *rules.Event {
	c := *e
	if e.Suggestion != nil {
		s := *e.Suggestion
		c.Suggestion = &s
	}
	return &c
}

func (f *fakeStore) CreateRule(_ context.Context, r *rules.PricingRule, now time.Time) error {
	if _, ok := f.rules[r.ID]; ok {
		return fmt.Errorf("rule %s already exists", r.ID)
	}
	r.CreatedAt = now
	r.UpdatedAt = now
	f.rules[r.ID] = cloneRule(r)
	return nil
}

func (f *fakeStore) UpdateRule(_ context.Context, r *rules.PricingRule, now time.Time) error {
	if err := f.failRuleUpdate[r.ID]; err != nil {
		return err
	}
	if _, ok := f.rules[r.ID]; !ok {
		return store.ErrRuleNotFound
	}
	r.UpdatedAt = now
	f.rules[r.ID] = cloneRule(r)
	return nil
}

func (f *fakeStore) DeleteRule(_ context.Context, id string) error {
	if _, ok := f.rules[id]; !ok {
		return store.ErrRuleNotFound
	}
	delete(f.rules, id)
	return nil
}

func (f *fakeStore) GetRule(_ context.Context, id string) (*rules.PricingRule, error) {
	r, ok := f.rules[id]
	if !ok {
		return nil, store.ErrRuleNotFound
	}
	return cloneRule(r), nil
}

func sortRules(rs []*rules.PricingRule) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Priority != rs[j].Priority {
			return rs[i].Priority < rs[j].Priority
		}
		return rs[i].ID < rs[j].ID
	})
}

func (f *fakeStore) FindActiveRulesOverlapping(_ context.Context, start, end time.Time) ([]*rules.PricingRule, error) {
	var out []*rules.PricingRule
	for _, r := range f.rules {
		if r.Active && r.Overlaps(start, end) {
			out = append(out, cloneRule(r))
		}
	}
	sortRules(out)
	return out, nil
}

func (f *fakeStore) ListActiveOverrides(_ context.Context) ([]*rules.PricingRule, error) {
	var out []*rules.PricingRule
	for _, r := range f.rules {
		if r.Active && r.Meta.Override {
			out = append(out, cloneRule(r))
		}
	}
	sortRules(out)
	return out, nil
}

func (f *fakeStore) FindRulesSuspendedBy(_ context.Context, overrideID string) ([]*rules.PricingRule, error) {
	var out []*rules.PricingRule
	for _, r := range f.rules {
		if r.Meta.SuspendedBy == overrideID {
			out = append(out, cloneRule(r))
		}
	}
	sortRules(out)
	return out, nil
}

func (f *fakeStore) CreateEvent(_ context.Context, e *rules.Event, now time.Time) error {
	if _, ok := f.events[e.ID]; ok {
		return fmt.Errorf("event %s already exists", e.ID)
	}
	e.CreatedAt = now
	e.UpdatedAt = now
	f.events[e.ID] = cloneEvent(e)
	return nil
}

func (f *fakeStore) UpdateEvent(_ context.Context, e *rules.Event, now time.Time) error {
	if _, ok := f.events[e.ID]; !ok {
		return store.ErrEventNotFound
	}
	e.UpdatedAt = now
	f.events[e.ID] = cloneEvent(e)
	return nil
}

func (f *fakeStore) DeleteEvent(_ context.Context, id string) error {
	if _, ok := f.events[id]; !ok {
		return store.ErrEventNotFound
	}
	delete(f.events, id)
	return nil
}

func (f *fakeStore) GetEvent(_ context.Context, id string) (*rules.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, store.ErrEventNotFound
	}
	return cloneEvent(e), nil
}

func sortEvents(es []*rules.Event) {
	sort.Slice(es, func(i, j int) bool { return es[i].ID < es[j].ID })
}

func (f *fakeStore) FindExpiredConfirmedEvents(_ context.Context, now time.Time) ([]*rules.Event, error) {
	var out []*rules.Event
	for _, e := range f.events {
		if e.Status != rules.StatusConfirmed || e.RuleID == "" || !e.Ended(now) {
			continue
		}
		if r, ok := f.rules[e.RuleID]; ok && r.Active {
			out = append(out, cloneEvent(e))
		}
	}
	sortEvents(out)
	return out, nil
}

func (f *fakeStore) FindUpcomingConfirmedEvents(_ context.Context, now, deadline time.Time) ([]*rules.Event, error) {
	var out []*rules.Event
	for _, e := range f.events {
		if e.Status != rules.StatusConfirmed || e.RuleID == "" {
			continue
		}
		if e.Start.After(deadline) || e.End.Before(now) {
			continue
		}
		if r, ok := f.rules[e.RuleID]; ok && !r.Active && !r.Suspended() {
			out = append(out, cloneEvent(e))
		}
	}
	sortEvents(out)
	return out, nil
}
