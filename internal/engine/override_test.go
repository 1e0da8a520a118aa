package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rateguard/internal/rules"
)

func overrideReq() OverrideRequest {
	return OverrideRequest{
		Name:     "flood response",
		Strategy: StrategyDecrease,
		Percent:  30,
		Urgency:  UrgencyCritical,
		Start:    day(5),
		End:      day(9),
		Reason:   "flooding in the old town",
		StaffID:  "staff-42",
	}
}

func TestCreateEmergencyOverride_SuspendsConflictingRules(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()
	te.seedRule("holiday", 11, day(1), day(10), rules.IncreasePercent{Percent: 25})
	te.seedRule("concert", 14, day(7), day(12), rules.IncreasePercent{Percent: 15})
	te.seedRule("far-away", 17, day(20), day(25), rules.IncreasePercent{Percent: 10})

	ov, err := te.CreateEmergencyOverride(ctx, overrideReq())
	require.NoError(t, err)

	assert.Equal(t, 1, ov.Priority, "critical urgency takes the top slot")
	assert.True(t, ov.Active)
	assert.True(t, ov.Meta.Override)
	assert.ElementsMatch(t, []string{"holiday", "concert"}, ov.Meta.SuspendedRuleIDs)

	holiday, err := te.store.GetRule(ctx, "holiday")
	require.NoError(t, err)
	assert.False(t, holiday.Active)
	assert.Equal(t, ov.ID, holiday.Meta.SuspendedBy)
	require.NotNil(t, holiday.Meta.DeactivatedAt)

	farAway, err := te.store.GetRule(ctx, "far-away")
	require.NoError(t, err)
	assert.True(t, farAway.Active, "non-overlapping rules are untouched")

	assert.Len(t, te.notifier.Messages(), 1)
	assert.Equal(t, []string{"override.created"}, te.audit.Events())
}

func TestCreateEmergencyOverride_HighUrgencySecondSlot(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()

	req := overrideReq()
	req.Urgency = UrgencyHigh
	ov, err := te.CreateEmergencyOverride(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, ov.Priority)
}

func TestCreateEmergencyOverride_ScopedSuspension(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()
	suites := te.seedRule("suites", 14, day(1), day(10), rules.IncreasePercent{Percent: 25})
	suites.Scope = rules.ScopeOf("suite")
	standard := te.seedRule("standard", 15, day(1), day(10), rules.IncreasePercent{Percent: 10})
	standard.Scope = rules.ScopeOf("standard")

	req := overrideReq()
	req.Scope = rules.ScopeOf("suite")
	ov, err := te.CreateEmergencyOverride(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, []string{"suites"}, ov.Meta.SuspendedRuleIDs)
	got, err := te.store.GetRule(ctx, "standard")
	require.NoError(t, err)
	assert.True(t, got.Active, "out-of-scope rules stay active")
}

func TestCreateEmergencyOverride_LeavesOtherOverridesAlone(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()
	other := te.seedRule("other-override", 2, day(1), day(10), rules.RestrictBookings{Block: true})
	other.Meta.Override = true

	ov, err := te.CreateEmergencyOverride(ctx, overrideReq())
	require.NoError(t, err)

	assert.Empty(t, ov.Meta.SuspendedRuleIDs)
	got, err := te.store.GetRule(ctx, "other-override")
	require.NoError(t, err)
	assert.True(t, got.Active)
}

func TestCreateEmergencyOverride_OverlappingOverridesTakeDistinctSlots(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()

	first, err := te.CreateEmergencyOverride(ctx, overrideReq())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Priority)

	second, err := te.CreateEmergencyOverride(ctx, overrideReq())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Priority, "the held critical slot is skipped")
	assert.Empty(t, second.Meta.SuspendedRuleIDs)

	kept, err := te.store.GetRule(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, kept.Active, "overrides never suspend each other")
	assert.Empty(t, kept.Meta.SuspendedBy)

	high := overrideReq()
	high.Urgency = UrgencyHigh
	third, err := te.CreateEmergencyOverride(ctx, high)
	require.NoError(t, err)
	assert.Equal(t, 3, third.Priority, "the high slot is occupied by the bumped critical")
}

func TestCreateEmergencyOverride_DisjointScopesShareSlot(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()

	suites := overrideReq()
	suites.Scope = rules.ScopeOf("suite")
	first, err := te.CreateEmergencyOverride(ctx, suites)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Priority)

	standard := overrideReq()
	standard.Scope = rules.ScopeOf("standard")
	second, err := te.CreateEmergencyOverride(ctx, standard)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Priority, "non-intersecting scopes never collide")
}

func TestCreateEmergencyOverride_Validation(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()

	req := overrideReq()
	req.Reason = ""
	req.StaffID = ""
	_, err := te.CreateEmergencyOverride(ctx, req)
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	fields := make([]string, len(verr.Errors))
	for i, fe := range verr.Errors {
		fields[i] = fe.Field
	}
	assert.ElementsMatch(t, []string{"reason", "staff_id"}, fields)
}

func TestCreateEmergencyOverride_PartialFailure(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()
	te.seedRule("ok-rule", 14, day(1), day(10), rules.IncreasePercent{Percent: 25})
	te.seedRule("stuck-rule", 15, day(1), day(10), rules.IncreasePercent{Percent: 10})
	te.store.failRuleUpdate["stuck-rule"] = errors.New("disk full")

	ov, err := te.CreateEmergencyOverride(ctx, overrideReq())
	require.Error(t, err)
	require.True(t, IsPartialFailure(err))

	var pfe *PartialFailureError
	require.ErrorAs(t, err, &pfe)
	assert.Equal(t, []string{"ok-rule"}, pfe.Applied)
	require.Len(t, pfe.Failures, 1)
	assert.Equal(t, "stuck-rule", pfe.Failures[0].RuleID)

	// The override stands over what it did suspend.
	require.NotNil(t, ov)
	got, gerr := te.store.GetRule(ctx, ov.ID)
	require.NoError(t, gerr)
	assert.True(t, got.Active)
	assert.Equal(t, []string{"ok-rule"}, got.Meta.SuspendedRuleIDs)
}

func TestRemoveOverride_RestoresSuspendedRules(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()
	te.seedRule("holiday", 11, day(1), day(10), rules.IncreasePercent{Percent: 25})

	ov, err := te.CreateEmergencyOverride(ctx, overrideReq())
	require.NoError(t, err)

	te.clock.Advance(24 * time.Hour)
	require.NoError(t, te.RemoveOverride(ctx, ov.ID, "staff-42", "situation resolved"))

	holiday, err := te.store.GetRule(ctx, "holiday")
	require.NoError(t, err)
	assert.True(t, holiday.Active)
	assert.Empty(t, holiday.Meta.SuspendedBy)
	require.NotNil(t, holiday.Meta.RestoredAt)
	assert.Equal(t, day(2), *holiday.Meta.RestoredAt)
	assert.Contains(t, holiday.Meta.RestorationReason, ov.ID)

	gone, err := te.store.GetRule(ctx, ov.ID)
	require.NoError(t, err)
	assert.False(t, gone.Active)
	assert.Equal(t, "situation resolved", gone.Meta.DeactivationReason)

	assert.Equal(t, []string{"override.created", "override.removed"}, te.audit.Events())
	assert.Len(t, te.notifier.Messages(), 2)
}

func TestRemoveOverride_NotAnOverride(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()
	te.seedRule("plain", 14, day(1), day(10), rules.IncreasePercent{Percent: 25})

	err := te.RemoveOverride(ctx, "plain", "staff-42", "oops")
	require.Error(t, err)
	require.True(t, IsNotFound(err))

	var nfe *NotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "override rule", nfe.Kind)

	got, gerr := te.store.GetRule(ctx, "plain")
	require.NoError(t, gerr)
	assert.True(t, got.Active, "the mistaken target is untouched")
}

func TestRemoveOverride_UnknownID(t *testing.T) {
	te := newTestEngine()

	err := te.RemoveOverride(context.Background(), "nope", "staff-42", "gone")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestUpdateOverrideRule_ExtendsEnd(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()

	ov, err := te.CreateEmergencyOverride(ctx, overrideReq())
	require.NoError(t, err)

	te.clock.Advance(24 * time.Hour)
	newEnd := day(15)
	updated, err := te.UpdateOverrideRule(ctx, ov.ID, OverrideUpdate{End: &newEnd})
	require.NoError(t, err)

	assert.Equal(t, day(15), updated.End)
	require.NotNil(t, updated.Meta.ModifiedAt)
	assert.Equal(t, day(2), *updated.Meta.ModifiedAt)
}

func TestUpdateOverrideRule_MovesStartAndScope(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()

	ov, err := te.CreateEmergencyOverride(ctx, overrideReq())
	require.NoError(t, err)

	newStart := day(4)
	suites := rules.ScopeOf("suite")
	updated, err := te.UpdateOverrideRule(ctx, ov.ID, OverrideUpdate{Start: &newStart, Scope: &suites})
	require.NoError(t, err)

	assert.Equal(t, day(4), updated.Start)
	assert.Equal(t, suites, updated.Scope)
	assert.Equal(t, day(9), updated.End, "untouched fields keep their values")
	require.NotNil(t, updated.Meta.ModifiedAt)
}

func TestUpdateOverrideRule_RejectsEmptyRange(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()

	ov, err := te.CreateEmergencyOverride(ctx, overrideReq())
	require.NoError(t, err)

	badStart := day(12)
	_, err = te.UpdateOverrideRule(ctx, ov.ID, OverrideUpdate{Start: &badStart})
	require.Error(t, err)
	assert.True(t, IsValidation(err), "start moved past the end must not persist")
}

func TestUpdateOverrideRule_RejectsPlainRules(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()
	te.seedRule("plain", 14, day(1), day(10), rules.IncreasePercent{Percent: 25})

	newEnd := day(15)
	_, err := te.UpdateOverrideRule(ctx, "plain", OverrideUpdate{End: &newEnd})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestAutoExpireOverrides(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()
	te.seedRule("holiday", 11, day(1), day(20), rules.IncreasePercent{Percent: 25})

	ov, err := te.CreateEmergencyOverride(ctx, overrideReq())
	require.NoError(t, err)

	// Still in force: nothing expires.
	res, err := te.AutoExpireOverrides(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Processed)

	// Past the override's end date.
	te.clock.Set(day(10))
	res, err = te.AutoExpireOverrides(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{ov.ID}, res.Processed)

	holiday, err := te.store.GetRule(ctx, "holiday")
	require.NoError(t, err)
	assert.True(t, holiday.Active, "suspension ends with the override")
	assert.Equal(t, "auto-expired", mustGetRule(t, te, ov.ID).Meta.DeactivationReason)

	// Second sweep is a no-op.
	res, err = te.AutoExpireOverrides(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Processed)
}

func TestGetActiveOverrides_OrderedByUrgency(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()

	critical := overrideReq()
	_, err := te.CreateEmergencyOverride(ctx, critical)
	require.NoError(t, err)

	high := overrideReq()
	high.Name = "press fallout"
	high.Urgency = UrgencyHigh
	high.Start, high.End = day(12), day(14)
	_, err = te.CreateEmergencyOverride(ctx, high)
	require.NoError(t, err)

	overrides, err := te.GetActiveOverrides(ctx)
	require.NoError(t, err)
	require.Len(t, overrides, 2)
	assert.Equal(t, "flood response", overrides[0].Name)
	assert.Equal(t, "press fallout", overrides[1].Name)
}

func mustGetRule(t *testing.T, te *testEngine, id string) *rules.PricingRule {
	t.Helper()
	r, err := te.store.GetRule(context.Background(), id)
	require.NoError(t, err)
	return r
}
