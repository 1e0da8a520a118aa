package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rateguard/internal/rules"
)

func TestRuleRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	r := makeRule("rule-1", 14, true, 5, 7)
	r.Description = "December uplift"
	r.Scope = rules.ScopeOf("deluxe", "suite")
	r.Action = rules.DecreasePercent{Percent: 12.5}
	r.Meta = rules.Meta{
		CreatedBy: "staff-7",
		Source:    rules.SourceManual,
		Reason:    "seasonal",
	}

	require.NoError(t, s.CreateRule(ctx, r, day(1)))

	got, err := s.GetRule(ctx, "rule-1")
	require.NoError(t, err)

	assert.Equal(t, r.Name, got.Name)
	assert.Equal(t, r.Description, got.Description)
	assert.Equal(t, 14, got.Priority)
	assert.True(t, got.Active)
	assert.Equal(t, day(5), got.Start)
	assert.Equal(t, day(7), got.End)
	assert.Equal(t, r.Scope, got.Scope)
	assert.Equal(t, rules.DecreasePercent{Percent: 12.5}, got.Action)
	assert.Equal(t, r.Meta, got.Meta)
	assert.Equal(t, day(1), got.CreatedAt)
}

func TestCreateRule_RequiresID(t *testing.T) {
	s := createTestStore(t)

	r := makeRule("", 14, false, 5, 7)
	err := s.CreateRule(context.Background(), r, day(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id is required")
}

func TestCreateRule_DuplicateID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRule(ctx, makeRule("rule-1", 14, false, 5, 7), day(1)))
	assert.Error(t, s.CreateRule(ctx, makeRule("rule-1", 15, false, 6, 8), day(1)))
}

func TestUpdateRule(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	r := makeRule("rule-1", 14, false, 5, 7)
	require.NoError(t, s.CreateRule(ctx, r, day(1)))

	r.Active = true
	r.Priority = 15
	r.Meta.ActivationReason = "event approaching"
	require.NoError(t, s.UpdateRule(ctx, r, day(2)))

	got, err := s.GetRule(ctx, "rule-1")
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Equal(t, 15, got.Priority)
	assert.Equal(t, "event approaching", got.Meta.ActivationReason)
	assert.Equal(t, day(2), got.UpdatedAt)
}

func TestUpdateRule_NotFound(t *testing.T) {
	s := createTestStore(t)

	err := s.UpdateRule(context.Background(), makeRule("ghost", 14, false, 5, 7), day(1))
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestDeleteRule(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRule(ctx, makeRule("rule-1", 14, false, 5, 7), day(1)))
	require.NoError(t, s.DeleteRule(ctx, "rule-1"))

	_, err := s.GetRule(ctx, "rule-1")
	assert.ErrorIs(t, err, ErrRuleNotFound)

	assert.ErrorIs(t, s.DeleteRule(ctx, "rule-1"), ErrRuleNotFound)
}

func TestFindActiveRulesOverlapping(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Dec 1-10, active.
	require.NoError(t, s.CreateRule(ctx, makeRule("wide", 12, true, 1, 10), day(1)))
	// Dec 5-7, active.
	require.NoError(t, s.CreateRule(ctx, makeRule("narrow", 14, true, 5, 7), day(1)))
	// Dec 5-7 but inactive: never returned.
	require.NoError(t, s.CreateRule(ctx, makeRule("dormant", 15, false, 5, 7), day(1)))
	// Dec 20-25, active but outside the probe range.
	require.NoError(t, s.CreateRule(ctx, makeRule("later", 16, true, 20, 25), day(1)))

	got, err := s.FindActiveRulesOverlapping(ctx, day(6), day(8))
	require.NoError(t, err)

	require.Len(t, got, 2)
	// Ordered by priority, most precedent first.
	assert.Equal(t, "wide", got[0].ID)
	assert.Equal(t, "narrow", got[1].ID)
}

func TestFindActiveRulesOverlapping_TouchingEndpoints(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRule(ctx, makeRule("rule-1", 14, true, 5, 7), day(1)))

	// Probe range ending exactly on the rule's start still overlaps.
	got, err := s.FindActiveRulesOverlapping(ctx, day(1), day(5))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Probe range starting exactly on the rule's end still overlaps.
	got, err = s.FindActiveRulesOverlapping(ctx, day(7), day(9))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Disjoint range does not.
	got, err = s.FindActiveRulesOverlapping(ctx, day(8), day(9))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListActiveOverrides(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	normal := makeRule("normal", 14, true, 5, 7)
	require.NoError(t, s.CreateRule(ctx, normal, day(1)))

	ov1 := makeRule("override-high", 2, true, 5, 7)
	ov1.Meta.Override = true
	require.NoError(t, s.CreateRule(ctx, ov1, day(1)))

	ov2 := makeRule("override-critical", 1, true, 5, 7)
	ov2.Meta.Override = true
	require.NoError(t, s.CreateRule(ctx, ov2, day(1)))

	inactive := makeRule("override-done", 1, false, 1, 2)
	inactive.Meta.Override = true
	require.NoError(t, s.CreateRule(ctx, inactive, day(1)))

	got, err := s.ListActiveOverrides(ctx)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "override-critical", got[0].ID)
	assert.Equal(t, "override-high", got[1].ID)
}

func TestFindRulesSuspendedBy(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	suspended := makeRule("victim", 14, false, 5, 7)
	suspended.Meta.SuspendedBy = "override-1"
	require.NoError(t, s.CreateRule(ctx, suspended, day(1)))

	other := makeRule("bystander", 15, true, 5, 7)
	require.NoError(t, s.CreateRule(ctx, other, day(1)))

	got, err := s.FindRulesSuspendedBy(ctx, "override-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "victim", got[0].ID)

	got, err = s.FindRulesSuspendedBy(ctx, "override-2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpdateRule_SyncsDenormalizedColumns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	r := makeRule("rule-1", 14, true, 5, 7)
	require.NoError(t, s.CreateRule(ctx, r, day(1)))

	// Suspend via meta; the suspended_by column must follow.
	r.Active = false
	r.Meta.SuspendedBy = "override-1"
	require.NoError(t, s.UpdateRule(ctx, r, day(2)))

	got, err := s.FindRulesSuspendedBy(ctx, "override-1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Restore; the column must clear.
	r.Active = true
	r.Meta.SuspendedBy = ""
	require.NoError(t, s.UpdateRule(ctx, r, day(3)))

	got, err = s.FindRulesSuspendedBy(ctx, "override-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}
