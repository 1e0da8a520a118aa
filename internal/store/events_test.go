package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rateguard/internal/rules"
)

func TestEventRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	e := makeEvent("event-1", "", 5, 7)
	e.Description = "city festival"
	e.Suggestion = &rules.Suggestion{
		Origin:           "manual",
		Confidence:       0.9,
		ProposedPriority: 15,
	}

	require.NoError(t, s.CreateEvent(ctx, e, day(1)))

	got, err := s.GetEvent(ctx, "event-1")
	require.NoError(t, err)

	assert.Equal(t, e.Title, got.Title)
	assert.Equal(t, e.Description, got.Description)
	assert.Equal(t, day(5), got.Start)
	assert.Equal(t, day(7), got.End)
	assert.Equal(t, rules.CategoryLocalFestival, got.Category)
	assert.Equal(t, rules.StatusConfirmed, got.Status)
	assert.Empty(t, got.RuleID)
	require.NotNil(t, got.Suggestion)
	assert.Equal(t, *e.Suggestion, *got.Suggestion)
}

func TestEventWithoutSuggestion(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateEvent(ctx, makeEvent("event-1", "", 5, 7), day(1)))

	got, err := s.GetEvent(ctx, "event-1")
	require.NoError(t, err)
	assert.Nil(t, got.Suggestion)
}

func TestUpdateEvent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRule(ctx, makeRule("rule-1", 14, false, 5, 9), day(1)))

	e := makeEvent("event-1", "", 5, 7)
	require.NoError(t, s.CreateEvent(ctx, e, day(1)))

	e.End = day(9)
	e.RuleID = "rule-1"
	e.Status = rules.StatusConfirmed
	require.NoError(t, s.UpdateEvent(ctx, e, day(2)))

	got, err := s.GetEvent(ctx, "event-1")
	require.NoError(t, err)
	assert.Equal(t, day(9), got.End)
	assert.Equal(t, "rule-1", got.RuleID)
	assert.Equal(t, day(2), got.UpdatedAt)
}

func TestUpdateEvent_NotFound(t *testing.T) {
	s := createTestStore(t)

	err := s.UpdateEvent(context.Background(), makeEvent("ghost", "", 5, 7), day(1))
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestDeleteEvent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateEvent(ctx, makeEvent("event-1", "", 5, 7), day(1)))
	require.NoError(t, s.DeleteEvent(ctx, "event-1"))

	_, err := s.GetEvent(ctx, "event-1")
	assert.ErrorIs(t, err, ErrEventNotFound)

	assert.ErrorIs(t, s.DeleteEvent(ctx, "event-1"), ErrEventNotFound)
}

func TestFindExpiredConfirmedEvents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Ended event with an active rule: qualifies.
	require.NoError(t, s.CreateRule(ctx, makeRule("rule-a", 14, true, 1, 3), day(1)))
	require.NoError(t, s.CreateEvent(ctx, makeEvent("ended-active", "rule-a", 1, 3), day(1)))

	// Ended event whose rule is already inactive: already consistent.
	require.NoError(t, s.CreateRule(ctx, makeRule("rule-b", 15, false, 1, 3), day(1)))
	require.NoError(t, s.CreateEvent(ctx, makeEvent("ended-inactive", "rule-b", 1, 3), day(1)))

	// Ongoing event with an active rule: not expired.
	require.NoError(t, s.CreateRule(ctx, makeRule("rule-c", 16, true, 5, 9), day(1)))
	require.NoError(t, s.CreateEvent(ctx, makeEvent("ongoing", "rule-c", 5, 9), day(1)))

	// Ended event with no rule at all: nothing to deactivate.
	require.NoError(t, s.CreateEvent(ctx, makeEvent("unlinked", "", 1, 3), day(1)))

	// Ended but still proposed: lifecycle ignores unconfirmed events.
	proposed := makeEvent("proposed", "rule-a", 1, 3)
	proposed.Status = rules.StatusProposed
	require.NoError(t, s.CreateEvent(ctx, proposed, day(1)))

	got, err := s.FindExpiredConfirmedEvents(ctx, day(6))
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "ended-active", got[0].ID)
}

func TestFindUpcomingConfirmedEvents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Starts within the window, rule inactive: qualifies.
	require.NoError(t, s.CreateRule(ctx, makeRule("rule-a", 14, false, 10, 12), day(1)))
	require.NoError(t, s.CreateEvent(ctx, makeEvent("soon", "rule-a", 10, 12), day(1)))

	// Starts exactly at the deadline: boundary is inclusive.
	require.NoError(t, s.CreateRule(ctx, makeRule("rule-b", 15, false, 13, 14), day(1)))
	require.NoError(t, s.CreateEvent(ctx, makeEvent("boundary", "rule-b", 13, 14), day(1)))

	// Starts one day past the deadline: not yet.
	require.NoError(t, s.CreateRule(ctx, makeRule("rule-c", 16, false, 14, 15), day(1)))
	require.NoError(t, s.CreateEvent(ctx, makeEvent("later", "rule-c", 14, 15), day(1)))

	// Rule already active: already consistent.
	require.NoError(t, s.CreateRule(ctx, makeRule("rule-d", 17, true, 10, 12), day(1)))
	require.NoError(t, s.CreateEvent(ctx, makeEvent("running", "rule-d", 10, 12), day(1)))

	// Rule suspended by an override: activation waits for restore.
	suspended := makeRule("rule-e", 18, false, 10, 12)
	suspended.Meta.SuspendedBy = "override-1"
	require.NoError(t, s.CreateRule(ctx, suspended, day(1)))
	require.NoError(t, s.CreateEvent(ctx, makeEvent("held", "rule-e", 10, 12), day(1)))

	got, err := s.FindUpcomingConfirmedEvents(ctx, day(6), day(13))
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "soon", got[0].ID)
	assert.Equal(t, "boundary", got[1].ID)
}
