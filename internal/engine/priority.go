package engine

import (
	"context"
	"fmt"

	"github.com/roach88/rateguard/internal/rules"
)

// CalculateEventPriority picks a free priority slot for an event rule.
//
// The base priority comes from the policy's category table (unknown
// categories fall back to the event band midpoint). When the base slot
// is already held by an active rule whose dates overlap the event, the
// allocator searches outward up to the policy's search bound, trying
// each distance in both directions and preferring the numerically
// smaller (more urgent) slot on ties. Slots outside the event band are
// never considered. If every slot within the bound is taken, the band
// maximum is returned even if occupied; detection will surface the
// collision.
func (e *Engine) CalculateEventPriority(ctx context.Context, ev *rules.Event) (int, error) {
	if err := ev.Validate(); err != nil {
		return 0, err
	}

	base := e.policy.BasePriority(ev.Category)

	overlapping, err := e.store.FindActiveRulesOverlapping(ctx, ev.Start, ev.End)
	if err != nil {
		return 0, fmt.Errorf("calculate event priority: %w", err)
	}
	taken := make(map[int]bool, len(overlapping))
	for _, r := range overlapping {
		taken[r.Priority] = true
	}

	if !taken[base] {
		return base, nil
	}

	band := e.policy.EventBand
	for dist := 1; dist <= e.policy.PrioritySearchBound; dist++ {
		if slot := base - dist; band.Contains(slot) && !taken[slot] {
			return slot, nil
		}
		if slot := base + dist; band.Contains(slot) && !taken[slot] {
			return slot, nil
		}
	}

	return band.Max, nil
}
