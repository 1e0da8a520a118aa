// Package policy holds the configurable constants the engine treats as
// policy rather than domain law: priority band boundaries, the category
// base-priority table, conflict severity thresholds, and the lifecycle
// lead window.
//
// Policy is declared in CUE. A default policy ships embedded in the
// binary; operators may override it with .cue files that are unified
// with (and constrained by) the embedded schema.
package policy

import (
	"fmt"
	"time"

	"github.com/roach88/rateguard/internal/rules"
)

// Band is an inclusive numeric priority range. Lower numbers take
// precedence, so Min is the band's most precedent slot.
type Band struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether p falls inside the band.
func (b Band) Contains(p int) bool {
	return p >= b.Min && p <= b.Max
}

// Midpoint returns the band's middle slot, used as the base priority
// for unknown event categories.
func (b Band) Midpoint() int {
	return (b.Min + b.Max) / 2
}

// Policy is the decoded, validated policy consumed by the engine.
type Policy struct {
	// OverrideBand is reserved for emergency overrides. Critical
	// urgency maps to Min, high urgency to Min+1.
	OverrideBand Band

	// EventBand is reserved for event-driven rules. Allocated
	// priorities never leave this band.
	EventBand Band

	// BasePriorities maps event categories to their base priority
	// inside EventBand. Categories missing from the table fall back to
	// the band midpoint.
	BasePriorities map[rules.Category]int

	// PrioritySearchBound limits how far (+/- slots) the allocator
	// searches around the base priority for a free slot.
	PrioritySearchBound int

	// IncoherenceThreshold is the magnitude gap, in percentage points,
	// beyond which two same-direction percent actions are treated as a
	// logical conflict.
	IncoherenceThreshold float64

	// LeadWindowDays is how many days before an event's start its rule
	// is activated.
	LeadWindowDays int
}

// LeadWindow returns the lead window as a duration.
func (p Policy) LeadWindow() time.Duration {
	return time.Duration(p.LeadWindowDays) * 24 * time.Hour
}

// BasePriority returns the base priority for a category, falling back
// to the event band midpoint for categories outside the table.
func (p Policy) BasePriority(c rules.Category) int {
	if base, ok := p.BasePriorities[c]; ok {
		return base
	}
	return p.EventBand.Midpoint()
}

// CriticalPriority returns the priority assigned to critical-urgency
// overrides: the most precedent slot of the override band.
func (p Policy) CriticalPriority() int {
	return p.OverrideBand.Min
}

// HighPriority returns the priority assigned to high-urgency overrides:
// one slot below critical.
func (p Policy) HighPriority() int {
	return p.OverrideBand.Min + 1
}

// Validate checks the internal consistency of a policy. The CUE schema
// enforces field-level constraints; this catches cross-field mistakes
// an override file could still introduce.
func (p Policy) Validate() error {
	if p.OverrideBand.Min <= 0 || p.OverrideBand.Max < p.OverrideBand.Min {
		return fmt.Errorf("override band [%d,%d] is invalid", p.OverrideBand.Min, p.OverrideBand.Max)
	}
	if p.EventBand.Min <= 0 || p.EventBand.Max < p.EventBand.Min {
		return fmt.Errorf("event band [%d,%d] is invalid", p.EventBand.Min, p.EventBand.Max)
	}
	if p.OverrideBand.Max >= p.EventBand.Min {
		return fmt.Errorf("override band [%d,%d] must precede event band [%d,%d]",
			p.OverrideBand.Min, p.OverrideBand.Max, p.EventBand.Min, p.EventBand.Max)
	}
	if p.HighPriority() > p.OverrideBand.Max {
		return fmt.Errorf("override band [%d,%d] too narrow for two urgency levels",
			p.OverrideBand.Min, p.OverrideBand.Max)
	}
	for cat, base := range p.BasePriorities {
		if !p.EventBand.Contains(base) {
			return fmt.Errorf("base priority %d for %s is outside event band [%d,%d]",
				base, cat, p.EventBand.Min, p.EventBand.Max)
		}
	}
	if p.PrioritySearchBound <= 0 {
		return fmt.Errorf("priority search bound must be positive, got %d", p.PrioritySearchBound)
	}
	if p.IncoherenceThreshold <= 0 {
		return fmt.Errorf("incoherence threshold must be positive, got %v", p.IncoherenceThreshold)
	}
	if p.LeadWindowDays <= 0 {
		return fmt.Errorf("lead window must be positive, got %d days", p.LeadWindowDays)
	}
	return nil
}
