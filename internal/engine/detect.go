package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/rateguard/internal/rules"
)

// ConflictType classifies how an existing rule collides with a
// candidate.
type ConflictType string

const (
	// ConflictPriority means the existing rule occupies the exact
	// priority the candidate wants over an overlapping window.
	ConflictPriority ConflictType = "PRIORITY_CONFLICT"

	// ConflictLogical means the two actions would produce incoherent
	// pricing if both applied: opposing intent, or same direction with
	// magnitudes too far apart.
	ConflictLogical ConflictType = "LOGICAL_CONFLICT"

	// ConflictDateOverlap means the ranges merely intersect;
	// informational only.
	ConflictDateOverlap ConflictType = "DATE_OVERLAP"
)

// Severity grades a conflict. Ordered: a report can proceed only when
// every conflict is at most SeverityLow.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// MarshalJSON renders the severity as its name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Conflict is one detected collision between the candidate and an
// existing active rule.
type Conflict struct {
	RuleID   string       `json:"rule_id"`
	RuleName string       `json:"rule_name"`
	Type     ConflictType `json:"type"`
	Severity Severity     `json:"severity"`
	Detail   string       `json:"detail"`
}

// ConflictReport is the derived, never-persisted result of conflict
// detection. Recomputed on demand.
type ConflictReport struct {
	HasConflicts    bool       `json:"has_conflicts"`
	CanProceed      bool       `json:"can_proceed"`
	Conflicts       []Conflict `json:"conflicts,omitempty"`
	Recommendations []string   `json:"recommendations,omitempty"`
}

// Candidate describes a rule being probed for conflicts before it
// exists. An invalid (zero) scope is treated as the wildcard.
type Candidate struct {
	Start    time.Time
	End      time.Time
	Priority int
	Action   rules.Action
	Scope    rules.Scope
}

// DetectConflicts scans the active rules overlapping the candidate's
// date range and classifies each overlap. Pure read: no side effects,
// safe to call concurrently and repeatedly.
func (e *Engine) DetectConflicts(ctx context.Context, cand Candidate) (*ConflictReport, error) {
	verr := &ValidationError{}
	if cand.Start.IsZero() || cand.End.IsZero() {
		verr.add("date_range", "start and end are required")
	} else if cand.End.Before(cand.Start) {
		verr.add("date_range", "end must not be before start")
	}
	if err := rules.ValidateAction(cand.Action); err != nil {
		verr.add("action", err.Error())
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	scope := cand.Scope
	if !scope.Valid() {
		scope = rules.ScopeAll()
	}

	existing, err := e.store.FindActiveRulesOverlapping(ctx, cand.Start, cand.End)
	if err != nil {
		return nil, fmt.Errorf("detect conflicts: %w", err)
	}

	report := &ConflictReport{CanProceed: true}
	for _, r := range existing {
		if !scope.Intersects(r.Scope) {
			continue
		}
		c := e.classify(cand, r)
		report.Conflicts = append(report.Conflicts, c)
		if c.Severity > SeverityLow {
			report.CanProceed = false
		}
	}
	report.HasConflicts = len(report.Conflicts) > 0
	report.Recommendations = recommendations(report.Conflicts)

	return report, nil
}

// classify determines the conflict type and severity for one
// candidate/existing pair whose ranges and scopes already intersect.
//
// Severity is a pure function of the two priorities and action
// magnitudes. The grading (documented defaults, threshold from
// policy):
//   - equal priority: MEDIUM, or CRITICAL when the intents also oppose
//   - opposing intent: HIGH, or CRITICAL when the combined swing
//     exceeds twice the incoherence threshold
//   - same direction, magnitude gap over the threshold: MEDIUM
//   - plain date overlap: LOW
func (e *Engine) classify(cand Candidate, r *rules.PricingRule) Conflict {
	c := Conflict{RuleID: r.ID, RuleName: r.Name}
	threshold := e.policy.IncoherenceThreshold

	opposing := rules.Opposing(cand.Action, r.Action)

	switch {
	case r.Priority == cand.Priority:
		c.Type = ConflictPriority
		c.Severity = SeverityMedium
		c.Detail = fmt.Sprintf("both rules hold priority %d over an overlapping window", r.Priority)
		if opposing {
			c.Severity = SeverityCritical
			c.Detail += " with opposing pricing intent"
		}

	case opposing:
		c.Type = ConflictLogical
		c.Severity = SeverityHigh
		swing := cand.Action.Magnitude() + r.Action.Magnitude()
		c.Detail = fmt.Sprintf("opposing pricing intent (%s vs %s)",
			cand.Action.Intent(), r.Action.Intent())
		if swing > 2*threshold {
			c.Severity = SeverityCritical
			c.Detail += fmt.Sprintf(", combined swing %.0f points", swing)
		}

	case sameDirection(cand.Action, r.Action) && magnitudeGap(cand.Action, r.Action) > threshold:
		c.Type = ConflictLogical
		c.Severity = SeverityMedium
		c.Detail = fmt.Sprintf("same direction but magnitudes differ by %.0f points (threshold %.0f)",
			magnitudeGap(cand.Action, r.Action), threshold)

	default:
		c.Type = ConflictDateOverlap
		c.Severity = SeverityLow
		c.Detail = fmt.Sprintf("date ranges overlap (%s to %s)",
			r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	}

	return c
}

func sameDirection(a, b rules.Action) bool {
	ia, ib := a.Intent(), b.Intent()
	return ia != rules.IntentNeutral && ia == ib
}

func magnitudeGap(a, b rules.Action) float64 {
	gap := a.Magnitude() - b.Magnitude()
	if gap < 0 {
		gap = -gap
	}
	return gap
}

// recommendations builds the human-readable guidance attached to a
// report.
func recommendations(conflicts []Conflict) []string {
	var recs []string
	for _, c := range conflicts {
		switch c.Type {
		case ConflictPriority:
			recs = append(recs, fmt.Sprintf(
				"choose a different priority or let the allocator shift away from rule %q", c.RuleName))
		case ConflictLogical:
			recs = append(recs, fmt.Sprintf(
				"review rule %q: %s", c.RuleName, c.Detail))
		}
	}
	if len(recs) == 0 && len(conflicts) > 0 {
		recs = append(recs, "overlaps are informational only; no action required")
	}
	for _, c := range conflicts {
		if c.Severity >= SeverityHigh {
			recs = append(recs, "if this change must take precedence, raise an emergency override instead")
			break
		}
	}
	return recs
}
