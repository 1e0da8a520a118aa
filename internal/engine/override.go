package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/rateguard/internal/rules"
	"github.com/roach88/rateguard/internal/store"
)

// OverrideStrategy names the pre-baked emergency actions plus an escape
// hatch for a caller-supplied action.
type OverrideStrategy string

const (
	StrategyIncrease      OverrideStrategy = "increase"
	StrategyDecrease      OverrideStrategy = "decrease"
	StrategyBlockBookings OverrideStrategy = "block-bookings"
	StrategyCustom        OverrideStrategy = "custom"
)

// Urgency selects which slot of the override band the new rule takes.
type Urgency string

const (
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// OverrideRequest describes an emergency override to create. Reason and
// StaffID are mandatory: an override with no accountable author is
// rejected before anything is written.
type OverrideRequest struct {
	Name     string
	Strategy OverrideStrategy
	Urgency  Urgency
	Start    time.Time
	End      time.Time
	Scope    rules.Scope
	Reason   string
	StaffID  string

	// Percent feeds the increase and decrease strategies.
	Percent float64

	// Action is consulted only when Strategy is custom.
	Action rules.Action
}

func (req *OverrideRequest) validate() error {
	verr := &ValidationError{}
	if req.Name == "" {
		verr.add("name", "override name is required")
	}
	if req.Reason == "" {
		verr.add("reason", "a reason is required for every override")
	}
	if req.StaffID == "" {
		verr.add("staff_id", "the requesting staff member must be identified")
	}
	switch req.Urgency {
	case UrgencyHigh, UrgencyCritical:
	default:
		verr.add("urgency", fmt.Sprintf("unknown urgency %q (want %s or %s)", req.Urgency, UrgencyHigh, UrgencyCritical))
	}
	if req.Start.IsZero() || req.End.IsZero() {
		verr.add("date_range", "start and end are required")
	} else if req.End.Before(req.Start) {
		verr.add("date_range", "end must not be before start")
	}
	switch req.Strategy {
	case StrategyIncrease, StrategyDecrease:
		if req.Percent <= 0 {
			verr.add("percent", "a positive percent is required for percent strategies")
		}
	case StrategyBlockBookings:
	case StrategyCustom:
		if req.Action == nil {
			verr.add("action", "custom strategy requires an action")
		} else if err := rules.ValidateAction(req.Action); err != nil {
			verr.add("action", err.Error())
		}
	default:
		verr.add("strategy", fmt.Sprintf("unknown strategy %q", req.Strategy))
	}
	return verr.orNil()
}

func (req *OverrideRequest) action() rules.Action {
	switch req.Strategy {
	case StrategyIncrease:
		return rules.IncreasePercent{Percent: req.Percent}
	case StrategyDecrease:
		return rules.DecreasePercent{Percent: req.Percent}
	case StrategyBlockBookings:
		return rules.RestrictBookings{Block: true}
	default:
		return req.Action
	}
}

func (e *Engine) overridePriority(u Urgency) int {
	if u == UrgencyCritical {
		return e.policy.CriticalPriority()
	}
	return e.policy.HighPriority()
}

// CreateEmergencyOverride creates an immediately-active override rule
// in the reserved priority band and suspends every active non-override
// rule whose dates and scope intersect it. Suspended rules record the
// override's id so RemoveOverride can restore exactly that set.
//
// Suspension is applied rule by rule. When some suspensions fail the
// override still stands over the rules that were suspended; the
// returned PartialFailureError lists both halves and the override's
// meta records only the rules actually suspended.
func (e *Engine) CreateEmergencyOverride(ctx context.Context, req OverrideRequest) (*rules.PricingRule, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	now := e.clock.Now()

	scope := req.Scope
	if !scope.Valid() {
		scope = rules.ScopeAll()
	}

	overlapping, err := e.store.FindActiveRulesOverlapping(ctx, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("create override: %w", err)
	}
	var targets []*rules.PricingRule
	taken := make(map[int]bool)
	for _, r := range overlapping {
		if !scope.Intersects(r.Scope) {
			continue
		}
		if r.Meta.Override {
			taken[r.Priority] = true
			continue
		}
		targets = append(targets, r)
	}

	// Overrides are never suspended, so when another active override
	// already holds the urgency slot the new one takes the next free
	// slot of the band instead of colliding with it.
	priority := e.overridePriority(req.Urgency)
	for taken[priority] && priority < e.policy.OverrideBand.Max {
		priority++
	}

	ov := &rules.PricingRule{
		ID:       e.ids.Generate(),
		Name:     rules.CanonicalName(req.Name),
		Priority: priority,
		Active:   true,
		Start:    req.Start,
		End:      req.End,
		Scope:    scope,
		Action:   req.action(),
		Meta: rules.Meta{
			CreatedBy: req.StaffID,
			Source:    rules.SourceOverride,
			Reason:    req.Reason,
			Override:  true,
		},
	}
	for _, t := range targets {
		ov.Meta.SuspendedRuleIDs = append(ov.Meta.SuspendedRuleIDs, t.ID)
	}
	if err := ov.Validate(); err != nil {
		return nil, &ValidationError{Errors: []FieldError{{Field: "override", Message: err.Error()}}}
	}
	if err := e.store.CreateRule(ctx, ov, now); err != nil {
		return nil, fmt.Errorf("create override: %w", err)
	}

	var applied []string
	var failures []RuleFailure
	for _, t := range targets {
		t.Active = false
		t.Meta.SuspendedBy = ov.ID
		t.Meta.DeactivatedAt = &now
		t.Meta.DeactivationReason = fmt.Sprintf("suspended by override %s", ov.ID)
		if err := e.store.UpdateRule(ctx, t, now); err != nil {
			slog.Warn("override: suspend rule failed", "override", ov.ID, "rule", t.ID, "error", err)
			failures = append(failures, RuleFailure{RuleID: t.ID, Err: err.Error()})
			continue
		}
		applied = append(applied, t.ID)
	}

	e.notify(ctx, fmt.Sprintf("emergency override %q (%s) active %s to %s by %s: %s",
		ov.Name, req.Urgency, ov.Start.Format("2006-01-02"), ov.End.Format("2006-01-02"),
		req.StaffID, req.Reason))
	e.recordAudit(ctx, "override.created", map[string]any{
		"override_id": ov.ID,
		"staff_id":    req.StaffID,
		"urgency":     string(req.Urgency),
		"reason":      req.Reason,
		"suspended":   applied,
	})

	if len(failures) > 0 {
		// Record only the rules we actually hold suspended.
		ov.Meta.SuspendedRuleIDs = applied
		if uerr := e.store.UpdateRule(ctx, ov, now); uerr != nil {
			slog.Warn("override: record partial suspension failed", "override", ov.ID, "error", uerr)
		}
		return ov, &PartialFailureError{Op: "suspend conflicting rules", Applied: applied, Failures: failures}
	}
	return ov, nil
}

// RemoveOverride deactivates an override and restores every rule it
// suspended. Restoration stamps each rule's meta with when and why it
// came back. Calling it on a rule that is not an override returns a
// NotFoundError with kind "override rule": from the override service's
// point of view no such override exists.
func (e *Engine) RemoveOverride(ctx context.Context, id, staffID, reason string) error {
	ov, err := e.store.GetRule(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRuleNotFound) {
			return &NotFoundError{Kind: "rule", ID: id}
		}
		return fmt.Errorf("remove override: %w", err)
	}
	if !ov.Meta.Override {
		return &NotFoundError{Kind: "override rule", ID: id}
	}
	now := e.clock.Now()

	suspended, err := e.store.FindRulesSuspendedBy(ctx, id)
	if err != nil {
		return fmt.Errorf("remove override: %w", err)
	}

	var applied []string
	var failures []RuleFailure
	for _, r := range suspended {
		r.Active = true
		r.Meta.SuspendedBy = ""
		r.Meta.RestoredAt = &now
		r.Meta.RestorationReason = fmt.Sprintf("override %s removed", id)
		if err := e.store.UpdateRule(ctx, r, now); err != nil {
			slog.Warn("override: restore rule failed", "override", id, "rule", r.ID, "error", err)
			failures = append(failures, RuleFailure{RuleID: r.ID, Err: err.Error()})
			continue
		}
		applied = append(applied, r.ID)
	}

	ov.Active = false
	ov.Meta.DeactivatedAt = &now
	ov.Meta.DeactivationReason = reason
	if err := e.store.UpdateRule(ctx, ov, now); err != nil {
		return fmt.Errorf("remove override: deactivate %s: %w", id, err)
	}

	e.notify(ctx, fmt.Sprintf("override %q removed by %s: %s (%d rule(s) restored)",
		ov.Name, staffID, reason, len(applied)))
	e.recordAudit(ctx, "override.removed", map[string]any{
		"override_id": id,
		"staff_id":    staffID,
		"reason":      reason,
		"restored":    applied,
	})

	if len(failures) > 0 {
		return &PartialFailureError{Op: "restore suspended rules", Applied: applied, Failures: failures}
	}
	return nil
}

// OverrideUpdate carries the mutable fields of an override. Nil
// pointers leave the current value in place.
type OverrideUpdate struct {
	Start  *time.Time
	End    *time.Time
	Scope  *rules.Scope
	Reason *string
	Action rules.Action
}

// UpdateOverrideRule amends an active override's date range, scope,
// reason, or action. Only overrides can be updated through this path,
// and no conflict detection runs: an override already outranks
// everything it overlaps. ModifiedAt is stamped so the audit trail
// shows the change.
func (e *Engine) UpdateOverrideRule(ctx context.Context, id string, upd OverrideUpdate) (*rules.PricingRule, error) {
	ov, err := e.store.GetRule(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRuleNotFound) {
			return nil, &NotFoundError{Kind: "rule", ID: id}
		}
		return nil, fmt.Errorf("update override: %w", err)
	}
	if !ov.Meta.Override {
		return nil, &NotFoundError{Kind: "override rule", ID: id}
	}
	now := e.clock.Now()

	if upd.Start != nil {
		ov.Start = *upd.Start
	}
	if upd.End != nil {
		ov.End = *upd.End
	}
	if upd.Scope != nil {
		ov.Scope = *upd.Scope
	}
	if upd.Reason != nil {
		ov.Meta.Reason = *upd.Reason
	}
	if upd.Action != nil {
		ov.Action = upd.Action
	}
	ov.Meta.ModifiedAt = &now
	if err := ov.Validate(); err != nil {
		return nil, &ValidationError{Errors: []FieldError{{Field: "override", Message: err.Error()}}}
	}
	if err := e.store.UpdateRule(ctx, ov, now); err != nil {
		return nil, fmt.Errorf("update override: %w", err)
	}

	e.recordAudit(ctx, "override.updated", map[string]any{"override_id": id})
	return ov, nil
}

// AutoExpireOverrides removes every active override whose end date has
// passed, restoring the rules each one suspended. Runs as part of the
// periodic sweep; expiry is attributed to the system rather than a
// staff member. Failures on one override never block the rest.
func (e *Engine) AutoExpireOverrides(ctx context.Context) (*SweepResult, error) {
	now := e.clock.Now()
	overrides, err := e.store.ListActiveOverrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("auto-expire overrides: %w", err)
	}

	res := &SweepResult{}
	for _, ov := range overrides {
		if !ov.End.Before(now) {
			continue
		}
		if err := e.RemoveOverride(ctx, ov.ID, "system", "auto-expired"); err != nil {
			slog.Warn("auto-expire: remove override failed", "override", ov.ID, "error", err)
			res.Failures = append(res.Failures, RuleFailure{RuleID: ov.ID, Err: err.Error()})
			continue
		}
		res.Processed = append(res.Processed, ov.ID)
	}
	return res, nil
}

// GetActiveOverrides lists the overrides currently in force, most
// urgent first.
func (e *Engine) GetActiveOverrides(ctx context.Context) ([]*rules.PricingRule, error) {
	overrides, err := e.store.ListActiveOverrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active overrides: %w", err)
	}
	return overrides, nil
}
