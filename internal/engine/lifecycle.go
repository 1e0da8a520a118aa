package engine

import (
	"context"
	"fmt"
	"log/slog"
)

// SweepResult summarizes one lifecycle sweep. Processed counts the
// records the sweep transitioned; Failures lists the records it could
// not, one entry per record.
type SweepResult struct {
	Processed []string      `json:"processed,omitempty"`
	Failures  []RuleFailure `json:"failures,omitempty"`
}

// CleanupExpiredEvents deactivates the rules of confirmed events whose
// date range has fully passed. Idempotent: a rule deactivated by an
// earlier sweep no longer matches the query. Failures on one event are
// logged and do not stop the sweep.
func (e *Engine) CleanupExpiredEvents(ctx context.Context) (*SweepResult, error) {
	now := e.clock.Now()
	expired, err := e.store.FindExpiredConfirmedEvents(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("cleanup expired events: %w", err)
	}

	res := &SweepResult{}
	for _, ev := range expired {
		r, err := e.store.GetRule(ctx, ev.RuleID)
		if err != nil {
			slog.Warn("cleanup: load rule failed", "event", ev.ID, "rule", ev.RuleID, "error", err)
			res.Failures = append(res.Failures, RuleFailure{RuleID: ev.RuleID, Err: err.Error()})
			continue
		}

		r.Active = false
		r.Meta.DeactivatedAt = &now
		r.Meta.DeactivationReason = "event ended"
		if err := e.store.UpdateRule(ctx, r, now); err != nil {
			slog.Warn("cleanup: deactivate rule failed", "event", ev.ID, "rule", r.ID, "error", err)
			res.Failures = append(res.Failures, RuleFailure{RuleID: r.ID, Err: err.Error()})
			continue
		}

		slog.Info("deactivated expired event rule", "event", ev.ID, "rule", r.ID, "ended", ev.End)
		e.recordAudit(ctx, "rule.deactivated", map[string]any{
			"rule_id":  r.ID,
			"event_id": ev.ID,
			"reason":   "event ended",
		})
		res.Processed = append(res.Processed, r.ID)
	}
	return res, nil
}

// ActivateUpcomingEventRules activates the inactive rules of confirmed
// events starting within the policy's lead window. Rules suspended by
// an override are excluded at the query level: suspension is reversed
// only by removing the override, never by proximity. Idempotent; per
// event failures are logged and skipped.
func (e *Engine) ActivateUpcomingEventRules(ctx context.Context) (*SweepResult, error) {
	now := e.clock.Now()
	deadline := now.Add(e.policy.LeadWindow())
	upcoming, err := e.store.FindUpcomingConfirmedEvents(ctx, now, deadline)
	if err != nil {
		return nil, fmt.Errorf("activate upcoming event rules: %w", err)
	}

	res := &SweepResult{}
	for _, ev := range upcoming {
		r, err := e.store.GetRule(ctx, ev.RuleID)
		if err != nil {
			slog.Warn("activation: load rule failed", "event", ev.ID, "rule", ev.RuleID, "error", err)
			res.Failures = append(res.Failures, RuleFailure{RuleID: ev.RuleID, Err: err.Error()})
			continue
		}
		if r.Suspended() {
			// Query should have excluded it; skip rather than fight an
			// override.
			continue
		}

		r.Active = true
		r.Meta.ActivatedAt = &now
		r.Meta.ActivationReason = "event approaching"
		if err := e.store.UpdateRule(ctx, r, now); err != nil {
			slog.Warn("activation: activate rule failed", "event", ev.ID, "rule", r.ID, "error", err)
			res.Failures = append(res.Failures, RuleFailure{RuleID: r.ID, Err: err.Error()})
			continue
		}

		slog.Info("activated upcoming event rule", "event", ev.ID, "rule", r.ID, "starts", ev.Start)
		e.recordAudit(ctx, "rule.activated", map[string]any{
			"rule_id":  r.ID,
			"event_id": ev.ID,
			"reason":   "event approaching",
		})
		res.Processed = append(res.Processed, r.ID)
	}
	return res, nil
}

// Sweep runs the three periodic passes in order: expire overdue
// overrides, deactivate ended event rules, activate approaching ones.
// Each pass runs even when an earlier one reports failures; the first
// query-level error aborts.
func (e *Engine) Sweep(ctx context.Context) (overrides, cleanup, activation *SweepResult, err error) {
	if overrides, err = e.AutoExpireOverrides(ctx); err != nil {
		return nil, nil, nil, err
	}
	if cleanup, err = e.CleanupExpiredEvents(ctx); err != nil {
		return overrides, nil, nil, err
	}
	if activation, err = e.ActivateUpcomingEventRules(ctx); err != nil {
		return overrides, cleanup, nil, err
	}
	return overrides, cleanup, activation, nil
}
