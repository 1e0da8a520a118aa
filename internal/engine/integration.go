package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/rateguard/internal/rules"
	"github.com/roach88/rateguard/internal/store"
)

// SuggestedRule is what an event source proposes alongside an event: an
// action, an optional explicit priority (zero lets the allocator
// choose), and provenance for the audit trail.
type SuggestedRule struct {
	Priority   int
	Action     rules.Action
	Scope      rules.Scope
	Origin     string
	Confidence float64
	Notes      string
}

// CreateEventRule persists an event together with its pricing rule,
// running the full pipeline: allocate a priority, detect conflicts,
// and only then write. The rule is created inactive; the activation
// sweep brings it live once the event enters the lead window.
//
// When detection still finds blocking conflicts at the allocated slot
// nothing is written and the returned ConflictError carries the
// report.
func (e *Engine) CreateEventRule(ctx context.Context, ev *rules.Event, sug SuggestedRule) (*rules.PricingRule, error) {
	if err := ev.Validate(); err != nil {
		return nil, &ValidationError{Errors: []FieldError{{Field: "event", Message: err.Error()}}}
	}
	if err := rules.ValidateAction(sug.Action); err != nil {
		return nil, &ValidationError{Errors: []FieldError{{Field: "action", Message: err.Error()}}}
	}
	ev.Title = rules.CanonicalName(ev.Title)
	now := e.clock.Now()

	// The allocator, not the source, decides where the rule lands: the
	// suggested priority is recorded for the audit trail but the slot
	// comes from the category table and the occupied-slot search.
	final, err := e.CalculateEventPriority(ctx, ev)
	if err != nil {
		return nil, err
	}
	proposed := sug.Priority
	if proposed == 0 {
		proposed = final
	}

	scope := sug.Scope
	if !scope.Valid() {
		scope = rules.ScopeAll()
	}
	report, err := e.DetectConflicts(ctx, Candidate{
		Start:    ev.Start,
		End:      ev.End,
		Priority: final,
		Action:   sug.Action,
		Scope:    scope,
	})
	if err != nil {
		return nil, err
	}
	if !report.CanProceed {
		return nil, &ConflictError{Report: report}
	}

	r := &rules.PricingRule{
		ID:          e.ids.Generate(),
		Name:        ev.Title,
		Description: ev.Description,
		Priority:    final,
		Active:      false,
		Start:       ev.Start,
		End:         ev.End,
		Scope:       scope,
		Action:      sug.Action,
		Meta: rules.Meta{
			Source: rules.SourceEvent,
			Reason: fmt.Sprintf("event %s", ev.Title),
		},
	}
	if err := r.Validate(); err != nil {
		return nil, &ValidationError{Errors: []FieldError{{Field: "rule", Message: err.Error()}}}
	}
	if err := e.store.CreateRule(ctx, r, now); err != nil {
		return nil, fmt.Errorf("create event rule: %w", err)
	}

	if ev.ID == "" {
		ev.ID = e.ids.Generate()
	}
	ev.RuleID = r.ID
	ev.Suggestion = &rules.Suggestion{
		Origin:           sug.Origin,
		Confidence:       sug.Confidence,
		Notes:            sug.Notes,
		ProposedPriority: proposed,
		FinalPriority:    final,
	}
	if err := e.store.CreateEvent(ctx, ev, now); err != nil {
		// Roll back the orphan rule so a retry starts clean.
		if derr := e.store.DeleteRule(ctx, r.ID); derr != nil {
			slog.Warn("create event rule: orphan rule cleanup failed", "rule", r.ID, "error", derr)
		}
		return nil, fmt.Errorf("create event rule: %w", err)
	}

	slog.Info("created event rule", "event", ev.ID, "rule", r.ID,
		"proposed_priority", proposed, "final_priority", final)
	e.recordAudit(ctx, "event_rule.created", map[string]any{
		"event_id":          ev.ID,
		"rule_id":           r.ID,
		"proposed_priority": proposed,
		"final_priority":    final,
	})
	return r, nil
}

// UpdateEventRule saves changes to an event and mirrors its date range
// to the linked rule. Conflict detection does not re-run on updates;
// the rule keeps its priority.
func (e *Engine) UpdateEventRule(ctx context.Context, ev *rules.Event) error {
	if err := ev.Validate(); err != nil {
		return &ValidationError{Errors: []FieldError{{Field: "event", Message: err.Error()}}}
	}
	now := e.clock.Now()

	if err := e.store.UpdateEvent(ctx, ev, now); err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			return &NotFoundError{Kind: "event", ID: ev.ID}
		}
		return fmt.Errorf("update event: %w", err)
	}

	if ev.RuleID == "" {
		return nil
	}
	r, err := e.store.GetRule(ctx, ev.RuleID)
	if err != nil {
		if errors.Is(err, store.ErrRuleNotFound) {
			return &NotFoundError{Kind: "rule", ID: ev.RuleID}
		}
		return fmt.Errorf("update event rule: %w", err)
	}
	if r.Start.Equal(ev.Start) && r.End.Equal(ev.End) {
		return nil
	}
	r.Start = ev.Start
	r.End = ev.End
	r.Meta.ModifiedAt = &now
	if err := e.store.UpdateRule(ctx, r, now); err != nil {
		return fmt.Errorf("update event rule: %w", err)
	}
	e.recordAudit(ctx, "event_rule.updated", map[string]any{
		"event_id": ev.ID,
		"rule_id":  r.ID,
	})
	return nil
}

// DeleteEventRule removes an event and its linked rule, rule first so a
// failure never leaves a rule without its event. Deleting an event that
// does not exist is a no-op.
func (e *Engine) DeleteEventRule(ctx context.Context, eventID string) error {
	ev, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			return nil
		}
		return fmt.Errorf("delete event rule: %w", err)
	}

	if ev.RuleID != "" {
		if err := e.store.DeleteRule(ctx, ev.RuleID); err != nil && !errors.Is(err, store.ErrRuleNotFound) {
			return fmt.Errorf("delete event rule %s: %w", ev.RuleID, err)
		}
	}
	if err := e.store.DeleteEvent(ctx, eventID); err != nil && !errors.Is(err, store.ErrEventNotFound) {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	e.recordAudit(ctx, "event_rule.deleted", map[string]any{
		"event_id": eventID,
		"rule_id":  ev.RuleID,
	})
	return nil
}

// CreateQuickEventOverride raises an emergency override and records a
// confirmed event explaining it, linked to the override rule. Used when
// an unforeseen event (a sudden cancellation wave, a surprise
// announcement) needs both a pricing response and a calendar record.
func (e *Engine) CreateQuickEventOverride(ctx context.Context, req OverrideRequest, category rules.Category) (*rules.PricingRule, *rules.Event, error) {
	ov, err := e.CreateEmergencyOverride(ctx, req)
	if err != nil && !IsPartialFailure(err) {
		return nil, nil, err
	}
	overrideErr := err
	now := e.clock.Now()

	ev := &rules.Event{
		ID:          e.ids.Generate(),
		Title:       rules.CanonicalName(req.Name),
		Description: req.Reason,
		Start:       req.Start,
		End:         req.End,
		Category:    category,
		Status:      rules.StatusConfirmed,
		RuleID:      ov.ID,
	}
	if verr := ev.Validate(); verr != nil {
		return ov, nil, &ValidationError{Errors: []FieldError{{Field: "event", Message: verr.Error()}}}
	}
	if cerr := e.store.CreateEvent(ctx, ev, now); cerr != nil {
		return ov, nil, fmt.Errorf("quick event override: record event: %w", cerr)
	}
	return ov, ev, overrideErr
}
