package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/rateguard/internal/engine"
	"github.com/roach88/rateguard/internal/policy"
	"github.com/roach88/rateguard/internal/rules"
	"github.com/roach88/rateguard/internal/store"
	"github.com/roach88/rateguard/internal/testutil"
)

// TraceEvent is one executed step in a scenario trace.
type TraceEvent struct {
	Op     string         `json:"op"`
	Status string         `json:"status"`
	Detail map[string]any `json:"detail,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expect and every assertion matched.
	Pass bool `json:"pass"`

	// Trace lists the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds expect and assertion mismatches. Empty when Pass.
	Errors []string `json:"errors,omitempty"`
}

// AddError records a mismatch and marks the result failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// runner holds the wired stack for one scenario execution.
type runner struct {
	eng   *engine.Engine
	st    *store.Store
	clock *testutil.FakeClock
}

// Run executes a scenario against a fresh SQLite database at dbPath.
// The clock starts frozen at the scenario's start_at and moves only on
// advance steps; ids come from the scenario's fixed sequence.
func Run(dbPath string, sc *Scenario) (*Result, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open scenario store: %w", err)
	}
	defer st.Close()

	startAt, err := time.Parse("2006-01-02", sc.StartAt)
	if err != nil {
		return nil, fmt.Errorf("start_at: %w", err)
	}
	clock := testutil.NewFakeClock(startAt)

	eng := engine.New(st, policy.Default(),
		engine.WithClock(clock),
		engine.WithIDGenerator(engine.NewFixedIDGenerator(sc.IDs...)),
		engine.WithNotifier(&testutil.RecordingNotifier{}),
		engine.WithAuditLog(&testutil.RecordingAuditLog{}),
	)

	r := &runner{eng: eng, st: st, clock: clock}
	result := &Result{Pass: true}
	ctx := context.Background()

	for i, step := range sc.Steps {
		detail, err := r.execute(ctx, &step)
		ev := TraceEvent{Op: step.Op, Status: statusOf(err), Detail: detail}
		result.Trace = append(result.Trace, ev)

		for key, want := range step.Expect {
			got, ok := detail[key]
			if !ok {
				result.AddError("steps[%d] %s: expect %s: no such result field", i, step.Op, key)
				continue
			}
			if fmt.Sprint(got) != fmt.Sprint(want) {
				result.AddError("steps[%d] %s: expect %s: got %v, want %v", i, step.Op, key, got, want)
			}
		}
	}

	for i, a := range sc.Assertions {
		if err := r.assertFinal(ctx, &a, result); err != nil {
			result.AddError("assertions[%d]: %v", i, err)
		}
	}
	return result, nil
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case engine.IsValidation(err):
		return "validation"
	case engine.IsConflict(err):
		return "conflict"
	case engine.IsNotFound(err):
		return "not_found"
	case engine.IsPartialFailure(err):
		return "partial_failure"
	default:
		return "error"
	}
}

func (r *runner) execute(ctx context.Context, s *Step) (map[string]any, error) {
	switch s.Op {
	case OpAdvance:
		d, err := time.ParseDuration(s.Advance)
		if err != nil {
			return nil, err
		}
		now := r.clock.Advance(d)
		return map[string]any{"now": now.Format("2006-01-02 15:04:05")}, nil

	case OpSeedRule:
		return r.seedRule(ctx, s)

	case OpSeedEvent:
		return r.seedEvent(ctx, s)

	case OpCreateEvent:
		return r.createEvent(ctx, s)

	case OpCreateOverride:
		return r.createOverride(ctx, s)

	case OpRemoveOverride:
		return r.removeOverride(ctx, s)

	case OpListOverrides:
		return r.listOverrides(ctx)

	case OpCheck:
		return r.check(ctx, s)

	case OpSweep:
		return r.sweep(ctx)

	default:
		return nil, fmt.Errorf("unknown op %q", s.Op)
	}
}

func (s *Step) dates() (start, end time.Time, err error) {
	if start, err = time.Parse("2006-01-02", s.Start); err != nil {
		return
	}
	end, err = time.Parse("2006-01-02", s.End)
	return
}

func (a *ActionSpec) toAction() rules.Action {
	switch rules.ActionKind(a.Kind) {
	case rules.ActionIncreasePercent:
		return rules.IncreasePercent{Percent: a.Percent}
	case rules.ActionDecreasePercent:
		return rules.DecreasePercent{Percent: a.Percent}
	case rules.ActionSetRate:
		return rules.SetRate{RateCents: a.RateCents}
	default:
		return rules.RestrictBookings{Block: a.Block || a.MinStay == 0, MinStayNights: a.MinStay}
	}
}

func scopeOf(rooms []string) rules.Scope {
	if len(rooms) == 0 {
		return rules.ScopeAll()
	}
	return rules.ScopeOf(rooms...)
}

func (r *runner) seedRule(ctx context.Context, s *Step) (map[string]any, error) {
	start, end, err := s.dates()
	if err != nil {
		return nil, err
	}
	active := true
	if s.Active != nil {
		active = *s.Active
	}
	rule := &rules.PricingRule{
		ID:       s.ID,
		Name:     s.Name,
		Priority: s.Priority,
		Active:   active,
		Start:    start,
		End:      end,
		Scope:    scopeOf(s.Rooms),
		Action:   s.Action.toAction(),
		Meta:     rules.Meta{Source: rules.SourceManual},
	}
	if rule.Name == "" {
		rule.Name = s.ID
	}
	if err := r.st.CreateRule(ctx, rule, r.clock.Now()); err != nil {
		return nil, err
	}
	return map[string]any{"rule_id": s.ID}, nil
}

func (r *runner) seedEvent(ctx context.Context, s *Step) (map[string]any, error) {
	start, end, err := s.dates()
	if err != nil {
		return nil, err
	}
	cat := rules.Category(s.Category)
	if cat == "" {
		cat = rules.CategoryOther
	}
	ev := &rules.Event{
		ID:       s.ID,
		Title:    s.Title,
		Start:    start,
		End:      end,
		Category: cat,
		Status:   rules.StatusConfirmed,
		RuleID:   s.Rule,
	}
	if ev.Title == "" {
		ev.Title = s.ID
	}
	if err := r.st.CreateEvent(ctx, ev, r.clock.Now()); err != nil {
		return nil, err
	}
	return map[string]any{"event_id": s.ID}, nil
}

func (r *runner) createEvent(ctx context.Context, s *Step) (map[string]any, error) {
	start, end, err := s.dates()
	if err != nil {
		return nil, err
	}
	cat := rules.Category(s.Category)
	if cat == "" {
		cat = rules.CategoryOther
	}
	ev := &rules.Event{
		ID:       s.ID,
		Title:    s.Title,
		Start:    start,
		End:      end,
		Category: cat,
		Status:   rules.StatusConfirmed,
	}
	rule, err := r.eng.CreateEventRule(ctx, ev, engine.SuggestedRule{
		Priority: s.Suggested,
		Action:   s.Action.toAction(),
		Scope:    scopeOf(s.Rooms),
		Origin:   "scenario",
	})
	if err != nil {
		return conflictDetail(err), err
	}
	return map[string]any{
		"event_id": ev.ID,
		"rule_id":  rule.ID,
		"priority": rule.Priority,
	}, nil
}

func (r *runner) createOverride(ctx context.Context, s *Step) (map[string]any, error) {
	start, end, err := s.dates()
	if err != nil {
		return nil, err
	}
	urgency := engine.Urgency(s.Urgency)
	if urgency == "" {
		urgency = engine.UrgencyHigh
	}
	ov, err := r.eng.CreateEmergencyOverride(ctx, engine.OverrideRequest{
		Name:     s.Name,
		Strategy: engine.OverrideStrategy(s.Strategy),
		Percent:  s.Percent,
		Urgency:  urgency,
		Start:    start,
		End:      end,
		Scope:    scopeOf(s.Rooms),
		Reason:   s.Reason,
		StaffID:  s.Staff,
	})
	if err != nil && !engine.IsPartialFailure(err) {
		return nil, err
	}
	return map[string]any{
		"override_id": ov.ID,
		"priority":    ov.Priority,
		"suspended":   ov.Meta.SuspendedRuleIDs,
	}, err
}

func (r *runner) removeOverride(ctx context.Context, s *Step) (map[string]any, error) {
	suspended, err := r.st.FindRulesSuspendedBy(ctx, s.Rule)
	if err != nil {
		return nil, err
	}
	restored := make([]string, len(suspended))
	for i, rule := range suspended {
		restored[i] = rule.ID
	}
	if err := r.eng.RemoveOverride(ctx, s.Rule, s.Staff, s.Reason); err != nil {
		return nil, err
	}
	return map[string]any{"restored": restored}, nil
}

func (r *runner) listOverrides(ctx context.Context) (map[string]any, error) {
	overrides, err := r.eng.GetActiveOverrides(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]map[string]any, len(overrides))
	for i, ov := range overrides {
		list[i] = map[string]any{
			"id":       ov.ID,
			"name":     ov.Name,
			"priority": ov.Priority,
		}
	}
	return map[string]any{"overrides": list}, nil
}

func (r *runner) check(ctx context.Context, s *Step) (map[string]any, error) {
	start, end, err := s.dates()
	if err != nil {
		return nil, err
	}
	report, err := r.eng.DetectConflicts(ctx, engine.Candidate{
		Start:    start,
		End:      end,
		Priority: s.Priority,
		Action:   s.Action.toAction(),
		Scope:    scopeOf(s.Rooms),
	})
	if err != nil {
		return nil, err
	}
	return reportDetail(report), nil
}

func (r *runner) sweep(ctx context.Context) (map[string]any, error) {
	overrides, cleanup, activation, err := r.eng.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"expired_overrides": overrides.Processed,
		"deactivated":       cleanup.Processed,
		"activated":         activation.Processed,
	}, nil
}

// conflictDetail extracts the report from a ConflictError so blocked
// steps still show what blocked them in the trace.
func conflictDetail(err error) map[string]any {
	var cerr *engine.ConflictError
	if !errors.As(err, &cerr) {
		return nil
	}
	return reportDetail(cerr.Report)
}

func reportDetail(report *engine.ConflictReport) map[string]any {
	conflicts := make([]map[string]any, len(report.Conflicts))
	for i, c := range report.Conflicts {
		conflicts[i] = map[string]any{
			"rule":     c.RuleID,
			"type":     string(c.Type),
			"severity": c.Severity.String(),
		}
	}
	detail := map[string]any{"can_proceed": report.CanProceed}
	if len(conflicts) > 0 {
		detail["conflicts"] = conflicts
	}
	return detail
}

func (r *runner) assertFinal(ctx context.Context, a *Assertion, result *Result) error {
	var fields map[string]any
	switch a.Type {
	case AssertRuleState:
		rule, err := r.st.GetRule(ctx, a.Rule)
		if err != nil {
			return fmt.Errorf("rule %s: %w", a.Rule, err)
		}
		fields = map[string]any{
			"active":       rule.Active,
			"priority":     rule.Priority,
			"suspended_by": rule.Meta.SuspendedBy,
			"override":     rule.Meta.Override,
		}
	case AssertEventStatus:
		ev, err := r.st.GetEvent(ctx, a.Event)
		if err != nil {
			return fmt.Errorf("event %s: %w", a.Event, err)
		}
		fields = map[string]any{
			"status":  string(ev.Status),
			"rule_id": ev.RuleID,
		}
	}

	for key, want := range a.Expect {
		got, ok := fields[key]
		if !ok {
			result.AddError("%s %s: unknown field %q", a.Type, a.Rule+a.Event, key)
			continue
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			result.AddError("%s %s: %s: got %v, want %v", a.Type, a.Rule+a.Event, key, got, want)
		}
	}
	return nil
}
