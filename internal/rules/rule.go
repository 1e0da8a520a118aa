package rules

import (
	"fmt"
	"time"
)

// Sources record what created a rule; stored in Meta.Source.
const (
	SourceEvent    = "event"
	SourceOverride = "override"
	SourceManual   = "manual"
)

// Meta is the provenance bag carried by every rule.
//
// Invariant: SuspendedRuleIDs may only be set on a rule whose Override
// flag is true - it records which rules the override suspended so the
// suspension can be reversed. SuspendedBy is the mirror image: set on a
// suspended rule, it names the override that suspended it and acts as
// the re-activation precondition (the rule is restored when that
// override is removed).
type Meta struct {
	CreatedBy string `json:"created_by,omitempty"`
	Source    string `json:"source,omitempty"`
	Reason    string `json:"reason,omitempty"`

	Override         bool     `json:"override,omitempty"`
	SuspendedRuleIDs []string `json:"suspended_rule_ids,omitempty"`
	SuspendedBy      string   `json:"suspended_by,omitempty"`

	ActivatedAt        *time.Time `json:"activated_at,omitempty"`
	ActivationReason   string     `json:"activation_reason,omitempty"`
	DeactivatedAt      *time.Time `json:"deactivated_at,omitempty"`
	DeactivationReason string     `json:"deactivation_reason,omitempty"`
	RestoredAt         *time.Time `json:"restored_at,omitempty"`
	RestorationReason  string     `json:"restoration_reason,omitempty"`
	ModifiedAt         *time.Time `json:"modified_at,omitempty"`
}

// PricingRule is a prioritized, time-bounded, scoped pricing action.
//
// Priority is an integer where a LOWER number means HIGHER precedence.
// The valid range is partitioned into bands by policy: a reserved
// low-numbered band for emergency overrides and a mid-range band for
// event-driven rules (see internal/policy).
//
// Start/End bound the rule's applicability. The range is treated the
// way the store's overlap query treats it: two rules overlap when
// neither ends before the other starts.
type PricingRule struct {
	ID          string
	Name        string
	Description string
	Priority    int
	Active      bool
	Start       time.Time
	End         time.Time
	Scope       Scope
	Action      Action
	Meta        Meta
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the structural invariants of a rule. It does not
// consult other rules; cross-rule checks (conflicts, priority
// collisions) belong to the engine.
func (r *PricingRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("rule date range is required")
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("rule date range is empty: end %s before start %s",
			r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	if err := ValidateAction(r.Action); err != nil {
		return fmt.Errorf("rule action: %w", err)
	}
	if !r.Meta.Override && len(r.Meta.SuspendedRuleIDs) > 0 {
		return fmt.Errorf("non-override rule must not carry suspended rule ids")
	}
	return nil
}

// Overlaps reports whether the rule's date range intersects [start, end].
// The test matches the store query: NOT(r.End before start OR r.Start
// after end), so ranges that merely touch at an endpoint still overlap.
func (r *PricingRule) Overlaps(start, end time.Time) bool {
	return !(r.End.Before(start) || r.Start.After(end))
}

// Suspended reports whether the rule is currently held inactive by an
// override.
func (r *PricingRule) Suspended() bool {
	return r.Meta.SuspendedBy != ""
}
