package rules

import (
	"encoding/json"
	"fmt"
)

// ActionKind discriminates the closed set of pricing actions.
type ActionKind string

const (
	// ActionIncreasePercent raises the nightly rate by a percentage.
	ActionIncreasePercent ActionKind = "increase-percent"

	// ActionDecreasePercent lowers the nightly rate by a percentage.
	ActionDecreasePercent ActionKind = "decrease-percent"

	// ActionSetRate replaces the nightly rate with an absolute value.
	ActionSetRate ActionKind = "set-rate"

	// ActionRestrictBookings applies a booking restriction instead of
	// changing the price (block new bookings, or require a minimum stay).
	ActionRestrictBookings ActionKind = "restrict-bookings"
)

// Intent classifies the pricing direction of an action. Two actions with
// opposing intent over the same window are logically contradictory.
type Intent int

const (
	// IntentNeutral means the action neither raises nor lowers the rate
	// relative to the base price (absolute rates, restrictions).
	IntentNeutral Intent = iota

	// IntentRaise means the action increases the rate.
	IntentRaise

	// IntentLower means the action decreases the rate.
	IntentLower
)

// String returns the intent name for logs and conflict details.
func (i Intent) String() string {
	switch i {
	case IntentRaise:
		return "raise"
	case IntentLower:
		return "lower"
	default:
		return "neutral"
	}
}

// Action is the closed sum of pricing actions a rule can carry.
//
// The unexported marker method keeps the set closed: only types in this
// package can satisfy the interface, so an invalid kind/value pairing
// cannot be constructed by callers.
type Action interface {
	// Kind returns the discriminator used for storage and display.
	Kind() ActionKind

	// Intent returns the pricing direction of the action.
	Intent() Intent

	// Magnitude returns the size of the action in percentage points.
	// Zero for actions without a percentage (absolute rates, restrictions).
	Magnitude() float64

	isAction()
}

// IncreasePercent raises the rate by Percent percentage points.
type IncreasePercent struct {
	Percent float64 `json:"percent"`
}

func (IncreasePercent) Kind() ActionKind     { return ActionIncreasePercent }
func (IncreasePercent) Intent() Intent       { return IntentRaise }
func (a IncreasePercent) Magnitude() float64 { return a.Percent }
func (IncreasePercent) isAction()            {}

// DecreasePercent lowers the rate by Percent percentage points.
type DecreasePercent struct {
	Percent float64 `json:"percent"`
}

func (DecreasePercent) Kind() ActionKind     { return ActionDecreasePercent }
func (DecreasePercent) Intent() Intent       { return IntentLower }
func (a DecreasePercent) Magnitude() float64 { return a.Percent }
func (DecreasePercent) isAction()            {}

// SetRate replaces the nightly rate with an absolute value in cents.
type SetRate struct {
	RateCents int64 `json:"rate_cents"`
}

func (SetRate) Kind() ActionKind { return ActionSetRate }
func (SetRate) Intent() Intent   { return IntentNeutral }
func (SetRate) Magnitude() float64 {
	return 0
}
func (SetRate) isAction() {}

// RestrictBookings applies a booking restriction for the rule's window.
// Block closes the window to new bookings entirely; MinStayNights, when
// non-zero, requires stays of at least that length instead.
type RestrictBookings struct {
	Block         bool `json:"block"`
	MinStayNights int  `json:"min_stay_nights,omitempty"`
}

func (RestrictBookings) Kind() ActionKind   { return ActionRestrictBookings }
func (RestrictBookings) Intent() Intent     { return IntentNeutral }
func (RestrictBookings) Magnitude() float64 { return 0 }
func (RestrictBookings) isAction()          {}

// actionEnvelope is the storage form of an Action: an explicit kind tag
// plus the kind-specific value object.
type actionEnvelope struct {
	Kind  ActionKind      `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalAction serializes an action to its tagged JSON envelope.
func MarshalAction(a Action) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("marshal action: action is nil")
	}

	value, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal action value: %w", err)
	}

	return json.Marshal(actionEnvelope{Kind: a.Kind(), Value: value})
}

// UnmarshalAction parses the tagged JSON envelope back into an Action.
// Unknown kinds are rejected rather than silently dropped.
func UnmarshalAction(data []byte) (Action, error) {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal action envelope: %w", err)
	}

	switch env.Kind {
	case ActionIncreasePercent:
		var a IncreasePercent
		if err := json.Unmarshal(env.Value, &a); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Kind, err)
		}
		return a, nil

	case ActionDecreasePercent:
		var a DecreasePercent
		if err := json.Unmarshal(env.Value, &a); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Kind, err)
		}
		return a, nil

	case ActionSetRate:
		var a SetRate
		if err := json.Unmarshal(env.Value, &a); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Kind, err)
		}
		return a, nil

	case ActionRestrictBookings:
		var a RestrictBookings
		if err := json.Unmarshal(env.Value, &a); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Kind, err)
		}
		return a, nil

	default:
		return nil, fmt.Errorf("unknown action kind: %q", env.Kind)
	}
}

// ValidateAction checks the kind-specific value constraints.
func ValidateAction(a Action) error {
	if a == nil {
		return fmt.Errorf("action is required")
	}

	switch v := a.(type) {
	case IncreasePercent:
		if v.Percent <= 0 {
			return fmt.Errorf("increase-percent: percent must be positive, got %v", v.Percent)
		}
	case DecreasePercent:
		if v.Percent <= 0 {
			return fmt.Errorf("decrease-percent: percent must be positive, got %v", v.Percent)
		}
		if v.Percent >= 100 {
			return fmt.Errorf("decrease-percent: percent must be below 100, got %v", v.Percent)
		}
	case SetRate:
		if v.RateCents <= 0 {
			return fmt.Errorf("set-rate: rate must be positive, got %d", v.RateCents)
		}
	case RestrictBookings:
		if !v.Block && v.MinStayNights <= 0 {
			return fmt.Errorf("restrict-bookings: either block or a positive min stay is required")
		}
		if v.Block && v.MinStayNights > 0 {
			return fmt.Errorf("restrict-bookings: block and min stay are mutually exclusive")
		}
	}

	return nil
}

// Opposing reports whether two actions pull the price in opposite
// directions. Neutral actions never oppose anything.
func Opposing(a, b Action) bool {
	ia, ib := a.Intent(), b.Intent()
	if ia == IntentNeutral || ib == IntentNeutral {
		return false
	}
	return ia != ib
}
