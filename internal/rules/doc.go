// Package rules defines the domain types for the pricing rule engine:
// pricing rules, the events that drive them, the closed Action sum type,
// room-type scopes, and rule metadata.
//
// Types in this package are plain values with validation; all behavior
// that touches storage, clocks, or policy lives in internal/engine.
package rules
