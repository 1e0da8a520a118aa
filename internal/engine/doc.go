// Package engine implements the pricing rule conflict and lifecycle
// engine: conflict detection, priority allocation, lifecycle sweeps,
// emergency overrides, and the event/rule integration facade.
//
// The engine is designed for a single logical writer per rule/event.
// There is no distributed locking; correctness relies on the store's
// atomic single-record updates and on the periodic sweeps being
// idempotent. Read paths (conflict detection, override listing) are
// safe to call concurrently.
//
// All operations are synchronous library contracts. Whatever transport
// wraps them (the CLI in this repository, or an embedding system's own
// surface) is outside this package.
package engine
