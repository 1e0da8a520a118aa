// Package store is the persistent rule store: SQLite-backed storage for
// pricing rules, events, and the audit log.
//
// The store exposes the collaborator surface the engine consumes:
// single-record atomic create/update/delete plus the date-range overlap
// and lifecycle queries. It performs no domain reasoning of its own -
// conflict classification, priority allocation, and suspension
// bookkeeping all live in internal/engine.
package store
