package testutil

import (
	"context"
	"sync"
)

// RecordingNotifier captures every notification message in order. It
// satisfies engine.Notifier. An optional Err makes every Notify call
// fail, for exercising the engine's best-effort delivery.
//
// Thread-safety: all methods are safe for concurrent use.
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []string

	// Err, when set, is returned by every Notify call. The message is
	// still recorded.
	Err error
}

// Notify implements engine.Notifier.
func (n *RecordingNotifier) Notify(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return n.Err
}

// Messages returns a copy of the captured messages in delivery order.
func (n *RecordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.messages))
	copy(out, n.messages)
	return out
}

// AuditRecord is one captured audit entry.
type AuditRecord struct {
	Event   string
	Payload map[string]any
}

// RecordingAuditLog captures audit entries in order. It satisfies
// engine.AuditLog.
//
// Thread-safety: all methods are safe for concurrent use.
type RecordingAuditLog struct {
	mu      sync.Mutex
	records []AuditRecord

	// Err, when set, is returned by every Record call.
	Err error
}

// Record implements engine.AuditLog.
func (a *RecordingAuditLog) Record(_ context.Context, event string, payload map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, AuditRecord{Event: event, Payload: payload})
	return a.Err
}

// Records returns a copy of the captured entries in order.
func (a *RecordingAuditLog) Records() []AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AuditRecord, len(a.records))
	copy(out, a.records)
	return out
}

// Events returns just the event names, in order. Convenient for
// asserting a transition sequence.
func (a *RecordingAuditLog) Events() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.records))
	for i, r := range a.records {
		out[i] = r.Event
	}
	return out
}
