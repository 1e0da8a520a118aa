package engine

import (
	"context"
	"log/slog"
)

// Notifier is the fire-and-forget notification sink. Invoked when an
// override is created or removed so staff channels hear about pricing
// emergencies; a failing sink must not roll back the override, so the
// engine logs and ignores errors from Notify.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// NotifyFunc adapts a function to the Notifier interface.
type NotifyFunc func(ctx context.Context, message string) error

// Notify implements Notifier.
func (f NotifyFunc) Notify(ctx context.Context, message string) error {
	return f(ctx, message)
}

// SlogNotifier is the default sink: notifications land in the
// structured log.
type SlogNotifier struct{}

// Notify implements Notifier.
func (SlogNotifier) Notify(_ context.Context, message string) error {
	slog.Info("notification", "message", message)
	return nil
}

// AuditLog records override and lifecycle transitions for operators.
// Best-effort: the engine logs and ignores errors from Record.
type AuditLog interface {
	Record(ctx context.Context, event string, payload map[string]any) error
}

// AuditFunc adapts a function to the AuditLog interface.
type AuditFunc func(ctx context.Context, event string, payload map[string]any) error

// Record implements AuditLog.
func (f AuditFunc) Record(ctx context.Context, event string, payload map[string]any) error {
	return f(ctx, event, payload)
}

// SlogAuditLog is the default audit sink: entries land in the
// structured log.
type SlogAuditLog struct{}

// Record implements AuditLog.
func (SlogAuditLog) Record(_ context.Context, event string, payload map[string]any) error {
	slog.Info("audit", "event", event, "payload", payload)
	return nil
}

// notify sends a best-effort notification.
func (e *Engine) notify(ctx context.Context, message string) {
	if err := e.notifier.Notify(ctx, message); err != nil {
		slog.Warn("notification failed", "error", err, "message", message)
	}
}

// recordAudit writes a best-effort audit entry.
func (e *Engine) recordAudit(ctx context.Context, event string, payload map[string]any) {
	if err := e.audit.Record(ctx, event, payload); err != nil {
		slog.Warn("audit record failed", "error", err, "event", event)
	}
}
