package engine

import (
	"context"
	"time"

	"github.com/roach88/rateguard/internal/policy"
	"github.com/roach88/rateguard/internal/rules"
)

// RuleStore is the persistence surface the engine consumes for pricing
// rules. Implemented by internal/store; every method is a single atomic
// operation on one record (or a pure read).
type RuleStore interface {
	CreateRule(ctx context.Context, r *rules.PricingRule, now time.Time) error
	UpdateRule(ctx context.Context, r *rules.PricingRule, now time.Time) error
	DeleteRule(ctx context.Context, id string) error
	GetRule(ctx context.Context, id string) (*rules.PricingRule, error)
	FindActiveRulesOverlapping(ctx context.Context, start, end time.Time) ([]*rules.PricingRule, error)
	ListActiveOverrides(ctx context.Context) ([]*rules.PricingRule, error)
	FindRulesSuspendedBy(ctx context.Context, overrideID string) ([]*rules.PricingRule, error)
}

// EventStore is the persistence surface the engine consumes for events.
type EventStore interface {
	CreateEvent(ctx context.Context, e *rules.Event, now time.Time) error
	UpdateEvent(ctx context.Context, e *rules.Event, now time.Time) error
	DeleteEvent(ctx context.Context, id string) error
	GetEvent(ctx context.Context, id string) (*rules.Event, error)
	FindExpiredConfirmedEvents(ctx context.Context, now time.Time) ([]*rules.Event, error)
	FindUpcomingConfirmedEvents(ctx context.Context, now, deadline time.Time) ([]*rules.Event, error)
}

// Store combines the rule and event surfaces. internal/store.Store
// satisfies it.
type Store interface {
	RuleStore
	EventStore
}

// Engine holds the engine's collaborators and implements the five
// components: conflict detection (detect.go), priority allocation
// (priority.go), lifecycle sweeps (lifecycle.go), the override service
// (override.go), and the integration facade (integration.go).
type Engine struct {
	store    Store
	policy   policy.Policy
	clock    Clock
	ids      IDGenerator
	notifier Notifier
	audit    AuditLog
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the system clock; used by tests and replays.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator replaces the UUIDv7 generator; used by tests.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithNotifier sets the notification sink invoked on override
// creation and removal. Notification failures never roll anything back.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithAuditLog sets the audit sink for override and lifecycle
// transitions. Best-effort: failures are logged and ignored.
func WithAuditLog(a AuditLog) Option {
	return func(e *Engine) { e.audit = a }
}

// New creates an Engine over the given store and policy. Defaults:
// system clock, UUIDv7 ids, slog-backed notifier and audit log.
func New(s Store, pol policy.Policy, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		policy:   pol,
		clock:    SystemClock{},
		ids:      UUIDv7Generator{},
		notifier: SlogNotifier{},
		audit:    SlogAuditLog{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the engine's policy. Used by the CLI for display.
func (e *Engine) Policy() policy.Policy {
	return e.policy
}
