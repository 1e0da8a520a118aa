package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/rateguard/internal/config"
	"github.com/roach88/rateguard/internal/engine"
	"github.com/roach88/rateguard/internal/policy"
	"github.com/roach88/rateguard/internal/store"
)

// applyConfig layers the optional YAML config file under the flags:
// explicit flags always win.
func (opts *RootOptions) applyConfig() error {
	if opts.Config == "" {
		return nil
	}
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	if opts.Database == "" {
		opts.Database = cfg.Database
	}
	if opts.Policy == "" {
		opts.Policy = cfg.PolicyDir
	}
	return nil
}

// openEngine builds the full stack for a command invocation: logging,
// policy, SQLite store, and an engine whose audit sink writes to the
// store's audit_log table. The caller must invoke the returned cleanup.
func openEngine(opts *RootOptions) (*engine.Engine, *store.Store, func(), error) {
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	if opts.Database == "" {
		return nil, nil, nil, NewExitError(ExitCommandError, "no database: pass --db or set database in the config file")
	}

	pol, err := policy.Load(opts.Policy)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to load policy", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	}

	auditSink := engine.AuditFunc(func(ctx context.Context, event string, payload map[string]any) error {
		return st.RecordAudit(ctx, event, payload, time.Now().UTC())
	})
	eng := engine.New(st, pol, engine.WithAuditLog(auditSink))
	return eng, st, cleanup, nil
}

// parseDate parses a YYYY-MM-DD flag into a UTC midnight instant.
func parseDate(flag, value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, WrapExitError(ExitCommandError,
			fmt.Sprintf("invalid --%s date %q (want YYYY-MM-DD)", flag, value), err)
	}
	return t.UTC(), nil
}
