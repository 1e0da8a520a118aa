package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/rateguard/internal/rules"
)

// ErrRuleNotFound indicates that a rule was not located in the store.
var ErrRuleNotFound = errors.New("rule not found")

const ruleColumns = `id, name, description, priority, active, starts_at, ends_at, scope, action, meta, created_at, updated_at`

// CreateRule inserts a rule. The rule must already carry an ID; the
// created/updated timestamps are stamped here.
func (s *Store) CreateRule(ctx context.Context, r *rules.PricingRule, now time.Time) error {
	if r.ID == "" {
		return fmt.Errorf("create rule: id is required")
	}

	scopeJSON, err := marshalScope(r.Scope)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	actionJSON, err := rules.MarshalAction(r.Action)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	metaJSON, err := marshalMeta(r.Meta)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}

	r.CreatedAt = now.UTC()
	r.UpdatedAt = now.UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules
		(id, name, description, priority, active, starts_at, ends_at, scope, action, meta, is_override, suspended_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.Name,
		r.Description,
		r.Priority,
		boolToInt(r.Active),
		formatTime(r.Start),
		formatTime(r.End),
		scopeJSON,
		string(actionJSON),
		metaJSON,
		boolToInt(r.Meta.Override),
		r.Meta.SuspendedBy,
		formatTime(r.CreatedAt),
		formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}

	return nil
}

// UpdateRule replaces a rule's mutable columns in a single atomic
// UPDATE. The denormalized is_override/suspended_by columns are kept in
// sync with Meta here so queries never see a stale flag.
// Returns ErrRuleNotFound when no row matches.
func (s *Store) UpdateRule(ctx context.Context, r *rules.PricingRule, now time.Time) error {
	scopeJSON, err := marshalScope(r.Scope)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	actionJSON, err := rules.MarshalAction(r.Action)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	metaJSON, err := marshalMeta(r.Meta)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}

	r.UpdatedAt = now.UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE rules
		SET name = ?, description = ?, priority = ?, active = ?, starts_at = ?, ends_at = ?,
		    scope = ?, action = ?, meta = ?, is_override = ?, suspended_by = ?, updated_at = ?
		WHERE id = ?
	`,
		r.Name,
		r.Description,
		r.Priority,
		boolToInt(r.Active),
		formatTime(r.Start),
		formatTime(r.End),
		scopeJSON,
		string(actionJSON),
		metaJSON,
		boolToInt(r.Meta.Override),
		r.Meta.SuspendedBy,
		formatTime(r.UpdatedAt),
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("update rule %s: %w", r.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rule %s: %w", r.ID, err)
	}
	if n == 0 {
		return ErrRuleNotFound
	}

	return nil
}

// DeleteRule removes a rule. Returns ErrRuleNotFound when no row matches.
func (s *Store) DeleteRule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	if n == 0 {
		return ErrRuleNotFound
	}

	return nil
}

// GetRule fetches a single rule by id.
func (s *Store) GetRule(ctx context.Context, id string) (*rules.PricingRule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	r, err := scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("get rule %s: %w", id, err)
	}
	return r, nil
}

// FindActiveRulesOverlapping returns every active rule whose date range
// intersects [start, end], ordered by priority (most precedent first).
// The predicate is NOT(ends before start OR starts after end), so
// ranges touching at an endpoint count as overlapping.
func (s *Store) FindActiveRulesOverlapping(ctx context.Context, start, end time.Time) ([]*rules.PricingRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ruleColumns+`
		FROM rules
		WHERE active = 1 AND NOT (ends_at < ? OR starts_at > ?)
		ORDER BY priority ASC, id ASC
	`, formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("find overlapping rules: %w", err)
	}
	defer rows.Close()

	return collectRules(rows)
}

// ListActiveOverrides returns active override rules ordered by priority
// (most precedent first).
func (s *Store) ListActiveOverrides(ctx context.Context) ([]*rules.PricingRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ruleColumns+`
		FROM rules
		WHERE active = 1 AND is_override = 1
		ORDER BY priority ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list active overrides: %w", err)
	}
	defer rows.Close()

	return collectRules(rows)
}

// FindRulesSuspendedBy returns the rules whose suspension back-reference
// names the given override.
func (s *Store) FindRulesSuspendedBy(ctx context.Context, overrideID string) ([]*rules.PricingRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ruleColumns+`
		FROM rules
		WHERE suspended_by = ?
		ORDER BY priority ASC, id ASC
	`, overrideID)
	if err != nil {
		return nil, fmt.Errorf("find rules suspended by %s: %w", overrideID, err)
	}
	defer rows.Close()

	return collectRules(rows)
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*rules.PricingRule, error) {
	var (
		r          rules.PricingRule
		active     int
		startsAt   string
		endsAt     string
		scopeJSON  string
		actionJSON string
		metaJSON   string
		createdAt  string
		updatedAt  string
	)

	if err := row.Scan(
		&r.ID, &r.Name, &r.Description, &r.Priority, &active,
		&startsAt, &endsAt, &scopeJSON, &actionJSON, &metaJSON,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	r.Active = active != 0

	var err error
	if r.Start, err = parseTime(startsAt); err != nil {
		return nil, err
	}
	if r.End, err = parseTime(endsAt); err != nil {
		return nil, err
	}
	if r.Scope, err = unmarshalScope(scopeJSON); err != nil {
		return nil, err
	}
	if r.Action, err = rules.UnmarshalAction([]byte(actionJSON)); err != nil {
		return nil, err
	}
	if r.Meta, err = unmarshalMeta(metaJSON); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &r, nil
}

func collectRules(rows *sql.Rows) ([]*rules.PricingRule, error) {
	var result []*rules.PricingRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
