package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/rateguard/internal/rules"
)

// RuleQuery narrows a rule search. Nil and zero fields mean
// "no constraint". Column-backed constraints compile to a
// parameterized WHERE clause; Room is checked against the decoded
// scope after scanning because scopes are stored as JSON.
type RuleQuery struct {
	// Active filters on the active flag.
	Active *bool

	// Override filters on whether the rule is an override.
	Override *bool

	// Suspended filters on whether the rule is held by an override.
	Suspended *bool

	// On keeps only rules whose window contains this instant.
	On *time.Time

	// MaxPriority keeps only rules at this priority or more precedent
	// (numerically smaller or equal). Zero disables the constraint.
	MaxPriority int

	// Room keeps only rules whose scope covers this room type.
	Room string
}

// compile returns the WHERE clause (with leading space, or empty) and
// its parameters. Values are always parameterized, never interpolated.
func (q RuleQuery) compile() (string, []any) {
	var conds []string
	var params []any

	if q.Active != nil {
		conds = append(conds, "active = ?")
		params = append(params, boolToInt(*q.Active))
	}
	if q.Override != nil {
		conds = append(conds, "is_override = ?")
		params = append(params, boolToInt(*q.Override))
	}
	if q.Suspended != nil {
		if *q.Suspended {
			conds = append(conds, "suspended_by <> ''")
		} else {
			conds = append(conds, "suspended_by = ''")
		}
	}
	if q.On != nil {
		conds = append(conds, "starts_at <= ? AND ends_at >= ?")
		params = append(params, formatTime(*q.On), formatTime(*q.On))
	}
	if q.MaxPriority > 0 {
		conds = append(conds, "priority <= ?")
		params = append(params, q.MaxPriority)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), params
}

// SearchRules returns the rules matching the query, most precedent
// first. The ordering carries an id tiebreaker so equal-priority rules
// come back in a stable order.
func (s *Store) SearchRules(ctx context.Context, q RuleQuery) ([]*rules.PricingRule, error) {
	where, params := q.compile()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM rules`+where+` ORDER BY priority ASC, id ASC`,
		params...)
	if err != nil {
		return nil, fmt.Errorf("search rules: %w", err)
	}
	defer rows.Close()

	found, err := collectRules(rows)
	if err != nil {
		return nil, err
	}
	if q.Room == "" {
		return found, nil
	}

	room := rules.ScopeOf(q.Room)
	matched := found[:0]
	for _, r := range found {
		if room.Intersects(r.Scope) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}
