package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/rateguard/internal/rules"
)

// ErrEventNotFound indicates that an event was not located in the store.
var ErrEventNotFound = errors.New("event not found")

const eventColumns = `id, title, description, starts_at, ends_at, category, status, COALESCE(rule_id, ''), COALESCE(suggestion, ''), created_at, updated_at`

// CreateEvent inserts an event. The event must already carry an ID.
func (s *Store) CreateEvent(ctx context.Context, e *rules.Event, now time.Time) error {
	if e.ID == "" {
		return fmt.Errorf("create event: id is required")
	}

	suggestionJSON, err := marshalSuggestion(e.Suggestion)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	e.CreatedAt = now.UTC()
	e.UpdatedAt = now.UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events
		(id, title, description, starts_at, ends_at, category, status, rule_id, suggestion, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Title,
		e.Description,
		formatTime(e.Start),
		formatTime(e.End),
		string(e.Category),
		string(e.Status),
		nullEmpty(e.RuleID),
		nullEmpty(suggestionJSON),
		formatTime(e.CreatedAt),
		formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	return nil
}

// UpdateEvent replaces an event's mutable columns in a single atomic
// UPDATE. Returns ErrEventNotFound when no row matches.
func (s *Store) UpdateEvent(ctx context.Context, e *rules.Event, now time.Time) error {
	suggestionJSON, err := marshalSuggestion(e.Suggestion)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}

	e.UpdatedAt = now.UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET title = ?, description = ?, starts_at = ?, ends_at = ?, category = ?, status = ?,
		    rule_id = ?, suggestion = ?, updated_at = ?
		WHERE id = ?
	`,
		e.Title,
		e.Description,
		formatTime(e.Start),
		formatTime(e.End),
		string(e.Category),
		string(e.Status),
		nullEmpty(e.RuleID),
		nullEmpty(suggestionJSON),
		formatTime(e.UpdatedAt),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("update event %s: %w", e.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update event %s: %w", e.ID, err)
	}
	if n == 0 {
		return ErrEventNotFound
	}

	return nil
}

// DeleteEvent removes an event. Returns ErrEventNotFound when no row
// matches.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	if n == 0 {
		return ErrEventNotFound
	}

	return nil
}

// GetEvent fetches a single event by id.
func (s *Store) GetEvent(ctx context.Context, id string) (*rules.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return e, nil
}

// FindExpiredConfirmedEvents returns confirmed events whose window ended
// before now and whose linked rule is still active. These are the
// cleanup sweep's work items.
func (s *Store) FindExpiredConfirmedEvents(ctx context.Context, now time.Time) ([]*rules.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumnsPrefixed("e")+`
		FROM events e
		JOIN rules r ON r.id = e.rule_id
		WHERE e.status = ? AND e.ends_at < ? AND r.active = 1
		ORDER BY e.ends_at ASC, e.id ASC
	`, string(rules.StatusConfirmed), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("find expired confirmed events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// FindUpcomingConfirmedEvents returns confirmed events that start on or
// before the given deadline, have not yet ended, and whose linked rule
// is inactive and not suspended by an override. These are the
// activation sweep's work items; suspended rules are excluded because
// their re-activation precondition is override removal, not proximity.
func (s *Store) FindUpcomingConfirmedEvents(ctx context.Context, now, deadline time.Time) ([]*rules.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumnsPrefixed("e")+`
		FROM events e
		JOIN rules r ON r.id = e.rule_id
		WHERE e.status = ? AND e.starts_at <= ? AND e.ends_at >= ?
		  AND r.active = 0 AND r.suspended_by = ''
		ORDER BY e.starts_at ASC, e.id ASC
	`, string(rules.StatusConfirmed), formatTime(deadline), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("find upcoming confirmed events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func eventColumnsPrefixed(alias string) string {
	return alias + `.id, ` + alias + `.title, ` + alias + `.description, ` +
		alias + `.starts_at, ` + alias + `.ends_at, ` + alias + `.category, ` +
		alias + `.status, COALESCE(` + alias + `.rule_id, ''), COALESCE(` + alias + `.suggestion, ''), ` +
		alias + `.created_at, ` + alias + `.updated_at`
}

func scanEvent(row rowScanner) (*rules.Event, error) {
	var (
		e              rules.Event
		startsAt       string
		endsAt         string
		category       string
		status         string
		suggestionJSON string
		createdAt      string
		updatedAt      string
	)

	if err := row.Scan(
		&e.ID, &e.Title, &e.Description, &startsAt, &endsAt,
		&category, &status, &e.RuleID, &suggestionJSON,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	e.Category = rules.Category(category)
	e.Status = rules.EventStatus(status)

	var err error
	if e.Start, err = parseTime(startsAt); err != nil {
		return nil, err
	}
	if e.End, err = parseTime(endsAt); err != nil {
		return nil, err
	}
	if e.Suggestion, err = unmarshalSuggestion(suggestionJSON); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &e, nil
}

func collectEvents(rows *sql.Rows) ([]*rules.Event, error) {
	var result []*rules.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return result, nil
}

// nullEmpty maps "" to NULL for nullable text columns.
func nullEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
