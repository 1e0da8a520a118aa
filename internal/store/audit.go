package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ID        int64
	Event     string
	Payload   map[string]any
	CreatedAt time.Time
}

// RecordAudit appends an entry to the audit log. Callers treat the
// audit log as best-effort; the engine logs and ignores failures here.
func (s *Store) RecordAudit(ctx context.Context, event string, payload map[string]any, now time.Time) error {
	payloadJSON := "{}"
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("record audit: marshal payload: %w", err)
		}
		payloadJSON = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (event, payload, created_at)
		VALUES (?, ?, ?)
	`, event, payloadJSON, formatTime(now))
	if err != nil {
		return fmt.Errorf("record audit: %w", err)
	}

	return nil
}

// ListAudit returns the most recent audit entries, newest first,
// limited to n rows.
func (s *Store) ListAudit(ctx context.Context, n int) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event, payload, created_at
		FROM audit_log
		ORDER BY id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var result []AuditEntry
	for rows.Next() {
		var (
			entry       AuditEntry
			payloadJSON string
			createdAt   string
		)
		if err := rows.Scan(&entry.ID, &entry.Event, &payloadJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if err := json.Unmarshal([]byte(payloadJSON), &entry.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal audit payload: %w", err)
		}
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	return result, nil
}
