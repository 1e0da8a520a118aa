package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/rateguard/internal/rules"
)

// timeLayout is the storage format for timestamps: UTC, second
// precision, no zone suffix. Lexicographic order equals chronological
// order, which the overlap queries rely on.
const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func marshalScope(s rules.Scope) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal scope: %w", err)
	}
	return string(data), nil
}

func unmarshalScope(data string) (rules.Scope, error) {
	var s rules.Scope
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return rules.Scope{}, fmt.Errorf("unmarshal scope: %w", err)
	}
	return s, nil
}

func marshalMeta(m rules.Meta) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal meta: %w", err)
	}
	return string(data), nil
}

func unmarshalMeta(data string) (rules.Meta, error) {
	var m rules.Meta
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return rules.Meta{}, fmt.Errorf("unmarshal meta: %w", err)
	}
	return m, nil
}

func marshalSuggestion(s *rules.Suggestion) (string, error) {
	if s == nil {
		return "", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal suggestion: %w", err)
	}
	return string(data), nil
}

func unmarshalSuggestion(data string) (*rules.Suggestion, error) {
	if data == "" {
		return nil, nil
	}
	var s rules.Suggestion
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("unmarshal suggestion: %w", err)
	}
	return &s, nil
}
