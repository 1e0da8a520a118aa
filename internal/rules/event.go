package rules

import (
	"fmt"
	"time"
)

// Category classifies an event for the priority heuristic. Categories
// do not change behavior beyond the base priority lookup.
type Category string

const (
	CategoryNationalHoliday      Category = "national-holiday"
	CategoryRoyalEvent           Category = "royal-event"
	CategoryInternationalConcert Category = "international-concert"
	CategoryMajorSports          Category = "major-sports"
	CategoryLocalFestival        Category = "local-festival"
	CategoryBusinessConference   Category = "business-conference"
	CategoryOther                Category = "other"
)

// KnownCategories lists every recognized category, for validation and
// CLI help text.
var KnownCategories = []Category{
	CategoryNationalHoliday,
	CategoryRoyalEvent,
	CategoryInternationalConcert,
	CategoryMajorSports,
	CategoryLocalFestival,
	CategoryBusinessConference,
	CategoryOther,
}

// EventStatus is the review state of an event. Only confirmed events
// ever have their rule activated.
type EventStatus string

const (
	StatusProposed  EventStatus = "proposed"
	StatusConfirmed EventStatus = "confirmed"
	StatusRejected  EventStatus = "rejected"
)

// Suggestion records where a candidate event came from and what its
// source proposed. The proposed priority and action feed conflict
// detection; the allocator may replace the priority before the rule is
// created.
type Suggestion struct {
	Origin           string  `json:"origin,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"`
	Notes            string  `json:"notes,omitempty"`
	ProposedPriority int     `json:"proposed_priority,omitempty"`
	FinalPriority    int     `json:"final_priority,omitempty"`
}

// Event is a real-world occurrence that may justify a pricing
// adjustment. An event links to at most one pricing rule via RuleID.
type Event struct {
	ID          string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Category    Category
	Status      EventStatus
	RuleID      string
	Suggestion  *Suggestion
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the structural invariants of an event.
func (e *Event) Validate() error {
	if e.Title == "" {
		return fmt.Errorf("event title is required")
	}
	if e.Start.IsZero() || e.End.IsZero() {
		return fmt.Errorf("event date range is required")
	}
	if e.End.Before(e.Start) {
		return fmt.Errorf("event date range is empty: end %s before start %s",
			e.End.Format(time.RFC3339), e.Start.Format(time.RFC3339))
	}
	switch e.Status {
	case StatusProposed, StatusConfirmed, StatusRejected:
	default:
		return fmt.Errorf("unknown event status: %q", e.Status)
	}
	if !validCategory(e.Category) {
		return fmt.Errorf("unknown event category: %q", e.Category)
	}
	return nil
}

func validCategory(c Category) bool {
	for _, known := range KnownCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Ended reports whether the event's window is entirely in the past.
func (e *Event) Ended(now time.Time) bool {
	return e.End.Before(now)
}

// StartsWithin reports whether the event begins within the lead window
// measured from now. The boundary is inclusive: an event starting
// exactly at now+window qualifies.
func (e *Event) StartsWithin(now time.Time, window time.Duration) bool {
	return !e.Start.After(now.Add(window))
}
