package model

import "time"

// CalendarEvent is the flattened view of a hearing used by the agenda:
// one row per hearing (or external calendar occurrence), carrying the
// searchable text fields and the date used for bucketing.
type CalendarEvent struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	CaseReference string        `json:"case_reference"`
	Parties       string        `json:"parties"`
	Jurisdiction  string        `json:"jurisdiction"`
	Date          time.Time     `json:"date"`
	Status        HearingStatus `json:"status"`
}

// Occurrence represents a single concrete instance of an event from an
// external ICS calendar (after recurrence expansion and timezone
// normalization).
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, typically derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}
