package model

import "time"

// Case is a legal matter ("affaire").
type Case struct {
	ID           string     `json:"id"`
	Reference    string     `json:"reference"`
	Title        string     `json:"title"`
	Jurisdiction string     `json:"jurisdiction"`
	Chamber      string     `json:"chamber,omitempty"`
	Status       CaseStatus `json:"status"`

	// DecisionDate and AppealDays describe the appeal window opened by
	// the last decision. Either may be unset.
	DecisionDate *time.Time `json:"decision_date,omitempty"`
	AppealDays   int        `json:"appeal_days,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppealDeadline returns the last day to lodge an appeal, or false when
// the case has no decision date or no appeal window.
func (c Case) AppealDeadline() (time.Time, bool) {
	if c.DecisionDate == nil || c.AppealDays <= 0 {
		return time.Time{}, false
	}
	return c.DecisionDate.AddDate(0, 0, c.AppealDays), true
}

// Party is a person or organisation involved in a case.
type Party struct {
	ID     string    `json:"id"`
	CaseID string    `json:"case_id"`
	Name   string    `json:"name"`
	Role   PartyRole `json:"role"`
	Lawyer string    `json:"lawyer,omitempty"`
}

// Hearing is a scheduled court session for a case ("audience").
type Hearing struct {
	ID     string        `json:"id"`
	CaseID string        `json:"case_id"`
	Date   time.Time     `json:"date"`
	Room   string        `json:"room,omitempty"`
	Status HearingStatus `json:"status"`
	Notes  string        `json:"notes,omitempty"`
}
