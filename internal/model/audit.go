package model

import "time"

type AuditAction string

const (
	ActionCreate AuditAction = "CREATE"
	ActionUpdate AuditAction = "UPDATE"
	ActionDelete AuditAction = "DELETE"
)

type AuditEntity string

const (
	EntityCase    AuditEntity = "case"
	EntityParty   AuditEntity = "party"
	EntityHearing AuditEntity = "hearing"
)

// AuditEntry records one mutation of a stored record.
type AuditEntry struct {
	ID       int64       `json:"id"`
	At       time.Time   `json:"at"`
	Actor    string      `json:"actor"`
	Action   AuditAction `json:"action"`
	Entity   AuditEntity `json:"entity"`
	EntityID string      `json:"entity_id"`
	Details  string      `json:"details,omitempty"`
}
