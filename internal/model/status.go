package model

import "fmt"

// HearingStatus is the reporting state of a hearing. The set is closed:
// every switch over it must handle all three values.
type HearingStatus string

const (
	// StatusUpcoming: the hearing has not taken place yet.
	StatusUpcoming HearingStatus = "A_VENIR"
	// StatusHeld: the hearing took place and was reported.
	StatusHeld HearingStatus = "TENUE"
	// StatusUnreported: the hearing date passed without a report.
	StatusUnreported HearingStatus = "NON_RENSEIGNEE"
)

// HearingStatuses lists every valid HearingStatus in display order.
var HearingStatuses = []HearingStatus{StatusUpcoming, StatusHeld, StatusUnreported}

func (s HearingStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusHeld, StatusUnreported:
		return true
	}
	return false
}

// Label returns the French display label.
func (s HearingStatus) Label() string {
	switch s {
	case StatusUpcoming:
		return "À venir"
	case StatusHeld:
		return "Tenue"
	case StatusUnreported:
		return "Non renseignée"
	}
	return string(s)
}

// ParseHearingStatus rejects anything outside the closed set.
func ParseHearingStatus(s string) (HearingStatus, error) {
	st := HearingStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid hearing status %q", s)
	}
	return st, nil
}

// CaseStatus is the lifecycle state of a case.
type CaseStatus string

const (
	CaseOpen     CaseStatus = "OUVERTE"
	CaseClosed   CaseStatus = "CLOTUREE"
	CaseArchived CaseStatus = "ARCHIVEE"
)

var CaseStatuses = []CaseStatus{CaseOpen, CaseClosed, CaseArchived}

func (s CaseStatus) Valid() bool {
	switch s {
	case CaseOpen, CaseClosed, CaseArchived:
		return true
	}
	return false
}

func ParseCaseStatus(s string) (CaseStatus, error) {
	st := CaseStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid case status %q", s)
	}
	return st, nil
}

// PartyRole is the procedural side a party is on.
type PartyRole string

const (
	RoleClaimant   PartyRole = "DEMANDEUR"
	RoleDefendant  PartyRole = "DEFENDEUR"
	RoleIntervener PartyRole = "INTERVENANT"
)

var PartyRoles = []PartyRole{RoleClaimant, RoleDefendant, RoleIntervener}

func (r PartyRole) Valid() bool {
	switch r {
	case RoleClaimant, RoleDefendant, RoleIntervener:
		return true
	}
	return false
}

func ParsePartyRole(s string) (PartyRole, error) {
	r := PartyRole(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid party role %q", s)
	}
	return r, nil
}
