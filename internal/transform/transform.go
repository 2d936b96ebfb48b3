package transform

import (
	"strings"
	"time"

	"audiencier/internal/model"
)

// HearingFromWire flattens an API hearing into a CalendarEvent.
func HearingFromWire(w WireHearing) model.CalendarEvent {
	parties := make([]model.Party, 0, len(w.Affaire.Parties))
	for _, p := range w.Affaire.Parties {
		parties = append(parties, PartyFromWire(w.Affaire.ID, p))
	}
	return model.CalendarEvent{
		ID:            w.ID,
		Title:         eventTitle(w.Affaire.Intitule, w.Affaire.Reference),
		CaseReference: w.Affaire.Reference,
		Parties:       PartiesText(parties),
		Jurisdiction:  w.Affaire.Juridiction,
		Date:          w.DateAudience.Time,
		Status:        model.HearingStatus(w.Statut),
	}
}

// CaseFromWire maps an API case. A missing chamber becomes "".
func CaseFromWire(w WireCase) model.Case {
	c := model.Case{
		ID:           w.ID,
		Reference:    w.Reference,
		Title:        w.Intitule,
		Jurisdiction: w.Juridiction,
		Chamber:      deref(w.Chambre),
		Status:       model.CaseStatus(w.Statut),
		AppealDays:   w.DelaiRecours,
	}
	if !w.DateDecision.IsZero() {
		d := w.DateDecision.Time
		c.DecisionDate = &d
	}
	return c
}

func PartyFromWire(caseID string, w WireParty) model.Party {
	return model.Party{
		ID:     w.ID,
		CaseID: caseID,
		Name:   w.Nom,
		Role:   model.PartyRole(w.Qualite),
		Lawyer: deref(w.Avocat),
	}
}

// HearingRecordFromWire maps an API hearing to a stored hearing of caseID.
// An unknown status is kept as is; the store rejects it.
func HearingRecordFromWire(caseID string, w WireHearing) model.Hearing {
	return model.Hearing{
		ID:     w.ID,
		CaseID: caseID,
		Date:   w.DateAudience.Time,
		Room:   deref(w.Salle),
		Status: model.HearingStatus(w.Statut),
		Notes:  deref(w.Notes),
	}
}

// HearingToEvent flattens a stored hearing with its case and parties.
func HearingToEvent(h model.Hearing, c model.Case, parties []model.Party) model.CalendarEvent {
	return model.CalendarEvent{
		ID:            h.ID,
		Title:         eventTitle(c.Title, c.Reference),
		CaseReference: c.Reference,
		Parties:       PartiesText(parties),
		Jurisdiction:  c.Jurisdiction,
		Date:          h.Date,
		Status:        h.Status,
	}
}

// OccurrenceToEvent maps an external calendar occurrence. Such events
// carry no report, so they are upcoming until they start and unreported
// afterwards.
func OccurrenceToEvent(o model.Occurrence, sourceName string, now time.Time) model.CalendarEvent {
	jurisdiction := o.Location
	if jurisdiction == "" {
		jurisdiction = sourceName
	}
	status := model.StatusUnreported
	if o.Start.After(now) {
		status = model.StatusUpcoming
	}
	return model.CalendarEvent{
		ID:           o.SourceID + ":" + o.UID + ":" + o.InstanceKey,
		Title:        o.Summary,
		Jurisdiction: jurisdiction,
		Date:         o.Start,
		Status:       status,
	}
}

// PartiesText renders parties the way a cause list does:
// "Martin, Roux c/ Société Durand". Interveners and parties without a
// known side are appended after a comma.
func PartiesText(parties []model.Party) string {
	var claimants, defendants, others []string
	for _, p := range parties {
		if p.Name == "" {
			continue
		}
		switch p.Role {
		case model.RoleClaimant:
			claimants = append(claimants, p.Name)
		case model.RoleDefendant:
			defendants = append(defendants, p.Name)
		default:
			others = append(others, p.Name)
		}
	}

	var b strings.Builder
	switch {
	case len(claimants) > 0 && len(defendants) > 0:
		b.WriteString(strings.Join(claimants, ", "))
		b.WriteString(" c/ ")
		b.WriteString(strings.Join(defendants, ", "))
	default:
		b.WriteString(strings.Join(append(claimants, defendants...), ", "))
	}
	if len(others) > 0 {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strings.Join(others, ", "))
	}
	return b.String()
}

func eventTitle(title, reference string) string {
	if title != "" {
		return title
	}
	if reference != "" {
		return "Audience " + reference
	}
	return "Audience"
}

// CaseCard is the dashboard view of a case.
type CaseCard struct {
	ID             string           `json:"id"`
	Reference      string           `json:"reference"`
	Title          string           `json:"title"`
	Jurisdiction   string           `json:"jurisdiction"`
	Chamber        string           `json:"chamber"`
	Status         model.CaseStatus `json:"status"`
	Parties        string           `json:"parties"`
	AppealDeadline *time.Time       `json:"appeal_deadline,omitempty"`
	// DaysLeft counts calendar days from today to the deadline; negative
	// once it has passed.
	DaysLeft *int `json:"days_left,omitempty"`
}

// CaseCardFromCase builds the dashboard card. Day counts use now's
// location.
func CaseCardFromCase(c model.Case, parties []model.Party, now time.Time) CaseCard {
	card := CaseCard{
		ID:           c.ID,
		Reference:    c.Reference,
		Title:        c.Title,
		Jurisdiction: c.Jurisdiction,
		Chamber:      c.Chamber,
		Status:       c.Status,
		Parties:      PartiesText(parties),
	}
	if deadline, ok := c.AppealDeadline(); ok {
		left := DaysBetween(now, deadline)
		card.AppealDeadline = &deadline
		card.DaysLeft = &left
	}
	return card
}

// DaysBetween returns the number of calendar days from a to b, both taken
// in a's location.
func DaysBetween(a, b time.Time) int {
	loc := a.Location()
	ay, am, ad := a.Date()
	by, bm, bd := b.In(loc).Date()
	// Noon avoids DST-shortened days rounding the wrong way.
	da := time.Date(ay, am, ad, 12, 0, 0, 0, loc)
	db := time.Date(by, bm, bd, 12, 0, 0, 0, loc)
	return int(db.Sub(da).Round(24*time.Hour) / (24 * time.Hour))
}
