package ics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"audiencier/internal/model"
)

// DefaultHearingDuration is the length given to exported hearings, which
// only have a start time.
const DefaultHearingDuration = time.Hour

const uidDomain = "audiencier"

// HearingExport is one hearing as published in the calendar feed.
type HearingExport struct {
	Event model.CalendarEvent
	Room  string
	Notes string
}

// Export renders hearings as an iCalendar document named name. stamp is
// written as DTSTAMP.
func Export(name string, hearings []HearingExport, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//audiencier//hearings//FR")
	cal.SetXWRCalName(name)

	for _, h := range hearings {
		ev := h.Event
		ve := cal.AddEvent(ev.ID + "@" + uidDomain)
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(ev.Date)
		ve.SetEndAt(ev.Date.Add(DefaultHearingDuration))
		ve.SetSummary(summary(ev))
		if loc := location(ev.Jurisdiction, h.Room); loc != "" {
			ve.SetLocation(loc)
		}
		ve.SetDescription(description(h))
		ve.SetProperty(ical.ComponentPropertyCategories, string(ev.Status))
		if ev.Status == model.StatusHeld {
			ve.SetProperty(ical.ComponentPropertyStatus, "CONFIRMED")
		}
	}
	return cal.Serialize()
}

// UIDToID strips the domain suffix added by Export.
func UIDToID(uid string) string {
	return strings.TrimSuffix(uid, "@"+uidDomain)
}

// WriteFile writes an export atomically.
func WriteFile(path, body string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".audiencier-export-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func summary(ev model.CalendarEvent) string {
	if ev.CaseReference == "" {
		return ev.Title
	}
	return fmt.Sprintf("%s - %s", ev.CaseReference, ev.Title)
}

func location(jurisdiction, room string) string {
	switch {
	case jurisdiction == "":
		return room
	case room == "":
		return jurisdiction
	default:
		return jurisdiction + ", " + room
	}
}

func description(h HearingExport) string {
	lines := make([]string, 0, 3)
	if h.Event.Parties != "" {
		lines = append(lines, "Parties : "+h.Event.Parties)
	}
	lines = append(lines, "Statut : "+h.Event.Status.Label())
	if h.Notes != "" {
		lines = append(lines, h.Notes)
	}
	return strings.Join(lines, "\n")
}
