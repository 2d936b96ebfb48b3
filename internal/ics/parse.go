package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "audiencier/internal/log"
)

// Event is one VEVENT of a court calendar, before recurrence expansion.
type Event struct {
	Source Source

	UID      string
	Sequence int

	Summary     string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule   string
	ExDates []time.Time

	// RecurrenceID is set on VEVENTs that override one instance of a
	// recurring event.
	RecurrenceID *time.Time
}

// Override reports whether e replaces one instance of a recurring event.
func (e Event) Override() bool { return e.RecurrenceID != nil }

// Parse decodes an iCalendar payload. VEVENTs that cannot be read are
// logged and skipped; only an unreadable calendar is an error.
func Parse(src Source, body []byte) ([]Event, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("ics: empty calendar body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse %s: %w", src.ID, err)
	}

	out := make([]Event, 0)
	for _, ve := range cal.Events() {
		ev, err := parseEvent(src, ve)
		if err != nil {
			appLog.Warn("skipping unreadable vevent", "source", src.ID, "err", err)
			continue
		}
		out = append(out, ev)
	}

	appLog.Debug("ics parsed", "source", src.ID, "events", len(out))
	return out, nil
}

func parseEvent(src Source, ve *ical.VEvent) (Event, error) {
	ev := Event{Source: src}

	ev.UID = propValue(ve, ical.ComponentPropertyUniqueId)
	if ev.UID == "" {
		return ev, errors.New("missing UID")
	}
	if seq := propValue(ve, ical.ComponentPropertySequence); seq != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(seq)); err == nil {
			ev.Sequence = n
		}
	}
	ev.Summary = unescapeText(propValue(ve, ical.ComponentPropertySummary))
	ev.Description = unescapeText(propValue(ve, ical.ComponentPropertyDescription))
	ev.Location = unescapeText(propValue(ve, ical.ComponentPropertyLocation))

	start, err := ve.GetStartAt()
	if err != nil {
		return ev, fmt.Errorf("uid %s: DTSTART: %w", ev.UID, err)
	}
	ev.Start = start

	if dt := ve.GetProperty(ical.ComponentPropertyDtStart); dt != nil {
		ev.AllDay = !strings.Contains(dt.Value, "T") || paramIs(dt.ICalParameters, "VALUE", "DATE")
	}

	if end, err := ve.GetEndAt(); err == nil {
		ev.End = end
	} else if ev.AllDay {
		ev.End = ev.Start.AddDate(0, 0, 1)
	} else {
		ev.End = ev.Start
	}

	ev.RRule = propValue(ve, ical.ComponentPropertyRrule)

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := zoneOf(p.ICalParameters, ev.Start.Location())
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, loc); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}

	if rid := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); rid != nil {
		if t, err := parseICSTime(rid.Value, zoneOf(rid.ICalParameters, ev.Start.Location())); err == nil {
			ev.RecurrenceID = &t
		}
	}

	return ev, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

var textUnescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";")

// unescapeText reverses RFC 5545 TEXT escaping.
func unescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return textUnescaper.Replace(s)
}

func paramIs(params map[string][]string, key, want string) bool {
	vs, ok := params[key]
	return ok && len(vs) > 0 && strings.EqualFold(vs[0], want)
}

// zoneOf resolves a TZID parameter, falling back to def.
func zoneOf(params map[string][]string, def *time.Location) *time.Location {
	if tz, ok := params["TZID"]; ok && len(tz) > 0 {
		if loc, err := time.LoadLocation(tz[0]); err == nil {
			return loc
		}
	}
	return def
}

// parseICSTime reads DATE, floating DATE-TIME and UTC DATE-TIME values.
// Floating and date values are interpreted in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
