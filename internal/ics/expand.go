package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "audiencier/internal/log"
	"audiencier/internal/model"
)

const defaultMaxPerEvent = 2000

// Window bounds an expansion. Occurrences are converted to Location
// (time.Local when nil).
type Window struct {
	Start       time.Time
	End         time.Time
	Location    *time.Location
	MaxPerEvent int
}

// Expand turns parsed events into concrete occurrences overlapping w,
// applying RRULE, EXDATE and RECURRENCE-ID overrides. The result is sorted
// by start; truncated lists the UIDs that hit the per-event cap.
func Expand(events []Event, w Window) (occ []model.Occurrence, truncated []string, err error) {
	if w.End.Before(w.Start) {
		return nil, nil, errors.New("ics: window ends before it starts")
	}
	if w.Location == nil {
		w.Location = time.Local
	}
	if w.MaxPerEvent <= 0 {
		w.MaxPerEvent = defaultMaxPerEvent
	}

	bases := make(map[string][]Event)
	overrides := make(map[string][]Event)
	for _, ev := range events {
		if ev.Override() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		} else {
			bases[ev.UID] = append(bases[ev.UID], ev)
		}
	}

	occ = make([]model.Occurrence, 0)
	for uid, evs := range bases {
		hitCap := false
		for _, ev := range evs {
			var out []model.Occurrence
			if ev.RRule == "" {
				out = expandSingle(ev, overrides[uid], w)
			} else {
				var capped bool
				out, capped = expandRecurring(ev, overrides[uid], w)
				hitCap = hitCap || capped
			}
			occ = append(occ, out...)
		}
		if hitCap {
			truncated = append(truncated, uid)
			appLog.Warn("recurring event truncated", "uid", uid, "cap", w.MaxPerEvent)
		}
	}

	sort.SliceStable(occ, func(i, j int) bool {
		if occ[i].Start.Equal(occ[j].Start) {
			return occ[i].UID < occ[j].UID
		}
		return occ[i].Start.Before(occ[j].Start)
	})
	sort.Strings(truncated)
	return occ, truncated, nil
}

func expandSingle(ev Event, overrides []Event, w Window) []model.Occurrence {
	if o, ok := overrideFor(overrides, ev.Start); ok {
		ev = o
	}
	if !overlaps(ev.Start, ev.End, w.Start, w.End) {
		return nil
	}
	return []model.Occurrence{occurrence(ev, ev.Start, ev.End, w.Location)}
}

func expandRecurring(ev Event, overrides []Event, w Window) ([]model.Occurrence, bool) {
	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Error("invalid RRULE", err, "uid", ev.UID, "rrule", ev.RRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	starts := set.Between(w.Start.In(loc), w.End.In(loc), true)
	capped := false
	if len(starts) > w.MaxPerEvent {
		starts = starts[:w.MaxPerEvent]
		capped = true
	}

	duration := ev.End.Sub(ev.Start)
	out := make([]model.Occurrence, 0, len(starts))
	for _, start := range starts {
		end := start.Add(duration)
		if ev.AllDay {
			start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
			end = start.AddDate(0, 0, 1)
		}
		instance := ev
		if o, ok := overrideFor(overrides, start); ok {
			instance, start, end = o, o.Start, o.End
		}
		out = append(out, occurrence(instance, start, end, w.Location))
	}
	return out, capped
}

func overrideFor(overrides []Event, start time.Time) (Event, bool) {
	for _, o := range overrides {
		if o.RecurrenceID != nil && o.RecurrenceID.Equal(start) {
			return o, true
		}
	}
	return Event{}, false
}

func occurrence(ev Event, start, end time.Time, loc *time.Location) model.Occurrence {
	start, end = start.In(loc), end.In(loc)
	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: start.Format(time.RFC3339),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end,
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
