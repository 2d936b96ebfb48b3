// Package agenda narrows a list of hearing events by free-text search and
// status, and buckets the result by day relative to a reference time.
//
// Everything here is pure: no I/O, no clock access, no shared state. The
// reference time is always passed in by the caller.
package agenda

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"audiencier/internal/model"
)

// StatusFilter selects events by hearing status. The zero value,
// AllStatuses, disables the filter.
type StatusFilter string

// AllStatuses matches every status.
const AllStatuses StatusFilter = ""

// ParseStatusFilter accepts "", "ALL" (any case) or a hearing status.
func ParseStatusFilter(s string) (StatusFilter, error) {
	if s == "" || strings.EqualFold(s, "ALL") {
		return AllStatuses, nil
	}
	st, err := model.ParseHearingStatus(s)
	if err != nil {
		return AllStatuses, err
	}
	return StatusFilter(st), nil
}

// Matches reports whether status passes the filter.
func (f StatusFilter) Matches(status model.HearingStatus) bool {
	return f == AllStatuses || model.HearingStatus(f) == status
}

// Query is the user-controlled part of the agenda view.
type Query struct {
	Search string
	Status StatusFilter
}

// Filter returns the events matching q, in input order. The input slice is
// never modified and the result never aliases it.
func Filter(events []model.CalendarEvent, q Query) []model.CalendarEvent {
	fold := cases.Fold()
	needle := fold.String(q.Search)

	out := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if !q.Status.Matches(ev.Status) {
			continue
		}
		if needle != "" && !matchesSearch(fold, ev, needle) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func matchesSearch(fold cases.Caser, ev model.CalendarEvent, needle string) bool {
	for _, field := range [...]string{ev.Title, ev.CaseReference, ev.Parties, ev.Jurisdiction} {
		if strings.Contains(fold.String(field), needle) {
			return true
		}
	}
	return false
}

// Bucket names a temporal group of the agenda.
type Bucket string

const (
	BucketToday    Bucket = "Today"
	BucketTomorrow Bucket = "Tomorrow"
	BucketThisWeek Bucket = "This week"
	BucketLater    Bucket = "Later"
	BucketPast     Bucket = "Past"
)

// Buckets is the fixed display order.
var Buckets = []Bucket{BucketToday, BucketTomorrow, BucketThisWeek, BucketLater, BucketPast}

// Group is one non-empty bucket of events, ordered by date.
type Group struct {
	Title  Bucket                `json:"title"`
	Events []model.CalendarEvent `json:"events"`
}

// Options tunes bucketing. The zero value starts weeks on Monday.
type Options struct {
	SundayFirst bool
}

func (o Options) weekStart() time.Weekday {
	if o.SundayFirst {
		return time.Sunday
	}
	return time.Monday
}

// Classify returns the bucket of date relative to now. Day boundaries are
// computed in now's location.
func Classify(date, now time.Time, opts Options) Bucket {
	loc := now.Location()
	today := startOfDay(now)
	day := startOfDay(date.In(loc))
	tomorrow := today.AddDate(0, 0, 1)

	switch {
	case day.Equal(today):
		return BucketToday
	case day.Equal(tomorrow):
		return BucketTomorrow
	case day.After(today) && day.Before(endOfWeek(today, opts.weekStart())):
		return BucketThisWeek
	case day.After(today):
		return BucketLater
	default:
		return BucketPast
	}
}

// GroupEvents sorts events by date (stable) and partitions them into the
// non-empty buckets, in the fixed order of Buckets.
func GroupEvents(events []model.CalendarEvent, now time.Time, opts Options) []Group {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b model.CalendarEvent) int {
		return a.Date.Compare(b.Date)
	})

	byBucket := make(map[Bucket][]model.CalendarEvent, len(Buckets))
	for _, ev := range sorted {
		b := Classify(ev.Date, now, opts)
		byBucket[b] = append(byBucket[b], ev)
	}

	groups := make([]Group, 0, len(Buckets))
	for _, b := range Buckets {
		if evs := byBucket[b]; len(evs) > 0 {
			groups = append(groups, Group{Title: b, Events: evs})
		}
	}
	return groups
}

// View is the filtered list and its grouping, as served to the dashboard.
type View struct {
	Filtered []model.CalendarEvent `json:"filtered"`
	Groups   []Group               `json:"groups"`
}

// Build filters events with q and groups the result relative to now.
func Build(events []model.CalendarEvent, q Query, now time.Time, opts Options) View {
	filtered := Filter(events, q)
	return View{
		Filtered: filtered,
		Groups:   GroupEvents(filtered, now, opts),
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// endOfWeek returns the first instant after the week containing today.
func endOfWeek(today time.Time, weekStart time.Weekday) time.Time {
	offset := (int(today.Weekday()) - int(weekStart) + 7) % 7
	return today.AddDate(0, 0, 7-offset)
}
