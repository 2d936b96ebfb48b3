// Package audit summarizes the audit trail for the audit command and the
// /api/audit endpoint.
package audit

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"audiencier/internal/model"
)

// Count is one row of a breakdown table.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Report aggregates a set of audit entries.
type Report struct {
	Total    int                `json:"total"`
	First    *time.Time         `json:"first,omitempty"`
	Last     *time.Time         `json:"last,omitempty"`
	ByAction []Count            `json:"by_action"`
	ByEntity []Count            `json:"by_entity"`
	ByActor  []Count            `json:"by_actor"`
	ByDay    []Count            `json:"by_day"`
	Recent   []model.AuditEntry `json:"recent"`
}

// Summarize aggregates entries in a single pass. Days are bucketed in
// loc. Recent holds the newest recent entries, newest first.
func Summarize(entries []model.AuditEntry, loc *time.Location, recent int) Report {
	if loc == nil {
		loc = time.Local
	}
	r := Report{Total: len(entries)}

	actions := map[string]int{}
	entities := map[string]int{}
	actors := map[string]int{}
	days := map[string]int{}

	for i := range entries {
		e := entries[i]
		actions[string(e.Action)]++
		entities[string(e.Entity)]++
		actors[e.Actor]++
		days[e.At.In(loc).Format("2006-01-02")]++

		if r.First == nil || e.At.Before(*r.First) {
			at := e.At
			r.First = &at
		}
		if r.Last == nil || e.At.After(*r.Last) {
			at := e.At
			r.Last = &at
		}
	}

	r.ByAction = byCount(actions)
	r.ByEntity = byCount(entities)
	r.ByActor = byCount(actors)
	r.ByDay = byKey(days)

	sorted := make([]model.AuditEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].At.Equal(sorted[j].At) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].At.After(sorted[j].At)
	})
	if recent >= 0 && len(sorted) > recent {
		sorted = sorted[:recent]
	}
	r.Recent = sorted
	return r
}

// byCount orders by descending count, then key.
func byCount(m map[string]int) []Count {
	out := toCounts(m)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func byKey(m map[string]int) []Count {
	out := toCounts(m)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func toCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	return out
}

// Render writes a plain-text report. now drives the relative times.
func Render(w io.Writer, r Report, now time.Time) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Audit entries: %s\n", humanize.Comma(int64(r.Total)))
	if r.Total == 0 {
		_, err := io.WriteString(w, b.String())
		return err
	}
	fmt.Fprintf(&b, "Period: %s (%s) -> %s (%s)\n",
		r.First.Format(time.RFC3339), humanize.RelTime(*r.First, now, "ago", "from now"),
		r.Last.Format(time.RFC3339), humanize.RelTime(*r.Last, now, "ago", "from now"))

	section := func(title string, rows []Count) {
		fmt.Fprintf(&b, "\n%s\n", title)
		for _, c := range rows {
			fmt.Fprintf(&b, "  %-24s %6d\n", c.Key, c.Count)
		}
	}
	section("By action", r.ByAction)
	section("By entity", r.ByEntity)
	section("By actor", r.ByActor)
	section("By day", r.ByDay)

	if len(r.Recent) > 0 {
		fmt.Fprintf(&b, "\nMost recent\n")
		for _, e := range r.Recent {
			fmt.Fprintf(&b, "  %-16s %-8s %-7s %-36s %s",
				humanize.RelTime(e.At, now, "ago", "from now"), e.Action, e.Entity, e.EntityID, e.Actor)
			if e.Details != "" {
				fmt.Fprintf(&b, " (%s)", e.Details)
			}
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
