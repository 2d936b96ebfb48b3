package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiencier/internal/clock"
	"audiencier/internal/model"
)

var now = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func utc(month time.Month, day, hour int) time.Time {
	return time.Date(2026, month, day, hour, 0, 0, 0, time.UTC)
}

func calendar(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//test//FR"}, lines...)
	all = append(all, "END:VCALENDAR")
	return []byte(strings.Join(all, "\r\n") + "\r\n")
}

var courtCalendar = calendar(
	"BEGIN:VEVENT",
	"UID:permanence",
	"DTSTAMP:20261001T000000Z",
	"DTSTART:20261005T090000Z",
	"DTEND:20261005T100000Z",
	"SUMMARY:Audience de référé",
	"LOCATION:TJ Lyon",
	"RRULE:FREQ=WEEKLY;COUNT=5",
	"EXDATE:20261012T090000Z",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:permanence",
	"DTSTAMP:20261001T000000Z",
	"RECURRENCE-ID:20261019T090000Z",
	"DTSTART:20261019T140000Z",
	"DTEND:20261019T150000Z",
	"SUMMARY:Audience de référé (renvoi)",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:jaf",
	"DTSTAMP:20261001T000000Z",
	"DTSTART:20261020T100000Z",
	"DTEND:20261020T110000Z",
	"SUMMARY:Audience JAF",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"DTSTAMP:20261001T000000Z",
	"DTSTART:20261021T100000Z",
	"SUMMARY:No UID",
	"END:VEVENT",
)

func TestParse(t *testing.T) {
	events, err := Parse(Source{ID: "tj"}, courtCalendar)
	require.NoError(t, err)
	require.Len(t, events, 3, "vevent without UID is skipped")

	base := events[0]
	assert.Equal(t, "permanence", base.UID)
	assert.Equal(t, "FREQ=WEEKLY;COUNT=5", base.RRule)
	assert.True(t, utc(10, 5, 9).Equal(base.Start))
	assert.True(t, utc(10, 5, 10).Equal(base.End))
	assert.False(t, base.AllDay)
	require.Len(t, base.ExDates, 1)
	assert.True(t, utc(10, 12, 9).Equal(base.ExDates[0]))
	assert.False(t, base.Override())

	override := events[1]
	require.True(t, override.Override())
	assert.True(t, utc(10, 19, 9).Equal(*override.RecurrenceID))

	_, err = Parse(Source{ID: "tj"}, []byte("  "))
	assert.Error(t, err)
}

func TestExpand(t *testing.T) {
	events, err := Parse(Source{ID: "tj"}, courtCalendar)
	require.NoError(t, err)

	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	occ, truncated, err := Expand(events, Window{Start: utc(10, 10, 0), End: utc(10, 31, 0), Location: paris})
	require.NoError(t, err)
	assert.Empty(t, truncated)
	require.Len(t, occ, 3)

	assert.Equal(t, "Audience de référé (renvoi)", occ[0].Summary)
	assert.True(t, utc(10, 19, 14).Equal(occ[0].Start))
	assert.Equal(t, paris, occ[0].Start.Location())

	assert.Equal(t, "jaf", occ[1].UID)
	assert.Equal(t, "permanence", occ[2].UID)
	assert.True(t, utc(10, 26, 9).Equal(occ[2].Start))
	assert.NotEqual(t, occ[0].InstanceKey, occ[2].InstanceKey)

	_, _, err = Expand(events, Window{Start: utc(10, 31, 0), End: utc(10, 1, 0)})
	assert.Error(t, err)
}

func TestExpandCap(t *testing.T) {
	daily := Event{
		Source: Source{ID: "tj"},
		UID:    "daily",
		Start:  utc(10, 1, 9),
		End:    utc(10, 1, 10),
		RRule:  "FREQ=DAILY",
	}
	occ, truncated, err := Expand([]Event{daily}, Window{Start: utc(10, 1, 0), End: utc(10, 11, 0), Location: time.UTC, MaxPerEvent: 3})
	require.NoError(t, err)
	assert.Len(t, occ, 3)
	assert.Equal(t, []string{"daily"}, truncated)
}

func TestExportRoundTrip(t *testing.T) {
	hearings := []HearingExport{
		{
			Event: model.CalendarEvent{
				ID:            "h1",
				Title:         "Martin c/ Durand",
				CaseReference: "RG 26/0001",
				Parties:       "Martin c/ Durand",
				Jurisdiction:  "TJ Lyon",
				Date:          utc(10, 20, 9),
				Status:        model.StatusUpcoming,
			},
			Room:  "Salle 3",
			Notes: "Plaidoiries",
		},
		{
			Event: model.CalendarEvent{ID: "h2", Title: "Audience RG 2", Date: utc(10, 21, 14), Status: model.StatusHeld},
		},
	}

	body := Export("Audiences", hearings, now)
	assert.Contains(t, body, "X-WR-CALNAME:Audiences")

	events, err := Parse(Source{ID: "export"}, []byte(body))
	require.NoError(t, err)
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, "h1", UIDToID(first.UID))
	assert.Equal(t, "RG 26/0001 - Martin c/ Durand", first.Summary)
	assert.Equal(t, "TJ Lyon, Salle 3", first.Location)
	assert.True(t, utc(10, 20, 9).Equal(first.Start))
	assert.True(t, utc(10, 20, 10).Equal(first.End))
	assert.Contains(t, first.Description, "Plaidoiries")

	assert.Equal(t, "Audience RG 2", events[1].Summary)
	assert.Empty(t, events[1].Location)
}

func TestFetchUsesConditionalRequests(t *testing.T) {
	var (
		hits     atomic.Int32
		broken   atomic.Bool
		notMatch atomic.Int32
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if broken.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			notMatch.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(courtCalendar)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), clock.Fake(now))
	src := Source{ID: "tj", URL: srv.URL + "/cal.ics?token=secret"}
	ctx := context.Background()

	first, err := f.Fetch(ctx, src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, courtCalendar, first.Body)

	second, err := f.Fetch(ctx, src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, courtCalendar, second.Body)
	assert.Equal(t, int32(1), notMatch.Load())

	broken.Store(true)
	third, err := f.Fetch(ctx, src)
	require.NoError(t, err)
	assert.True(t, third.FromCache)

	empty := NewFetcher(t.TempDir(), clock.Fake(now))
	_, err = empty.Fetch(ctx, src)
	assert.Error(t, err)
	assert.Equal(t, int32(4), hits.Load())

	_, err = f.Fetch(ctx, Source{ID: "none"})
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://greffe.example/...(redacted)", redactURL("https://greffe.example/cal/x.ics?token=abc"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}

func TestFeedRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(courtCalendar)
	}))

	clk := clock.Fake(now)
	sources := []Source{
		{ID: "tj", Name: "Tribunal judiciaire de Lyon", URL: srv.URL},
		{ID: "ca", Name: "Cour d'appel", URL: "http://127.0.0.1:1/unreachable.ics"},
	}
	feed := NewFeed(NewFetcher(t.TempDir(), clk), sources, clk, time.UTC, 30)
	assert.True(t, feed.RefreshedAt().IsZero())

	err := feed.Refresh(context.Background())
	require.Error(t, err, "unreachable source without cache")
	assert.Equal(t, now, feed.RefreshedAt())

	events := feed.Events(now)
	require.Len(t, events, 5, "occurrences since 30 days ago: 10-05, 10-19, 10-20, 10-26, 11-02")
	for _, ev := range events {
		assert.True(t, strings.HasPrefix(ev.ID, "tj:"), ev.ID)
	}

	byTitle := map[string]model.CalendarEvent{}
	for _, ev := range events {
		byTitle[ev.Title] = ev
	}
	assert.Equal(t, "TJ Lyon", byTitle["Audience de référé"].Jurisdiction)
	assert.Equal(t, "Tribunal judiciaire de Lyon", byTitle["Audience JAF"].Jurisdiction)
	assert.Equal(t, model.StatusUpcoming, byTitle["Audience JAF"].Status)

	srv.Close()
	clk.Advance(time.Hour)
	err = feed.Refresh(context.Background())
	require.Error(t, err)
	assert.Len(t, feed.Events(clk.Now()), 5, "cached body keeps the source alive")
}
