package ics

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"audiencier/internal/clock"
	appLog "audiencier/internal/log"
	"audiencier/internal/model"
	"audiencier/internal/transform"
)

// pastDays is how far back external occurrences are kept, so that the
// "Past" bucket shows recent hearings from court calendars too.
const pastDays = 30

// Feed holds the expanded occurrences of every configured source. A failed
// refresh keeps the previous occurrences of that source.
type Feed struct {
	fetcher *Fetcher
	sources []Source
	clock   clock.Clock
	loc     *time.Location
	horizon int

	mu          sync.RWMutex
	occurrences map[string][]model.Occurrence
	refreshedAt time.Time
}

func NewFeed(fetcher *Fetcher, sources []Source, clk clock.Clock, loc *time.Location, horizonDays int) *Feed {
	if clk == nil {
		clk = clock.Real()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Feed{
		fetcher:     fetcher,
		sources:     sources,
		clock:       clk,
		loc:         loc,
		horizon:     horizonDays,
		occurrences: make(map[string][]model.Occurrence),
	}
}

// Refresh fetches, parses and expands every source concurrently.
func (f *Feed) Refresh(ctx context.Context) error {
	if len(f.sources) == 0 {
		return nil
	}
	now := f.clock.Now().In(f.loc)
	w := Window{
		Start:    now.AddDate(0, 0, -pastDays),
		End:      now.AddDate(0, 0, f.horizon),
		Location: f.loc,
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, src := range f.sources {
		g.Go(func() error {
			occ, err := f.load(gctx, src, w)
			if err != nil {
				appLog.Error("ics source refresh failed", err, "source", src.ID)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			f.mu.Lock()
			f.occurrences[src.ID] = occ
			f.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	f.mu.Lock()
	f.refreshedAt = now
	f.mu.Unlock()
	return errors.Join(errs...)
}

func (f *Feed) load(ctx context.Context, src Source, w Window) ([]model.Occurrence, error) {
	fetched, err := f.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	events, err := Parse(src, fetched.Body)
	if err != nil {
		return nil, err
	}
	occ, _, err := Expand(events, w)
	if err != nil {
		return nil, err
	}
	appLog.Info("ics source refreshed", "source", src.ID, "occurrences", len(occ), "from_cache", fetched.FromCache)
	return occ, nil
}

// Events returns the current occurrences as calendar events, ordered by
// source then start.
func (f *Feed) Events(now time.Time) []model.CalendarEvent {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]model.CalendarEvent, 0)
	for _, src := range f.sources {
		for _, o := range f.occurrences[src.ID] {
			out = append(out, transform.OccurrenceToEvent(o, src.Name, now))
		}
	}
	return out
}

// RefreshedAt returns the time of the last Refresh, zero before the first.
func (f *Feed) RefreshedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.refreshedAt
}
