package web

import (
	"context"
	"time"

	"audiencier/internal/clock"
	"audiencier/internal/debounce"
	"audiencier/internal/ics"
	appLog "audiencier/internal/log"
	"audiencier/internal/store"
)

// CalendarName is the X-WR-CALNAME of the exported feed.
const CalendarName = "Audiences"

// Exporter renders the stored hearings as iCalendar and rewrites the
// export file once a burst of mutations has settled.
type Exporter struct {
	store *store.Store
	path  string
	clock clock.Clock
	deb   *debounce.Func[string]
}

// NewExporter returns an exporter writing to path after delay of quiet.
// An empty path disables the file; Render still works.
func NewExporter(st *store.Store, path string, clk clock.Clock, delay time.Duration) *Exporter {
	if clk == nil {
		clk = clock.Real()
	}
	e := &Exporter{store: st, path: path, clock: clk}
	e.deb = debounce.NewFunc(clk, delay, func(reason string) {
		if err := e.WriteFile(context.Background()); err != nil {
			appLog.Error("ics export failed", err, "path", e.path, "reason", reason)
		}
	})
	return e
}

// Render builds the iCalendar document of every stored hearing.
func (e *Exporter) Render(ctx context.Context) (string, error) {
	details, err := e.store.HearingDetails(ctx, store.Range{})
	if err != nil {
		return "", err
	}
	hearings := make([]ics.HearingExport, 0, len(details))
	for _, d := range details {
		hearings = append(hearings, ics.HearingExport{Event: d.Event(), Room: d.Hearing.Room, Notes: d.Hearing.Notes})
	}
	return ics.Export(CalendarName, hearings, e.clock.Now()), nil
}

// WriteFile renders and writes the export file now.
func (e *Exporter) WriteFile(ctx context.Context) error {
	if e.path == "" {
		return nil
	}
	body, err := e.Render(ctx)
	if err != nil {
		return err
	}
	if err := ics.WriteFile(e.path, body); err != nil {
		return err
	}
	appLog.Info("ics export written", "path", e.path, "bytes", len(body))
	return nil
}

// Notify schedules a rewrite; reason is logged if it fails.
func (e *Exporter) Notify(reason string) {
	if e.path == "" {
		return
	}
	e.deb.Call(reason)
}

// Flush writes a pending export immediately.
func (e *Exporter) Flush() bool { return e.deb.Flush() }

func (e *Exporter) Pending() bool { return e.deb.Pending() }

// Stop drops any pending rewrite.
func (e *Exporter) Stop() { e.deb.Stop() }
