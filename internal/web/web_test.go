package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiencier/internal/agenda"
	"audiencier/internal/audit"
	"audiencier/internal/clock"
	"audiencier/internal/config"
	"audiencier/internal/model"
	"audiencier/internal/store"
	"audiencier/internal/transform"
)

// Monday 19 October 2026, 10:00 in Paris.
var now = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

type fixture struct {
	t       *testing.T
	store   *store.Store
	clock   *clock.FakeClock
	server  *Server
	handler http.Handler
	user    string
	pass    string
}

func newFixture(t *testing.T, mutate func(*config.Config), exportPath string) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	clk := clock.Fake(now)
	st, err := store.Open(filepath.Join(t.TempDir(), "web.db"), clk, cfg.Location())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	exp := NewExporter(st, exportPath, clk, cfg.ExportDebounce())
	t.Cleanup(exp.Stop)

	srv := NewServer(cfg, Deps{Store: st, Exporter: exp, Clock: clk})
	return &fixture{t: t, store: st, clock: clk, server: srv, handler: srv.Handler()}
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(f.t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if f.user != "" {
		req.SetBasicAuth(f.user, f.pass)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *fixture) createCase(ref string, extra map[string]any) model.Case {
	f.t.Helper()
	body := map[string]any{"reference": ref, "title": "Martin c/ Durand", "jurisdiction": "TJ Lyon"}
	for k, v := range extra {
		body[k] = v
	}
	rec := f.do(http.MethodPost, "/api/cases", body)
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Case](f.t, rec)
}

func (f *fixture) createHearing(caseID, date string) model.Hearing {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/hearings", map[string]any{"case_id": caseID, "date": date, "room": "Salle 1"})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Hearing](f.t, rec)
}

type agendaBody struct {
	Filtered    []model.CalendarEvent `json:"filtered"`
	Groups      []agenda.Group        `json:"groups"`
	GeneratedAt time.Time             `json:"generated_at"`
}

func TestHealth(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "greffe", Password: "Secret123"}
	}, "")
	rec := f.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestBasicAuth(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "greffe", Password: "Secret123"}
	}, "")

	rec := f.do(http.MethodGet, "/api/cases", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Audiencier")

	f.user, f.pass = "greffe", "wrong"
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/cases", nil).Code)

	f.pass = "Secret123"
	f.createCase("RG 26/0001", nil)

	entries, err := f.store.ListAudit(t.Context(), time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "greffe", entries[0].Actor)
}

func TestCreateCaseValidation(t *testing.T) {
	f := newFixture(t, nil, "")

	rec := f.do(http.MethodPost, "/api/cases", map[string]any{"reference": "", "title": "x", "jurisdiction": "y", "appeal_days": -1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "validation failed", body.Error)
	assert.Equal(t, []string{"La référence est obligatoire"}, body.Fields["reference"])
	assert.Contains(t, body.Fields, "appeal_days")

	rec = f.do(http.MethodPost, "/api/cases", map[string]any{"reference": "RG 1", "unknown": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c := f.createCase("RG 1", nil)
	assert.Equal(t, model.CaseOpen, c.Status)

	rec = f.do(http.MethodPost, "/api/cases", map[string]any{"reference": "RG 1", "title": "x", "jurisdiction": "y"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	entries, err := f.store.ListAudit(t.Context(), time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "web", entries[0].Actor)
}

func TestCaseLifecycle(t *testing.T) {
	f := newFixture(t, nil, "")
	c := f.createCase("RG 26/0001", nil)

	rec := f.do(http.MethodPost, "/api/cases/"+c.ID+"/parties", map[string]any{"name": "Martin", "role": "DEMANDEUR"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = f.do(http.MethodPost, "/api/cases/"+c.ID+"/parties", map[string]any{"name": "Durand", "role": "DEFENDEUR"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(http.MethodPost, "/api/cases/"+c.ID+"/parties", map[string]any{"name": "X", "role": "JUGE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	parties := decode[[]model.Party](t, f.do(http.MethodGet, "/api/cases/"+c.ID+"/parties", nil))
	assert.Len(t, parties, 2)

	h := f.createHearing(c.ID, "2026-10-20T09:30:00+02:00")

	got := decode[caseResponse](t, f.do(http.MethodGet, "/api/cases/"+c.ID, nil))
	assert.Equal(t, "Martin c/ Durand", got.Card.Parties)
	require.Len(t, got.Hearings, 1)
	assert.Equal(t, h.ID, got.Hearings[0].ID)

	rec = f.do(http.MethodPatch, "/api/cases/"+c.ID+"/status", map[string]any{"status": "CLOTUREE"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.CaseClosed, decode[model.Case](t, rec).Status)
	rec = f.do(http.MethodPatch, "/api/cases/"+c.ID+"/status", map[string]any{"status": "PERDUE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/cases/"+c.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/cases/"+c.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/cases/"+c.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/cases/"+c.ID+"/parties", nil).Code)
}

func TestHearingEndpoints(t *testing.T) {
	f := newFixture(t, nil, "")
	c := f.createCase("RG 26/0001", nil)

	rec := f.do(http.MethodPost, "/api/hearings", map[string]any{"case_id": c.ID})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Fields, "date")

	rec = f.do(http.MethodPost, "/api/hearings", map[string]any{"case_id": "8f14e45f-ceea-467f-a8ab-0123456789ab", "date": "2026-10-20T09:00:00Z"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	early := f.createHearing(c.ID, "2026-10-20T09:00:00+02:00")
	f.createHearing(c.ID, "2026-11-20T09:00:00+01:00")

	all := decode[[]hearingResponse](t, f.do(http.MethodGet, "/api/hearings", nil))
	require.Len(t, all, 2)
	assert.Equal(t, early.ID, all[0].ID)
	assert.Equal(t, "RG 26/0001", all[0].CaseReference)
	assert.Equal(t, model.StatusUpcoming, all[0].Status)

	window := decode[[]hearingResponse](t, f.do(http.MethodGet, "/api/hearings?from=2026-11-01", nil))
	assert.Len(t, window, 1)

	rec = f.do(http.MethodPatch, "/api/hearings/"+early.ID+"/status", map[string]any{"status": "TENUE"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusHeld, decode[model.Hearing](t, rec).Status)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/hearings/"+early.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/hearings/"+early.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPatch, "/api/hearings/"+early.ID+"/status", map[string]any{"status": "TENUE"}).Code)
}

func TestAgenda(t *testing.T) {
	f := newFixture(t, nil, "")
	durand := f.createCase("RG 26/0001", nil)
	petit := f.createCase("RG 26/0002", map[string]any{"title": "Petit c/ Société Générale", "jurisdiction": "TJ Paris"})

	empty := decode[agendaBody](t, f.do(http.MethodGet, "/api/agenda", nil))
	assert.Empty(t, empty.Filtered)
	assert.Empty(t, empty.Groups)

	f.createHearing(durand.ID, "2026-10-19T15:00:00+02:00")
	f.createHearing(petit.ID, "2026-10-20T09:00:00+02:00")
	f.createHearing(petit.ID, "2026-10-12T09:00:00+02:00")

	view := decode[agendaBody](t, f.do(http.MethodGet, "/api/agenda", nil))
	assert.Len(t, view.Filtered, 3, "mutations invalidate the cached events")
	var titles []agenda.Bucket
	for _, g := range view.Groups {
		titles = append(titles, g.Title)
	}
	assert.Equal(t, []agenda.Bucket{agenda.BucketToday, agenda.BucketTomorrow, agenda.BucketPast}, titles)
	assert.True(t, now.Equal(view.GeneratedAt))

	view = decode[agendaBody](t, f.do(http.MethodGet, "/api/agenda?q=societe", nil))
	assert.Len(t, view.Filtered, 0, "folding does not strip accents")
	view = decode[agendaBody](t, f.do(http.MethodGet, "/api/agenda?q=SOCIÉTÉ", nil))
	assert.Len(t, view.Filtered, 2)

	view = decode[agendaBody](t, f.do(http.MethodGet, "/api/agenda?status=A_VENIR&q=martin", nil))
	require.Len(t, view.Filtered, 1)
	assert.Equal(t, "RG 26/0001", view.Filtered[0].CaseReference)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/agenda?status=PERDUE", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodPost, "/api/agenda", nil).Code)
}

func TestAgendaDropsRebuildRacingAMutation(t *testing.T) {
	f := newFixture(t, nil, "")
	c := f.createCase("RG 26/0001", nil)

	var created model.Hearing
	f.server.afterLoad = func() {
		f.server.afterLoad = nil
		created = f.createHearing(c.ID, "2026-10-20T09:00:00+02:00")
	}

	view := decode[agendaBody](t, f.do(http.MethodGet, "/api/agenda", nil))
	assert.Empty(t, view.Filtered, "snapshot was read before the hearing existed")

	view = decode[agendaBody](t, f.do(http.MethodGet, "/api/agenda", nil))
	require.Len(t, view.Filtered, 1, "stale snapshot must not be cached")
	assert.Equal(t, created.ID, view.Filtered[0].ID)
}

func TestDeadlines(t *testing.T) {
	f := newFixture(t, nil, "")
	f.createCase("RG soon", map[string]any{"decision_date": "2026-10-01T00:00:00+02:00", "appeal_days": 30})
	f.createCase("RG sooner", map[string]any{"decision_date": "2026-10-10T00:00:00+02:00", "appeal_days": 15})
	f.createCase("RG expired", map[string]any{"decision_date": "2026-09-01T00:00:00+02:00", "appeal_days": 15})
	f.createCase("RG far", map[string]any{"decision_date": "2026-10-18T00:00:00+02:00", "appeal_days": 60})
	f.createCase("RG none", nil)

	cards := decode[[]transform.CaseCard](t, f.do(http.MethodGet, "/api/deadlines", nil))
	require.Len(t, cards, 2)
	assert.Equal(t, "RG sooner", cards[0].Reference)
	assert.Equal(t, 6, *cards[0].DaysLeft)
	assert.Equal(t, "RG soon", cards[1].Reference)
	assert.Equal(t, 12, *cards[1].DaysLeft)

	cards = decode[[]transform.CaseCard](t, f.do(http.MethodGet, "/api/deadlines?days=90", nil))
	assert.Len(t, cards, 3)
}

func TestAuditEndpoint(t *testing.T) {
	f := newFixture(t, nil, "")
	c := f.createCase("RG 1", nil)
	f.clock.Advance(time.Hour)
	f.createHearing(c.ID, "2026-10-20T09:00:00+02:00")

	report := decode[audit.Report](t, f.do(http.MethodGet, "/api/audit?limit=1", nil))
	assert.Equal(t, 2, report.Total)
	require.Len(t, report.Recent, 1)
	assert.Equal(t, model.EntityHearing, report.Recent[0].Entity)
	assert.Equal(t, []audit.Count{{Key: "web", Count: 2}}, report.ByActor)
}

func TestCalendarExport(t *testing.T) {
	f := newFixture(t, nil, "")
	c := f.createCase("RG 26/0001", nil)
	h := f.createHearing(c.ID, "2026-10-20T09:00:00+02:00")

	rec := f.do(http.MethodGet, "/calendar.ics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "UID:"+h.ID+"@audiencier")
	assert.Contains(t, body, "DTSTART:20261020T070000Z")
}

func TestExportFileIsDebounced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "audiences.ics")
	f := newFixture(t, nil, path)

	c := f.createCase("RG 26/0001", nil)
	f.clock.Advance(time.Second)
	f.createHearing(c.ID, "2026-10-20T09:00:00+02:00")
	assert.True(t, f.server.exporter.Pending())

	f.clock.Advance(1999 * time.Millisecond)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "burst not settled yet")

	f.clock.Advance(time.Millisecond)
	assert.False(t, f.server.exporter.Pending())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "RG 26/0001 - Martin c/ Durand")
	assert.Equal(t, 1, strings.Count(string(data), "BEGIN:VEVENT"))

	f.do(http.MethodDelete, "/api/cases/"+c.ID, nil)
	assert.True(t, f.server.exporter.Flush())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "BEGIN:VEVENT")
}

func TestStaticAndSettings(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.WeekStart = "sunday" }, "")

	rec := f.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>Audiencier</title>")
	assert.Contains(t, rec.Body.String(), "dataset.ready")

	rec = f.do(http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decode[errorResponse](t, rec).Error)

	settings := decode[settingsResponse](t, f.do(http.MethodGet, "/api/settings", nil))
	assert.Equal(t, settingsResponse{Timezone: "Europe/Paris", WeekStart: "sunday", SearchDebounceMs: 300}, settings)
}
