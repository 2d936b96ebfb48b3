// Package web serves the REST API and the embedded agenda dashboard.
package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"audiencier/internal/agenda"
	"audiencier/internal/clock"
	"audiencier/internal/config"
	"audiencier/internal/ics"
	appLog "audiencier/internal/log"
	"audiencier/internal/model"
	"audiencier/internal/store"
)

// eventsCacheTTL bounds how stale the merged event list may be. Mutations
// through the API invalidate it immediately.
const eventsCacheTTL = 30 * time.Second

//go:embed all:static
var embeddedStatic embed.FS

// Server wires the store, the external calendar feed and the ICS exporter
// to HTTP handlers.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	feed     *ics.Feed
	exporter *Exporter
	clock    clock.Clock
	loc      *time.Location
	opts     agenda.Options
	mux      *http.ServeMux

	// eventsGen is bumped by Invalidate; a rebuild started under an older
	// generation is returned but not cached.
	eventsMu    sync.RWMutex
	eventsGen   uint64
	eventsCache *eventsCache

	// afterLoad, when set, runs between the store read and the cache write.
	afterLoad func()
}

type eventsCache struct {
	events    []model.CalendarEvent
	updatedAt time.Time
}

// Deps are the collaborators of a Server. Feed and Exporter are optional.
type Deps struct {
	Store    *store.Store
	Feed     *ics.Feed
	Exporter *Exporter
	Clock    clock.Clock
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	s := &Server{
		cfg:      cfg,
		store:    deps.Store,
		feed:     deps.Feed,
		exporter: deps.Exporter,
		clock:    clk,
		loc:      cfg.Location(),
		opts:     agenda.Options{SundayFirst: cfg.WeekStart == "sunday"},
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, wrapped in Basic Auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return withActor("web", h)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/settings", s.handleSettings)

	s.mux.HandleFunc("GET /api/cases", s.handleListCases)
	s.mux.HandleFunc("POST /api/cases", s.handleCreateCase)
	s.mux.HandleFunc("GET /api/cases/{id}", s.handleGetCase)
	s.mux.HandleFunc("DELETE /api/cases/{id}", s.handleDeleteCase)
	s.mux.HandleFunc("PATCH /api/cases/{id}/status", s.handleUpdateCaseStatus)
	s.mux.HandleFunc("GET /api/cases/{id}/parties", s.handleListParties)
	s.mux.HandleFunc("POST /api/cases/{id}/parties", s.handleCreateParty)

	s.mux.HandleFunc("GET /api/hearings", s.handleListHearings)
	s.mux.HandleFunc("POST /api/hearings", s.handleCreateHearing)
	s.mux.HandleFunc("PATCH /api/hearings/{id}/status", s.handleUpdateHearingStatus)
	s.mux.HandleFunc("DELETE /api/hearings/{id}", s.handleDeleteHearing)

	s.mux.HandleFunc("GET /api/agenda", s.handleAgenda)
	s.mux.HandleFunc("GET /api/deadlines", s.handleDeadlines)
	s.mux.HandleFunc("GET /api/audit", s.handleAudit)
	s.mux.HandleFunc("GET /calendar.ics", s.handleCalendar)

	s.mux.Handle("GET /", s.staticFileServer())
}

func (s *Server) basicAuthEnabled() bool {
	return s.cfg != nil && s.cfg.BasicAuth != nil &&
		s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware protects everything but /health and records the
// authenticated user as the audit actor.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Audiencier", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(store.WithActor(r.Context(), u)))
	})
}

func withActor(actor string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(store.WithActor(r.Context(), actor)))
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("embedded static filesystem unavailable", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "dashboard not available", http.StatusServiceUnavailable)
		})
	}
	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

// events returns stored hearings merged with external occurrences, from
// the cache while it is fresh. Callers must not modify the result.
func (s *Server) events(ctx context.Context) ([]model.CalendarEvent, error) {
	now := s.clock.Now()

	s.eventsMu.RLock()
	ec, gen := s.eventsCache, s.eventsGen
	s.eventsMu.RUnlock()
	if ec != nil && now.Sub(ec.updatedAt) < eventsCacheTTL {
		return ec.events, nil
	}

	events, err := s.store.Events(ctx, store.Range{})
	if err != nil {
		return nil, err
	}
	if s.feed != nil {
		events = append(events, s.feed.Events(now)...)
	}

	if s.afterLoad != nil {
		s.afterLoad()
	}

	s.eventsMu.Lock()
	if s.eventsGen == gen {
		s.eventsCache = &eventsCache{events: events, updatedAt: now}
	}
	s.eventsMu.Unlock()

	return events, nil
}

// Invalidate drops the cached event list; the next request rebuilds it.
func (s *Server) Invalidate() {
	s.eventsMu.Lock()
	s.eventsGen++
	s.eventsCache = nil
	s.eventsMu.Unlock()
}

// changed is called after every successful mutation.
func (s *Server) changed(reason string) {
	s.Invalidate()
	if s.exporter != nil {
		s.exporter.Notify(reason)
	}
}

func (s *Server) now() time.Time {
	return s.clock.Now().In(s.loc)
}
