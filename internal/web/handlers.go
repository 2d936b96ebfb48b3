package web

import (
	"net/http"
	"sort"
	"time"

	"audiencier/internal/agenda"
	"audiencier/internal/audit"
	appLog "audiencier/internal/log"
	"audiencier/internal/model"
	"audiencier/internal/store"
	"audiencier/internal/transform"
	"audiencier/internal/validate"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type settingsResponse struct {
	Timezone         string `json:"timezone"`
	WeekStart        string `json:"week_start"`
	SearchDebounceMs int    `json:"search_debounce_ms"`
}

// handleSettings exposes the display settings the dashboard needs.
func (s *Server) handleSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, settingsResponse{
		Timezone:         s.loc.String(),
		WeekStart:        s.cfg.WeekStart,
		SearchDebounceMs: s.cfg.SearchDebounceMs,
	})
}

// Cases

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := s.store.ListCases(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cases)
}

func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	var req validate.CreateCaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Run(req, validate.CreateCaseRules); err != nil {
		writeStoreError(w, r, err)
		return
	}

	c, err := s.store.CreateCase(r.Context(), model.Case{
		Reference:    req.Reference,
		Title:        req.Title,
		Jurisdiction: req.Jurisdiction,
		Chamber:      req.Chamber,
		DecisionDate: req.DecisionDate,
		AppealDays:   req.AppealDays,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	appLog.Info("case created", "id", c.ID, "reference", c.Reference, "actor", store.ActorFrom(r.Context()))
	s.changed("case created")
	writeJSON(w, http.StatusCreated, c)
}

type caseResponse struct {
	Case     model.Case         `json:"case"`
	Card     transform.CaseCard `json:"card"`
	Parties  []model.Party      `json:"parties"`
	Hearings []model.Hearing    `json:"hearings"`
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := s.store.GetCase(ctx, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	parties, err := s.store.ListParties(ctx, c.ID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	all, err := s.store.ListHearings(ctx, store.Range{})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	hearings := make([]model.Hearing, 0)
	for _, h := range all {
		if h.CaseID == c.ID {
			hearings = append(hearings, h)
		}
	}

	writeJSON(w, http.StatusOK, caseResponse{
		Case:     c,
		Card:     transform.CaseCardFromCase(c, parties, s.now()),
		Parties:  parties,
		Hearings: hearings,
	})
}

func (s *Server) handleDeleteCase(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteCase(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	appLog.Info("case deleted", "id", id, "actor", store.ActorFrom(r.Context()))
	s.changed("case deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateCaseStatus(w http.ResponseWriter, r *http.Request) {
	var req validate.UpdateCaseStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Run(req, validate.UpdateCaseStatusRules); err != nil {
		writeStoreError(w, r, err)
		return
	}

	ctx := r.Context()
	id := r.PathValue("id")
	if err := s.store.UpdateCaseStatus(ctx, id, model.CaseStatus(req.Status)); err != nil {
		writeStoreError(w, r, err)
		return
	}
	c, err := s.store.GetCase(ctx, id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.changed("case status")
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleListParties(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := s.store.GetCase(ctx, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	parties, err := s.store.ListParties(ctx, c.ID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parties)
}

func (s *Server) handleCreateParty(w http.ResponseWriter, r *http.Request) {
	var req validate.CreatePartyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.CaseID = r.PathValue("id")
	if err := validate.Run(req, validate.CreatePartyRules); err != nil {
		writeStoreError(w, r, err)
		return
	}

	p, err := s.store.CreateParty(r.Context(), model.Party{
		CaseID: req.CaseID,
		Name:   req.Name,
		Role:   model.PartyRole(req.Role),
		Lawyer: req.Lawyer,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.changed("party created")
	writeJSON(w, http.StatusCreated, p)
}

// Hearings

type hearingResponse struct {
	model.Hearing
	CaseReference string `json:"case_reference"`
	Title         string `json:"title"`
	Parties       string `json:"parties"`
	Jurisdiction  string `json:"jurisdiction"`
}

// handleListHearings lists stored hearings, optionally bounded by
// ?from=&to= (any format accepted by the wire decoder).
func (s *Server) handleListHearings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng := store.Range{
		From: transform.ParseWireTime(q.Get("from")),
		To:   transform.ParseWireTime(q.Get("to")),
	}
	details, err := s.store.HearingDetails(r.Context(), rng)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	out := make([]hearingResponse, 0, len(details))
	for _, d := range details {
		ev := d.Event()
		out = append(out, hearingResponse{
			Hearing:       d.Hearing,
			CaseReference: ev.CaseReference,
			Title:         ev.Title,
			Parties:       ev.Parties,
			Jurisdiction:  ev.Jurisdiction,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateHearing(w http.ResponseWriter, r *http.Request) {
	var req validate.CreateHearingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Run(req, validate.CreateHearingRules); err != nil {
		writeStoreError(w, r, err)
		return
	}

	h, err := s.store.CreateHearing(r.Context(), model.Hearing{
		CaseID: req.CaseID,
		Date:   req.Date,
		Room:   req.Room,
		Status: model.HearingStatus(req.Status),
		Notes:  req.Notes,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	appLog.Info("hearing scheduled", "id", h.ID, "case_id", h.CaseID, "date", h.Date.Format(time.RFC3339))
	s.changed("hearing created")
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleUpdateHearingStatus(w http.ResponseWriter, r *http.Request) {
	var req validate.UpdateHearingStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Run(req, validate.UpdateHearingStatusRules); err != nil {
		writeStoreError(w, r, err)
		return
	}

	ctx := r.Context()
	id := r.PathValue("id")
	if err := s.store.UpdateHearingStatus(ctx, id, model.HearingStatus(req.Status)); err != nil {
		writeStoreError(w, r, err)
		return
	}
	h, err := s.store.GetHearing(ctx, id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.changed("hearing status")
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleDeleteHearing(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteHearing(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.changed("hearing deleted")
	w.WriteHeader(http.StatusNoContent)
}

// Views

type agendaResponse struct {
	agenda.View
	GeneratedAt time.Time `json:"generated_at"`
}

// handleAgenda returns the filtered and grouped agenda.
//
// GET /api/agenda?q=durand&status=A_VENIR
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := agenda.ParseStatusFilter(q.Get("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := s.events(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	now := s.now()
	view := agenda.Build(events, agenda.Query{Search: q.Get("q"), Status: status}, now, s.opts)
	writeJSON(w, http.StatusOK, agendaResponse{View: view, GeneratedAt: now})
}

// handleDeadlines lists the cases whose appeal deadline falls between
// today and today + ?days= (default 30), soonest first.
func (s *Server) handleDeadlines(w http.ResponseWriter, r *http.Request) {
	days := parseIntDefault(r.URL.Query().Get("days"), 30)
	if days < 0 {
		days = 30
	}

	ctx := r.Context()
	cases, err := s.store.ListCases(ctx)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	parties, err := s.store.PartiesByCase(ctx)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	now := s.now()
	out := make([]transform.CaseCard, 0)
	for _, c := range cases {
		if c.Status != model.CaseOpen {
			continue
		}
		card := transform.CaseCardFromCase(c, parties[c.ID], now)
		if card.DaysLeft == nil || *card.DaysLeft < 0 || *card.DaysLeft > days {
			continue
		}
		out = append(out, card)
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].DaysLeft < *out[j].DaysLeft })
	writeJSON(w, http.StatusOK, out)
}

// handleAudit summarizes the audit trail of the last ?days= (default 7)
// days, with the ?limit= (default 20) most recent entries.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), 7)
	if days <= 0 {
		days = 7
	}
	limit := parseIntDefault(q.Get("limit"), 20)
	if limit < 0 {
		limit = 20
	}

	now := s.now()
	entries, err := s.store.ListAudit(r.Context(), now.AddDate(0, 0, -days), 0)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, audit.Summarize(entries, s.loc, limit))
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	exp := s.exporter
	if exp == nil {
		exp = NewExporter(s.store, "", s.clock, 0)
	}
	body, err := exp.Render(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="audiences.ics"`)
	_, _ = w.Write([]byte(body))
}
