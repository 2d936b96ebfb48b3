package store

import (
	"context"

	appLog "audiencier/internal/log"
	"audiencier/internal/model"
	"audiencier/internal/transform"
)

// HearingDetail is a hearing joined with its case and parties.
type HearingDetail struct {
	Hearing model.Hearing
	Case    model.Case
	Parties []model.Party
}

// Event flattens d for the agenda.
func (d HearingDetail) Event() model.CalendarEvent {
	return transform.HearingToEvent(d.Hearing, d.Case, d.Parties)
}

// HearingDetails lists the hearings in r, ordered by date, with their case
// and parties.
func (s *Store) HearingDetails(ctx context.Context, r Range) ([]HearingDetail, error) {
	hearings, err := s.ListHearings(ctx, r)
	if err != nil {
		return nil, err
	}
	cases, err := s.ListCases(ctx)
	if err != nil {
		return nil, err
	}
	parties, err := s.PartiesByCase(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Case, len(cases))
	for _, c := range cases {
		byID[c.ID] = c
	}

	out := make([]HearingDetail, 0, len(hearings))
	for _, h := range hearings {
		c, ok := byID[h.CaseID]
		if !ok {
			appLog.Warn("hearing without case", "hearing_id", h.ID, "case_id", h.CaseID)
			continue
		}
		out = append(out, HearingDetail{Hearing: h, Case: c, Parties: parties[h.CaseID]})
	}
	return out, nil
}

// Events materializes the hearings in r as calendar events.
func (s *Store) Events(ctx context.Context, r Range) ([]model.CalendarEvent, error) {
	details, err := s.HearingDetails(ctx, r)
	if err != nil {
		return nil, err
	}
	out := make([]model.CalendarEvent, 0, len(details))
	for _, d := range details {
		out = append(out, d.Event())
	}
	return out, nil
}
