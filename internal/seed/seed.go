// Package seed fills the store with demo cases and removes them again.
package seed

import (
	"context"
	"fmt"
	"time"

	appLog "audiencier/internal/log"
	"audiencier/internal/model"
	"audiencier/internal/store"
)

// Prefix marks every demo case reference.
const Prefix = "DEMO-"

// Actor is recorded in the audit trail for seeded rows.
const Actor = "seed"

type demo struct {
	title        string
	jurisdiction string
	chamber      string
	claimant     string
	defendant    string
	lawyer       string
}

var demos = []demo{
	{"Martin c/ Durand", "Tribunal judiciaire de Lyon", "2e chambre civile", "Martin", "Durand", "Me Girard"},
	{"SCI Les Tilleuls c/ Petit", "Tribunal judiciaire de Paris", "", "SCI Les Tilleuls", "Petit", "Me Roux"},
	{"Bernard c/ Société Générale", "Cour d'appel de Versailles", "1re chambre", "Bernard", "Société Générale", "Me Fontaine"},
	{"Lefèvre c/ Moreau", "Conseil de prud'hommes de Nantes", "Section commerce", "Lefèvre", "Moreau", ""},
	{"Dubois c/ Ville de Lille", "Tribunal administratif de Lille", "3e chambre", "Dubois", "Ville de Lille", "Me Lambert"},
}

// offsets spreads hearings over the agenda buckets relative to today.
var offsets = []struct {
	days   int
	hour   int
	status model.HearingStatus
}{
	{-9, 14, model.StatusHeld},
	{-3, 9, model.StatusUpcoming},
	{0, 15, model.StatusUpcoming},
	{1, 10, model.StatusUpcoming},
	{3, 11, model.StatusUpcoming},
	{12, 9, model.StatusUpcoming},
}

// Result counts what Run created.
type Result struct {
	Cases    int
	Parties  int
	Hearings int
}

// Run creates n demo cases with two parties each and one hearing per case,
// cycling through past, today, tomorrow, this week and later. Decided
// cases get an appeal window so the deadlines view has content.
func Run(ctx context.Context, s *store.Store, now time.Time, n int) (Result, error) {
	ctx = store.WithActor(ctx, Actor)
	var res Result
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for i := 0; i < n; i++ {
		d := demos[i%len(demos)]
		c := model.Case{
			Reference:    fmt.Sprintf("%s%04d", Prefix, i+1),
			Title:        d.title,
			Jurisdiction: d.jurisdiction,
			Chamber:      d.chamber,
		}
		if i%3 == 2 {
			decided := today.AddDate(0, 0, -20)
			c.DecisionDate = &decided
			c.AppealDays = 30
		}

		created, err := s.CreateCase(ctx, c)
		if err != nil {
			return res, fmt.Errorf("seed case %s: %w", c.Reference, err)
		}
		res.Cases++

		for _, p := range []model.Party{
			{CaseID: created.ID, Name: d.claimant, Role: model.RoleClaimant, Lawyer: d.lawyer},
			{CaseID: created.ID, Name: d.defendant, Role: model.RoleDefendant},
		} {
			if _, err := s.CreateParty(ctx, p); err != nil {
				return res, fmt.Errorf("seed party for %s: %w", c.Reference, err)
			}
			res.Parties++
		}

		o := offsets[i%len(offsets)]
		h := model.Hearing{
			CaseID: created.ID,
			Date:   today.AddDate(0, 0, o.days).Add(time.Duration(o.hour) * time.Hour),
			Room:   fmt.Sprintf("Salle %d", i%4+1),
			Status: o.status,
		}
		if _, err := s.CreateHearing(ctx, h); err != nil {
			return res, fmt.Errorf("seed hearing for %s: %w", c.Reference, err)
		}
		res.Hearings++
	}

	appLog.Info("demo data seeded", "cases", res.Cases, "parties", res.Parties, "hearings", res.Hearings)
	return res, nil
}

// Cleanup deletes every demo case; parties and hearings cascade.
func Cleanup(ctx context.Context, s *store.Store) (int, error) {
	n, err := s.DeleteCasesByReferencePrefix(store.WithActor(ctx, Actor), Prefix)
	if err != nil {
		return 0, fmt.Errorf("cleanup demo data: %w", err)
	}
	appLog.Info("demo data removed", "cases", n)
	return n, nil
}
