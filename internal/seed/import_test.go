package seed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiencier/internal/model"
	"audiencier/internal/store"
)

const exportJSON = `[
	{
		"id": "a1",
		"dateAudience": "2026-10-20T09:30:00+02:00",
		"statut": "A_VENIR",
		"salle": "Salle 2",
		"affaire": {
			"reference": "RG 26/00001",
			"intitule": "Dupont c/ Lemaire",
			"juridiction": "Tribunal judiciaire de Paris",
			"statut": "OUVERTE",
			"parties": [
				{"nom": "Dupont", "qualite": "DEMANDEUR", "avocat": "Me Girard"},
				{"nom": "Lemaire", "qualite": "DEFENDEUR"}
			]
		}
	},
	{
		"id": "a2",
		"dateAudience": "2026-11-03T14:00:00Z",
		"statut": "BOGUS",
		"affaire": {"reference": "RG 26/00001"}
	},
	{
		"id": "a3",
		"dateAudience": "2026-11-04T10:00:00Z",
		"affaire": {"intitule": "Sans référence"}
	},
	{
		"id": "a4",
		"dateAudience": 1793000000000,
		"statut": "TENUE",
		"affaire": {
			"reference": "RG 26/00002",
			"intitule": "Roux c/ Leroy",
			"juridiction": "Cour d'appel de Lyon",
			"chambre": null,
			"parties": [
				{"nom": "Leroy", "qualite": "DEFENDEUR"},
				{"nom": "Témoin", "qualite": "TEMOIN"}
			]
		}
	}
]`

func TestDecodeAndPreview(t *testing.T) {
	hearings, err := DecodeExport(strings.NewReader(exportJSON))
	require.NoError(t, err)
	require.Len(t, hearings, 4)

	events := Preview(hearings)
	require.Len(t, events, 4)
	assert.Equal(t, "Dupont c/ Lemaire", events[0].Title)
	assert.Equal(t, "RG 26/00001", events[0].CaseReference)
	assert.Equal(t, "Dupont c/ Lemaire", events[0].Parties)
	assert.Equal(t, model.HearingStatus("BOGUS"), events[1].Status)

	_, err = DecodeExport(strings.NewReader(`{"not": "an array"}`))
	require.Error(t, err)
}

func TestImport(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	hearings, err := DecodeExport(strings.NewReader(exportJSON))
	require.NoError(t, err)

	res, err := Import(ctx, s, hearings)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{
		Result:      Result{Cases: 2, Parties: 3, Hearings: 3},
		ReusedCases: 1,
		Skipped:     2,
	}, res)

	stored, err := s.ListHearings(ctx, store.Range{})
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "Salle 2", stored[0].Room)
	assert.True(t, stored[0].Date.Equal(time.Date(2026, 10, 20, 7, 30, 0, 0, time.UTC)))
	assert.Equal(t, model.StatusHeld, stored[1].Status)
	assert.Equal(t, model.StatusUpcoming, stored[2].Status, "unknown status falls back to the default")

	entries, err := s.ListAudit(ctx, time.Time{}, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, ImportActor, e.Actor)
	}
}

func TestImportReusesStoredCase(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.CreateCase(ctx, model.Case{Reference: "RG 26/00002", Title: "Roux c/ Leroy", Jurisdiction: "CA Lyon"})
	require.NoError(t, err)

	hearings, err := DecodeExport(strings.NewReader(exportJSON))
	require.NoError(t, err)
	res, err := Import(ctx, s, hearings)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Cases)
	assert.Equal(t, 2, res.ReusedCases)
	assert.Equal(t, 2, res.Parties)
	assert.Equal(t, 1, res.Skipped)

	cases, err := s.ListCases(ctx)
	require.NoError(t, err)
	assert.Len(t, cases, 2)
}

func TestImportSkipsOutOfRangeEpoch(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	hearings, err := DecodeExport(strings.NewReader(`[
		{"id": "x1", "dateAudience": 1e20, "affaire": {"reference": "RG 26/00003", "intitule": "Hors limites"}},
		{"id": "x2", "dateAudience": "20261019", "affaire": {"reference": "RG 26/00004", "intitule": "Date compacte"}}
	]`))
	require.NoError(t, err)

	res, err := Import(ctx, s, hearings)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Hearings)

	stored, err := s.ListHearings(ctx, store.Range{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 2026, stored[0].Date.Year())
}
