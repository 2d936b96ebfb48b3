package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	appLog "audiencier/internal/log"
	"audiencier/internal/model"
	"audiencier/internal/store"
	"audiencier/internal/transform"
)

// ImportActor is recorded in the audit trail for imported rows.
const ImportActor = "import"

// ImportResult counts what Import created and skipped.
type ImportResult struct {
	Result
	ReusedCases int
	Skipped     int
}

// DecodeExport reads a JSON array of hearings as returned by the API
// ("audiences", each with its "affaire" embedded).
func DecodeExport(r io.Reader) ([]transform.WireHearing, error) {
	var hearings []transform.WireHearing
	if err := json.NewDecoder(r).Decode(&hearings); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	return hearings, nil
}

// Preview flattens an export without touching the store.
func Preview(hearings []transform.WireHearing) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(hearings))
	for _, h := range hearings {
		out = append(out, transform.HearingFromWire(h))
	}
	return out
}

// Import stores an export in one transaction: on error nothing is kept
// and the returned counts are zero. Cases are matched by reference: a case
// already present is reused and its parties are left alone. Hearings
// without a case reference or a readable date, and parties with an unknown
// role, are skipped and logged.
func Import(ctx context.Context, s *store.Store, hearings []transform.WireHearing) (ImportResult, error) {
	ctx = store.WithActor(ctx, ImportActor)

	existing, err := s.ListCases(ctx)
	if err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	err = s.Batch(ctx, func(b *store.Batch) error {
		byRef := make(map[string]string, len(existing))
		for _, c := range existing {
			byRef[c.Reference] = c.ID
		}

		for _, w := range hearings {
			ref := w.Affaire.Reference
			if ref == "" || w.DateAudience.IsZero() {
				appLog.Warn("import: hearing skipped", "id", w.ID, "reference", ref)
				res.Skipped++
				continue
			}

			caseID, ok := byRef[ref]
			if ok {
				res.ReusedCases++
			} else {
				caseID, err = importCase(ctx, b, w.Affaire, &res)
				if err != nil {
					return err
				}
				byRef[ref] = caseID
			}

			h := transform.HearingRecordFromWire(caseID, w)
			if h.Status != "" && !h.Status.Valid() {
				appLog.Warn("import: unknown hearing status, using default", "id", w.ID, "status", h.Status)
				h.Status = ""
			}
			if _, err := b.CreateHearing(ctx, h); err != nil {
				return fmt.Errorf("import hearing %s: %w", w.ID, err)
			}
			res.Hearings++
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	appLog.Info("export imported",
		"cases", res.Cases, "reused_cases", res.ReusedCases,
		"parties", res.Parties, "hearings", res.Hearings, "skipped", res.Skipped)
	return res, nil
}

func importCase(ctx context.Context, b *store.Batch, w transform.WireCase, res *ImportResult) (string, error) {
	c := transform.CaseFromWire(w)
	if !c.Status.Valid() {
		c.Status = ""
	}
	created, err := b.CreateCase(ctx, c)
	if err != nil {
		return "", fmt.Errorf("import case %s: %w", w.Reference, err)
	}
	res.Cases++

	for _, wp := range w.Parties {
		p := transform.PartyFromWire(created.ID, wp)
		if !p.Role.Valid() {
			appLog.Warn("import: party skipped", "case", w.Reference, "name", p.Name, "role", p.Role)
			res.Skipped++
			continue
		}
		if _, err := b.CreateParty(ctx, p); err != nil {
			return "", fmt.Errorf("import party %s: %w", p.Name, err)
		}
		res.Parties++
	}
	return created.ID, nil
}
