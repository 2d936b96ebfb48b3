package audit

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiencier/internal/model"
)

var base = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func entry(id int64, offset time.Duration, actor string, action model.AuditAction, entity model.AuditEntity) model.AuditEntry {
	return model.AuditEntry{ID: id, At: base.Add(offset), Actor: actor, Action: action, Entity: entity, EntityID: "x"}
}

func sample() []model.AuditEntry {
	return []model.AuditEntry{
		entry(1, -26*time.Hour, "seed", model.ActionCreate, model.EntityCase),
		entry(2, -25*time.Hour, "seed", model.ActionCreate, model.EntityHearing),
		entry(3, 0, "greffe", model.ActionUpdate, model.EntityHearing),
		entry(4, time.Hour, "greffe", model.ActionDelete, model.EntityHearing),
		entry(5, time.Hour, "system", model.ActionUpdate, model.EntityHearing),
	}
}

func TestSummarize(t *testing.T) {
	r := Summarize(sample(), time.UTC, 3)

	assert.Equal(t, 5, r.Total)
	require.NotNil(t, r.First)
	require.NotNil(t, r.Last)
	assert.Equal(t, base.Add(-26*time.Hour), *r.First)
	assert.Equal(t, base.Add(time.Hour), *r.Last)

	assert.Equal(t, []Count{{"CREATE", 2}, {"UPDATE", 2}, {"DELETE", 1}}, r.ByAction)
	assert.Equal(t, []Count{{"hearing", 4}, {"case", 1}}, r.ByEntity)
	assert.Equal(t, []Count{{"greffe", 2}, {"seed", 2}, {"system", 1}}, r.ByActor)
	assert.Equal(t, []Count{{"2026-10-18", 2}, {"2026-10-19", 3}}, r.ByDay)

	require.Len(t, r.Recent, 3)
	assert.Equal(t, int64(5), r.Recent[0].ID, "ties broken by newest id")
	assert.Equal(t, int64(4), r.Recent[1].ID)
	assert.Equal(t, int64(3), r.Recent[2].ID)
}

func TestSummarizeDaysFollowLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	r := Summarize([]model.AuditEntry{entry(1, 16*time.Hour, "a", model.ActionCreate, model.EntityCase)}, tokyo, 10)
	assert.Equal(t, []Count{{"2026-10-20", 1}}, r.ByDay)
}

func TestSummarizeEmpty(t *testing.T) {
	r := Summarize(nil, time.UTC, 10)
	assert.Zero(t, r.Total)
	assert.Nil(t, r.First)
	assert.Empty(t, r.Recent)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, r, base))
	assert.Equal(t, "Audit entries: 0\n", buf.String())
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Summarize(sample(), time.UTC, 2), base.Add(2*time.Hour)))

	out := buf.String()
	assert.Contains(t, out, "Audit entries: 5")
	assert.Contains(t, out, "By action")
	assert.Contains(t, out, "2026-10-18")
	assert.Contains(t, out, "1 hour ago")
	assert.Contains(t, out, "greffe")
}
