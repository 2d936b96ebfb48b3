package store

import (
	"context"
	"database/sql"

	"audiencier/internal/model"
)

// Batch writes cases, parties and hearings in one transaction. It is only
// valid inside the function passed to Store.Batch.
type Batch struct {
	s  *Store
	tx *sql.Tx
}

// Batch runs fn in a single transaction. If fn returns an error nothing it
// wrote is kept, audit entries included. fn must not call other Store
// methods: the store has one connection and the transaction holds it.
func (s *Store) Batch(ctx context.Context, fn func(b *Batch) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&Batch{s: s, tx: tx})
	})
}

func (b *Batch) CreateCase(ctx context.Context, c model.Case) (model.Case, error) {
	return b.s.createCase(ctx, b.tx, c)
}

func (b *Batch) CreateParty(ctx context.Context, p model.Party) (model.Party, error) {
	return b.s.createParty(ctx, b.tx, p)
}

func (b *Batch) CreateHearing(ctx context.Context, h model.Hearing) (model.Hearing, error) {
	return b.s.createHearing(ctx, b.tx, h)
}
