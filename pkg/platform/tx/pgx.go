package tx

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type pgxKey struct{}

// WithPgx returns ctx carrying a pgx transaction. A nil tx leaves ctx unchanged.
func WithPgx(ctx context.Context, tx pgx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, pgxKey{}, tx)
}

// PgxFrom returns the pgx transaction carried by ctx.
func PgxFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(pgxKey{}).(pgx.Tx)
	return tx, ok
}
