package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTx(t *testing.T) {
	t.Run("nil transaction leaves context untouched", func(t *testing.T) {
		ctx := context.Background()
		assert.Equal(t, ctx, WithTx(ctx, nil))
		_, ok := From(ctx)
		assert.False(t, ok)
	})

	t.Run("carried transaction is returned", func(t *testing.T) {
		tx := &sql.Tx{}
		got, ok := From(WithTx(context.Background(), tx))
		require.True(t, ok)
		assert.Same(t, tx, got)
	})
}

func TestOr(t *testing.T) {
	db := &sql.DB{}
	assert.Same(t, db, Or(context.Background(), db))

	tx := &sql.Tx{}
	assert.Same(t, tx, Or(WithTx(context.Background(), tx), db))
}
