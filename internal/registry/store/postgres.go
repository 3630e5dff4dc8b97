package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"smartid/internal/registry/models"
	"smartid/pkg/domain"
	"smartid/pkg/platform/sentinel"
	txcontext "smartid/pkg/platform/tx"
)

// PostgresStore keeps registries in the registries and registry_contracts
// tables through a pgx pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// begin opens a transaction, or a savepoint inside the pgx transaction
// carried by ctx.
func (s *PostgresStore) begin(ctx context.Context) (pgx.Tx, error) {
	if outer, ok := txcontext.PgxFrom(ctx); ok {
		return outer.Begin(ctx)
	}
	return s.db.Begin(ctx)
}

func (s *PostgresStore) Create(ctx context.Context, reg *models.Registry) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO registries (id, owner, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, reg.ID.String(), reg.Owner.String(), reg.CreatedAt, reg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert registry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrAlreadyUsed
	}
	if err := insertContracts(ctx, tx, reg); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.RegistryID) (*models.Registry, error) {
	return load(ctx, s.db, id, false)
}

// Execute locks the registry row for the duration of fn. fn's context carries
// the transaction, so an audit append made from fn commits or rolls back with
// the registry.
func (s *PostgresStore) Execute(ctx context.Context, id domain.RegistryID, fn func(context.Context, *models.Registry) error) (*models.Registry, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	reg, err := load(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if err := fn(txcontext.WithPgx(ctx, tx), reg); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `UPDATE registries SET updated_at = $2 WHERE id = $1`, id.String(), reg.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update registry: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM registry_contracts WHERE registry_id = $1`, id.String()); err != nil {
		return nil, fmt.Errorf("clear contracts: %w", err)
	}
	if err := insertContracts(ctx, tx, reg); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return reg, nil
}

func load(ctx context.Context, q querier, id domain.RegistryID, forUpdate bool) (*models.Registry, error) {
	query := `SELECT owner, created_at, updated_at FROM registries WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	reg := &models.Registry{ID: id, Contracts: map[domain.Hash]models.ContractStatus{}}
	var owner string
	err := q.QueryRow(ctx, query, id.String()).Scan(&owner, &reg.CreatedAt, &reg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	reg.Owner = domain.AccountID(owner)

	rows, err := q.Query(ctx, `SELECT hash, status FROM registry_contracts WHERE registry_id = $1`, id.String())
	if err != nil {
		return nil, fmt.Errorf("load contracts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			raw    []byte
			status int16
		)
		if err := rows.Scan(&raw, &status); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		h, err := domain.HashFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("decode contract hash: %w", err)
		}
		reg.Contracts[h] = models.ContractStatus(status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contracts: %w", err)
	}
	return reg, nil
}

func insertContracts(ctx context.Context, q querier, reg *models.Registry) error {
	if len(reg.Contracts) == 0 {
		return nil
	}
	hashes := make([][]byte, 0, len(reg.Contracts))
	statuses := make([]int16, 0, len(reg.Contracts))
	for h, status := range reg.Contracts {
		hashes = append(hashes, h.Bytes())
		statuses = append(statuses, int16(status))
	}
	_, err := q.Exec(ctx, `
		INSERT INTO registry_contracts (registry_id, hash, status, updated_at)
		SELECT $1::uuid, u.hash, u.status, $4::timestamptz
		FROM unnest($2::bytea[], $3::smallint[]) AS u(hash, status)
	`, reg.ID.String(), hashes, statuses, reg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert contracts: %w", err)
	}
	return nil
}
