package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"smartid/internal/identity/models"
	"smartid/pkg/domain"
	"smartid/pkg/platform/sentinel"
	txcontext "smartid/pkg/platform/tx"
)

// PostgresStore persists identity records across three tables: the record
// row, its attribute set, and its endorsement book.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// inTx joins the transaction already in ctx, or runs fn in a new one.
func (s *PostgresStore) inTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if tx, ok := txcontext.From(ctx); ok {
		return fn(ctx, tx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin identity transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(txcontext.WithTx(ctx, tx), tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit identity transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, rec *models.Identity) error {
	return s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		query := `
			INSERT INTO identities (
				id, controller, override, last_controller_change, controller_changes,
				min_transfer_interval, signing_public_key, encryption_public_key, balance,
				status, dispose_policy, created_height, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (id) DO NOTHING
		`
		res, err := tx.ExecContext(ctx, query,
			rec.ID.String(),
			rec.Controller.String(),
			rec.Override.String(),
			int64(rec.LastControllerChange),
			int64(rec.ControllerChanges),
			int64(rec.MinTransferInterval),
			rec.Keys.SigningPublicKey,
			rec.Keys.EncryptionPublicKey,
			int64(rec.Balance),
			string(rec.Status),
			string(rec.DisposePolicy),
			int64(rec.CreatedHeight),
			rec.CreatedAt,
			rec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert identity: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return sentinel.ErrAlreadyUsed
		}
		return s.saveChildren(ctx, tx, rec)
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.IdentityID) (*models.Identity, error) {
	return s.load(ctx, txcontext.Or(ctx, s.db), id, false)
}

// Execute locks the record row with SELECT ... FOR UPDATE, lets fn mutate the
// loaded record, and writes it back. Any error rolls the transaction back.
func (s *PostgresStore) Execute(ctx context.Context, id domain.IdentityID, fn func(context.Context, *models.Identity) error) (*models.Identity, error) {
	var out *models.Identity
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rec, err := s.load(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := fn(ctx, rec); err != nil {
			return err
		}
		if err := s.save(ctx, tx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) load(ctx context.Context, q txcontext.Executor, id domain.IdentityID, forUpdate bool) (*models.Identity, error) {
	query := `
		SELECT controller, override, last_controller_change, controller_changes,
			min_transfer_interval, signing_public_key, encryption_public_key, balance,
			status, dispose_policy, created_height, created_at, updated_at
		FROM identities
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	rec := &models.Identity{
		ID:           id,
		Attributes:   models.AttributeSet{},
		Endorsements: models.EndorsementBook{},
	}
	var (
		controller, override, status, policy                  string
		lastChange, changes, interval, balance, createdHeight int64
	)
	err := q.QueryRowContext(ctx, query, id.String()).Scan(
		&controller,
		&override,
		&lastChange,
		&changes,
		&interval,
		&rec.Keys.SigningPublicKey,
		&rec.Keys.EncryptionPublicKey,
		&balance,
		&status,
		&policy,
		&createdHeight,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	rec.Controller = domain.AccountID(controller)
	rec.Override = domain.AccountID(override)
	rec.LastControllerChange = domain.Height(lastChange)
	rec.ControllerChanges = uint64(changes)
	rec.MinTransferInterval = uint64(interval)
	rec.Balance = uint64(balance)
	rec.Status = models.RecordStatus(status)
	rec.DisposePolicy = models.DisposePolicy(policy)
	rec.CreatedHeight = domain.Height(createdHeight)

	if err := s.loadAttributes(ctx, q, rec); err != nil {
		return nil, err
	}
	if err := s.loadEndorsements(ctx, q, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PostgresStore) loadAttributes(ctx context.Context, q txcontext.Executor, rec *models.Identity) error {
	rows, err := q.QueryContext(ctx, `SELECT hash FROM identity_attributes WHERE identity_id = $1`, rec.ID.String())
	if err != nil {
		return fmt.Errorf("load attributes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("scan attribute: %w", err)
		}
		h, err := domain.HashFromBytes(raw)
		if err != nil {
			return fmt.Errorf("decode attribute: %w", err)
		}
		rec.Attributes[h] = struct{}{}
	}
	return rows.Err()
}

func (s *PostgresStore) loadEndorsements(ctx context.Context, q txcontext.Executor, rec *models.Identity) error {
	rows, err := q.QueryContext(ctx, `
		SELECT attribute, endorsement, endorser, accepted
		FROM identity_endorsements
		WHERE identity_id = $1
	`, rec.ID.String())
	if err != nil {
		return fmt.Errorf("load endorsements: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			attr, end []byte
			endorser  string
			accepted  bool
		)
		if err := rows.Scan(&attr, &end, &endorser, &accepted); err != nil {
			return fmt.Errorf("scan endorsement: %w", err)
		}
		a, err := domain.HashFromBytes(attr)
		if err != nil {
			return fmt.Errorf("decode endorsement attribute: %w", err)
		}
		e, err := domain.HashFromBytes(end)
		if err != nil {
			return fmt.Errorf("decode endorsement hash: %w", err)
		}
		rec.Endorsements[models.EndorsementKey{Attribute: a, Endorsement: e}] = models.Endorsement{
			Endorser: domain.AccountID(endorser),
			Accepted: accepted,
		}
	}
	return rows.Err()
}

func (s *PostgresStore) save(ctx context.Context, tx *sql.Tx, rec *models.Identity) error {
	query := `
		UPDATE identities SET
			controller = $2,
			override = $3,
			last_controller_change = $4,
			controller_changes = $5,
			signing_public_key = $6,
			encryption_public_key = $7,
			balance = $8,
			status = $9,
			updated_at = $10
		WHERE id = $1
	`
	_, err := tx.ExecContext(ctx, query,
		rec.ID.String(),
		rec.Controller.String(),
		rec.Override.String(),
		int64(rec.LastControllerChange),
		int64(rec.ControllerChanges),
		rec.Keys.SigningPublicKey,
		rec.Keys.EncryptionPublicKey,
		int64(rec.Balance),
		string(rec.Status),
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM identity_attributes WHERE identity_id = $1`, rec.ID.String()); err != nil {
		return fmt.Errorf("clear attributes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM identity_endorsements WHERE identity_id = $1`, rec.ID.String()); err != nil {
		return fmt.Errorf("clear endorsements: %w", err)
	}
	return s.saveChildren(ctx, tx, rec)
}

// saveChildren bulk-inserts the attribute set and endorsement book with
// unnest over array parameters.
func (s *PostgresStore) saveChildren(ctx context.Context, tx *sql.Tx, rec *models.Identity) error {
	if len(rec.Attributes) > 0 {
		hashes := make([][]byte, 0, len(rec.Attributes))
		for h := range rec.Attributes {
			hashes = append(hashes, h.Bytes())
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO identity_attributes (identity_id, hash)
			SELECT $1, unnest($2::bytea[])
		`, rec.ID.String(), pq.Array(hashes))
		if err != nil {
			return fmt.Errorf("insert attributes: %w", err)
		}
	}

	if len(rec.Endorsements) > 0 {
		n := len(rec.Endorsements)
		attrs := make([][]byte, 0, n)
		ends := make([][]byte, 0, n)
		endorsers := make([]string, 0, n)
		accepted := make([]bool, 0, n)
		for key, e := range rec.Endorsements {
			attrs = append(attrs, key.Attribute.Bytes())
			ends = append(ends, key.Endorsement.Bytes())
			endorsers = append(endorsers, e.Endorser.String())
			accepted = append(accepted, e.Accepted)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO identity_endorsements (identity_id, attribute, endorsement, endorser, accepted)
			SELECT $1, u.attribute, u.endorsement, u.endorser, u.accepted
			FROM unnest($2::bytea[], $3::bytea[], $4::text[], $5::bool[]) AS u(attribute, endorsement, endorser, accepted)
		`, rec.ID.String(), pq.Array(attrs), pq.Array(ends), pq.Array(endorsers), pq.Array(accepted))
		if err != nil {
			return fmt.Errorf("insert endorsements: %w", err)
		}
	}
	return nil
}
