package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"smartid/internal/identity/models"
	"smartid/pkg/domain"
	"smartid/pkg/platform/sentinel"
	txcontext "smartid/pkg/platform/tx"
)

const (
	identityKeyPrefix = "smartid:identity:"
	maxWatchRetries   = 5
)

// RedisStore keeps each record as one JSON document. Execute uses optimistic
// WATCH/MULTI and retries when another writer commits first.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

type endorsementDoc struct {
	Attribute   domain.Hash      `json:"attribute"`
	Endorsement domain.Hash      `json:"endorsement"`
	Endorser    domain.AccountID `json:"endorser"`
	Accepted    bool             `json:"accepted"`
}

type identityDoc struct {
	ID            domain.IdentityID    `json:"id"`
	Ownership     models.Ownership     `json:"ownership"`
	Attributes    []domain.Hash        `json:"attributes"`
	Endorsements  []endorsementDoc     `json:"endorsements"`
	Keys          models.KeyProfile    `json:"keys"`
	Balance       uint64               `json:"balance"`
	Status        models.RecordStatus  `json:"status"`
	DisposePolicy models.DisposePolicy `json:"dispose_policy"`
	CreatedHeight domain.Height        `json:"created_height"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func encode(rec *models.Identity) ([]byte, error) {
	doc := identityDoc{
		ID:            rec.ID,
		Ownership:     rec.Ownership,
		Attributes:    make([]domain.Hash, 0, len(rec.Attributes)),
		Endorsements:  make([]endorsementDoc, 0, len(rec.Endorsements)),
		Keys:          rec.Keys,
		Balance:       rec.Balance,
		Status:        rec.Status,
		DisposePolicy: rec.DisposePolicy,
		CreatedHeight: rec.CreatedHeight,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	for h := range rec.Attributes {
		doc.Attributes = append(doc.Attributes, h)
	}
	for key, e := range rec.Endorsements {
		doc.Endorsements = append(doc.Endorsements, endorsementDoc{
			Attribute:   key.Attribute,
			Endorsement: key.Endorsement,
			Endorser:    e.Endorser,
			Accepted:    e.Accepted,
		})
	}
	return json.Marshal(doc)
}

func decode(raw []byte) (*models.Identity, error) {
	var doc identityDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	rec := &models.Identity{
		ID:            doc.ID,
		Ownership:     doc.Ownership,
		Attributes:    make(models.AttributeSet, len(doc.Attributes)),
		Endorsements:  make(models.EndorsementBook, len(doc.Endorsements)),
		Keys:          doc.Keys,
		Balance:       doc.Balance,
		Status:        doc.Status,
		DisposePolicy: doc.DisposePolicy,
		CreatedHeight: doc.CreatedHeight,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	for _, h := range doc.Attributes {
		rec.Attributes[h] = struct{}{}
	}
	for _, e := range doc.Endorsements {
		rec.Endorsements[models.EndorsementKey{Attribute: e.Attribute, Endorsement: e.Endorsement}] = models.Endorsement{
			Endorser: e.Endorser,
			Accepted: e.Accepted,
		}
	}
	return rec, nil
}

func identityKey(id domain.IdentityID) string {
	return identityKeyPrefix + id.String()
}

func (s *RedisStore) Create(ctx context.Context, rec *models.Identity) error {
	payload, err := encode(rec)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, identityKey(rec.ID), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("create identity: %w", err)
	}
	if !ok {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, id domain.IdentityID) (*models.Identity, error) {
	raw, err := s.client.Get(ctx, identityKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	return decode(raw)
}

// Execute retries fn when a concurrent writer invalidates the WATCH, so fn
// may run more than once per call. Work fn stages with txcontext.AfterCommit
// runs once, after the attempt that commits; a flush error is returned with
// the committed record.
func (s *RedisStore) Execute(ctx context.Context, id domain.IdentityID, fn func(context.Context, *models.Identity) error) (*models.Identity, error) {
	key := identityKey(id)
	for range maxWatchRetries {
		var out *models.Identity
		attemptCtx, staged := txcontext.Stage(ctx)
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return sentinel.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("load identity: %w", err)
			}
			rec, err := decode(raw)
			if err != nil {
				return err
			}
			if err := fn(attemptCtx, rec); err != nil {
				return err
			}
			payload, err := encode(rec)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, 0)
				return nil
			})
			if err != nil {
				return err
			}
			out = rec
			return nil
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := staged.Flush(ctx); err != nil {
			return out, fmt.Errorf("flush after commit: %w", err)
		}
		return out, nil
	}
	return nil, sentinel.ErrConflict
}
