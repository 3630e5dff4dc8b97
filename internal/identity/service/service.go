// Package service orchestrates identity records: it resolves the caller and
// ledger height, runs each operation as one store transaction, and records
// the committed outcome in the audit trail.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	identitymetrics "smartid/internal/identity/metrics"
	"smartid/internal/identity/models"
	"smartid/pkg/domain"
	dErrors "smartid/pkg/domain-errors"
	audit "smartid/pkg/platform/audit"
	"smartid/pkg/platform/sentinel"
	txcontext "smartid/pkg/platform/tx"
	"smartid/pkg/requestcontext"
)

// Store is the record store. Execute hands fn a private copy of the record
// and commits it only when fn returns nil. A store that may run fn more than
// once opens a txcontext staging area per attempt and flushes only the
// attempt that commits.
type Store interface {
	Create(ctx context.Context, rec *models.Identity) error
	FindByID(ctx context.Context, id domain.IdentityID) (*models.Identity, error)
	Execute(ctx context.Context, id domain.IdentityID, fn func(context.Context, *models.Identity) error) (*models.Identity, error)
}

// Clock is the ledger height source.
type Clock interface {
	Height(ctx context.Context) (domain.Height, error)
	Advance(ctx context.Context, blocks uint64) (domain.Height, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the identity application service.
type Service struct {
	records        Store
	clock          Clock
	tx             StoreTx
	params         models.Params
	blockPerTx     bool
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *identitymetrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *identitymetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithTx sets the transaction runner shared by the record store and the audit
// store. Without it each store call commits on its own.
func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// WithParams sets the policy applied to newly created records.
func WithParams(p models.Params) Option {
	return func(s *Service) {
		s.params = p
	}
}

// WithBlockPerTx advances the ledger by one block after every committed
// mutation.
func WithBlockPerTx(enabled bool) Option {
	return func(s *Service) {
		s.blockPerTx = enabled
	}
}

func New(records Store, clock Clock, opts ...Option) *Service {
	s := &Service{
		records: records,
		clock:   clock,
		params:  models.Params{MinTransferInterval: models.DefaultMinTransferInterval},
		tracer:  otel.Tracer("smartid/identity"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = newInMemoryStoreTx()
	}
	return s
}

// Create registers a new record controlled and overridden by the caller and
// returns it with the creation's status record.
func (s *Service) Create(ctx context.Context) (*models.Identity, models.Result, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "identity.create")
	defer span.End()

	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, models.Result{}, s.fail(span, models.OpCreate, start, err)
	}
	height, err := s.height(ctx)
	if err != nil {
		return nil, models.Result{}, s.fail(span, models.OpCreate, start, err)
	}

	rec, res, err := models.NewIdentity(domain.NewIdentityID(), caller, s.params, height, requestcontext.Now(ctx))
	if err != nil {
		return nil, models.Result{}, s.fail(span, models.OpCreate, start, err)
	}
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.records.Create(txCtx, rec); err != nil {
			return err
		}
		return s.logAudit(txCtx, audit.ActionIdentityCreated, height, lastStatus(res),
			"identity_id", rec.ID.String(),
			"caller", caller.String(),
		)
	})
	if err != nil {
		return nil, models.Result{}, s.fail(span, models.OpCreate, start, wrapStoreErr(err))
	}

	span.SetAttributes(attribute.String("identity.id", rec.ID.String()))
	s.afterCommit(ctx, models.OpCreate, start)
	if s.metrics != nil {
		s.metrics.IdentitiesCreated.Inc()
	}
	return rec, res, nil
}

// mutation applies one operation to a record.
type mutation func(rec *models.Identity, caller domain.AccountID, height domain.Height) (models.Result, error)

// mutate runs op against the record under the store's per-record lock and
// appends the audit event with the commit. subject is the audit subject.
func (s *Service) mutate(ctx context.Context, id domain.IdentityID, op models.Operation, subject string, apply mutation) (models.Result, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "identity."+string(op),
		trace.WithAttributes(attribute.String("identity.id", id.String())))
	defer span.End()

	caller, err := requireCaller(ctx)
	if err != nil {
		return models.Result{}, s.fail(span, op, start, err)
	}
	height, err := s.height(ctx)
	if err != nil {
		return models.Result{}, s.fail(span, op, start, err)
	}
	now := requestcontext.Now(ctx)

	var res models.Result
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		_, err := s.records.Execute(txCtx, id, func(execCtx context.Context, rec *models.Identity) error {
			r, err := apply(rec, caller, height)
			if err != nil {
				return err
			}
			rec.Touch(now)
			res = r
			return txcontext.AfterCommit(execCtx, func(ctx context.Context) error {
				return s.logAudit(ctx, audit.Action(op), height, lastStatus(r),
					"identity_id", id.String(),
					"caller", caller.String(),
					"subject", subject,
				)
			})
		})
		return err
	})
	if err != nil {
		if op == models.OpSetController && dErrors.HasCode(err, dErrors.CodeRateLimited) && s.metrics != nil {
			s.metrics.BlocklockRejection.Inc()
		}
		return models.Result{}, s.fail(span, op, start, wrapStoreErr(err))
	}

	s.afterCommit(ctx, op, start)
	return res, nil
}

// read loads a record for a query. Queries never take the record lock.
func (s *Service) read(ctx context.Context, id domain.IdentityID) (*models.Identity, error) {
	rec, err := s.records.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return rec, nil
}

func (s *Service) height(ctx context.Context) (domain.Height, error) {
	h, err := s.clock.Height(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger height")
	}
	return h, nil
}

func (s *Service) afterCommit(ctx context.Context, op models.Operation, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(string(op), "ok", start)
		if op == models.OpSetController {
			s.metrics.ControllerChanges.Inc()
		}
	}
	if !s.blockPerTx {
		return
	}
	if _, err := s.clock.Advance(ctx, 1); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to advance ledger after commit",
			"error", err,
			"operation", string(op),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (s *Service) fail(span trace.Span, op models.Operation, start time.Time, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	if s.metrics != nil {
		s.metrics.ObserveOperation(string(op), string(dErrors.CodeOf(err)), start)
	}
	return err
}

func requireCaller(ctx context.Context) (domain.AccountID, error) {
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		return "", dErrors.New(dErrors.CodeUnauthenticated, "caller account required")
	}
	return caller, nil
}

// wrapStoreErr translates store facts into domain errors. Domain errors pass
// through untouched.
func wrapStoreErr(err error) error {
	var de *dErrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "identity not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeAlreadyExists, "identity already exists")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "identity was modified concurrently, retry")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "identity store failure")
	}
}

func lastStatus(res models.Result) models.Status {
	if len(res.Events) == 0 {
		return 0
	}
	return res.Events[len(res.Events)-1].Status
}
