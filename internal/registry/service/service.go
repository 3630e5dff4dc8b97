// Package service runs approval registry operations: each mutation is one
// store transaction that also appends the audit event. Stores that retry
// stage the append with txcontext.AfterCommit.
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

	registrymetrics "smartid/internal/registry/metrics"
	"smartid/internal/registry/models"
	"smartid/pkg/attrs"
	"smartid/pkg/domain"
	dErrors "smartid/pkg/domain-errors"
	audit "smartid/pkg/platform/audit"
	"smartid/pkg/platform/sentinel"
	txcontext "smartid/pkg/platform/tx"
	"smartid/pkg/requestcontext"
)

// Store persists registries. Execute hands fn a private copy and commits it
// only when fn returns nil. A store that may run fn more than once opens a
// txcontext staging area per attempt and flushes only the committing one.
type Store interface {
	Create(ctx context.Context, reg *models.Registry) error
	FindByID(ctx context.Context, id domain.RegistryID) (*models.Registry, error)
	Execute(ctx context.Context, id domain.RegistryID, fn func(context.Context, *models.Registry) error) (*models.Registry, error)
}

// Clock reports the ledger height stamped on audit events.
type Clock interface {
	Height(ctx context.Context) (domain.Height, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	registries     Store
	clock          Clock
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *registrymetrics.Metrics
	tracer         trace.Tracer
	tx             StoreTx
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

func WithMetrics(m *registrymetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithTx sets the unit of work that spans a registry write and its audit
// append. Without it both run directly.
func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func New(registries Store, clock Clock, opts ...Option) (*Service, error) {
	if registries == nil {
		return nil, errors.New("registry store is required")
	}
	if clock == nil {
		return nil, errors.New("ledger clock is required")
	}
	s := &Service{
		registries: registries,
		clock:      clock,
		tracer:     otel.Tracer("smartid/registry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = directTx{}
	}
	return s, nil
}

// Create opens a registry owned by the caller.
func (s *Service) Create(ctx context.Context) (*models.Registry, error) {
	const op = "create"
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "registry.create")
	defer span.End()

	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, s.fail(span, op, start, err)
	}
	height, err := s.height(ctx)
	if err != nil {
		return nil, s.fail(span, op, start, err)
	}
	reg, err := models.NewRegistry(domain.NewRegistryID(), caller, requestcontext.Now(ctx))
	if err != nil {
		return nil, s.fail(span, op, start, err)
	}
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.registries.Create(txCtx, reg); err != nil {
			return err
		}
		return s.logAudit(txCtx, audit.ActionRegistryCreated, height,
			"registry_id", reg.ID.String(),
			"caller", caller.String(),
		)
	})
	if err != nil {
		return nil, s.fail(span, op, start, wrapStoreErr(err))
	}

	span.SetAttributes(attribute.String("registry.id", reg.ID.String()))
	s.succeed(op, start)
	if s.metrics != nil {
		s.metrics.RegistriesCreated.Inc()
	}
	return reg, nil
}

func (s *Service) SubmitContract(ctx context.Context, id domain.RegistryID, h domain.Hash) error {
	return s.mutate(ctx, id, h, audit.ActionContractSubmitted, func(reg *models.Registry, _ domain.AccountID) error {
		return reg.Submit(h)
	})
}

func (s *Service) ApproveContract(ctx context.Context, id domain.RegistryID, h domain.Hash) error {
	return s.mutate(ctx, id, h, audit.ActionContractApproved, func(reg *models.Registry, caller domain.AccountID) error {
		return reg.Approve(caller, h)
	})
}

func (s *Service) RejectContract(ctx context.Context, id domain.RegistryID, h domain.Hash) error {
	return s.mutate(ctx, id, h, audit.ActionContractRejected, func(reg *models.Registry, caller domain.AccountID) error {
		return reg.Reject(caller, h)
	})
}

func (s *Service) DeleteContract(ctx context.Context, id domain.RegistryID, h domain.Hash) error {
	return s.mutate(ctx, id, h, audit.ActionContractDeleted, func(reg *models.Registry, _ domain.AccountID) error {
		return reg.Delete(h)
	})
}

// IsValidContract returns nil only when h is approved in the registry.
func (s *Service) IsValidContract(ctx context.Context, id domain.RegistryID, h domain.Hash) error {
	reg, err := s.registries.FindByID(ctx, id)
	if err != nil {
		return wrapStoreErr(err)
	}
	return reg.IsValid(h)
}

func (s *Service) GetContract(ctx context.Context, id domain.RegistryID, h domain.Hash) (models.ContractStatus, error) {
	reg, err := s.registries.FindByID(ctx, id)
	if err != nil {
		return 0, wrapStoreErr(err)
	}
	return reg.Status(h)
}

func (s *Service) Get(ctx context.Context, id domain.RegistryID) (*models.Registry, error) {
	reg, err := s.registries.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return reg, nil
}

type mutation func(reg *models.Registry, caller domain.AccountID) error

func (s *Service) mutate(ctx context.Context, id domain.RegistryID, h domain.Hash, action audit.Action, apply mutation) error {
	op := string(action)
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "registry."+op, trace.WithAttributes(
		attribute.String("registry.id", id.String()),
		attribute.String("contract.hash", h.String()),
	))
	defer span.End()

	caller, err := requireCaller(ctx)
	if err != nil {
		return s.fail(span, op, start, err)
	}
	height, err := s.height(ctx)
	if err != nil {
		return s.fail(span, op, start, err)
	}
	now := requestcontext.Now(ctx)

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		_, err := s.registries.Execute(txCtx, id, func(execCtx context.Context, reg *models.Registry) error {
			if err := apply(reg, caller); err != nil {
				return err
			}
			reg.Touch(now)
			return txcontext.AfterCommit(execCtx, func(ctx context.Context) error {
				return s.logAudit(ctx, action, height,
					"registry_id", id.String(),
					"caller", caller.String(),
					"subject", h.String(),
				)
			})
		})
		return err
	})
	if err != nil {
		return s.fail(span, op, start, wrapStoreErr(err))
	}
	s.succeed(op, start)
	return nil
}

func (s *Service) logAudit(ctx context.Context, action audit.Action, height domain.Height, attributes ...any) error {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if s.logger != nil {
		args := append(attributes, "event", string(action), "log_type", "audit", "height", uint64(height))
		s.logger.InfoContext(ctx, string(action), args...)
	}
	if s.auditPublisher == nil {
		return nil
	}
	return s.auditPublisher.Emit(ctx, audit.Event{
		AggregateType: audit.AggregateRegistry,
		AggregateID:   attrs.ExtractString(attributes, "registry_id"),
		Action:        action,
		Actor:         domain.AccountID(attrs.ExtractString(attributes, "caller")),
		Subject:       attrs.ExtractString(attributes, "subject"),
		Height:        height,
		RequestID:     requestID,
	})
}

func (s *Service) height(ctx context.Context) (domain.Height, error) {
	h, err := s.clock.Height(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger height")
	}
	return h, nil
}

func (s *Service) succeed(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, "ok", start)
	}
}

func (s *Service) fail(span trace.Span, op string, start time.Time, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, string(dErrors.CodeOf(err)), start)
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

func wrapStoreErr(err error) error {
	var de *dErrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "registry not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeAlreadyExists, "registry already exists")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "registry was modified concurrently, retry")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "registry store failure")
	}
}
