package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/trace/noop"

	identitymetrics "smartid/internal/identity/metrics"
	"smartid/internal/identity/models"
	"smartid/internal/identity/store"
	"smartid/internal/ledger"
	"smartid/pkg/domain"
	dErrors "smartid/pkg/domain-errors"
	audit "smartid/pkg/platform/audit"
	"smartid/pkg/platform/audit/publisher"
	auditmemory "smartid/pkg/platform/audit/store/memory"
	txcontext "smartid/pkg/platform/tx"
	"smartid/pkg/requestcontext"
)

var (
	accountX = domain.MustAccount("0x000000000000000000000000000000000000000a")
	accountY = domain.MustAccount("0x000000000000000000000000000000000000000b")
	accountZ = domain.MustAccount("0x000000000000000000000000000000000000000c")
	accountW = domain.MustAccount("0x000000000000000000000000000000000000000d")

	h1 = domain.HashOf([]byte("name:alice"))
	h2 = domain.HashOf([]byte("name:alice-smith"))
	e1 = domain.HashOf([]byte("notary-signature"))
)

type ServiceSuite struct {
	suite.Suite
	records *store.InMemory
	clock   *ledger.MemoryClock
	audit   *auditmemory.InMemoryStore
	metrics *identitymetrics.Metrics
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.records = store.NewInMemory()
	s.clock = ledger.NewMemoryClock(1)
	s.audit = auditmemory.NewInMemoryStore()
	s.metrics = identitymetrics.New(prometheus.NewRegistry())
	s.service = New(s.records, s.clock,
		WithAuditPublisher(publisher.NewPublisher(s.audit)),
		WithMetrics(s.metrics),
		WithParams(models.Params{MinTransferInterval: 20}),
		WithTracer(noop.NewTracerProvider().Tracer("identity-test")),
	)
}

func as(account domain.AccountID) context.Context {
	return requestcontext.WithCaller(context.Background(), account)
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, code), "want %s, got %v", code, err)
}

func (s *ServiceSuite) create(owner domain.AccountID) domain.IdentityID {
	rec, _, err := s.service.Create(as(owner))
	s.Require().NoError(err)
	return rec.ID
}

func (s *ServiceSuite) TestCreate() {
	s.Run("caller becomes controller and override", func() {
		rec, res, err := s.service.Create(as(accountX))
		s.Require().NoError(err)
		s.Equal([]models.Status{models.StatusCreated}, res.Statuses())
		s.Equal(accountX, rec.Controller)
		s.Equal(accountX, rec.Override)
		s.Equal(domain.Height(1), rec.CreatedHeight)
		s.Equal(uint64(20), rec.MinTransferInterval)
	})

	s.Run("anonymous caller is rejected", func() {
		_, _, err := s.service.Create(context.Background())
		s.requireCode(err, dErrors.CodeUnauthenticated)
	})

	s.Run("records an audit event", func() {
		rec, _, err := s.service.Create(as(accountY))
		s.Require().NoError(err)
		events, err := s.audit.ListByAggregate(context.Background(), rec.ID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.ActionIdentityCreated, events[0].Action)
		s.Equal(accountY, events[0].Actor)
		s.Equal(uint8(models.StatusCreated), events[0].Status)
	})
}

// TestLifecycle walks the attribute, endorsement and ownership lifecycle of
// one identity end to end.
func (s *ServiceSuite) TestLifecycle() {
	id := s.create(accountX)
	key := models.EndorsementKey{Attribute: h1, Endorsement: e1}

	s.Run("attributes are added once", func() {
		res, err := s.service.AddAttribute(as(accountX), id, h1)
		s.Require().NoError(err)
		s.Equal([]models.Status{models.StatusCreated}, res.Statuses())

		_, err = s.service.AddAttribute(as(accountX), id, h1)
		s.requireCode(err, dErrors.CodeAlreadyExists)
	})

	s.Run("endorsements need the attribute", func() {
		other := s.create(accountX)
		_, err := s.service.AddEndorsement(as(accountY), other, key)
		s.requireCode(err, dErrors.CodeNotFound)

		_, err = s.service.AddEndorsement(as(accountY), id, key)
		s.Require().NoError(err)
		view, err := s.service.GetEndorsement(context.Background(), id, key)
		s.Require().NoError(err)
		s.Equal(accountY, view.Endorser)
		s.False(view.Accepted)
	})

	s.Run("only the controller accepts", func() {
		_, err := s.service.AcceptEndorsement(as(accountY), id, key)
		s.requireCode(err, dErrors.CodeUnauthorized)

		_, err = s.service.AcceptEndorsement(as(accountX), id, key)
		s.Require().NoError(err)
		ok, err := s.service.CheckEndorsement(context.Background(), id, key)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("blocklock throttles controller changes", func() {
		_, err := s.service.SetController(as(accountX), id, accountZ)
		s.Require().NoError(err)

		_, err = s.service.SetController(as(accountX), id, accountW)
		s.requireCode(err, dErrors.CodeRateLimited)

		_, err = s.clock.Advance(context.Background(), 20)
		s.Require().NoError(err)
		_, err = s.service.SetController(as(accountX), id, accountW)
		s.Require().NoError(err)

		controller, err := s.service.GetController(as(accountX), id)
		s.Require().NoError(err)
		s.Equal(accountW, controller)
	})

	s.Run("removing the attribute invalidates the endorsement", func() {
		_, err := s.service.RemoveAttribute(as(accountW), id, h1)
		s.Require().NoError(err)

		ok, err := s.service.CheckEndorsement(context.Background(), id, key)
		s.Require().NoError(err)
		s.False(ok)

		_, err = s.service.RemoveEndorsement(as(accountY), id, key)
		s.Require().NoError(err)
	})
}

func (s *ServiceSuite) TestRoleExclusivity() {
	id := s.create(accountX)

	_, err := s.service.SetOverride(as(accountX), id, accountZ)
	s.Require().NoError(err)

	controllerOnly := map[string]func(context.Context) error{
		"add attribute": func(ctx context.Context) error {
			_, err := s.service.AddAttribute(ctx, id, h2)
			return err
		},
		"set override": func(ctx context.Context) error {
			_, err := s.service.SetOverride(ctx, id, accountY)
			return err
		},
		"set signing key": func(ctx context.Context) error {
			_, err := s.service.SetSigningKey(ctx, id, []byte("k"))
			return err
		},
		"get override": func(ctx context.Context) error {
			_, err := s.service.GetOverride(ctx, id)
			return err
		},
	}
	for name, call := range controllerOnly {
		s.Run(name, func() {
			s.requireCode(call(as(accountZ)), dErrors.CodeUnauthorized)
			s.requireCode(call(as(accountY)), dErrors.CodeUnauthorized)
		})
	}

	s.Run("override-only operations", func() {
		_, err := s.service.SetController(as(accountX), id, accountY)
		s.requireCode(err, dErrors.CodeUnauthorized)
		_, err = s.service.GetController(as(accountX), id)
		s.requireCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("anonymous callers", func() {
		_, err := s.service.GetController(context.Background(), id)
		s.requireCode(err, dErrors.CodeUnauthenticated)
		_, err = s.service.AddAttribute(context.Background(), id, h2)
		s.requireCode(err, dErrors.CodeUnauthenticated)
	})
}

func (s *ServiceSuite) TestUpdateAttribute() {
	id := s.create(accountX)
	_, err := s.service.AddAttribute(as(accountX), id, h1)
	s.Require().NoError(err)

	s.Run("absent old creates nothing", func() {
		_, err := s.service.UpdateAttribute(as(accountX), id, e1, h2)
		s.requireCode(err, dErrors.CodeInvalidTransition)
		has, err := s.service.HasAttribute(context.Background(), id, h2)
		s.Require().NoError(err)
		s.False(has)
	})

	s.Run("emits debug, remove, add and summary events", func() {
		res, err := s.service.UpdateAttribute(as(accountX), id, h1, h2)
		s.Require().NoError(err)
		s.Equal([]models.Status{
			models.StatusDebug,
			models.StatusUpdated,
			models.StatusCreated,
			models.StatusUpdated,
		}, res.Statuses())

		has, _ := s.service.HasAttribute(context.Background(), id, h2)
		s.True(has)
		has, _ = s.service.HasAttribute(context.Background(), id, h1)
		s.False(has)
	})
}

func (s *ServiceSuite) TestKeys() {
	id := s.create(accountX)

	_, err := s.service.SetSigningKey(as(accountX), id, []byte("sig"))
	s.Require().NoError(err)
	_, err = s.service.SetEncryptionKey(as(accountX), id, []byte("enc"))
	s.Require().NoError(err)

	sig, err := s.service.GetSigningKey(context.Background(), id)
	s.Require().NoError(err)
	s.Equal([]byte("sig"), sig)
	enc, err := s.service.GetEncryptionKey(context.Background(), id)
	s.Require().NoError(err)
	s.Equal([]byte("enc"), enc)
}

func (s *ServiceSuite) TestDepositAndDispose() {
	id := s.create(accountX)

	_, err := s.service.Deposit(as(accountY), id, 70)
	s.Require().NoError(err)

	s.Run("non-controller cannot dispose by default", func() {
		_, _, err := s.service.Dispose(as(accountY), id)
		s.requireCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("controller receives the balance", func() {
		_, refund, err := s.service.Dispose(as(accountX), id)
		s.Require().NoError(err)
		s.Equal(uint64(70), refund)
	})

	s.Run("disposed record refuses everything", func() {
		_, err := s.service.AddAttribute(as(accountX), id, h1)
		s.requireCode(err, dErrors.CodeDisposed)
		_, err = s.service.Get(context.Background(), id)
		s.requireCode(err, dErrors.CodeDisposed)
		_, _, err = s.service.Dispose(as(accountX), id)
		s.requireCode(err, dErrors.CodeDisposed)
	})
}

func (s *ServiceSuite) TestUnknownIdentity() {
	_, err := s.service.AddAttribute(as(accountX), domain.NewIdentityID(), h1)
	s.requireCode(err, dErrors.CodeNotFound)
	_, err = s.service.Get(context.Background(), domain.NewIdentityID())
	s.requireCode(err, dErrors.CodeNotFound)
}

func (s *ServiceSuite) TestFailedOperationsAreNotAudited() {
	id := s.create(accountX)
	_, err := s.service.AddAttribute(as(accountY), id, h1)
	s.Require().Error(err)

	events, err := s.audit.ListByAggregate(context.Background(), id.String())
	s.Require().NoError(err)
	s.Len(events, 1, "only the creation is recorded")
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Operations.WithLabelValues("add_attribute", string(dErrors.CodeUnauthorized))))
}

func (s *ServiceSuite) TestAuditCarriesSubjectAndHeight() {
	id := s.create(accountX)
	_, err := s.clock.Advance(context.Background(), 4)
	s.Require().NoError(err)
	_, err = s.service.AddAttribute(as(accountX), id, h1)
	s.Require().NoError(err)

	events, err := s.audit.ListByAggregate(context.Background(), id.String())
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(audit.ActionAttributeAdded, events[1].Action)
	s.Equal(audit.CategoryAttestation, events[1].Category)
	s.Equal(h1.String(), events[1].Subject)
	s.Equal(domain.Height(5), events[1].Height)

	raw, err := json.Marshal(events[1])
	s.Require().NoError(err)
	var fields map[string]any
	s.Require().NoError(json.Unmarshal(raw, &fields))
	s.ElementsMatch([]string{"id", "category", "timestamp", "aggregate_type", "aggregate_id", "action", "status", "actor", "subject", "height"},
		keys(fields), "every serialized field is filled by the service")
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func (s *ServiceSuite) TestBlockPerTxAdvancesLedger() {
	svc := New(s.records, s.clock, WithBlockPerTx(true))
	rec, _, err := svc.Create(as(accountX))
	s.Require().NoError(err)
	_, err = svc.AddAttribute(as(accountX), rec.ID, h1)
	s.Require().NoError(err)

	h, err := s.clock.Height(context.Background())
	s.Require().NoError(err)
	s.Equal(domain.Height(3), h)

	left, err := svc.BlocksUntilTransfer(as(accountX), rec.ID)
	s.Require().NoError(err)
	s.Zero(left)
}

func (s *ServiceSuite) TestBlocklockMetrics() {
	id := s.create(accountX)
	_, err := s.service.SetController(as(accountX), id, accountZ)
	s.Require().NoError(err)
	_, err = s.service.SetController(as(accountX), id, accountW)
	s.requireCode(err, dErrors.CodeRateLimited)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.ControllerChanges))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.BlocklockRejection))

	left, err := s.service.BlocksUntilTransfer(as(accountX), id)
	s.Require().NoError(err)
	s.Equal(uint64(20), left)
}

type failingAudit struct{}

func (failingAudit) Emit(context.Context, audit.Event) error {
	return errors.New("audit sink down")
}

func (s *ServiceSuite) TestAuditFailureDiscardsMutation() {
	id := s.create(accountX)
	svc := New(s.records, s.clock, WithAuditPublisher(failingAudit{}))

	_, err := svc.AddAttribute(as(accountX), id, h1)
	s.requireCode(err, dErrors.CodeInternal)

	has, err := s.service.HasAttribute(context.Background(), id, h1)
	s.Require().NoError(err)
	s.False(has)
}

func (s *ServiceSuite) TestRequestTimeStampsMutation() {
	id := s.create(accountX)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(as(accountX), fixed)

	_, err := s.service.AddAttribute(ctx, id, h1)
	s.Require().NoError(err)

	summary, err := s.service.Get(context.Background(), id)
	s.Require().NoError(err)
	s.Equal(fixed, summary.UpdatedAt)
	s.Equal(1, summary.AttributeCount)
}

// retryingStore runs fn once against a copy it throws away, as an optimistic
// store does when its WATCH is invalidated, then commits through the inner
// store. Each attempt gets its own staging area.
type retryingStore struct {
	*store.InMemory
	attempts int
}

func (r *retryingStore) Execute(ctx context.Context, id domain.IdentityID, fn func(context.Context, *models.Identity) error) (*models.Identity, error) {
	discarded, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	attemptCtx, _ := txcontext.Stage(ctx)
	r.attempts++
	if err := fn(attemptCtx, discarded); err != nil {
		return nil, err
	}

	attemptCtx, staged := txcontext.Stage(ctx)
	r.attempts++
	out, err := r.InMemory.Execute(attemptCtx, id, fn)
	if err != nil {
		return nil, err
	}
	return out, staged.Flush(ctx)
}

func (s *ServiceSuite) TestRetriedMutationIsAuditedOnce() {
	id := s.create(accountX)
	retrying := &retryingStore{InMemory: s.records}
	svc := New(retrying, s.clock, WithAuditPublisher(publisher.NewPublisher(s.audit)))

	res, err := svc.AddAttribute(as(accountX), id, h1)
	s.Require().NoError(err)
	s.Equal([]models.Status{models.StatusCreated}, res.Statuses())
	s.Equal(2, retrying.attempts)

	events, err := s.audit.ListByAggregate(context.Background(), id.String())
	s.Require().NoError(err)
	s.Require().Len(events, 2, "creation plus exactly one add_attribute")
	s.Equal(audit.ActionAttributeAdded, events[1].Action)
}
