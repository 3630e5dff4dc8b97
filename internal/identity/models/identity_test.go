package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"smartid/pkg/domain"
	dErrors "smartid/pkg/domain-errors"
)

var (
	accountX = domain.MustAccount("0x000000000000000000000000000000000000000a")
	accountY = domain.MustAccount("0x000000000000000000000000000000000000000b")
	accountZ = domain.MustAccount("0x000000000000000000000000000000000000000c")
	accountW = domain.MustAccount("0x000000000000000000000000000000000000000d")

	hashH1 = domain.HashOf([]byte("name=alice"))
	hashH2 = domain.HashOf([]byte("dob=1990-01-01"))
	hashE1 = domain.HashOf([]byte("endorsed-by-y"))
)

const interval = 20

type IdentitySuite struct {
	suite.Suite
	id *Identity
}

func TestIdentitySuite(t *testing.T) {
	suite.Run(t, new(IdentitySuite))
}

func (s *IdentitySuite) SetupTest() {
	rec, _, err := NewIdentity(domain.NewIdentityID(), accountX, Params{MinTransferInterval: interval}, 100, time.Now())
	s.Require().NoError(err)
	s.id = rec
}

func (s *IdentitySuite) requireCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, code), "expected %s, got %v", code, err)
}

func (s *IdentitySuite) TestCreation() {
	s.Run("creator holds both roles", func() {
		s.Equal(accountX, s.id.Controller)
		s.Equal(accountX, s.id.Override)
		s.Equal(domain.Height(100), s.id.LastControllerChange)
		s.Equal(DisposeController, s.id.DisposePolicy)
		s.Equal(RecordActive, s.id.Status)
	})

	s.Run("returns one Created status record", func() {
		_, res, err := NewIdentity(domain.NewIdentityID(), accountY, Params{}, 5, time.Now())
		s.Require().NoError(err)
		s.Equal(OpCreate, res.Operation)
		s.Equal([]Status{StatusCreated}, res.Statuses())
	})

	s.Run("rejects anonymous creator", func() {
		_, _, err := NewIdentity(domain.NewIdentityID(), "", Params{}, 0, time.Now())
		s.requireCode(err, dErrors.CodeUnauthenticated)
	})

	s.Run("rejects unknown dispose policy", func() {
		_, _, err := NewIdentity(domain.NewIdentityID(), accountX, Params{DisposePolicy: "everyone"}, 0, time.Now())
		s.requireCode(err, dErrors.CodeInvalidInput)
	})
}

// A second add of the same hash is refused without touching the set.
func (s *IdentitySuite) TestAddAttributeTwice() {
	res, err := s.id.AddAttribute(accountX, hashH1)
	s.Require().NoError(err)
	s.Equal([]Status{StatusCreated}, res.Statuses())
	s.Equal(hashH1, *res.Events[0].Subject)

	_, err = s.id.AddAttribute(accountX, hashH1)
	s.requireCode(err, dErrors.CodeAlreadyExists)
	s.Len(s.id.Attributes, 1, "state equals the state after the first call")
}

// Endorsements need the attribute and count only once the controller accepts.
func (s *IdentitySuite) TestEndorsementLifecycle() {
	key := EndorsementKey{Attribute: hashH1, Endorsement: hashE1}

	_, err := s.id.AddEndorsement(accountY, key)
	s.requireCode(err, dErrors.CodeNotFound)

	_, err = s.id.AddAttribute(accountX, hashH1)
	s.Require().NoError(err)

	res, err := s.id.AddEndorsement(accountY, key)
	s.Require().NoError(err)
	s.Equal([]Status{StatusCreated}, res.Statuses())
	s.Equal(Endorsement{Endorser: accountY, Accepted: false}, s.id.Endorsements[key])

	valid, err := s.id.CheckEndorsementExists(key)
	s.Require().NoError(err)
	s.False(valid, "unaccepted endorsements are not valid")

	_, err = s.id.AcceptEndorsement(accountY, key)
	s.requireCode(err, dErrors.CodeUnauthorized)

	res, err = s.id.AcceptEndorsement(accountX, key)
	s.Require().NoError(err)
	s.Equal([]Status{StatusUpdated}, res.Statuses())

	valid, err = s.id.CheckEndorsementExists(key)
	s.Require().NoError(err)
	s.True(valid)

	s.Run("duplicate pair is rejected", func() {
		_, err := s.id.AddEndorsement(accountZ, key)
		s.requireCode(err, dErrors.CodeAlreadyExists)
		s.Equal(accountY, s.id.Endorsements[key].Endorser)
	})

	s.Run("controller cannot endorse", func() {
		_, err := s.id.AddEndorsement(accountX, EndorsementKey{Attribute: hashH1, Endorsement: hashH2})
		s.requireCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("accepting an unknown endorsement", func() {
		_, err := s.id.AcceptEndorsement(accountX, EndorsementKey{Attribute: hashH1, Endorsement: hashH2})
		s.requireCode(err, dErrors.CodeNotFound)
	})
}

// A controller change starts a lock of MinTransferInterval blocks.
func (s *IdentitySuite) TestBlocklock() {
	res, err := s.id.SetController(accountX, accountZ, 100)
	s.Require().NoError(err, "first change is always permitted")
	s.Equal([]Status{StatusUpdated}, res.Statuses())
	s.Equal(accountZ, s.id.Controller)
	s.Equal(accountX, s.id.Override)

	_, err = s.id.SetController(accountX, accountW, 100)
	s.requireCode(err, dErrors.CodeRateLimited)

	_, err = s.id.SetController(accountX, accountW, 100+interval-1)
	s.requireCode(err, dErrors.CodeRateLimited)
	s.Equal(uint64(1), s.id.BlocksUntilTransfer(100+interval-1))
	s.Equal(accountZ, s.id.Controller)

	_, err = s.id.SetController(accountX, accountW, 100+interval)
	s.Require().NoError(err, "change at exactly the interval succeeds")
	s.Equal(accountW, s.id.Controller)
	s.Equal(domain.Height(100+interval), s.id.LastControllerChange)
	s.Equal(uint64(2), s.id.ControllerChanges)
}

func (s *IdentitySuite) TestBlocklockDoesNotThrottleOverrideRotation() {
	_, err := s.id.SetOverride(accountX, accountY)
	s.Require().NoError(err)
	_, err = s.id.SetOverride(accountX, accountZ)
	s.Require().NoError(err)
	s.Equal(accountZ, s.id.Override)

	_, err = s.id.SetController(accountY, accountY, 100)
	s.requireCode(err, dErrors.CodeUnauthorized)
}

func (s *IdentitySuite) TestRoleAudits() {
	_, err := s.id.SetOverride(accountX, accountY)
	s.Require().NoError(err)

	controller, err := s.id.GetController(accountY)
	s.Require().NoError(err)
	s.Equal(accountX, controller)

	_, err = s.id.GetController(accountX)
	s.requireCode(err, dErrors.CodeUnauthorized)

	override, err := s.id.GetOverride(accountX)
	s.Require().NoError(err)
	s.Equal(accountY, override)

	_, err = s.id.GetOverride(accountY)
	s.requireCode(err, dErrors.CodeUnauthorized)
}

func (s *IdentitySuite) TestRolesCannotBeEmptied() {
	_, err := s.id.SetController(accountX, "", 100)
	s.requireCode(err, dErrors.CodeInvariantViolation)
	_, err = s.id.SetOverride(accountX, "")
	s.requireCode(err, dErrors.CodeInvariantViolation)
	s.Equal(accountX, s.id.Controller)
	s.Equal(accountX, s.id.Override)
}

// Endorsements of a removed attribute stop checking out.
func (s *IdentitySuite) TestAttributeRemovalInvalidatesEndorsements() {
	key := EndorsementKey{Attribute: hashH1, Endorsement: hashE1}
	_, err := s.id.AddAttribute(accountX, hashH1)
	s.Require().NoError(err)
	_, err = s.id.AddEndorsement(accountY, key)
	s.Require().NoError(err)
	_, err = s.id.AcceptEndorsement(accountX, key)
	s.Require().NoError(err)

	res, err := s.id.RemoveAttribute(accountX, hashH1)
	s.Require().NoError(err)
	s.Equal([]Status{StatusUpdated}, res.Statuses())

	valid, err := s.id.CheckEndorsementExists(key)
	s.Require().NoError(err)
	s.False(valid)
	s.Contains(s.id.Endorsements, key, "entry is kept")

	view, err := s.id.GetEndorsement(key)
	s.Require().NoError(err)
	s.True(view.Accepted)
	s.False(view.Valid)

	_, err = s.id.RemoveEndorsement(accountY, key)
	s.Require().NoError(err, "endorser may still remove")
	s.NotContains(s.id.Endorsements, key)

	_, err = s.id.RemoveEndorsement(accountY, key)
	s.requireCode(err, dErrors.CodeUnauthorized)
	_, err = s.id.RemoveEndorsement(accountX, key)
	s.requireCode(err, dErrors.CodeNotFound)
}

func (s *IdentitySuite) TestReAddingAttributeRevalidatesEndorsement() {
	key := EndorsementKey{Attribute: hashH1, Endorsement: hashE1}
	_, _ = s.id.AddAttribute(accountX, hashH1)
	_, _ = s.id.AddEndorsement(accountY, key)
	_, _ = s.id.AcceptEndorsement(accountX, key)
	_, _ = s.id.RemoveAttribute(accountX, hashH1)

	_, err := s.id.AddAttribute(accountX, hashH1)
	s.Require().NoError(err)
	valid, err := s.id.CheckEndorsementExists(key)
	s.Require().NoError(err)
	s.True(valid)
}

func (s *IdentitySuite) TestRemoveEndorsementByController() {
	key := EndorsementKey{Attribute: hashH1, Endorsement: hashE1}
	_, _ = s.id.AddAttribute(accountX, hashH1)
	_, _ = s.id.AddEndorsement(accountY, key)

	_, err := s.id.RemoveEndorsement(accountZ, key)
	s.requireCode(err, dErrors.CodeUnauthorized)

	res, err := s.id.RemoveEndorsement(accountX, key)
	s.Require().NoError(err)
	s.Equal([]Status{StatusUpdated}, res.Statuses())
}

func (s *IdentitySuite) TestRemoveMissingAttribute() {
	_, err := s.id.RemoveAttribute(accountX, hashH1)
	s.requireCode(err, dErrors.CodeNotFound)
}

func (s *IdentitySuite) TestUpdateAttribute() {
	_, err := s.id.AddAttribute(accountX, hashH1)
	s.Require().NoError(err)

	res, err := s.id.UpdateAttribute(accountX, hashH1, hashH2)
	s.Require().NoError(err)
	s.Equal(OpUpdateAttribute, res.Operation)
	s.Equal([]Status{StatusDebug, StatusUpdated, StatusCreated, StatusUpdated}, res.Statuses())
	s.Equal(OpRemoveAttribute, res.Events[1].Operation)
	s.Equal(hashH1, *res.Events[1].Subject)
	s.Equal(OpAddAttribute, res.Events[2].Operation)
	s.Equal(hashH2, *res.Events[3].Subject)

	has, _ := s.id.HasAttribute(hashH1)
	s.False(has)
	has, _ = s.id.HasAttribute(hashH2)
	s.True(has)
}

// A failed update leaves both hashes as they were.
func (s *IdentitySuite) TestUpdateAttributeAtomicity() {
	s.Run("absent old creates nothing", func() {
		_, err := s.id.UpdateAttribute(accountX, hashH1, hashH2)
		s.requireCode(err, dErrors.CodeInvalidTransition)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "step error is preserved")
		s.Empty(s.id.Attributes)
	})

	s.Run("existing new restores old", func() {
		_, _ = s.id.AddAttribute(accountX, hashH1)
		_, _ = s.id.AddAttribute(accountX, hashH2)

		_, err := s.id.UpdateAttribute(accountX, hashH1, hashH2)
		s.requireCode(err, dErrors.CodeInvalidTransition)
		s.True(s.id.Attributes.Has(hashH1))
		s.True(s.id.Attributes.Has(hashH2))
	})

	s.Run("non-controller", func() {
		_, err := s.id.UpdateAttribute(accountY, hashH1, hashE1)
		s.requireCode(err, dErrors.CodeUnauthorized)
	})
}

func (s *IdentitySuite) TestKeys() {
	_, err := s.id.SetSigningPublicKey(accountY, []byte{1})
	s.requireCode(err, dErrors.CodeUnauthorized)

	res, err := s.id.SetSigningPublicKey(accountX, []byte{0x04, 0xaa})
	s.Require().NoError(err)
	s.Equal([]Status{StatusUpdated}, res.Statuses())
	_, err = s.id.SetEncryptionPublicKey(accountX, []byte{0x02, 0xbb})
	s.Require().NoError(err)

	signing, err := s.id.GetSigningPublicKey()
	s.Require().NoError(err)
	s.Equal([]byte{0x04, 0xaa}, signing)

	signing[0] = 0xff
	again, _ := s.id.GetSigningPublicKey()
	s.Equal(byte(0x04), again[0], "returned keys are copies")

	encryption, err := s.id.GetEncryptionPublicKey()
	s.Require().NoError(err)
	s.Equal([]byte{0x02, 0xbb}, encryption)

	_, err = s.id.SetSigningPublicKey(accountX, []byte{0x09})
	s.Require().NoError(err, "overwrite is unconditional")
}

func (s *IdentitySuite) TestDepositAndDispose() {
	_, err := s.id.Deposit(accountY, 0)
	s.requireCode(err, dErrors.CodeValidation)

	res, err := s.id.Deposit(accountY, 40)
	s.Require().NoError(err)
	s.Equal([]Status{StatusUpdated}, res.Statuses())
	s.Equal(uint64(40), s.id.Balance)

	_, _, err = s.id.Dispose(accountY)
	s.requireCode(err, dErrors.CodeUnauthorized)

	res, refund, err := s.id.Dispose(accountX)
	s.Require().NoError(err)
	s.Equal([]Status{StatusUpdated}, res.Statuses())
	s.Equal(uint64(40), refund)
	s.True(s.id.IsDisposed())

	s.Run("every operation fails afterwards", func() {
		_, err := s.id.AddAttribute(accountX, hashH1)
		s.requireCode(err, dErrors.CodeDisposed)
		_, err = s.id.GetSigningPublicKey()
		s.requireCode(err, dErrors.CodeDisposed)
		_, err = s.id.Describe()
		s.requireCode(err, dErrors.CodeDisposed)
		_, _, err = s.id.Dispose(accountX)
		s.requireCode(err, dErrors.CodeDisposed)
	})
}

func (s *IdentitySuite) TestPermissiveDisposePolicy() {
	rec, _, err := NewIdentity(domain.NewIdentityID(), accountX, Params{DisposePolicy: DisposeAnyone}, 0, time.Now())
	s.Require().NoError(err)
	_, _ = rec.Deposit(accountX, 5)

	_, refund, err := rec.Dispose(accountZ)
	s.Require().NoError(err)
	s.Equal(uint64(5), refund)
}

func (s *IdentitySuite) TestDescribeHidesRoles() {
	_, _ = s.id.AddAttribute(accountX, hashH1)
	_, _ = s.id.SetSigningPublicKey(accountX, []byte{1})

	summary, err := s.id.Describe()
	s.Require().NoError(err)
	s.Equal(1, summary.AttributeCount)
	s.True(summary.HasSigningKey)
	s.False(summary.HasEncryptionKey)
	s.Equal(uint64(interval), summary.MinTransferInterval)
}

func (s *IdentitySuite) TestCloneIsDeep() {
	key := EndorsementKey{Attribute: hashH1, Endorsement: hashE1}
	_, _ = s.id.AddAttribute(accountX, hashH1)
	_, _ = s.id.AddEndorsement(accountY, key)
	_, _ = s.id.SetSigningPublicKey(accountX, []byte{1, 2})

	c := s.id.Clone()
	_, err := c.RemoveAttribute(accountX, hashH1)
	s.Require().NoError(err)
	_, err = c.AcceptEndorsement(accountX, key)
	s.Require().NoError(err)
	c.Keys.SigningPublicKey[0] = 9

	s.True(s.id.Attributes.Has(hashH1))
	s.False(s.id.Endorsements[key].Accepted)
	s.Equal(byte(1), s.id.Keys.SigningPublicKey[0])
}
