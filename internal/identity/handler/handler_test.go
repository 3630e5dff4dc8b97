package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"smartid/internal/identity/service"
	"smartid/internal/identity/store"
	"smartid/internal/ledger"
	"smartid/pkg/domain"
	"smartid/pkg/testutil"
)

var (
	alice = domain.MustAccount("0x00000000000000000000000000000000000a11ce")
	bob   = domain.MustAccount("0x0000000000000000000000000000000000000b0b")
	carol = domain.MustAccount("0x00000000000000000000000000000000000ca401")

	emailHash = domain.HashOf([]byte("email:alice@example.com"))
	phoneHash = domain.HashOf([]byte("phone:+15550100"))
	kycHash   = domain.HashOf([]byte("kyc:passport-check"))
)

type IdentityHandlerSuite struct {
	suite.Suite
	clock  *ledger.MemoryClock
	router chi.Router
}

func TestIdentityHandlerSuite(t *testing.T) {
	suite.Run(t, new(IdentityHandlerSuite))
}

func (s *IdentityHandlerSuite) SetupTest() {
	s.clock = ledger.NewMemoryClock(1)
	svc := service.New(store.NewInMemory(), s.clock)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(svc, logger).Register(s.router)
}

func (s *IdentityHandlerSuite) do(req *http.Request, caller domain.AccountID) *httptest.ResponseRecorder {
	if caller != "" {
		req = testutil.WithCaller(req, caller)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *IdentityHandlerSuite) decode(rr *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func (s *IdentityHandlerSuite) createIdentity(owner domain.AccountID) string {
	rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/identities"), owner)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	var resp struct {
		ID        string `json:"id"`
		Operation string `json:"operation"`
		Events    []struct {
			Status int `json:"status"`
		} `json:"events"`
	}
	s.decode(rr, &resp)
	s.Equal("create", resp.Operation)
	s.Require().Len(resp.Events, 1)
	s.Equal(4, resp.Events[0].Status)
	return resp.ID
}

type eventsBody struct {
	Operation string `json:"operation"`
	Events    []struct {
		Operation string  `json:"operation"`
		Status    int     `json:"status"`
		Subject   *string `json:"subject"`
	} `json:"events"`
}

func (s *IdentityHandlerSuite) TestCreateRequiresCaller() {
	rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/identities"), "")
	s.Equal(http.StatusUnauthorized, rr.Code)
}

func (s *IdentityHandlerSuite) TestAttributeLifecycle() {
	id := s.createIdentity(alice)
	base := "/identities/" + id

	s.Run("add returns Created event", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/attributes", map[string]string{"hash": emailHash.String()}), alice)
		s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
		var body eventsBody
		s.decode(rr, &body)
		s.Equal("add_attribute", body.Operation)
		s.Require().Len(body.Events, 1)
		s.Equal(4, body.Events[0].Status)
		s.Require().NotNil(body.Events[0].Subject)
		s.Equal(emailHash.String(), *body.Events[0].Subject)
	})

	s.Run("duplicate conflicts", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/attributes", map[string]string{"hash": emailHash.String()}), alice)
		s.Equal(http.StatusConflict, rr.Code)
		testutil.AssertErrorCode(s.T(), rr, "already_exists")
	})

	s.Run("non-controller is forbidden", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/attributes", map[string]string{"hash": phoneHash.String()}), bob)
		s.Equal(http.StatusForbidden, rr.Code)
	})

	s.Run("update emits four events", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, base+"/attributes/"+emailHash.String(), map[string]string{"new": phoneHash.String()}), alice)
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		var body eventsBody
		s.decode(rr, &body)
		s.Require().Len(body.Events, 4)
		s.Equal([]int{5, 3, 4, 3}, []int{body.Events[0].Status, body.Events[1].Status, body.Events[2].Status, body.Events[3].Status})
	})

	s.Run("presence query is public", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, base+"/attributes/"+phoneHash.String()), "")
		s.Require().Equal(http.StatusOK, rr.Code)
		var body presenceResponse
		s.decode(rr, &body)
		s.True(body.Present)
	})

	s.Run("malformed hash is rejected", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, base+"/attributes/not-a-hash"), "")
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}

func (s *IdentityHandlerSuite) TestEndorsementFlow() {
	id := s.createIdentity(alice)
	base := "/identities/" + id
	endorsements := base + "/attributes/" + emailHash.String() + "/endorsements"

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, endorsements, map[string]string{"endorsement": kycHash.String()}), bob)
	s.Equal(http.StatusNotFound, rr.Code, "attribute not yet added")

	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/attributes", map[string]string{"hash": emailHash.String()}), alice)
	s.Require().Equal(http.StatusCreated, rr.Code)

	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, endorsements, map[string]string{"endorsement": kycHash.String()}), bob)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())

	rr = s.do(testutil.NewRequest(s.T(), http.MethodPost, endorsements+"/"+kycHash.String()+"/accept"), bob)
	s.Equal(http.StatusForbidden, rr.Code)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodPost, endorsements+"/"+kycHash.String()+"/accept"), alice)
	s.Require().Equal(http.StatusOK, rr.Code)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, endorsements+"/"+kycHash.String()+"/valid"), "")
	s.Require().Equal(http.StatusOK, rr.Code)
	var valid validityResponse
	s.decode(rr, &valid)
	s.True(valid.Valid)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodDelete, base+"/attributes/"+emailHash.String()), alice)
	s.Require().Equal(http.StatusOK, rr.Code)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, endorsements+"/"+kycHash.String()), "")
	s.Require().Equal(http.StatusOK, rr.Code)
	var view struct {
		Endorser string `json:"endorser"`
		Accepted bool   `json:"accepted"`
		Valid    bool   `json:"valid"`
	}
	s.decode(rr, &view)
	s.Equal(bob.String(), view.Endorser)
	s.True(view.Accepted)
	s.False(view.Valid)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodDelete, endorsements+"/"+kycHash.String()), bob)
	s.Equal(http.StatusOK, rr.Code)
}

func (s *IdentityHandlerSuite) TestOwnershipAndBlocklock() {
	id := s.createIdentity(alice)
	base := "/identities/" + id

	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, base+"/controller"), bob)
	s.Equal(http.StatusForbidden, rr.Code)

	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, base+"/controller", map[string]string{"account": bob.String()}), alice)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, base+"/controller", map[string]string{"account": carol.String()}), alice)
	s.Equal(http.StatusTooManyRequests, rr.Code)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, base+"/blocklock"), alice)
	s.Require().Equal(http.StatusOK, rr.Code)
	var lock blocklockResponse
	s.decode(rr, &lock)
	s.Equal(uint64(20), lock.BlocksRemaining)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, base+"/controller"), alice)
	s.Require().Equal(http.StatusOK, rr.Code)
	var role accountResponse
	s.decode(rr, &role)
	s.Equal(bob, role.Account)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, base+"/override"), bob)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.decode(rr, &role)
	s.Equal(alice, role.Account)

	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, base+"/override", map[string]string{"account": "0x00"}), bob)
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *IdentityHandlerSuite) TestKeys() {
	id := s.createIdentity(alice)
	base := "/identities/" + id

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, base+"/keys/signing", map[string]string{"key": "0xdeadbeef"}), alice)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, base+"/keys/signing"), "")
	s.Require().Equal(http.StatusOK, rr.Code)
	var key keyResponse
	s.decode(rr, &key)
	s.Equal("0xdeadbeef", key.Key)

	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, base+"/keys/encryption", map[string]string{"key": "zz"}), alice)
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *IdentityHandlerSuite) TestDepositDisposeAndGone() {
	id := s.createIdentity(alice)
	base := "/identities/" + id

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/deposit", map[string]uint64{"amount": 15}), bob)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, base), "")
	s.Require().Equal(http.StatusOK, rr.Code)
	var summary struct {
		Balance uint64 `json:"balance"`
		Status  string `json:"status"`
	}
	s.decode(rr, &summary)
	s.Equal(uint64(15), summary.Balance)
	s.Equal("active", summary.Status)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodDelete, base), alice)
	s.Require().Equal(http.StatusOK, rr.Code)
	var disposed struct {
		Refund uint64 `json:"refund"`
	}
	s.decode(rr, &disposed)
	s.Equal(uint64(15), disposed.Refund)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, base), "")
	s.Equal(http.StatusGone, rr.Code)
}

func (s *IdentityHandlerSuite) TestUnknownAndMalformedIDs() {
	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/identities/"+domain.NewIdentityID().String()), "")
	s.Equal(http.StatusNotFound, rr.Code)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/identities/nope"), "")
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *IdentityHandlerSuite) TestUnknownFieldsRejected() {
	id := s.createIdentity(alice)
	rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/identities/"+id+"/deposit", `{"amount":1,"memo":"x"}`), bob)
	s.Equal(http.StatusBadRequest, rr.Code)
}
