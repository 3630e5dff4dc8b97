// Package testutil holds request builders and response assertions shared by
// the handler suites.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartid/pkg/domain"
	"smartid/pkg/requestcontext"
)

// errorBody mirrors the JSON error envelope written by httputil.WriteError.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// NewRequest builds a request without a body.
func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// NewJSONRequest marshals body and builds a JSON request. A nil body sends
// no payload.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	if body == nil {
		return jsonRequest(method, path, nil)
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err, "marshal request body")
	return jsonRequest(method, path, bytes.NewReader(raw))
}

// NewRequestWithBody builds a JSON request from a literal body, for payloads
// a typed value cannot express.
func NewRequestWithBody(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	return jsonRequest(method, path, strings.NewReader(body))
}

func jsonRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithCaller binds an authenticated account to the request the way the caller
// middleware does for a valid bearer token.
func WithCaller(req *http.Request, caller domain.AccountID) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}

// DoRequest serves req on handler and returns the recorded response.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// UnmarshalResponse decodes the response body into a T.
func UnmarshalResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "decode response: %s", rr.Body.String())
	return &out
}

func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "unexpected status, body: %s", rr.Body.String())
}

func AssertStatusOK(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	AssertStatus(t, rr, http.StatusOK)
}

// AssertErrorCode checks the "error" field of an error envelope.
func AssertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, code string) {
	t.Helper()
	body := UnmarshalResponse[errorBody](t, rr)
	assert.Equal(t, code, body.Error, "unexpected error code (%s)", body.ErrorDescription)
}

func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	AssertStatus(t, rr, status)
	AssertErrorCode(t, rr, code)
}

// AssertJSONContains checks one top-level field of a JSON object response.
// Numbers decode as float64.
func AssertJSONContains(t *testing.T, rr *httptest.ResponseRecorder, key string, expected any) {
	t.Helper()
	body := UnmarshalResponse[map[string]any](t, rr)
	assert.Equal(t, expected, (*body)[key], "unexpected value for %q", key)
}
