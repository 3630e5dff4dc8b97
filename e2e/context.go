package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"smartid/e2e/steps/common"
)

const (
	defaultBaseURL    = "http://localhost:8080"
	defaultSigningKey = "dev-secret-key-change-in-production"
)

// TestContext carries one scenario's state: the acting account, the last
// response and any values saved between steps.
type TestContext struct {
	BaseURL    string
	SigningKey string
	Issuer     string
	Audience   string
	AdminToken string

	client *http.Client
	actor  string
	saved  map[string]string

	lastStatus int
	lastBody   []byte
}

// NewTestContext reads the target server from SMARTID_E2E_URL and the token
// settings from the same variables the server reads.
func NewTestContext() *TestContext {
	return &TestContext{
		BaseURL:    envOr("SMARTID_E2E_URL", defaultBaseURL),
		SigningKey: envOr("JWT_SIGNING_KEY", defaultSigningKey),
		Issuer:     envOr("JWT_ISSUER", "smartid"),
		Audience:   envOr("JWT_AUDIENCE", "smartid-api"),
		AdminToken: os.Getenv("ADMIN_TOKEN"),
		client:     &http.Client{Timeout: 10 * time.Second},
		saved:      map[string]string{},
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.actor = ""
	tc.saved = map[string]string{}
	tc.lastStatus = 0
	tc.lastBody = nil
}

func (tc *TestContext) SetActor(name string) { tc.actor = name }
func (tc *TestContext) Actor() string        { return tc.actor }

func (tc *TestContext) Save(key, value string) { tc.saved[key] = value }

func (tc *TestContext) Saved(key string) (string, error) {
	v, ok := tc.saved[key]
	if !ok {
		return "", fmt.Errorf("nothing saved under %q", key)
	}
	return v, nil
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil, nil)
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) PUT(path string, body any) error {
	return tc.do(http.MethodPut, path, body, nil)
}

func (tc *TestContext) DELETE(path string) error {
	return tc.do(http.MethodDelete, path, nil, nil)
}

// AdminPOST sends a request carrying the admin token instead of a caller token.
func (tc *TestContext) AdminPOST(path string, body any) error {
	return tc.do(http.MethodPost, path, body, map[string]string{"X-Admin-Token": tc.AdminToken})
}

func (tc *TestContext) LastStatus() int  { return tc.lastStatus }
func (tc *TestContext) LastBody() []byte { return tc.lastBody }

// ResponseField returns a top-level field of the last JSON response.
func (tc *TestContext) ResponseField(field string) (any, error) {
	var body map[string]any
	if err := json.Unmarshal(tc.lastBody, &body); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	v, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("field %q missing from response %s", field, tc.lastBody)
	}
	return v, nil
}

func (tc *TestContext) do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(tc.BaseURL, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.actor != "" {
		token, err := tc.mint(tc.actor)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	return nil
}

func (tc *TestContext) mint(actor string) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   common.AccountOf(actor),
		Issuer:    tc.Issuer,
		Audience:  []string{tc.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	})
	signed, err := t.SignedString([]byte(tc.SigningKey))
	if err != nil {
		return "", fmt.Errorf("sign token for %s: %w", actor, err)
	}
	return signed, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
