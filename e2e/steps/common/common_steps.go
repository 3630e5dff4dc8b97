package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	POST(path string, body any) error
	AdminPOST(path string, body any) error
	SetActor(name string)
	ResponseField(field string) (any, error)
	LastStatus() int
	LastBody() []byte
}

// AccountOf derives a stable account address from an actor name.
func AccountOf(name string) string {
	sum := sha256.Sum256([]byte(name))
	return "0x" + hex.EncodeToString(sum[:20])
}

// HashOf derives a claim hash from a label.
func HashOf(label string) string {
	sum := sha256.Sum256([]byte(label))
	return "0x" + hex.EncodeToString(sum[:])
}

// RegisterSteps registers actor switching, ledger control and response
// assertions shared by every feature.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^I act as "([^"]*)"$`, steps.actAs)
	ctx.Step(`^I am anonymous$`, steps.anonymous)
	ctx.Step(`^the ledger advances (\d+) blocks?$`, steps.mine)
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the error code should be "([^"]*)"$`, steps.errorCodeShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, steps.fieldShouldBeBool)
	ctx.Step(`^the response field "([^"]*)" should equal (\d+)$`, steps.fieldShouldEqual)
	ctx.Step(`^the response field "([^"]*)" should be the account of "([^"]*)"$`, steps.fieldShouldBeAccount)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) actAs(ctx context.Context, name string) error {
	s.tc.SetActor(name)
	return nil
}

func (s *commonSteps) anonymous(ctx context.Context) error {
	s.tc.SetActor("")
	return nil
}

func (s *commonSteps) mine(ctx context.Context, blocks int) error {
	if err := s.tc.AdminPOST("/v1/ledger/mine", map[string]int{"blocks": blocks}); err != nil {
		return err
	}
	if s.tc.LastStatus() != 200 {
		return fmt.Errorf("mining failed with %d: %s", s.tc.LastStatus(), s.tc.LastBody())
	}
	return nil
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path)
}

func (s *commonSteps) statusShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.LastStatus(); got != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, got, s.tc.LastBody())
	}
	return nil
}

func (s *commonSteps) errorCodeShouldBe(ctx context.Context, code string) error {
	return s.fieldShouldBe(ctx, "error", code)
}

func (s *commonSteps) fieldShouldBe(ctx context.Context, field, expected string) error {
	v, err := s.tc.ResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("expected %s=%q, got %q", field, expected, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeBool(ctx context.Context, field, expected string) error {
	return s.fieldShouldBe(ctx, field, expected)
}

func (s *commonSteps) fieldShouldEqual(ctx context.Context, field string, expected int) error {
	v, err := s.tc.ResponseField(field)
	if err != nil {
		return err
	}
	n, ok := v.(float64)
	if !ok || int(n) != expected {
		return fmt.Errorf("expected %s=%d, got %v", field, expected, v)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeAccount(ctx context.Context, field, name string) error {
	return s.fieldShouldBe(ctx, field, AccountOf(name))
}
