package registry

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"

	"smartid/e2e/steps/common"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	POST(path string, body any) error
	DELETE(path string) error
	ResponseField(field string) (any, error)
	LastStatus() int
	LastBody() []byte
	Save(key, value string)
	Saved(key string) (string, error)
}

// RegisterSteps registers approval registry step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &registrySteps{tc: tc}

	ctx.Step(`^I create a registry "([^"]*)"$`, steps.create)
	ctx.Step(`^I submit contract "([^"]*)" to "([^"]*)"$`, steps.submit)
	ctx.Step(`^I (approve|reject) contract "([^"]*)" in "([^"]*)"$`, steps.decide)
	ctx.Step(`^I delete contract "([^"]*)" from "([^"]*)"$`, steps.remove)
	ctx.Step(`^I look up contract "([^"]*)" in "([^"]*)"$`, steps.lookup)
	ctx.Step(`^I check whether contract "([^"]*)" is valid in "([^"]*)"$`, steps.valid)
}

type registrySteps struct {
	tc TestContext
}

func (s *registrySteps) contractPath(contract, name string) (string, error) {
	id, err := s.tc.Saved("registry:" + name)
	if err != nil {
		return "", err
	}
	return "/v1/registries/" + id + "/contracts/" + common.HashOf(contract), nil
}

func (s *registrySteps) create(ctx context.Context, name string) error {
	if err := s.tc.POST("/v1/registries", nil); err != nil {
		return err
	}
	if s.tc.LastStatus() != 201 {
		return fmt.Errorf("create registry failed with %d: %s", s.tc.LastStatus(), s.tc.LastBody())
	}
	id, err := s.tc.ResponseField("id")
	if err != nil {
		return err
	}
	s.tc.Save("registry:"+name, fmt.Sprint(id))
	return nil
}

func (s *registrySteps) submit(ctx context.Context, contract, name string) error {
	id, err := s.tc.Saved("registry:" + name)
	if err != nil {
		return err
	}
	return s.tc.POST("/v1/registries/"+id+"/contracts", map[string]string{"hash": common.HashOf(contract)})
}

func (s *registrySteps) decide(ctx context.Context, decision, contract, name string) error {
	path, err := s.contractPath(contract, name)
	if err != nil {
		return err
	}
	return s.tc.POST(path+"/"+decision, nil)
}

func (s *registrySteps) remove(ctx context.Context, contract, name string) error {
	path, err := s.contractPath(contract, name)
	if err != nil {
		return err
	}
	return s.tc.DELETE(path)
}

func (s *registrySteps) lookup(ctx context.Context, contract, name string) error {
	path, err := s.contractPath(contract, name)
	if err != nil {
		return err
	}
	return s.tc.GET(path)
}

func (s *registrySteps) valid(ctx context.Context, contract, name string) error {
	path, err := s.contractPath(contract, name)
	if err != nil {
		return err
	}
	return s.tc.GET(path + "/valid")
}
