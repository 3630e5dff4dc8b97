package identity

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
	PUT(path string, body any) error
	DELETE(path string) error
	ResponseField(field string) (any, error)
	LastStatus() int
	LastBody() []byte
	Save(key, value string)
	Saved(key string) (string, error)
}

// RegisterSteps registers identity record step definitions. Records are
// named in the feature text and resolved to their server IDs here.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &identitySteps{tc: tc}

	ctx.Step(`^I create an identity "([^"]*)"$`, steps.create)
	ctx.Step(`^I read identity "([^"]*)"$`, steps.read)
	ctx.Step(`^I deposit (\d+) into "([^"]*)"$`, steps.deposit)
	ctx.Step(`^I dispose of "([^"]*)"$`, steps.dispose)

	ctx.Step(`^I set the (controller|override) of "([^"]*)" to "([^"]*)"$`, steps.setRole)
	ctx.Step(`^I read the (controller|override) of "([^"]*)"$`, steps.readRole)
	ctx.Step(`^I read the blocklock of "([^"]*)"$`, steps.readBlocklock)

	ctx.Step(`^I add attribute "([^"]*)" to "([^"]*)"$`, steps.addAttribute)
	ctx.Step(`^I check attribute "([^"]*)" on "([^"]*)"$`, steps.checkAttribute)
	ctx.Step(`^I update attribute "([^"]*)" to "([^"]*)" on "([^"]*)"$`, steps.updateAttribute)
	ctx.Step(`^I remove attribute "([^"]*)" from "([^"]*)"$`, steps.removeAttribute)

	ctx.Step(`^I endorse attribute "([^"]*)" on "([^"]*)" with "([^"]*)"$`, steps.endorse)
	ctx.Step(`^I accept endorsement "([^"]*)" of attribute "([^"]*)" on "([^"]*)"$`, steps.accept)
	ctx.Step(`^I check endorsement "([^"]*)" of attribute "([^"]*)" on "([^"]*)"$`, steps.checkEndorsement)
}

type identitySteps struct {
	tc TestContext
}

func (s *identitySteps) base(name string) (string, error) {
	id, err := s.tc.Saved("identity:" + name)
	if err != nil {
		return "", err
	}
	return "/v1/identities/" + id, nil
}

func (s *identitySteps) create(ctx context.Context, name string) error {
	if err := s.tc.POST("/v1/identities", nil); err != nil {
		return err
	}
	if s.tc.LastStatus() != 201 {
		return fmt.Errorf("create identity failed with %d: %s", s.tc.LastStatus(), s.tc.LastBody())
	}
	id, err := s.tc.ResponseField("id")
	if err != nil {
		return err
	}
	s.tc.Save("identity:"+name, fmt.Sprint(id))
	return nil
}

func (s *identitySteps) read(ctx context.Context, name string) error {
	path, err := s.base(name)
	if err != nil {
		return err
	}
	return s.tc.GET(path)
}

func (s *identitySteps) deposit(ctx context.Context, amount int, name string) error {
	path, err := s.base(name)
	if err != nil {
		return err
	}
	return s.tc.POST(path+"/deposit", map[string]int{"amount": amount})
}

func (s *identitySteps) dispose(ctx context.Context, name string) error {
	path, err := s.base(name)
	if err != nil {
		return err
	}
	return s.tc.DELETE(path)
}

func (s *identitySteps) setRole(ctx context.Context, role, name, actor string) error {
	path, err := s.base(name)
	if err != nil {
		return err
	}
	return s.tc.PUT(path+"/"+role, map[string]string{"account": common.AccountOf(actor)})
}

func (s *identitySteps) readRole(ctx context.Context, role, name string) error {
	path, err := s.base(name)
	if err != nil {
		return err
	}
	return s.tc.GET(path + "/" + role)
}

func (s *identitySteps) readBlocklock(ctx context.Context, name string) error {
	path, err := s.base(name)
	if err != nil {
		return err
	}
	return s.tc.GET(path + "/blocklock")
}

func (s *identitySteps) addAttribute(ctx context.Context, attr, name string) error {
	path, err := s.base(name)
	if err != nil {
		return err
	}
	return s.tc.POST(path+"/attributes", map[string]string{"hash": common.HashOf(attr)})
}

func (s *identitySteps) checkAttribute(ctx context.Context, attr, name string) error {
	path, err := s.base(name)
	if err != nil {
		return err
	}
	return s.tc.GET(path + "/attributes/" + common.HashOf(attr))
}

func (s *identitySteps) updateAttribute(ctx context.Context, old, next, name string) error {
	path, err := s.base(name)
	if err != nil {
		return err
	}
	return s.tc.PUT(path+"/attributes/"+common.HashOf(old), map[string]string{"new": common.HashOf(next)})
}

func (s *identitySteps) removeAttribute(ctx context.Context, attr, name string) error {
	path, err := s.base(name)
	if err != nil {
		return err
	}
	return s.tc.DELETE(path + "/attributes/" + common.HashOf(attr))
}

func (s *identitySteps) endorse(ctx context.Context, attr, name, endorsement string) error {
	path, err := s.base(name)
	if err != nil {
		return err
	}
	return s.tc.POST(path+"/attributes/"+common.HashOf(attr)+"/endorsements",
		map[string]string{"endorsement": common.HashOf(endorsement)})
}

func (s *identitySteps) endorsementPath(endorsement, attr, name string) (string, error) {
	path, err := s.base(name)
	if err != nil {
		return "", err
	}
	return path + "/attributes/" + common.HashOf(attr) + "/endorsements/" + common.HashOf(endorsement), nil
}

func (s *identitySteps) accept(ctx context.Context, endorsement, attr, name string) error {
	path, err := s.endorsementPath(endorsement, attr, name)
	if err != nil {
		return err
	}
	return s.tc.POST(path+"/accept", nil)
}

func (s *identitySteps) checkEndorsement(ctx context.Context, endorsement, attr, name string) error {
	path, err := s.endorsementPath(endorsement, attr, name)
	if err != nil {
		return err
	}
	return s.tc.GET(path + "/valid")
}
