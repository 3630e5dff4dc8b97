package e2e

import (
	"github.com/cucumber/godog"

	"smartid/e2e/steps/common"
	"smartid/e2e/steps/identity"
	"smartid/e2e/steps/registry"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Actors, raw requests and response assertions
	common.RegisterSteps(ctx, tc)

	identity.RegisterSteps(ctx, tc)
	registry.RegisterSteps(ctx, tc)
}
