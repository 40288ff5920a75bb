// Package pbm provides the pharmacy-benefits domain layer: mock backend
// services, the function tools wrapping them, a calculator for step-by-step
// pricing math and the stock specialist agents with their handoff topology.
package pbm

import (
	"context"
)

// Services is the backend surface the pricing and benefits tools call into.
// Two implementations exist: StaticServices with a deterministic seeded
// catalog, and GenerativeServices which asks a reasoning collaborator to
// synthesize realistic responses and falls back to the static catalog.
type Services interface {
	// NDCLookup searches drug products by name, optionally narrowed by
	// dose, quantity and dosage form.
	NDCLookup(ctx context.Context, drugName, dose string, qty int, dosageForm string) (NDCSearchResult, error)

	// CheckEligibility verifies a member's coverage.
	CheckEligibility(ctx context.Context, memberID, dateOfBirth string) (EligibilityResult, error)

	// GetPlanBenefits returns the tiered benefit structure of a plan.
	GetPlanBenefits(ctx context.Context, planID string) (PlanBenefits, error)

	// GetMemberUtilization returns year-to-date spending for a member.
	GetMemberUtilization(ctx context.Context, memberID string, planYear int) (MemberUtilization, error)

	// CheckFormulary reports coverage and tier placement of a drug.
	CheckFormulary(ctx context.Context, ndc, planID string) (FormularyResult, error)

	// GetDrugCost returns wholesale and negotiated pricing for a drug.
	GetDrugCost(ctx context.Context, ndc string) (DrugCost, error)

	// CheckCoupons lists manufacturer coupons and discount programs.
	CheckCoupons(ctx context.Context, ndc, memberID string) (CouponResult, error)
}

type scenarioKey struct{}

// WithScenario attaches a free-text scenario description to the context.
// Generative services weave it into their prompts so demos can steer the
// synthesized data (e.g. "member has met their deductible").
func WithScenario(ctx context.Context, scenario string) context.Context {
	return context.WithValue(ctx, scenarioKey{}, scenario)
}

// ScenarioFromContext returns the scenario attached via WithScenario.
func ScenarioFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(scenarioKey{}).(string)
	return s, ok
}

// StateScenario is the reserved context-store key for a session-wide
// scenario. The service tools forward it to WithScenario on every call.
const StateScenario = "scenario"

// Demo identity accepted by the mock authentication flow.
const (
	DemoMemberID    = "DEMO123456"
	DemoDateOfBirth = "1985-03-15"
	DemoPlanID      = "PLAN-GOLD-2025"
)
