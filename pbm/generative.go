package pbm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/rxmesh/core"
	"github.com/hupe1980/rxmesh/logging"
	"github.com/hupe1980/rxmesh/reasoning"
)

// GenerativeServices synthesizes realistic PBM responses with a reasoning
// collaborator. Every operation falls back to the deterministic static
// catalog when the collaborator errors or returns malformed JSON, so demos
// keep working without credentials.
type GenerativeServices struct {
	reasoner reasoning.Reasoner
	fallback *StaticServices
	logger   logging.Logger
}

// GenerativeOptions configures GenerativeServices.
type GenerativeOptions struct {
	Logger logging.Logger
}

// NewGenerativeServices wraps a reasoner as a Services implementation.
func NewGenerativeServices(r reasoning.Reasoner, optFns ...func(o *GenerativeOptions)) *GenerativeServices {
	opts := GenerativeOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &GenerativeServices{
		reasoner: r,
		fallback: NewStaticServices(),
		logger:   opts.Logger,
	}
}

// generate prompts the collaborator for a single JSON document and decodes it
// into out. The scenario attached to ctx (if any) steers the synthesis.
func (g *GenerativeServices) generate(ctx context.Context, service, task, format string, out any) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a %s for a Pharmacy Benefits Manager. Respond with a single JSON document and nothing else.\n\n%s\n", service, task)
	if scenario, ok := ScenarioFromContext(ctx); ok && scenario != "" {
		fmt.Fprintf(&sb, "\nScenario to honor: %s\n", scenario)
	}
	fmt.Fprintf(&sb, "\nResponse format:\n%s\n", format)

	resp, err := g.reasoner.Decide(ctx, reasoning.Request{
		Instructions: "You simulate backend services. Output only valid JSON.",
		Thread:       []core.Turn{core.NewUserTurn(sb.String())},
	})
	if err != nil {
		return err
	}

	text := strings.TrimSpace(resp.Text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), out); err != nil {
		return fmt.Errorf("decode %s response: %w", service, err)
	}
	return nil
}

// NDCLookup implements Services.
func (g *GenerativeServices) NDCLookup(ctx context.Context, drugName, dose string, qty int, dosageForm string) (NDCSearchResult, error) {
	criteria := []string{"Drug name: " + drugName}
	if dose != "" {
		criteria = append(criteria, "Dose/strength: "+dose)
	}
	if dosageForm != "" {
		criteria = append(criteria, "Dosage form: "+dosageForm)
	}
	if qty > 0 {
		criteria = append(criteria, fmt.Sprintf("Quantity needed: %d", qty))
	}

	task := fmt.Sprintf(
		"Generate an NDC lookup result for: %s.\nReturn 3-5 realistic matching drug products, including brand and generic options when appropriate.",
		strings.Join(criteria, ", "))
	format := `{"drugs": [{"ndc": "12345-678-90", "name": "...", "strength": "...", "dosage_form": "...", "manufacturer": "...", "generic_name": "...", "brand_name": "..."}], "total_found": 3, "search_term": "..."}`

	var out NDCSearchResult
	if err := g.generate(ctx, "pharmaceutical database API", task, format, &out); err != nil {
		g.logger.Warn("pbm.generative.fallback", "service", "ndc_lookup", "error", err.Error())
		return g.fallback.NDCLookup(ctx, drugName, dose, qty, dosageForm)
	}
	return out, nil
}

// CheckEligibility implements Services.
func (g *GenerativeServices) CheckEligibility(ctx context.Context, memberID, dateOfBirth string) (EligibilityResult, error) {
	task := fmt.Sprintf(
		"Generate an eligibility check result for member ID %q (date of birth: %s). The member should be eligible with active coverage.",
		memberID, orNotProvided(dateOfBirth))
	format := fmt.Sprintf(`{"is_eligible": true, "member_info": {"member_id": %q, "first_name": "...", "last_name": "...", "date_of_birth": "YYYY-MM-DD", "plan_id": "..."}, "messages": ["Member is eligible and active"]}`, memberID)

	var out EligibilityResult
	if err := g.generate(ctx, "eligibility verification system", task, format, &out); err != nil {
		g.logger.Warn("pbm.generative.fallback", "service", "check_eligibility", "error", err.Error())
		return g.fallback.CheckEligibility(ctx, memberID, dateOfBirth)
	}
	return out, nil
}

// GetPlanBenefits implements Services.
func (g *GenerativeServices) GetPlanBenefits(ctx context.Context, planID string) (PlanBenefits, error) {
	task := fmt.Sprintf(
		"Generate a realistic 4-tier pharmacy benefit structure for plan ID %q (generic, preferred brand, non-preferred brand, specialty) with deductible, out-of-pocket maximum and plan year 2025.",
		planID)
	format := fmt.Sprintf(`{"plan_id": %q, "plan_name": "...", "plan_year": 2025, "deductible": 250.00, "out_of_pocket_max": 3000.00, "tier_1_copay": 10.00, "tier_2_copay": 30.00, "tier_3_coinsurance": 0.40, "tier_4_coinsurance": 0.25}`, planID)

	var out PlanBenefits
	if err := g.generate(ctx, "plan benefits service", task, format, &out); err != nil {
		g.logger.Warn("pbm.generative.fallback", "service", "get_plan_benefits", "error", err.Error())
		return g.fallback.GetPlanBenefits(ctx, planID)
	}
	return out, nil
}

// GetMemberUtilization implements Services.
func (g *GenerativeServices) GetMemberUtilization(ctx context.Context, memberID string, planYear int) (MemberUtilization, error) {
	if planYear == 0 {
		planYear = 2025
	}
	task := fmt.Sprintf(
		"Generate year-to-date utilization for member ID %q in plan year %d. Vary progress against the deductible.",
		memberID, planYear)
	format := fmt.Sprintf(`{"member_id": %q, "plan_year": %d, "deductible_met": 150.00, "out_of_pocket_met": 400.00, "total_paid_by_member": 400.00, "total_paid_by_plan": 1200.00, "prescription_count": 8}`, memberID, planYear)

	var out MemberUtilization
	if err := g.generate(ctx, "utilization tracking service", task, format, &out); err != nil {
		g.logger.Warn("pbm.generative.fallback", "service", "get_member_utilization", "error", err.Error())
		return g.fallback.GetMemberUtilization(ctx, memberID, planYear)
	}
	return out, nil
}

// CheckFormulary implements Services.
func (g *GenerativeServices) CheckFormulary(ctx context.Context, ndc, planID string) (FormularyResult, error) {
	task := fmt.Sprintf(
		"Generate a formulary check for NDC %q under plan %q. Most drugs should be covered; include tier placement and any prior auth, step therapy or quantity limit restrictions.",
		ndc, planID)
	format := fmt.Sprintf(`{"ndc": %q, "is_covered": true, "tier": 2, "prior_auth_required": false, "quantity_limits": null, "step_therapy_required": false, "formulary_alternatives": []}`, ndc)

	var out FormularyResult
	if err := g.generate(ctx, "formulary service", task, format, &out); err != nil {
		g.logger.Warn("pbm.generative.fallback", "service", "check_formulary", "error", err.Error())
		return g.fallback.CheckFormulary(ctx, ndc, planID)
	}
	return out, nil
}

// GetDrugCost implements Services.
func (g *GenerativeServices) GetDrugCost(ctx context.Context, ndc string) (DrugCost, error) {
	task := fmt.Sprintf(
		"Generate realistic pricing for NDC %q: wholesale/AWP price, a lower plan-negotiated price and a dispensing fee. Common drugs run $10-500; specialty drugs higher.",
		ndc)
	format := fmt.Sprintf(`{"ndc": %q, "wholesale_price": 125.50, "plan_negotiated_price": 89.25, "dispensing_fee": 2.50}`, ndc)

	var out DrugCost
	if err := g.generate(ctx, "drug cost service", task, format, &out); err != nil {
		g.logger.Warn("pbm.generative.fallback", "service", "get_drug_cost", "error", err.Error())
		return g.fallback.GetDrugCost(ctx, ndc)
	}
	return out, nil
}

// CheckCoupons implements Services.
func (g *GenerativeServices) CheckCoupons(ctx context.Context, ndc, memberID string) (CouponResult, error) {
	task := fmt.Sprintf(
		"Generate available discounts for NDC %q (member: %s). Not all drugs have coupons; mix manufacturer savings cards, patient assistance and pharmacy discount programs.",
		ndc, orNotProvided(memberID))
	format := fmt.Sprintf(`{"ndc": %q, "available_coupons": [{"coupon_id": "MFG-001", "name": "Manufacturer Savings Card", "discount_type": "fixed", "discount_value": 15.00, "max_savings": 50.00, "terms": "...", "eligible": true}]}`, ndc)

	var out CouponResult
	if err := g.generate(ctx, "coupon and discount service", task, format, &out); err != nil {
		g.logger.Warn("pbm.generative.fallback", "service", "check_coupons", "error", err.Error())
		return g.fallback.CheckCoupons(ctx, ndc, memberID)
	}
	return out, nil
}

func orNotProvided(s string) string {
	if s == "" {
		return "Not provided"
	}
	return s
}
