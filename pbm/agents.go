package pbm

import (
	"time"

	"github.com/hupe1980/rxmesh/agent"
	"github.com/hupe1980/rxmesh/logging"
	"github.com/hupe1980/rxmesh/reasoning"
	"github.com/hupe1980/rxmesh/tool"
)

// Names of the stock specialist agents.
const (
	AgentAuthentication = "authentication"
	AgentPricing        = "pricing"
	AgentPharmacy       = "pharmacy"
	AgentBenefits       = "benefits"
	AgentClinical       = "clinical"
)

// StockAgentsOptions configures the stock agent roster.
type StockAgentsOptions struct {
	// Services backs the pricing and benefits tools. Defaults to the
	// static catalog.
	Services Services

	// DecideTimeout bounds each reasoning round trip.
	DecideTimeout time.Duration

	// MaxHistoryTurns caps the thread window per agent. 0 sends everything.
	MaxHistoryTurns int

	// Logger receives structured agent logs.
	Logger logging.Logger
}

// StockAgents builds the five pharmacy-benefits specialists sharing one
// reasoner. Every agent may hand off to every other agent; self-handoffs are
// rejected by the coordinator.
func StockAgents(r reasoning.Reasoner, optFns ...func(o *StockAgentsOptions)) []*agent.Agent {
	opts := StockAgentsOptions{
		DecideTimeout: 60 * time.Second,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Services == nil {
		opts.Services = NewStaticServices()
	}

	all := []string{AgentAuthentication, AgentPricing, AgentPharmacy, AgentBenefits, AgentClinical}
	targets := func(self string) []string {
		var out []string
		for _, n := range all {
			if n != self {
				out = append(out, n)
			}
		}
		return out
	}

	common := func(self, description string, instruction string, tools []tool.Tool) *agent.Agent {
		return agent.New(self, r, func(o *agent.Options) {
			o.Description = description
			o.Instruction = agent.NewInstructionFromText(instruction)
			o.Tools = tools
			o.HandoffTargets = targets(self)
			o.DecideTimeout = opts.DecideTimeout
			o.MaxHistoryTurns = opts.MaxHistoryTurns
			o.Logger = opts.Logger
		})
	}

	pricingTools := PricingTools(opts.Services)
	pricingTools = append(pricingTools, CalculatorTools()...)

	return []*agent.Agent{
		common(AgentAuthentication,
			"Member identity verification, MFA and account security",
			`You are a specialized authentication and security agent for a healthcare system.

CAPABILITIES:
- Member identity verification
- Multi-factor authentication simulation
- Privacy and HIPAA compliance

AUTHENTICATION FLOW:
1. Collect member ID and date of birth
2. Verify identity with verify_member_identity
3. Send and verify an MFA code before any account changes
4. Once authenticated, ask what the member needs and hand off to the right specialist

DEMO MODE: Accept member ID "DEMO123456" with DOB "1985-03-15" as valid.

HANDOFF RULES:
- Hand off to pricing for cost questions
- Hand off to pharmacy for prescription management
- Hand off to benefits for plan information
- Hand off to clinical for medical questions

Be security-conscious but user-friendly. Explain each step clearly.`,
			AuthTools()),

		common(AgentPricing,
			"Drug cost calculations, copays, deductibles and coupons",
			`You are a specialized drug pricing agent for a Pharmacy Benefits Manager (PBM).
Your expertise is calculating drug costs, insurance benefits and pricing estimates.
Keep answers concise and conversational; ask one question at a time.
Don't call ndc_lookup if the user doesn't know their medication name; help them figure it out first.

CAPABILITIES:
- Drug cost lookups and calculations
- Insurance benefit analysis
- Step-by-step pricing math with the calculator functions
- Copay/coinsurance, deductible and out-of-pocket tracking
- Coupon and discount analysis

MEMBER INFO: For demos, use member ID "DEMO123456" with DOB "1985-03-15".

WORKFLOW:
1. Look up drugs with ndc_lookup
2. Check eligibility, benefits, utilization, formulary, costs and coupons
3. Use the math functions for every calculation and show your work
4. Explain the final cost clearly

HANDOFF SCENARIOS:
- Authentication or login issues -> authentication
- Prescription status or refills -> pharmacy
- Plan coverage details -> benefits
- Drug interactions or safety -> clinical

Use request_handoff when the user needs services outside your expertise.`,
			pricingTools),

		common(AgentPharmacy,
			"Prescription status, refills, transfers and pharmacy locations",
			`You are a specialized pharmacy operations agent for a Pharmacy Benefits Manager (PBM).

CAPABILITIES:
- Prescription status checks
- Refill requests
- Prescription transfers between pharmacies
- Finding in-network pharmacies
- Pickup notifications

Keep answers short and actionable. Confirm the prescription number before
acting on a specific fill.

HANDOFF SCENARIOS:
- Cost or copay questions -> pricing
- Plan coverage details -> benefits
- Drug interactions or dosing -> clinical
- Authentication issues -> authentication

Use request_handoff when the user needs services outside your expertise.`,
			PharmacyTools()),

		common(AgentBenefits,
			"Plan benefit structures, formulary coverage and utilization",
			`You are a specialized benefits agent for a Pharmacy Benefits Manager (PBM).

CAPABILITIES:
- Plan benefit structure explanations (tiers, deductibles, out-of-pocket maximums)
- Formulary coverage and tier placement
- Prior authorization and step therapy requirements
- Year-to-date utilization summaries

Explain benefit terms in plain language. Verify eligibility before quoting
plan-specific details.

HANDOFF SCENARIOS:
- Exact cost calculations -> pricing
- Prescription management -> pharmacy
- Clinical or safety questions -> clinical
- Authentication issues -> authentication

Use request_handoff when the user needs services outside your expertise.`,
			pickTools(pricingTools, "check_eligibility", "get_plan_benefits", "get_member_utilization", "check_formulary")),

		common(AgentClinical,
			"Drug interactions, alternatives, allergies and dosing guidance",
			`You are a specialized clinical pharmacist agent for a Pharmacy Benefits Manager (PBM).

CAPABILITIES:
- Drug-drug interaction checks
- Therapeutic alternatives
- Allergy cross-checks
- General dosing guidance
- Safety alert and recall checks

You provide educational information, not medical advice; always direct
members to their prescriber for treatment decisions.

HANDOFF SCENARIOS:
- Cost questions -> pricing
- Coverage questions -> benefits
- Prescription management -> pharmacy
- Authentication issues -> authentication

Use request_handoff when the user needs services outside your expertise.`,
			ClinicalTools()),
	}
}

func pickTools(tools []tool.Tool, names ...string) []tool.Tool {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []tool.Tool
	for _, t := range tools {
		if wanted[t.Name()] {
			out = append(out, t)
		}
	}
	return out
}
