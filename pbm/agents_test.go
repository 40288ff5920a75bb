package pbm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rxmesh/reasoning"
)

func TestStockAgents_Roster(t *testing.T) {
	agents := StockAgents(reasoning.NewScriptedReasoner())
	require.Len(t, agents, 5)

	names := make([]string, 0, len(agents))
	for _, a := range agents {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{AgentAuthentication, AgentPricing, AgentPharmacy, AgentBenefits, AgentClinical}, names)
}

func TestStockAgents_HandoffTopology(t *testing.T) {
	agents := StockAgents(reasoning.NewScriptedReasoner())

	for _, a := range agents {
		assert.Len(t, a.HandoffTargets(), 4, "agent %s", a.Name())
		assert.False(t, a.CanHandOffTo(a.Name()), "agent %s must not target itself", a.Name())
		assert.NotEmpty(t, a.Description(), "agent %s", a.Name())
	}

	pricing := agents[1]
	assert.True(t, pricing.CanHandOffTo(AgentBenefits))
	assert.True(t, pricing.CanHandOffTo(AgentClinical))
}

func TestStockAgents_ToolAssignments(t *testing.T) {
	agents := StockAgents(reasoning.NewScriptedReasoner())
	byName := map[string][]string{}
	for _, a := range agents {
		byName[a.Name()] = a.Registry().Names()
	}

	assert.Contains(t, byName[AgentAuthentication], "verify_member_identity")
	assert.Contains(t, byName[AgentPricing], "ndc_lookup")
	assert.Contains(t, byName[AgentPricing], "calculate_percentage")
	assert.Contains(t, byName[AgentPharmacy], "request_refill")
	assert.Contains(t, byName[AgentClinical], "check_drug_interactions")

	// Benefits carries only the coverage subset of the pricing tools.
	assert.ElementsMatch(t, []string{"check_eligibility", "get_plan_benefits", "get_member_utilization", "check_formulary"},
		byName[AgentBenefits])
}
