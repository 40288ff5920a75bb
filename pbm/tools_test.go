package pbm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rxmesh/core"
	"github.com/hupe1980/rxmesh/tool"
)

func toolByName(t *testing.T, tools []tool.Tool, name string) tool.Tool {
	t.Helper()
	for _, tl := range tools {
		if tl.Name() == name {
			return tl
		}
	}
	t.Fatalf("tool %q not found", name)
	return nil
}

func newToolContext(sess *core.Session) *core.ToolContext {
	return core.NewToolContext(context.Background(), sess, "tester", "c1", nil)
}

// -------------------- Pricing Tool Tests --------------------

func TestPricingTools_LookupRecordsSelectedDrug(t *testing.T) {
	tools := PricingTools(NewStaticServices())
	sess := core.NewSession("s1")
	tc := newToolContext(sess)

	lookup := toolByName(t, tools, "ndc_lookup")
	_, err := lookup.Call(tc, map[string]any{"drug_name": "lisinopril", "dose": "10 mg"})
	require.NoError(t, err)

	// A single match pins the selected NDC for downstream agents.
	v, ok := sess.GetState(StateSelectedDrug)
	assert.True(t, ok)
	assert.Equal(t, "00093-7155-98", v)
}

func TestPricingTools_EligibilityRecordsPlan(t *testing.T) {
	tools := PricingTools(NewStaticServices())
	sess := core.NewSession("s1")
	tc := newToolContext(sess)

	elig := toolByName(t, tools, "check_eligibility")
	_, err := elig.Call(tc, map[string]any{"member_id": DemoMemberID, "date_of_birth": DemoDateOfBirth})
	require.NoError(t, err)

	v, ok := sess.GetState(StateMemberPlan)
	assert.True(t, ok)
	assert.Equal(t, DemoPlanID, v)
}

func TestPricingTools_ValidationFailure(t *testing.T) {
	tools := PricingTools(NewStaticServices())
	tc := newToolContext(core.NewSession("s1"))

	_, err := toolByName(t, tools, "ndc_lookup").Call(tc, map[string]any{})
	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeValidationError, toolErr.Code)
}

// -------------------- Auth Tool Tests --------------------

func TestAuthTools_VerifyIdentity(t *testing.T) {
	tools := AuthTools()
	sess := core.NewSession("s1")
	tc := newToolContext(sess)

	verify := toolByName(t, tools, "verify_member_identity")

	res, err := verify.Call(tc, map[string]any{"member_id": DemoMemberID, "date_of_birth": "2000-01-01"})
	require.NoError(t, err)
	assert.Equal(t, false, res.(map[string]any)["verified"])
	_, ok := sess.GetState(StateVerifiedMember)
	assert.False(t, ok)

	res, err = verify.Call(tc, map[string]any{"member_id": DemoMemberID, "date_of_birth": DemoDateOfBirth})
	require.NoError(t, err)
	assert.Equal(t, true, res.(map[string]any)["verified"])

	v, ok := sess.GetState(StateVerifiedMember)
	assert.True(t, ok)
	assert.Equal(t, DemoMemberID, v)
}

func TestAuthTools_MFAFlow(t *testing.T) {
	tools := AuthTools()
	sess := core.NewSession("s1")
	tc := newToolContext(sess)

	_, err := toolByName(t, tools, "send_mfa_code").Call(tc, map[string]any{"method": "sms", "member_id": DemoMemberID})
	require.NoError(t, err)

	verify := toolByName(t, tools, "verify_mfa_code")

	res, err := verify.Call(tc, map[string]any{"code": "000000", "member_id": DemoMemberID})
	require.NoError(t, err)
	assert.Equal(t, false, res.(map[string]any)["verified"])

	res, err = verify.Call(tc, map[string]any{"code": "123456", "member_id": DemoMemberID})
	require.NoError(t, err)
	assert.Equal(t, true, res.(map[string]any)["verified"])

	v, ok := sess.GetState(StateMFAVerified)
	assert.True(t, ok)
	assert.Equal(t, true, v)
}

// -------------------- Pharmacy Tool Tests --------------------

func TestPharmacyTools_PrescriptionStatus(t *testing.T) {
	tools := PharmacyTools()
	tc := newToolContext(core.NewSession("s1"))

	status := toolByName(t, tools, "check_prescription_status")

	res, err := status.Call(tc, map[string]any{"member_id": DemoMemberID, "rx_number": "RX-88001"})
	require.NoError(t, err)
	p, ok := res.(Prescription)
	require.True(t, ok)
	assert.Equal(t, "ready", p.Status)

	_, err = status.Call(tc, map[string]any{"member_id": DemoMemberID, "rx_number": "RX-00000"})
	assert.Error(t, err)
}

func TestPharmacyTools_FindPharmacies24h(t *testing.T) {
	tools := PharmacyTools()
	tc := newToolContext(core.NewSession("s1"))

	res, err := toolByName(t, tools, "find_pharmacies").Call(tc, map[string]any{"zip_code": "30301", "open_24h": true})
	require.NoError(t, err)

	locations := res.(map[string]any)["pharmacies"].([]PharmacyLocation)
	require.Len(t, locations, 1)
	assert.True(t, locations[0].Open24h)
}

// -------------------- Clinical Tool Tests --------------------

func TestClinicalTools_Interactions(t *testing.T) {
	tools := ClinicalTools()
	tc := newToolContext(core.NewSession("s1"))

	check := toolByName(t, tools, "check_drug_interactions")

	res, err := check.Call(tc, map[string]any{"drugs": []any{"Lisinopril", "Spironolactone"}})
	require.NoError(t, err)
	inter, ok := res.(InteractionResult)
	require.True(t, ok)
	assert.True(t, inter.HasInteractions)
	assert.Equal(t, "major", inter.Severity)

	res, err = check.Call(tc, map[string]any{"drugs": []any{"lisinopril", "metformin"}})
	require.NoError(t, err)
	assert.False(t, res.(InteractionResult).HasInteractions)

	_, err = check.Call(tc, map[string]any{"drugs": []any{"lisinopril"}})
	assert.Error(t, err)
}

func TestClinicalTools_AllergyCheck(t *testing.T) {
	tools := ClinicalTools()
	tc := newToolContext(core.NewSession("s1"))

	check := toolByName(t, tools, "check_allergies")

	res, err := check.Call(tc, map[string]any{"member_id": DemoMemberID, "drug_name": "Amoxicillin"})
	require.NoError(t, err)
	assert.Equal(t, false, res.(map[string]any)["safe"])

	res, err = check.Call(tc, map[string]any{"member_id": DemoMemberID, "drug_name": "lisinopril"})
	require.NoError(t, err)
	assert.Equal(t, true, res.(map[string]any)["safe"])
}
