package pbm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------- NDC Lookup Tests --------------------

func TestStaticServices_NDCLookup(t *testing.T) {
	svc := NewStaticServices()
	ctx := context.Background()

	res, err := svc.NDCLookup(ctx, "lisinopril", "", 0, "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalFound)

	// Filtering by dose narrows to a single product.
	res, err = svc.NDCLookup(ctx, "lisinopril", "10 mg", 0, "")
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalFound)
	assert.Equal(t, "00093-7155-98", res.Drugs[0].NDC)

	// Brand names match too.
	res, err = svc.NDCLookup(ctx, "Nexium", "", 0, "capsule")
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalFound)

	res, err = svc.NDCLookup(ctx, "unobtanium", "", 0, "")
	require.NoError(t, err)
	assert.Zero(t, res.TotalFound)

	_, err = svc.NDCLookup(ctx, "", "", 0, "")
	assert.Error(t, err)
}

// -------------------- Eligibility Tests --------------------

func TestStaticServices_CheckEligibility(t *testing.T) {
	svc := NewStaticServices()
	ctx := context.Background()

	res, err := svc.CheckEligibility(ctx, DemoMemberID, DemoDateOfBirth)
	require.NoError(t, err)
	assert.True(t, res.IsEligible)
	require.NotNil(t, res.MemberInfo)
	assert.Equal(t, "Pat", res.MemberInfo.FirstName)
	assert.Equal(t, DemoPlanID, res.MemberInfo.PlanID)

	// A wrong date of birth for a known member is rejected.
	res, err = svc.CheckEligibility(ctx, DemoMemberID, "1990-01-01")
	require.NoError(t, err)
	assert.False(t, res.IsEligible)

	_, err = svc.CheckEligibility(ctx, "", "")
	assert.Error(t, err)
}

// -------------------- Benefits & Utilization Tests --------------------

func TestStaticServices_GetPlanBenefits(t *testing.T) {
	svc := NewStaticServices()

	p, err := svc.GetPlanBenefits(context.Background(), DemoPlanID)
	require.NoError(t, err)
	assert.Equal(t, "Gold Choice Rx", p.PlanName)
	assert.Equal(t, 250.00, p.Deductible)
	assert.Equal(t, 10.00, p.Tier1Copay)
	assert.Equal(t, 0.40, p.Tier3Coinsurance)
}

func TestStaticServices_UtilizationIsDeterministic(t *testing.T) {
	svc := NewStaticServices()
	ctx := context.Background()

	a, err := svc.GetMemberUtilization(ctx, DemoMemberID, 2025)
	require.NoError(t, err)
	b, err := svc.GetMemberUtilization(ctx, DemoMemberID, 2025)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	assert.LessOrEqual(t, a.DeductibleMet, 250.00)
	assert.GreaterOrEqual(t, a.OutOfPocketMet, a.DeductibleMet)
}

// -------------------- Formulary, Cost & Coupon Tests --------------------

func TestStaticServices_CheckFormulary(t *testing.T) {
	svc := NewStaticServices()
	ctx := context.Background()

	res, err := svc.CheckFormulary(ctx, "00093-7155-98", DemoPlanID)
	require.NoError(t, err)
	assert.True(t, res.IsCovered)
	assert.Equal(t, 1, res.Tier)
	assert.False(t, res.PriorAuthRequired)

	// Tier 4 specialty drugs require prior authorization.
	res, err = svc.CheckFormulary(ctx, "00002-1433-80", DemoPlanID)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Tier)
	assert.True(t, res.PriorAuthRequired)
}

func TestStaticServices_GetDrugCost(t *testing.T) {
	svc := NewStaticServices()
	ctx := context.Background()

	c, err := svc.GetDrugCost(ctx, "00093-7155-98")
	require.NoError(t, err)
	assert.Equal(t, 4.20, c.PlanNegotiatedPrice)

	// Unknown NDCs get stable derived pricing below wholesale.
	u1, err := svc.GetDrugCost(ctx, "99999-0001-01")
	require.NoError(t, err)
	u2, err := svc.GetDrugCost(ctx, "99999-0001-01")
	require.NoError(t, err)
	assert.Equal(t, u1, u2)
	assert.Less(t, u1.PlanNegotiatedPrice, u1.WholesalePrice)
}

func TestStaticServices_CheckCoupons(t *testing.T) {
	svc := NewStaticServices()
	ctx := context.Background()

	res, err := svc.CheckCoupons(ctx, "00186-5020-31", DemoMemberID)
	require.NoError(t, err)
	require.Len(t, res.AvailableCoupons, 1)
	assert.Equal(t, "NEX-SAVE-01", res.AvailableCoupons[0].CouponID)

	res, err = svc.CheckCoupons(ctx, "00093-7155-98", DemoMemberID)
	require.NoError(t, err)
	assert.Empty(t, res.AvailableCoupons)
}
