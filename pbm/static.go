package pbm

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// StaticServices is a deterministic Services implementation backed by a small
// seeded catalog. Lookups for unknown drugs or NDCs derive stable values from
// the input so repeated calls agree with each other, which keeps tests and
// offline demos reproducible.
type StaticServices struct {
	catalog []Drug
	costs   map[string]DrugCost
	tiers   map[string]int
	coupons map[string][]Coupon
	plans   map[string]PlanBenefits
	members map[string]Member
}

// NewStaticServices creates the seeded catalog.
func NewStaticServices() *StaticServices {
	s := &StaticServices{
		costs:   map[string]DrugCost{},
		tiers:   map[string]int{},
		coupons: map[string][]Coupon{},
		plans:   map[string]PlanBenefits{},
		members: map[string]Member{},
	}
	s.seed()
	return s
}

func (s *StaticServices) seed() {
	s.catalog = []Drug{
		{NDC: "00093-7155-98", Name: "Lisinopril 10 mg tablet", Strength: "10 mg", DosageForm: "tablet", Manufacturer: "Teva Pharmaceuticals", GenericName: "lisinopril"},
		{NDC: "00093-7156-98", Name: "Lisinopril 20 mg tablet", Strength: "20 mg", DosageForm: "tablet", Manufacturer: "Teva Pharmaceuticals", GenericName: "lisinopril"},
		{NDC: "00378-0053-05", Name: "Metformin HCl 500 mg tablet", Strength: "500 mg", DosageForm: "tablet", Manufacturer: "Mylan Pharmaceuticals", GenericName: "metformin"},
		{NDC: "00378-0057-05", Name: "Metformin HCl 1000 mg tablet", Strength: "1000 mg", DosageForm: "tablet", Manufacturer: "Mylan Pharmaceuticals", GenericName: "metformin"},
		{NDC: "00071-0155-23", Name: "Lipitor 20 mg tablet", Strength: "20 mg", DosageForm: "tablet", Manufacturer: "Pfizer", GenericName: "atorvastatin", BrandName: "Lipitor"},
		{NDC: "00591-3772-01", Name: "Atorvastatin 20 mg tablet", Strength: "20 mg", DosageForm: "tablet", Manufacturer: "Watson Labs", GenericName: "atorvastatin"},
		{NDC: "00186-5020-31", Name: "Nexium 20 mg capsule", Strength: "20 mg", DosageForm: "capsule", Manufacturer: "AstraZeneca", GenericName: "esomeprazole", BrandName: "Nexium"},
		{NDC: "62175-0118-32", Name: "Esomeprazole 20 mg capsule", Strength: "20 mg", DosageForm: "capsule", Manufacturer: "Kremers Urban", GenericName: "esomeprazole"},
		{NDC: "00002-1433-80", Name: "Trulicity 1.5 mg/0.5 mL pen", Strength: "1.5 mg/0.5 mL", DosageForm: "injection", Manufacturer: "Eli Lilly", GenericName: "dulaglutide", BrandName: "Trulicity"},
	}

	s.costs = map[string]DrugCost{
		"00093-7155-98": {NDC: "00093-7155-98", WholesalePrice: 14.50, PlanNegotiatedPrice: 4.20, DispensingFee: 1.50},
		"00378-0053-05": {NDC: "00378-0053-05", WholesalePrice: 18.00, PlanNegotiatedPrice: 6.75, DispensingFee: 1.50},
		"00071-0155-23": {NDC: "00071-0155-23", WholesalePrice: 312.00, PlanNegotiatedPrice: 204.80, DispensingFee: 2.50},
		"00591-3772-01": {NDC: "00591-3772-01", WholesalePrice: 24.00, PlanNegotiatedPrice: 9.10, DispensingFee: 1.50},
		"00186-5020-31": {NDC: "00186-5020-31", WholesalePrice: 289.40, PlanNegotiatedPrice: 218.60, DispensingFee: 2.50},
		"00002-1433-80": {NDC: "00002-1433-80", WholesalePrice: 986.50, PlanNegotiatedPrice: 812.30, DispensingFee: 5.00},
	}

	s.tiers = map[string]int{
		"00093-7155-98": 1,
		"00093-7156-98": 1,
		"00378-0053-05": 1,
		"00378-0057-05": 1,
		"00591-3772-01": 1,
		"00071-0155-23": 3,
		"00186-5020-31": 3,
		"62175-0118-32": 1,
		"00002-1433-80": 4,
	}

	s.coupons = map[string][]Coupon{
		"00186-5020-31": {{
			CouponID:      "NEX-SAVE-01",
			Name:          "Nexium Savings Card",
			DiscountType:  "fixed",
			DiscountValue: 25.00,
			MaxSavings:    75.00,
			Terms:         "Save $25 per fill, max $75 per month. Not valid with government plans.",
			Eligible:      true,
		}},
		"00002-1433-80": {{
			CouponID:      "TRU-CPAY-01",
			Name:          "Trulicity Copay Card",
			DiscountType:  "copay_card",
			DiscountValue: 150.00,
			MaxSavings:    150.00,
			Terms:         "Pay as little as $25 per month, max benefit $150 per fill.",
			Eligible:      true,
		}},
	}

	s.plans[DemoPlanID] = PlanBenefits{
		PlanID:           DemoPlanID,
		PlanName:         "Gold Choice Rx",
		PlanYear:         2025,
		Deductible:       250.00,
		OutOfPocketMax:   3000.00,
		Tier1Copay:       10.00,
		Tier2Copay:       30.00,
		Tier3Coinsurance: 0.40,
		Tier4Coinsurance: 0.25,
	}

	s.members[DemoMemberID] = Member{
		MemberID:    DemoMemberID,
		FirstName:   "Pat",
		LastName:    "Morrison",
		DateOfBirth: DemoDateOfBirth,
		PlanID:      DemoPlanID,
	}
}

// NDCLookup implements Services.
func (s *StaticServices) NDCLookup(_ context.Context, drugName, dose string, _ int, dosageForm string) (NDCSearchResult, error) {
	if drugName == "" {
		return NDCSearchResult{}, fmt.Errorf("drug name is required")
	}

	term := strings.ToLower(drugName)
	var matches []Drug
	for _, d := range s.catalog {
		if !strings.Contains(strings.ToLower(d.Name), term) &&
			!strings.Contains(strings.ToLower(d.GenericName), term) &&
			!strings.Contains(strings.ToLower(d.BrandName), term) {
			continue
		}
		if dose != "" && !strings.EqualFold(d.Strength, dose) {
			continue
		}
		if dosageForm != "" && !strings.EqualFold(d.DosageForm, dosageForm) {
			continue
		}
		matches = append(matches, d)
	}

	criteria := []string{"Drug name: " + drugName}
	if dose != "" {
		criteria = append(criteria, "Dose/strength: "+dose)
	}
	if dosageForm != "" {
		criteria = append(criteria, "Dosage form: "+dosageForm)
	}

	return NDCSearchResult{
		Drugs:      matches,
		TotalFound: len(matches),
		SearchTerm: strings.Join(criteria, ", "),
	}, nil
}

// CheckEligibility implements Services. The demo member is always eligible;
// other ids resolve to a stable synthetic member.
func (s *StaticServices) CheckEligibility(_ context.Context, memberID, dateOfBirth string) (EligibilityResult, error) {
	if memberID == "" {
		return EligibilityResult{}, fmt.Errorf("member id is required")
	}

	if m, ok := s.members[memberID]; ok {
		if dateOfBirth != "" && dateOfBirth != m.DateOfBirth {
			return EligibilityResult{
				IsEligible: false,
				Messages:   []string{"Date of birth does not match our records"},
			}, nil
		}
		return EligibilityResult{
			IsEligible: true,
			MemberInfo: &m,
			Messages:   []string{"Member is eligible and active"},
		}, nil
	}

	m := Member{
		MemberID:    memberID,
		FirstName:   "Alex",
		LastName:    "Rivera",
		DateOfBirth: dateOfBirth,
		PlanID:      DemoPlanID,
	}
	return EligibilityResult{
		IsEligible: true,
		MemberInfo: &m,
		Messages:   []string{"Member is eligible and active"},
	}, nil
}

// GetPlanBenefits implements Services.
func (s *StaticServices) GetPlanBenefits(_ context.Context, planID string) (PlanBenefits, error) {
	if planID == "" {
		return PlanBenefits{}, fmt.Errorf("plan id is required")
	}
	if p, ok := s.plans[planID]; ok {
		return p, nil
	}
	p := s.plans[DemoPlanID]
	p.PlanID = planID
	p.PlanName = "Standard Rx"
	return p, nil
}

// GetMemberUtilization implements Services. Values derive from the member id
// so the same member always reports the same spending.
func (s *StaticServices) GetMemberUtilization(_ context.Context, memberID string, planYear int) (MemberUtilization, error) {
	if memberID == "" {
		return MemberUtilization{}, fmt.Errorf("member id is required")
	}
	if planYear == 0 {
		planYear = 2025
	}

	h := stableHash(memberID)
	dedMet := float64(h%251) // 0..250, within the demo deductible
	return MemberUtilization{
		MemberID:          memberID,
		PlanYear:          planYear,
		DeductibleMet:     dedMet,
		OutOfPocketMet:    dedMet + float64(h%400),
		TotalPaidByMember: dedMet + float64(h%400),
		TotalPaidByPlan:   float64(400 + h%1800),
		PrescriptionCount: int(1 + h%14),
	}, nil
}

// CheckFormulary implements Services.
func (s *StaticServices) CheckFormulary(_ context.Context, ndc, planID string) (FormularyResult, error) {
	if ndc == "" {
		return FormularyResult{}, fmt.Errorf("ndc is required")
	}

	tier, known := s.tiers[ndc]
	if !known {
		tier = 2
	}

	res := FormularyResult{
		NDC:       ndc,
		IsCovered: true,
		Tier:      tier,
	}
	if tier == 4 {
		res.PriorAuthRequired = true
		res.QuantityLimits = map[string]any{"max_per_month": 4}
	}
	return res, nil
}

// GetDrugCost implements Services. Unknown NDCs get stable derived pricing.
func (s *StaticServices) GetDrugCost(_ context.Context, ndc string) (DrugCost, error) {
	if ndc == "" {
		return DrugCost{}, fmt.Errorf("ndc is required")
	}
	if c, ok := s.costs[ndc]; ok {
		return c, nil
	}

	h := stableHash(ndc)
	wholesale := float64(20 + h%480) + 0.50
	return DrugCost{
		NDC:                 ndc,
		WholesalePrice:      wholesale,
		PlanNegotiatedPrice: round2(wholesale * 0.72),
		DispensingFee:       2.50,
	}, nil
}

// CheckCoupons implements Services.
func (s *StaticServices) CheckCoupons(_ context.Context, ndc, _ string) (CouponResult, error) {
	if ndc == "" {
		return CouponResult{}, fmt.Errorf("ndc is required")
	}
	return CouponResult{NDC: ndc, AvailableCoupons: s.coupons[ndc]}, nil
}

func stableHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
