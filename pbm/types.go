package pbm

// Drug represents a drug product with its NDC and details.
type Drug struct {
	NDC          string `json:"ndc"`
	Name         string `json:"name"`
	Strength     string `json:"strength"`
	DosageForm   string `json:"dosage_form"`
	Manufacturer string `json:"manufacturer"`
	GenericName  string `json:"generic_name,omitempty"`
	BrandName    string `json:"brand_name,omitempty"`
}

// NDCSearchResult is the outcome of a drug lookup.
type NDCSearchResult struct {
	Drugs      []Drug `json:"drugs"`
	TotalFound int    `json:"total_found"`
	SearchTerm string `json:"search_term"`
}

// Member represents a plan member.
type Member struct {
	MemberID    string `json:"member_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	PlanID      string `json:"plan_id"`
}

// EligibilityResult reports coverage eligibility for a member.
type EligibilityResult struct {
	IsEligible bool     `json:"is_eligible"`
	MemberInfo *Member  `json:"member_info,omitempty"`
	Messages   []string `json:"messages,omitempty"`
}

// PlanBenefits is the tiered benefit structure of a pharmacy plan.
// Tier 1 = generic, 2 = preferred brand, 3 = non-preferred brand, 4 = specialty.
// For each tier exactly one of copay / coinsurance applies; the unused one is 0.
type PlanBenefits struct {
	PlanID         string  `json:"plan_id"`
	PlanName       string  `json:"plan_name"`
	PlanYear       int     `json:"plan_year"`
	Deductible     float64 `json:"deductible"`
	OutOfPocketMax float64 `json:"out_of_pocket_max"`

	Tier1Copay       float64 `json:"tier_1_copay,omitempty"`
	Tier1Coinsurance float64 `json:"tier_1_coinsurance,omitempty"`
	Tier2Copay       float64 `json:"tier_2_copay,omitempty"`
	Tier2Coinsurance float64 `json:"tier_2_coinsurance,omitempty"`
	Tier3Copay       float64 `json:"tier_3_copay,omitempty"`
	Tier3Coinsurance float64 `json:"tier_3_coinsurance,omitempty"`
	Tier4Copay       float64 `json:"tier_4_copay,omitempty"`
	Tier4Coinsurance float64 `json:"tier_4_coinsurance,omitempty"`
}

// MemberUtilization tracks a member's year-to-date spending.
type MemberUtilization struct {
	MemberID          string  `json:"member_id"`
	PlanYear          int     `json:"plan_year"`
	DeductibleMet     float64 `json:"deductible_met"`
	OutOfPocketMet    float64 `json:"out_of_pocket_met"`
	TotalPaidByMember float64 `json:"total_paid_by_member"`
	TotalPaidByPlan   float64 `json:"total_paid_by_plan"`
	PrescriptionCount int     `json:"prescription_count"`
}

// FormularyResult reports formulary coverage for a drug under a plan.
type FormularyResult struct {
	NDC                   string         `json:"ndc"`
	IsCovered             bool           `json:"is_covered"`
	Tier                  int            `json:"tier,omitempty"`
	PriorAuthRequired     bool           `json:"prior_auth_required"`
	QuantityLimits        map[string]any `json:"quantity_limits,omitempty"`
	StepTherapyRequired   bool           `json:"step_therapy_required"`
	FormularyAlternatives []string       `json:"formulary_alternatives,omitempty"`
}

// DrugCost carries wholesale and plan-negotiated pricing for a drug.
type DrugCost struct {
	NDC                 string  `json:"ndc"`
	WholesalePrice      float64 `json:"wholesale_price"`
	PlanNegotiatedPrice float64 `json:"plan_negotiated_price"`
	DispensingFee       float64 `json:"dispensing_fee"`
}

// Coupon is a manufacturer or pharmacy discount program.
type Coupon struct {
	CouponID      string  `json:"coupon_id"`
	Name          string  `json:"name"`
	DiscountType  string  `json:"discount_type"` // "fixed", "percentage", "copay_card"
	DiscountValue float64 `json:"discount_value"`
	MaxSavings    float64 `json:"max_savings,omitempty"`
	Terms         string  `json:"terms"`
	Eligible      bool    `json:"eligible"`
}

// CouponResult lists available coupons for a drug.
type CouponResult struct {
	NDC              string   `json:"ndc"`
	AvailableCoupons []Coupon `json:"available_coupons"`
}

// Prescription is a fill tracked by the pharmacy service.
type Prescription struct {
	RxNumber     string `json:"rx_number"`
	DrugName     string `json:"drug_name"`
	Status       string `json:"status"` // "ready", "in_progress", "on_hold", "transferred"
	PharmacyName string `json:"pharmacy_name"`
	RefillsLeft  int    `json:"refills_left"`
	LastFilled   string `json:"last_filled"`
	ReadyDate    string `json:"ready_date,omitempty"`
}

// PharmacyLocation is a retail pharmacy near the member.
type PharmacyLocation struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Hours    string `json:"hours"`
	Distance string `json:"distance"`
	Open24h  bool   `json:"open_24h"`
}

// InteractionResult reports clinically significant drug interactions.
type InteractionResult struct {
	Drugs           []string `json:"drugs"`
	HasInteractions bool     `json:"has_interactions"`
	Severity        string   `json:"severity,omitempty"` // "minor", "moderate", "major"
	Details         []string `json:"details,omitempty"`
	Recommendation  string   `json:"recommendation,omitempty"`
}
