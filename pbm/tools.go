package pbm

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/rxmesh/core"
	"github.com/hupe1980/rxmesh/tool"
)

// Context-store keys written by the domain tools. Entries accumulate across
// handoffs so later agents can reuse what earlier agents established.
const (
	StateVerifiedMember = "verified_member_id"
	StateMFAVerified    = "mfa_verified"
	StateMemberPlan     = "member_plan_id"
	StateSelectedDrug   = "selected_ndc"
)

func str(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// svcCtx forwards a session-wide scenario from the context store to the
// backend services.
func svcCtx(tc *core.ToolContext) context.Context {
	ctx := tc.Context()
	if v, ok := tc.GetState(StateScenario); ok {
		if s, ok := v.(string); ok && s != "" {
			ctx = WithScenario(ctx, s)
		}
	}
	return ctx
}

// PricingTools wraps the backend services the pricing specialist needs:
// drug lookup, eligibility, benefits, utilization, formulary, cost and
// coupon checks. Tools record the member's plan and selected drug in the
// context store for agents downstream of a handoff.
func PricingTools(svc Services) []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionTool("ndc_lookup",
			"Search for drugs by name to find specific drug products",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"drug_name":   map[string]any{"type": "string", "description": "Drug name to search"},
					"dose":        map[string]any{"type": "string", "description": "Dose/strength (optional)"},
					"qty":         map[string]any{"type": "integer", "description": "Quantity (optional)"},
					"dosage_form": map[string]any{"type": "string", "description": "Form like tablet, capsule (optional)"},
				},
				"required": []string{"drug_name"},
			},
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				res, err := svc.NDCLookup(svcCtx(tc), str(args, "drug_name"), str(args, "dose"), intArg(args, "qty"), str(args, "dosage_form"))
				if err != nil {
					return nil, err
				}
				if len(res.Drugs) == 1 {
					tc.SetState(StateSelectedDrug, res.Drugs[0].NDC)
				}
				return res, nil
			}),
		tool.NewFunctionTool("check_eligibility",
			"Verify member eligibility",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"member_id":     map[string]any{"type": "string"},
					"date_of_birth": map[string]any{"type": "string", "description": "YYYY-MM-DD format"},
				},
				"required": []string{"member_id"},
			},
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				res, err := svc.CheckEligibility(svcCtx(tc), str(args, "member_id"), str(args, "date_of_birth"))
				if err != nil {
					return nil, err
				}
				if res.IsEligible && res.MemberInfo != nil {
					tc.SetState(StateMemberPlan, res.MemberInfo.PlanID)
				}
				return res, nil
			}),
		tool.NewFunctionTool("get_plan_benefits",
			"Get plan benefit structure",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"plan_id": map[string]any{"type": "string"},
				},
				"required": []string{"plan_id"},
			},
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return svc.GetPlanBenefits(svcCtx(tc), str(args, "plan_id"))
			}),
		tool.NewFunctionTool("get_member_utilization",
			"Get member utilization data for the plan year",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"member_id": map[string]any{"type": "string"},
					"plan_year": map[string]any{"type": "integer"},
				},
				"required": []string{"member_id"},
			},
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return svc.GetMemberUtilization(svcCtx(tc), str(args, "member_id"), intArg(args, "plan_year"))
			}),
		tool.NewFunctionTool("check_formulary",
			"Check formulary coverage and tier placement for a drug",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"ndc":     map[string]any{"type": "string"},
					"plan_id": map[string]any{"type": "string"},
				},
				"required": []string{"ndc", "plan_id"},
			},
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return svc.CheckFormulary(svcCtx(tc), str(args, "ndc"), str(args, "plan_id"))
			}),
		tool.NewFunctionTool("get_drug_cost",
			"Get wholesale and plan-negotiated drug costs",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"ndc": map[string]any{"type": "string"},
				},
				"required": []string{"ndc"},
			},
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return svc.GetDrugCost(svcCtx(tc), str(args, "ndc"))
			}),
		tool.NewFunctionTool("check_coupons",
			"Check for available manufacturer coupons and discounts",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"ndc":       map[string]any{"type": "string"},
					"member_id": map[string]any{"type": "string"},
				},
				"required": []string{"ndc"},
			},
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return svc.CheckCoupons(svcCtx(tc), str(args, "ndc"), str(args, "member_id"))
			}),
	}
}

// AuthTools implements the mock identity verification flow. Successful
// verification and MFA results are written to the context store so downstream
// agents can skip re-authentication after a handoff.
func AuthTools() []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionTool("verify_member_identity",
			"Verify member identity with ID and date of birth",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"member_id":       map[string]any{"type": "string", "description": "Member ID"},
					"date_of_birth":   map[string]any{"type": "string", "description": "Date of birth YYYY-MM-DD"},
					"additional_info": map[string]any{"type": "string", "description": "Additional verification info"},
				},
				"required": []string{"member_id", "date_of_birth"},
			},
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				memberID := str(args, "member_id")
				dob := str(args, "date_of_birth")
				if memberID == DemoMemberID && dob != DemoDateOfBirth {
					return map[string]any{
						"verified": false,
						"message":  "Date of birth does not match our records",
					}, nil
				}
				tc.SetState(StateVerifiedMember, memberID)
				return map[string]any{
					"verified":  true,
					"member_id": memberID,
					"message":   "Identity verified. An MFA step is required before account changes.",
				}, nil
			}),
		tool.NewFunctionTool("send_mfa_code",
			"Send a multi-factor authentication code",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"method":    map[string]any{"type": "string", "enum": []any{"sms", "email"}, "description": "How to send the code"},
					"member_id": map[string]any{"type": "string"},
				},
				"required": []string{"method", "member_id"},
			},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				return map[string]any{
					"sent":    true,
					"method":  str(args, "method"),
					"message": fmt.Sprintf("A 6-digit code was sent via %s. For demos the code is 123456.", str(args, "method")),
				}, nil
			}),
		tool.NewFunctionTool("verify_mfa_code",
			"Verify the MFA code entered by the user",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"code":      map[string]any{"type": "string", "description": "6-digit code"},
					"member_id": map[string]any{"type": "string"},
				},
				"required": []string{"code", "member_id"},
			},
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				ok := str(args, "code") == "123456"
				if ok {
					tc.SetState(StateMFAVerified, true)
				}
				return map[string]any{
					"verified": ok,
					"message":  mfaMessage(ok),
				}, nil
			}),
	}
}

func mfaMessage(ok bool) string {
	if ok {
		return "MFA verified. The account is fully authenticated."
	}
	return "The code does not match. Please re-enter the 6-digit code."
}

// PharmacyTools implements mock prescription management operations.
func PharmacyTools() []tool.Tool {
	fills := map[string]Prescription{
		"RX-88001": {RxNumber: "RX-88001", DrugName: "Lisinopril 10 mg tablet", Status: "ready", PharmacyName: "CVS Pharmacy #2211", RefillsLeft: 3, LastFilled: "2025-07-28", ReadyDate: "2025-08-27"},
		"RX-88002": {RxNumber: "RX-88002", DrugName: "Metformin HCl 500 mg tablet", Status: "in_progress", PharmacyName: "CVS Pharmacy #2211", RefillsLeft: 1, LastFilled: "2025-08-02"},
	}

	return []tool.Tool{
		tool.NewFunctionTool("check_prescription_status",
			"Check the fill status of a prescription",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"rx_number": map[string]any{"type": "string", "description": "Prescription number"},
					"member_id": map[string]any{"type": "string"},
				},
				"required": []string{"member_id"},
			},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				if rx := str(args, "rx_number"); rx != "" {
					if p, ok := fills[rx]; ok {
						return p, nil
					}
					return nil, fmt.Errorf("prescription %s not found", rx)
				}
				all := make([]Prescription, 0, len(fills))
				for _, p := range fills {
					all = append(all, p)
				}
				return map[string]any{"prescriptions": all}, nil
			}),
		tool.NewFunctionTool("request_refill",
			"Request a refill for a prescription",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"rx_number": map[string]any{"type": "string"},
					"member_id": map[string]any{"type": "string"},
				},
				"required": []string{"rx_number", "member_id"},
			},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				rx := str(args, "rx_number")
				p, ok := fills[rx]
				if !ok {
					return nil, fmt.Errorf("prescription %s not found", rx)
				}
				if p.RefillsLeft == 0 {
					return map[string]any{
						"accepted": false,
						"message":  "No refills remaining. A new prescription from the prescriber is required.",
					}, nil
				}
				return map[string]any{
					"accepted":   true,
					"rx_number":  rx,
					"ready_date": "2025-08-31",
					"message":    fmt.Sprintf("Refill placed at %s. Estimated ready date 2025-08-31.", p.PharmacyName),
				}, nil
			}),
		tool.NewFunctionTool("transfer_prescription",
			"Transfer a prescription to another pharmacy",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"rx_number":     map[string]any{"type": "string"},
					"from_pharmacy": map[string]any{"type": "string"},
					"to_pharmacy":   map[string]any{"type": "string"},
				},
				"required": []string{"rx_number", "to_pharmacy"},
			},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				return map[string]any{
					"accepted":  true,
					"rx_number": str(args, "rx_number"),
					"message":   fmt.Sprintf("Transfer to %s initiated. The receiving pharmacy usually completes it within 1-2 business days.", str(args, "to_pharmacy")),
				}, nil
			}),
		tool.NewFunctionTool("find_pharmacies",
			"Find in-network pharmacies near the member",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"zip_code": map[string]any{"type": "string"},
					"open_24h": map[string]any{"type": "boolean"},
				},
				"required": []string{"zip_code"},
			},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				locations := []PharmacyLocation{
					{Name: "CVS Pharmacy #2211", Address: "420 Main St", Phone: "555-0142", Hours: "8am-10pm", Distance: "0.8 mi"},
					{Name: "Walmart Pharmacy", Address: "1200 Commerce Blvd", Phone: "555-0177", Hours: "9am-9pm", Distance: "2.1 mi"},
					{Name: "Walgreens 24hr", Address: "88 Elm Ave", Phone: "555-0109", Hours: "24 hours", Distance: "3.4 mi", Open24h: true},
				}
				if open24, _ := args["open_24h"].(bool); open24 {
					var filtered []PharmacyLocation
					for _, l := range locations {
						if l.Open24h {
							filtered = append(filtered, l)
						}
					}
					locations = filtered
				}
				return map[string]any{"pharmacies": locations}, nil
			}),
		tool.NewFunctionTool("get_pickup_notifications",
			"List prescriptions ready for pickup",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"member_id": map[string]any{"type": "string"},
				},
				"required": []string{"member_id"},
			},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				var ready []Prescription
				for _, p := range fills {
					if p.Status == "ready" {
						ready = append(ready, p)
					}
				}
				return map[string]any{"ready_for_pickup": ready}, nil
			}),
	}
}

// ClinicalTools implements mock clinical safety operations.
func ClinicalTools() []tool.Tool {
	interactions := map[string]InteractionResult{
		"lisinopril+spironolactone": {
			Drugs:           []string{"lisinopril", "spironolactone"},
			HasInteractions: true,
			Severity:        "major",
			Details:         []string{"Combined use can cause dangerous potassium elevation (hyperkalemia)."},
			Recommendation:  "Monitor potassium closely; discuss with the prescriber before combining.",
		},
		"metformin+contrast dye": {
			Drugs:           []string{"metformin", "contrast dye"},
			HasInteractions: true,
			Severity:        "moderate",
			Details:         []string{"Iodinated contrast can precipitate lactic acidosis with metformin."},
			Recommendation:  "Hold metformin 48 hours around contrast imaging per prescriber guidance.",
		},
	}

	return []tool.Tool{
		tool.NewFunctionTool("check_drug_interactions",
			"Check for interactions between two or more drugs",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"drugs": map[string]any{
						"type":        "array",
						"description": "Drug names to check together",
						"items":       map[string]any{"type": "string"},
					},
				},
				"required": []string{"drugs"},
			},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				raw, _ := args["drugs"].([]any)
				if len(raw) < 2 {
					return nil, fmt.Errorf("at least two drugs are required")
				}
				names := make([]string, 0, len(raw))
				for _, d := range raw {
					if s, ok := d.(string); ok {
						names = append(names, strings.ToLower(strings.TrimSpace(s)))
					}
				}
				for key, res := range interactions {
					parts := strings.Split(key, "+")
					if containsAll(names, parts) {
						return res, nil
					}
				}
				return InteractionResult{
					Drugs:           names,
					HasInteractions: false,
					Recommendation:  "No clinically significant interactions found in this combination.",
				}, nil
			}),
		tool.NewFunctionTool("find_therapeutic_alternatives",
			"Find therapeutic alternatives for a drug",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"drug_name": map[string]any{"type": "string"},
					"reason":    map[string]any{"type": "string", "description": "Why an alternative is needed"},
				},
				"required": []string{"drug_name"},
			},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				alternatives := map[string][]string{
					"nexium":     {"omeprazole (generic, tier 1)", "pantoprazole (generic, tier 1)", "famotidine (H2 blocker, tier 1)"},
					"lipitor":    {"atorvastatin (generic, tier 1)", "rosuvastatin (generic, tier 1)", "pravastatin (generic, tier 1)"},
					"lisinopril": {"losartan (ARB, tier 1)", "enalapril (ACE inhibitor, tier 1)"},
				}
				name := strings.ToLower(str(args, "drug_name"))
				if alts, ok := alternatives[name]; ok {
					return map[string]any{"drug_name": name, "alternatives": alts}, nil
				}
				return map[string]any{
					"drug_name":    name,
					"alternatives": []string{},
					"message":      "No alternatives on file; a pharmacist review is recommended.",
				}, nil
			}),
		tool.NewFunctionTool("check_allergies",
			"Cross-check a drug against the member's allergy profile",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"member_id": map[string]any{"type": "string"},
					"drug_name": map[string]any{"type": "string"},
				},
				"required": []string{"member_id", "drug_name"},
			},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				name := strings.ToLower(str(args, "drug_name"))
				if strings.Contains(name, "penicillin") || strings.Contains(name, "amoxicillin") {
					return map[string]any{
						"safe":    false,
						"message": "Member has a recorded penicillin allergy. Do not dispense without prescriber review.",
					}, nil
				}
				return map[string]any{
					"safe":    true,
					"message": "No recorded allergy conflicts with this drug.",
				}, nil
			}),
		tool.NewFunctionTool("get_dosing_guidance",
			"Get general dosing guidance for a drug",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"drug_name":  map[string]any{"type": "string"},
					"indication": map[string]any{"type": "string"},
				},
				"required": []string{"drug_name"},
			},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				guidance := map[string]string{
					"lisinopril": "Hypertension: 10 mg once daily to start, usual range 20-40 mg daily.",
					"metformin":  "Type 2 diabetes: 500 mg twice daily with meals, titrate weekly; max 2550 mg/day.",
				}
				name := strings.ToLower(str(args, "drug_name"))
				if g, ok := guidance[name]; ok {
					return map[string]any{"drug_name": name, "guidance": g}, nil
				}
				return map[string]any{
					"drug_name": name,
					"guidance":  "Dosing varies by indication and kidney function; defer to the prescriber's directions.",
				}, nil
			}),
		tool.NewFunctionTool("safety_alert_check",
			"Check for active FDA safety alerts or recalls for a drug",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"drug_name": map[string]any{"type": "string"},
				},
				"required": []string{"drug_name"},
			},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				return map[string]any{
					"drug_name": str(args, "drug_name"),
					"alerts":    []string{},
					"message":   "No active recalls or safety alerts on file.",
				}, nil
			}),
	}
}

func containsAll(haystack, needles []string) bool {
	for _, n := range needles {
		found := false
		for _, h := range haystack {
			if strings.Contains(h, n) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
