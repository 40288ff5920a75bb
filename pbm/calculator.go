package pbm

import (
	"fmt"
	"math"

	"github.com/hupe1980/rxmesh/core"
	"github.com/hupe1980/rxmesh/tool"
)

// All calculator results are rounded to 2 decimal places, matching currency
// math expectations in pricing explanations.

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Add returns a + b rounded to cents.
func Add(a, b float64) float64 { return round2(a + b) }

// Subtract returns a - b rounded to cents.
func Subtract(a, b float64) float64 { return round2(a - b) }

// Multiply returns a * b rounded to cents.
func Multiply(a, b float64) float64 { return round2(a * b) }

// Divide returns a / b rounded to cents. Division by zero is an error.
func Divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, fmt.Errorf("cannot divide by zero")
	}
	return round2(a / b), nil
}

// Percentage returns percentage% of amount (e.g. 20% of 100 = 20).
func Percentage(amount, percentage float64) float64 {
	return round2(amount * (percentage / 100))
}

// ApplyMinimum returns the larger of the two values (floor).
func ApplyMinimum(value, minimum float64) float64 { return round2(math.Max(value, minimum)) }

// ApplyMaximum returns the smaller of the two values (cap).
func ApplyMaximum(value, maximum float64) float64 { return round2(math.Min(value, maximum)) }

type binaryArgs struct {
	A float64 `json:"a" description:"First operand"`
	B float64 `json:"b" description:"Second operand"`
}

func num(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// CalculatorTools returns the arithmetic tools pricing agents use to show
// their work. Each result is rounded to 2 decimals.
func CalculatorTools() []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionToolFromStruct("add", "Add two numbers", binaryArgs{},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				return Add(num(args, "a"), num(args, "b")), nil
			}),
		tool.NewFunctionToolFromStruct("subtract", "Subtract b from a", binaryArgs{},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				return Subtract(num(args, "a"), num(args, "b")), nil
			}),
		tool.NewFunctionToolFromStruct("multiply", "Multiply two numbers", binaryArgs{},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				return Multiply(num(args, "a"), num(args, "b")), nil
			}),
		tool.NewFunctionToolFromStruct("divide", "Divide a by b", binaryArgs{},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				return Divide(num(args, "a"), num(args, "b"))
			}),
		tool.NewFunctionTool("calculate_percentage",
			"Calculate a percentage of an amount (e.g. 20% of 100 = 20)",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"amount":     map[string]any{"type": "number", "description": "Base amount"},
					"percentage": map[string]any{"type": "number", "description": "Percentage to apply"},
				},
				"required": []string{"amount", "percentage"},
			},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				return Percentage(num(args, "amount"), num(args, "percentage")), nil
			}),
		tool.NewFunctionTool("apply_minimum",
			"Return the larger of two values (apply a floor)",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"value":   map[string]any{"type": "number"},
					"minimum": map[string]any{"type": "number"},
				},
				"required": []string{"value", "minimum"},
			},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				return ApplyMinimum(num(args, "value"), num(args, "minimum")), nil
			}),
		tool.NewFunctionTool("apply_maximum",
			"Return the smaller of two values (apply a cap)",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"value":   map[string]any{"type": "number"},
					"maximum": map[string]any{"type": "number"},
				},
				"required": []string{"value", "maximum"},
			},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				return ApplyMaximum(num(args, "value"), num(args, "maximum")), nil
			}),
	}
}
