package pbm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rxmesh/core"
)

func TestCalculator_Rounding(t *testing.T) {
	assert.Equal(t, 0.3, Add(0.1, 0.2))
	assert.Equal(t, 3.33, Subtract(10.0, 6.67))
	assert.Equal(t, 68.26, Multiply(204.80, 0.3333))
}

func TestCalculator_Divide(t *testing.T) {
	v, err := Divide(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.33, v)

	_, err = Divide(10, 0)
	assert.Error(t, err)
}

func TestCalculator_Percentage(t *testing.T) {
	assert.Equal(t, 81.92, Percentage(204.80, 40))
	assert.Equal(t, 20.0, Percentage(100, 20))
}

func TestCalculator_FloorAndCap(t *testing.T) {
	// A copay card floors the member cost at $25.
	assert.Equal(t, 25.0, ApplyMinimum(12.40, 25.00))
	assert.Equal(t, 30.0, ApplyMinimum(30.00, 25.00))

	// A coupon caps savings at $75.
	assert.Equal(t, 75.0, ApplyMaximum(90.00, 75.00))
	assert.Equal(t, 50.0, ApplyMaximum(50.00, 75.00))
}

func TestCalculatorTools(t *testing.T) {
	tools := CalculatorTools()
	require.Len(t, tools, 7)

	tc := core.NewToolContext(context.Background(), core.NewSession("s1"), "pricing", "c1", nil)

	byName := map[string]int{}
	for i, tl := range tools {
		byName[tl.Name()] = i
	}

	v, err := tools[byName["add"]].Call(tc, map[string]any{"a": 10.0, "b": 4.205})
	require.NoError(t, err)
	assert.Equal(t, 14.21, v)

	v, err = tools[byName["calculate_percentage"]].Call(tc, map[string]any{"amount": 204.80, "percentage": 40.0})
	require.NoError(t, err)
	assert.Equal(t, 81.92, v)

	_, err = tools[byName["divide"]].Call(tc, map[string]any{"a": 1.0, "b": 0.0})
	assert.Error(t, err)
}
