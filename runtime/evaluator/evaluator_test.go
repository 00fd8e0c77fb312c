package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	vars := map[string]interface{}{
		"score":    0.87,
		"attempts": 3,
		"label":    "approved",
		"done":     true,
		"result": map[string]interface{}{
			"status": "success",
			"items":  []interface{}{"a", "b"},
		},
		"request":  map[string]interface{}{"city": "SF"},
		"expected": map[string]interface{}{"city": "SF"},
		"other":    map[string]interface{}{"city": "LA"},
	}

	testCases := []struct {
		description string
		expr        string
		expected    interface{}
		expectErr   bool
	}{
		{
			description: "numeric comparison",
			expr:        "score > 0.5",
			expected:    true,
		},
		{
			description: "numeric equality across int and float",
			expr:        "attempts == 3.0",
			expected:    true,
		},
		{
			description: "string equality with single quotes",
			expr:        "label == 'approved'",
			expected:    true,
		},
		{
			description: "selector chain",
			expr:        "result.status == 'success'",
			expected:    true,
		},
		{
			description: "index expression",
			expr:        "result.items[1] == 'b'",
			expected:    true,
		},
		{
			description: "logical and with short circuit",
			expr:        "done && score >= 0.87",
			expected:    true,
		},
		{
			description: "logical or",
			expr:        "score > 2 || attempts < 5",
			expected:    true,
		},
		{
			description: "negation",
			expr:        "!done",
			expected:    false,
		},
		{
			description: "arithmetic",
			expr:        "attempts * 2 + 1",
			expected:    float64(7),
		},
		{
			description: "string concatenation",
			expr:        "label + '!'",
			expected:    "approved!",
		},
		{
			description: "unknown variable resolves to nil",
			expr:        "missing == nil",
			expected:    true,
		},
		{
			description: "equal map values compare deeply without panic",
			expr:        "request == expected",
			expected:    true,
		},
		{
			description: "different map values are not equal",
			expr:        "request != other",
			expected:    true,
		},
		{
			description: "slice values compare deeply without panic",
			expr:        "result.items == result.items",
			expected:    true,
		},
		{
			description: "map compared against nil",
			expr:        "request == nil",
			expected:    false,
		},
		{
			description: "parenthesised precedence",
			expr:        "(attempts + 1) * 2",
			expected:    float64(8),
		},
		{
			description: "division by zero",
			expr:        "attempts / 0",
			expectErr:   true,
		},
		{
			description: "malformed expression",
			expr:        "score >",
			expectErr:   true,
		},
		{
			description: "unsupported construct",
			expr:        "len(label)",
			expectErr:   true,
		},
	}

	for _, testCase := range testCases {
		actual, err := Evaluate(testCase.expr, vars)
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		if !assert.NoError(t, err, testCase.description) {
			continue
		}
		assert.EqualValues(t, testCase.expected, actual, testCase.description)
	}
}

func TestEvaluateBool(t *testing.T) {
	testCases := []struct {
		description string
		expr        string
		vars        map[string]interface{}
		expected    bool
	}{
		{
			description: "truthy non empty string",
			expr:        "label",
			vars:        map[string]interface{}{"label": "x"},
			expected:    true,
		},
		{
			description: "falsy empty string",
			expr:        "label",
			vars:        map[string]interface{}{"label": ""},
			expected:    false,
		},
		{
			description: "falsy zero",
			expr:        "count",
			vars:        map[string]interface{}{"count": 0},
			expected:    false,
		},
		{
			description: "missing variable is falsy",
			expr:        "absent",
			vars:        map[string]interface{}{},
			expected:    false,
		},
	}
	for _, testCase := range testCases {
		actual, err := EvaluateBool(testCase.expr, testCase.vars)
		assert.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expected, actual, testCase.description)
	}
}
