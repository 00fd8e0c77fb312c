package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	cause := errors.New("connection reset")

	testCases := []struct {
		description string
		err         error
		expected    string
	}{
		{
			description: "missing input names node and key",
			err:         &MissingInputError{Node: "summarize", Key: "document"},
			expected:    `node summarize requires memory key "document" which is not present`,
		},
		{
			description: "undeclared output names node and key",
			err:         &UndeclaredOutputError{Node: "summarize", Key: "extra"},
			expected:    `node summarize attempted to write undeclared output key "extra"`,
		},
		{
			description: "dead end names the node",
			err:         &DeadEndError{Node: "route"},
			expected:    "no matching edge from node route",
		},
		{
			description: "resume mismatch names both entry points",
			err:         &ResumeError{Session: "s1", Requested: "a_resume", Pending: "b_resume"},
			expected:    `session s1 expects resume entry "b_resume", got "a_resume"`,
		},
		{
			description: "capability timeout includes duration",
			err:         &CapabilityTimeout{Capability: "search", Timeout: 2 * time.Second},
			expected:    "capability search timed out after 2s",
		},
	}
	for _, testCase := range testCases {
		assert.EqualError(t, testCase.err, testCase.expected, testCase.description)
	}

	capErr := &CapabilityError{Capability: "generator", Err: cause}
	assert.ErrorIs(t, capErr, cause)
}
