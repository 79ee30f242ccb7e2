package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		answer    string
		iteration int
		want      bool
	}{
		{"I cannot find that in our records", 1, true},
		{"I cannot find that in our records", 2, false},
		{"I Don't Have Information about that plan.", 1, true},
		{"That detail is NOT MENTIONED IN THE CONTEXT.", 1, true},
		{"I'm unable to find a matching plan.", 1, true},
		{"Your plan costs $45 per month.", 1, false},
		{"Your plan costs $45 per month.", 0, false},
		{"", 1, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldRetry(tt.answer, tt.iteration), "%q at %d", tt.answer, tt.iteration)
	}
}

func TestCustomLowConfidencePhrasesAreLowerCased(t *testing.T) {
	phrases := lowerAll([]string{"  Please Contact Support ", ""})
	assert.Equal(t, []string{"please contact support"}, phrases)
	assert.True(t, shouldRetry("please contact SUPPORT for this", 1, phrases))
}

func TestStepIsTerminal(t *testing.T) {
	for _, s := range []Step{StepClassifyIntent, StepRetrieve, StepRerank, StepGenerate} {
		assert.False(t, s.IsTerminal(), s.String())
	}
	assert.True(t, StepDone.IsTerminal())
	assert.Equal(t, "rerank", StepRerank.String())
}
