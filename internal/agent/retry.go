package agent

import "strings"

// MaxRetrievalPasses bounds the loop: the first pass plus one retry.
const MaxRetrievalPasses = 2

// DefaultLowConfidencePhrases mark an answer the model could not ground.
var DefaultLowConfidencePhrases = []string{
	"i don't have information",
	"not mentioned in the context",
	"cannot find",
	"no information available",
	"i'm unable to find",
	"not covered in",
}

// ShouldRetry reports whether another retrieval pass should run: the answer
// contains a low-confidence phrase (case-insensitive) and fewer than
// MaxRetrievalPasses passes have run.
func ShouldRetry(answer string, iterationCount int) bool {
	return shouldRetry(answer, iterationCount, DefaultLowConfidencePhrases)
}

func shouldRetry(answer string, iterationCount int, phrases []string) bool {
	if iterationCount >= MaxRetrievalPasses {
		return false
	}
	return hasLowConfidence(answer, phrases)
}

func hasLowConfidence(answer string, phrases []string) bool {
	a := strings.ToLower(answer)
	for _, p := range phrases {
		if strings.Contains(a, p) {
			return true
		}
	}
	return false
}

func lowerAll(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
