package generator

import "strings"

// DefaultEscalationKeywords trigger a hand-off to a human operator.
// Bare "sue" is not listed because it matches inside "issue".
var DefaultEscalationKeywords = []string{
	"speak to agent",
	"human agent",
	"real person",
	"manager",
	"supervisor",
	"escalate",
	"complaint",
	"unacceptable",
	"legal action",
	"sue you",
	"lawsuit",
}

// EscalationDetector flags queries that ask for a human. It looks only at
// the raw query, never at model output.
type EscalationDetector struct {
	keywords []string
}

// NewEscalationDetector lower-cases keywords once up front.
func NewEscalationDetector(keywords []string) *EscalationDetector {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &EscalationDetector{keywords: lowered}
}

// Detect reports whether query contains any keyword, case-insensitively.
func (d *EscalationDetector) Detect(query string) bool {
	q := strings.ToLower(query)
	for _, k := range d.keywords {
		if strings.Contains(q, k) {
			return true
		}
	}
	return false
}
