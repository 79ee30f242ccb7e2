package retriever

import (
	"math"

	"github.com/knoguchi/supportagent/internal/vectorstore"
)

// SelectMMR picks up to k candidates by Maximal Marginal Relevance:
// each step takes the candidate maximising
//
//	lambda*sim(query, c) - (1-lambda)*max(sim(c, s) for s already selected)
//
// with cosine similarity. lambda=1 is plain relevance order, lambda=0 is
// maximum diversity. Ties keep the store's order.
func SelectMMR(query []float32, candidates []vectorstore.Candidate, k int, lambda float64) []vectorstore.Candidate {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		if len(c.Vector) == 0 {
			relevance[i] = float64(c.Score)
			continue
		}
		relevance[i] = cosine(query, c.Vector)
	}

	// redundancy[i] is the highest similarity of candidate i to anything
	// selected so far. It may be negative; the first pick has none.
	redundancy := make([]float64, len(candidates))
	for i := range redundancy {
		redundancy[i] = math.Inf(-1)
	}
	used := make([]bool, len(candidates))
	selected := make([]vectorstore.Candidate, 0, k)

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i := range candidates {
			if used[i] {
				continue
			}
			red := redundancy[i]
			if len(selected) == 0 {
				red = 0
			}
			score := lambda*relevance[i] - (1-lambda)*red
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}

		used[best] = true
		selected = append(selected, candidates[best])

		for i := range candidates {
			if used[i] {
				continue
			}
			if sim := cosine(candidates[i].Vector, candidates[best].Vector); sim > redundancy[i] {
				redundancy[i] = sim
			}
		}
	}

	return selected
}

// cosine returns 0 for empty or mismatched vectors.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
