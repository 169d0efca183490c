package retriever

import "github.com/hivetechs-collective/hive-consensus/internal/vectorstore"

// mmrRank implements Maximal Marginal Relevance: greedily picks the
// candidate maximizing λ·sim(query, doc) - (1-λ)·max(sim(doc, selected))
// until all candidates are ordered, balancing relevance against
// diversity (spec.md §4.3 Generator bias).
func mmrRank(queryVec []float32, candidates []vectorstore.Record, lambda float64) []vectorstore.Record {
	if len(candidates) == 0 {
		return nil
	}

	remaining := make([]vectorstore.Record, len(candidates))
	copy(remaining, candidates)

	relevance := make(map[string]float64, len(remaining))
	for _, c := range remaining {
		relevance[c.ID] = vectorstore.CosineSimilarity(queryVec, c.Embedding)
	}

	selected := make([]vectorstore.Record, 0, len(remaining))

	for len(remaining) > 0 {
		bestIdx := -1
		bestScore := 0.0

		for i, cand := range remaining {
			maxSimToSelected := 0.0
			for _, s := range selected {
				if sim := vectorstore.CosineSimilarity(cand.Embedding, s.Embedding); sim > maxSimToSelected {
					maxSimToSelected = sim
				}
			}
			score := lambda*relevance[cand.ID] - (1-lambda)*maxSimToSelected
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}
