package plagiarism

import (
	"sort"

	"github.com/hook-system/hook/internal/models"
)

// SummarizePairs aggregates matches per owner pair. tokenTotals holds the
// number of standardized tokens each owner submitted across languages.
//
// Similarity = 2 * matched_tokens / (lenA + lenB), clamped to [0, 1].
// Summaries are ordered by similarity, highest first.
func SummarizePairs(matches []models.Match, tokenTotals map[string]int) []models.PairSummary {
	byPair := make(map[string]*models.PairSummary)
	var order []string

	for _, m := range matches {
		a, b := m.Left.Owner, m.Right.Owner
		if b < a {
			a, b = b, a
		}
		key := getPairKey(a, b)

		sum, ok := byPair[key]
		if !ok {
			sum = &models.PairSummary{OwnerA: a, OwnerB: b}
			byPair[key] = sum
			order = append(order, key)
		}
		sum.Matches++
		sum.MatchedTokens += m.Left.EndToken - m.Left.StartToken + 1
	}

	out := make([]models.PairSummary, 0, len(order))
	for _, key := range order {
		sum := byPair[key]
		sum.Similarity = tokenScore(sum.MatchedTokens, tokenTotals[sum.OwnerA], tokenTotals[sum.OwnerB])
		sum.Risk = GetRiskLevel(sum.Similarity)
		out = append(out, *sum)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	return out
}

func tokenScore(matched, lenA, lenB int) float64 {
	total := lenA + lenB
	if total == 0 {
		return 0.0
	}
	score := 2.0 * float64(matched) / float64(total)
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// GetRiskLevel returns risk level based on pair similarity
func GetRiskLevel(score float64) string {
	if score < 0.3 {
		return "clean"
	} else if score < 0.6 {
		return "suspicious"
	} else if score < 0.85 {
		return "highly suspicious"
	}
	return "near copy"
}

// getPairKey creates a sorted key for an owner pair
func getPairKey(id1, id2 string) string {
	if id1 < id2 {
		return id1 + ":" + id2
	}
	return id2 + ":" + id1
}
