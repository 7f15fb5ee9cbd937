package retrieval

import "sort"

// DefaultRRFK is the conventional reciprocal rank fusion damping constant.
const DefaultRRFK = 60

// FuseRRF merges two ranked id lists with reciprocal rank fusion. Each id at
// 0-based rank r adds 1/(k+r+1) per list. Equal totals keep the order in which
// ids were first seen walking listA and then listB.
func FuseRRF(listA, listB []string, k int) []string {
	if k <= 0 {
		k = DefaultRRFK
	}

	scores := make(map[string]float64, len(listA)+len(listB))
	order := make([]string, 0, len(listA)+len(listB))
	addList := func(ids []string) {
		for rank, id := range ids {
			if _, seen := scores[id]; !seen {
				order = append(order, id)
			}
			scores[id] += 1.0 / float64(k+rank+1)
		}
	}

	addList(listA)
	addList(listB)

	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	return order
}
