package analyzer

// Approximate string matching over runes. Scores are distances in [0, 1]
// where 0 is a perfect match.

const (
	// locationPenaltyScale charges a substring hit for every rune it starts
	// away from the beginning of the text.
	locationPenaltyScale = 100.0
	minSubstringPattern  = 3
)

// matchDistance compares pattern against text. It takes the better of the
// whole-string edit distance and the best approximate occurrence of pattern
// inside text.
func matchDistance(pattern, text string) float64 {
	p := []rune(pattern)
	t := []rune(text)
	if len(p) == 0 || len(t) == 0 {
		return 1
	}

	best := float64(levenshtein(p, t)) / float64(max(len(p), len(t)))
	if len(p) >= minSubstringPattern && len(p) <= len(t) {
		errs, start := bestOccurrence(p, t)
		sub := float64(errs)/float64(len(p)) + float64(start)/locationPenaltyScale
		if sub < best {
			best = sub
		}
	}
	return min(best, 1)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// bestOccurrence finds the substring of t with the fewest edits from p
// (Sellers' algorithm). Ties prefer the earliest start.
func bestOccurrence(p, t []rune) (errs, start int) {
	type cell struct{ cost, start int }

	prev := make([]cell, len(t)+1)
	cur := make([]cell, len(t)+1)
	for j := range prev {
		prev[j] = cell{cost: 0, start: j}
	}

	for i := 1; i <= len(p); i++ {
		cur[0] = cell{cost: i, start: 0}
		for j := 1; j <= len(t); j++ {
			sub := prev[j-1]
			if p[i-1] != t[j-1] {
				sub.cost++
			}
			del := prev[j]
			del.cost++
			ins := cur[j-1]
			ins.cost++

			c := sub
			if del.cost < c.cost || (del.cost == c.cost && del.start < c.start) {
				c = del
			}
			if ins.cost < c.cost || (ins.cost == c.cost && ins.start < c.start) {
				c = ins
			}
			cur[j] = c
		}
		prev, cur = cur, prev
	}

	errs, start = len(p), 0
	for j := 1; j <= len(t); j++ {
		c := prev[j]
		if c.cost < errs || (c.cost == errs && c.start < start) {
			errs, start = c.cost, c.start
		}
	}
	return errs, start
}
