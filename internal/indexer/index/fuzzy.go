package index

// boundedLevenshtein computes the edit distance between a and b, giving up
// as soon as every cell of a row exceeds maxDist.
func boundedLevenshtein(a, b []rune, maxDist int) (int, bool) {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			rowMin = min(rowMin, curr[j])
		}
		if rowMin > maxDist {
			return 0, false
		}
		prev, curr = curr, prev
	}
	d := prev[len(b)]
	return d, d <= maxDist
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
