// Package textsim implements the similarity ratio used as the dedup fallback
// when extracted items carry no URL fingerprint. The ratio follows the
// matching-blocks definition (2*M/T over the summed lengths): deterministic,
// symmetric for practical inputs, and intentionally strict so that two
// genuinely different announcements never score as the same item.
package textsim

import "strings"

// Ratio returns a similarity score in [0,1] between the two strings after
// whitespace normalization. 1 means the normalized strings are identical.
func Ratio(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	ra := []rune(na)
	rb := []rune(nb)
	matched := matchingTotal(ra, 0, len(ra), rb, 0, len(rb))
	return 2 * float64(matched) / float64(len(ra)+len(rb))
}

// Normalize collapses all runs of whitespace to single spaces.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// matchingTotal sums the lengths of the matching blocks: find the longest
// common substring of the two windows, then recurse on what is left on either
// side of it.
func matchingTotal(a []rune, alo, ahi int, b []rune, blo, bhi int) int {
	ai, bj, size := longestMatch(a, alo, ahi, b, blo, bhi)
	if size == 0 {
		return 0
	}

	total := size
	total += matchingTotal(a, alo, ai, b, blo, bj)
	total += matchingTotal(a, ai+size, ahi, b, bj+size, bhi)
	return total
}

func longestMatch(a []rune, alo, ahi int, b []rune, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj = alo, blo

	// positions of each rune in b[blo:bhi]
	b2j := make(map[rune][]int)
	for j := blo; j < bhi; j++ {
		b2j[b[j]] = append(b2j[b[j]], j)
	}

	// j2len[j] = length of the longest match ending at a[i-1], b[j-1]
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newj2len := make(map[int]int)
		for _, j := range b2j[a[i]] {
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}

	return besti, bestj, bestsize
}
