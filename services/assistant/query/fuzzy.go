// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import "strings"

// NearestTerm finds the vocabulary entry closest to word within maxDist
// edits, case-insensitively.
//
// Outputs:
//   - string: The matched vocabulary entry (original casing), "" if none.
//   - bool: True if a match within maxDist was found.
//
// Ties break toward the entry that sorts first, which keeps fuzzy
// correction deterministic.
func NearestTerm(word string, vocab []string, maxDist int) (string, bool) {
	w := strings.ToLower(word)
	best := ""
	bestDist := maxDist + 1
	for _, candidate := range vocab {
		d := levenshteinDistance(w, strings.ToLower(candidate))
		if d < bestDist || (d == bestDist && best != "" && candidate < best) {
			best = candidate
			bestDist = d
		}
	}
	if bestDist > maxDist {
		return "", false
	}
	return best, true
}

// levenshteinDistance computes edit distance with the two-row method.
func levenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
