// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "github.com/bureau-foundation/dotcli/lib/argspec"

// suggestionThreshold is the largest edit distance still offered as a
// suggestion. Three catches the common typos: transpositions and
// dropped or extra characters.
const suggestionThreshold = 3

// suggestCommand returns the name of the closest visible subcommand to
// unknown, or "" if nothing is close enough. Aliases count as names.
func suggestCommand(unknown string, commands []*Command) string {
	bestName := ""
	bestDistance := suggestionThreshold + 1

	for _, command := range commands {
		if command.Hidden() {
			continue
		}
		for _, name := range append([]string{command.Name}, command.Aliases...) {
			distance := levenshtein(unknown, name)
			if distance < bestDistance {
				bestDistance = distance
				bestName = name
			}
		}
	}

	return bestName
}

// suggestOption returns the closest visible option to the unknown bare
// name, formatted with its prefix, or "". A mistyped long name is
// compared against long names only; a short one against short forms
// and long names, since "-verbosity" usually means "--verbosity".
func suggestOption(unknown string, long bool, options []*argspec.Option) string {
	bestName := ""
	bestDistance := suggestionThreshold + 1

	for _, option := range options {
		if option.Hidden {
			continue
		}
		for _, name := range option.Names() {
			distance := levenshtein(unknown, name)
			if distance < bestDistance {
				bestDistance = distance
				bestName = "--" + name
			}
		}
		if !long && option.Short != "" && len(unknown) == 1 {
			// Any other single character is one substitution away;
			// only an exact case-insensitive match is worth offering.
			if equalFoldASCII(unknown, option.Short) {
				return "-" + option.Short
			}
		}
	}

	return bestName
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range len(a) {
		x, y := a[i], b[i]
		if 'A' <= x && x <= 'Z' {
			x += 'a' - 'A'
		}
		if 'A' <= y && y <= 'Z' {
			y += 'a' - 'A'
		}
		if x != y {
			return false
		}
	}
	return true
}

// levenshtein computes the edit distance between two strings: the
// minimum number of single-character insertions, deletions, or
// substitutions that turn one into the other.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// One row of the distance matrix, updated in place.
	if len(a) > len(b) {
		a, b = b, a
	}

	previous := make([]int, len(a)+1)
	for i := range previous {
		previous[i] = i
	}

	for j := 1; j <= len(b); j++ {
		current := make([]int, len(a)+1)
		current[0] = j

		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			current[i] = min(previous[i]+1, current[i-1]+1, previous[i-1]+cost)
		}

		previous = current
	}

	return previous[len(a)]
}
