// Package insight computes the derived competitive-intelligence views:
// competitor name canonicalization, the ranked leaderboard, and the
// per-analysis display aggregation. Everything here is pure — no I/O, no
// clocks, fully deterministic on its inputs.
package insight

import (
	"strings"

	"golang.org/x/text/cases"
)

// foldCaser performs Unicode case folding so canonical keys compare equal
// across scripts, not just ASCII.
var foldCaser = cases.Fold()

var leadingArticles = map[string]bool{
	"the": true,
	"a":   true,
	"an":  true,
}

var legalSuffixes = map[string]bool{
	"llc":         true,
	"inc":         true,
	"corp":        true,
	"ltd":         true,
	"co":          true,
	"limited":     true,
	"company":     true,
	"corporation": true,
}

// CanonicalName reduces a competitor display name to a merge key: case-folded,
// one leading article stripped, one trailing legal-entity suffix stripped
// (with or without a trailing period), internal whitespace collapsed. Two
// names refer to the same competitor iff their canonical names are equal.
//
// An empty input produces an empty key, which still merges with other
// empties — callers should not let empty display names reach this point.
func CanonicalName(name string) string {
	words := strings.Fields(foldCaser.String(name))

	if len(words) > 0 && leadingArticles[words[0]] {
		words = words[1:]
	}
	if len(words) > 0 {
		last := strings.TrimSuffix(words[len(words)-1], ".")
		if legalSuffixes[last] {
			words = words[:len(words)-1]
		}
	}

	return strings.Join(words, " ")
}
