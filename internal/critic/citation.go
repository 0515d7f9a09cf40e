// Package critic handles post-synthesis groundedness/coverage grading
// and pre-synthesis CRAG retrieval grading, built on the same
// CompleteStructured pattern as internal/planner and
// internal/retrieval, plus a pure citation-closure checker unit
// testable without an LLM.
package critic

import (
	"regexp"
	"strconv"
)

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// CitedIDs returns the set of numeric reference indices cited in text
// via `[n]` markers.
func CitedIDs(text string) map[int]struct{} {
	out := map[int]struct{}{}
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			out[n] = struct{}{}
		}
	}
	return out
}

// CitationClosure reports whether every citation marker in text
// references an index within [1, refCount]: a synthesized answer must
// never cite a reference that doesn't exist.
func CitationClosure(text string, refCount int) (bool, []int) {
	var dangling []int
	for id := range CitedIDs(text) {
		if id < 1 || id > refCount {
			dangling = append(dangling, id)
		}
	}
	return len(dangling) == 0, dangling
}
