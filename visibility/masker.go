package visibility

import (
	"sort"
	"strings"
	"unicode"
)

// maskSpan marks a claimed range of the source content, in rune offsets.
type maskSpan struct {
	start int
	end   int
	label string
}

// MaskContent rewrites raw note text so that every literal occurrence of a
// masked person's name is replaced by that reference's render label, wrapped
// in brackets so the UI can style it distinctly. Approved names and all other
// text pass through untouched.
//
// Substitutions are whole-word, case-insensitive and applied longest-name
// first within a single pass; once a span is claimed, later rules never
// rewrite inside it. A reference whose names never occur in the prose simply
// contributes no substitutions; that is expected, not an error.
func MaskContent(content string, projected []ProjectedReference) string {
	if content == "" {
		return content
	}

	type rule struct {
		name  string
		label string
	}
	rules := make([]rule, 0)
	for _, ref := range projected {
		if ref.IdentityState == LevelApproved || len(ref.maskNames) == 0 {
			continue
		}
		for _, name := range ref.maskNames {
			rules = append(rules, rule{name: name, label: ref.RenderLabel})
		}
	}
	if len(rules) == 0 {
		return content
	}

	// Longest name first so "John Smith" is claimed before "Smith" can
	// corrupt the longer match. Stable sort keeps reference order for ties.
	sort.SliceStable(rules, func(i, j int) bool {
		return len([]rune(rules[i].name)) > len([]rune(rules[j].name))
	})

	source := []rune(content)
	lowered := lowerRunes(source)

	spans := make([]maskSpan, 0)
	for _, r := range rules {
		needle := lowerRunes([]rune(r.name))
		if len(needle) == 0 {
			continue
		}
		for start := 0; start+len(needle) <= len(source); start++ {
			if !runesEqual(lowered[start:start+len(needle)], needle) {
				continue
			}
			end := start + len(needle)
			if !isWordBoundary(source, start-1) || !isWordBoundary(source, end) {
				continue
			}
			if overlapsAny(spans, start, end) {
				continue
			}
			spans = append(spans, maskSpan{start: start, end: end, label: r.label})
			start = end - 1
		}
	}
	if len(spans) == 0 {
		return content
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var b strings.Builder
	cursor := 0
	for _, span := range spans {
		b.WriteString(string(source[cursor:span.start]))
		b.WriteString("[")
		b.WriteString(span.label)
		b.WriteString("]")
		cursor = span.end
	}
	b.WriteString(string(source[cursor:]))
	return b.String()
}

func lowerRunes(runes []rune) []rune {
	out := make([]rune, len(runes))
	for i, r := range runes {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// isWordBoundary reports whether position i (which may be -1 or len) does not
// sit inside a word. Letters and digits continue a word; everything else,
// including the ends of the content, is a boundary.
func isWordBoundary(source []rune, i int) bool {
	if i < 0 || i >= len(source) {
		return true
	}
	return !unicode.IsLetter(source[i]) && !unicode.IsDigit(source[i])
}

func overlapsAny(spans []maskSpan, start, end int) bool {
	for _, span := range spans {
		if start < span.end && span.start < end {
			return true
		}
	}
	return false
}
