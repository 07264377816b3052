// Package pattern implements the *-glob matcher used by delete,
// delete_except, goto_map, and replace_map: whole-string matching with
// ordered positional captures for the wildcard runs.
//
// Matching is compiled to an anchored regexp rather than hand-rolled
// backtracking: github.com/tallowoak/taskline has no glob-with-captures
// dependency in its retrieval pack to reach for, and regexp's own greedy,
// leftmost-first submatch resolution already gives the "greedy-left,
// backtracking" semantics §4.2 asks for — each (.*) group claims the
// longest run consistent with every literal and group after it matching in
// turn, the same way internal/parse's scheduleRe/memoryRe/attrRe in the
// teacher lean on regexp for structured extraction instead of a parser.
package pattern

import (
	"regexp"
	"strings"
)

// Null is the sentinel subject produced when a pre-replacement
// interpolation step failed. It is distinct from the string "NULL" and
// matches only the literal pattern "NULL".
var Null = &struct{ name string }{name: "NULL"}

// Subject is either a string or the Null sentinel.
type Subject struct {
	IsNull bool
	Text   string
}

func Str(s string) Subject { return Subject{Text: s} }

// Pattern is a compiled *-glob.
type Pattern struct {
	raw  string
	re   *regexp.Regexp
	nCap int
}

// Compile builds a Pattern from a raw glob string containing literal
// characters and the wildcard character *.
func Compile(raw string) *Pattern {
	parts := strings.Split(raw, "*")
	var b strings.Builder
	b.WriteString("^")
	for i, p := range parts {
		if i > 0 {
			b.WriteString("(.*)")
		}
		b.WriteString(regexp.QuoteMeta(p))
	}
	b.WriteString("$")
	re := regexp.MustCompile(b.String())
	return &Pattern{raw: raw, re: re, nCap: len(parts) - 1}
}

func (p *Pattern) String() string { return p.raw }

// Match reports whether subj matches the whole pattern, and if so returns
// the 1-based ordered positional captures (index 0 holds capture {1}).
func (p *Pattern) Match(subj Subject) (caps []string, ok bool) {
	if subj.IsNull {
		return nil, p.raw == "NULL"
	}
	m := p.re.FindStringSubmatch(subj.Text)
	if m == nil {
		return nil, false
	}
	return m[1:], true
}

// MatchAny reports whether subj matches any of patterns.
func MatchAny(patterns []*Pattern, subj Subject) bool {
	for _, p := range patterns {
		if _, ok := p.Match(subj); ok {
			return true
		}
	}
	return false
}

// CompileAll compiles a slice of raw glob strings.
func CompileAll(raws []string) []*Pattern {
	out := make([]*Pattern, len(raws))
	for i, r := range raws {
		out[i] = Compile(r)
	}
	return out
}
