// Package interp implements the {key} templating engine that resolves
// every string field of every task against the inserts store.
//
// Grounded on internal/skill.Interpolate and internal/skill.splitFrontmatter
// from the teacher: both are small manual left-to-right scanners rather
// than a templating library. skill.Interpolate's single non-nesting regexp
// (`\{\{([^}]+)\}\}`) can't express §4.4's nested-key resolution
// (`{question-{i}}`), so this is a hand-written balanced-brace scanner in
// the same spirit as skill.splitFrontmatter's manual fence search.
package interp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tallowoak/taskline/internal/value"
)

// Store is the minimal lookup surface Interpolate needs from the inserts
// store (see internal/insertstore.Store).
type Store interface {
	Get(key string) (value.Value, bool)
}

// MissingKeyError reports an unresolved {key} reference. Callers decide
// whether this is fatal (print, set, ...) or a branch condition
// (goto_map, replace_map treat it as the NULL sentinel).
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("no insert named %q", e.Key)
}

var errUnterminatedBrace = errors.New("unterminated { in template")

// Interpolate resolves every unescaped {key} in s against store. Escaped
// delimiters (\{, \}) survive unchanged — interpolation never unescapes
// them; only the dedicated unescape command/primitive does that.
func Interpolate(s string, store Store) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '{' || s[i+1] == '}') {
			out.WriteByte('\\')
			out.WriteByte(s[i+1])
			i += 2
			continue
		}
		if s[i] == '{' {
			inner, next, err := extractBalanced(s, i)
			if err != nil {
				return "", err
			}
			resolvedKey, err := Interpolate(inner, store)
			if err != nil {
				return "", err
			}
			val, ok := store.Get(resolvedKey)
			if !ok {
				return "", &MissingKeyError{Key: resolvedKey}
			}
			out.WriteString(value.ToDisplay(val))
			i = next
			continue
		}
		out.WriteByte(s[i])
		i++
	}
	return out.String(), nil
}

// extractBalanced returns the text between s[start] (an unescaped '{') and
// its matching unescaped '}', respecting nested unescaped braces, plus the
// index immediately after the closing brace.
func extractBalanced(s string, start int) (inner string, next int, err error) {
	depth := 0
	i := start
	for i < len(s) {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '{' || s[i+1] == '}') {
			i += 2
			continue
		}
		switch s[i] {
		case '{':
			depth++
			i++
		case '}':
			depth--
			i++
			if depth == 0 {
				return s[start+1 : i-1], i, nil
			}
		default:
			i++
		}
	}
	return "", 0, errUnterminatedBrace
}

// Escape replaces every { with \{ and every } with \}. Used on raw user
// input before storage and on CLI arguments.
func Escape(s string) string {
	s = strings.ReplaceAll(s, "{", "\\{")
	s = strings.ReplaceAll(s, "}", "\\}")
	return s
}

// Unescape interpolates s fully, then replaces \{ -> { and \} -> } once
// at the top level.
func Unescape(s string, store Store) (string, error) {
	result, err := Interpolate(s, store)
	if err != nil {
		return "", err
	}
	result = strings.ReplaceAll(result, "\\{", "{")
	result = strings.ReplaceAll(result, "\\}", "}")
	return result, nil
}

// IsMissingKey reports whether err is (or wraps) a MissingKeyError.
func IsMissingKey(err error) bool {
	var mk *MissingKeyError
	return errors.As(err, &mk)
}
