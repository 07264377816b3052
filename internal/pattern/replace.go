package pattern

import (
	"strconv"

	"github.com/tallowoak/taskline/internal/interp"
	"github.com/tallowoak/taskline/internal/value"
)

// captureStore wraps an insert store so that digit keys {1}, {2}, ...
// resolve to the positional captures of a just-matched pattern, shadowing
// inserts of the same name during replacement only.
type captureStore struct {
	caps []string
	base interp.Store
}

func (c captureStore) Get(key string) (value.Value, bool) {
	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(c.caps) {
		return value.String(c.caps[n-1]), true
	}
	return c.base.Get(key)
}

// Replace interpolates template with the pattern's positional captures
// available as {1}, {2}, ... alongside the ordinary inserts in base, then
// replaces \{ -> { and \} -> } once (interp.Unescape).
func Replace(template string, caps []string, base interp.Store) (string, error) {
	return interp.Unescape(template, captureStore{caps: caps, base: base})
}
