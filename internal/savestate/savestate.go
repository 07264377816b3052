// Package savestate defines the boundary between the interpreter and
// whatever process owns persisting a program's progress across runs.
// Binary save-file compatibility and the textual splicing needed to keep
// a save human-diffable are explicitly out of scope (see spec.md
// Non-goals) — taskline only needs somewhere to hand a value.State to.
package savestate

import (
	"time"

	"github.com/tallowoak/taskline/internal/program"
	"github.com/tallowoak/taskline/internal/value"
)

// SaveSlot is one named save point for a program.
type SaveSlot struct {
	State   value.State `yaml:"state"`
	Label   string      `yaml:"label"`
	SavedAt time.Time   `yaml:"saved_at"`
}

// Collaborator persists (and, implicitly, owns how it later restores) a
// program's state under a named slot. taskline's CLI calls Save at its
// menu-pause boundary (see spec.md §4.6, "Menu pause"); it never reads a
// slot back itself.
type Collaborator interface {
	Save(prog *program.Program, slot string, state value.State, label string) error
}

// Noop is the default Collaborator: save requests are accepted and
// silently discarded. The CLI falls back to it whenever no collaborator
// is configured, so `taskline run` works standalone without one.
type Noop struct{}

func (Noop) Save(prog *program.Program, slot string, state value.State, label string) error {
	return nil
}
