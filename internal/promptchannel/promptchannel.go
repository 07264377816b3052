// Package promptchannel abstracts the one thing the interpreter can never
// decide on its own: what a human (or a driving process standing in for
// one) answers when a program calls user_input or user_choice. taskline
// itself ships two implementations — an interactive terminal one and a
// file-based "agent mode" one for driving a program non-interactively —
// but the interpreter only ever depends on the Channel interface.
package promptchannel

import (
	"context"
	"errors"
)

// ErrCancelled is returned by UserInput/UserChoice when ctx is done before
// an answer arrives.
var ErrCancelled = errors.New("promptchannel: cancelled")

// Channel supplies answers to user_input and user_choice tasks. Both
// methods block until an answer is available or ctx is cancelled.
type Channel interface {
	// UserInput asks a free-form question and returns the raw answer text.
	UserInput(ctx context.Context, prompt string) (string, error)

	// UserChoice presents options (already rendered to display text) and
	// returns whichever string the responder selected: either one of the
	// positional tokens taskline assigns each option ("1".."9", then
	// "a".."z"/"aa".."az"...) or the option text itself.
	UserChoice(ctx context.Context, description string, options []string) (string, error)
}
