package promptchannel

import "context"

// TUI is the interactive terminal collaborator: key handling, redraw, the
// text-entry editor, the scroll buffer, and the main-menu pause overlay.
// All of that is out of scope here; this type is a compile-only stub
// whose methods block until ctx is done and then return ErrCancelled.
type TUI struct{}

func NewTUI() *TUI { return &TUI{} }

func (t *TUI) UserInput(ctx context.Context, prompt string) (string, error) {
	<-ctx.Done()
	return "", ErrCancelled
}

func (t *TUI) UserChoice(ctx context.Context, description string, options []string) (string, error) {
	<-ctx.Done()
	return "", ErrCancelled
}
