package promptchannel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Stdin is a plain line-based prompt channel: it prints the prompt to w
// and reads one line from r. It is not the terminal UI described in §1
// (key handling, redraw, the text-entry editor, the scroll buffer, the
// main-menu pause overlay are all out of scope) — it exists so `taskline
// run` has a working interactive mode without building that UI.
type Stdin struct {
	r *bufio.Reader
	w io.Writer
}

func NewStdin(r io.Reader, w io.Writer) *Stdin {
	return &Stdin{r: bufio.NewReader(r), w: w}
}

func (s *Stdin) UserInput(ctx context.Context, prompt string) (string, error) {
	fmt.Fprintf(s.w, "%s\n> ", prompt)
	return s.readLine(ctx)
}

func (s *Stdin) UserChoice(ctx context.Context, description string, options []string) (string, error) {
	if description != "" {
		fmt.Fprintln(s.w, description)
	}
	keys := choiceKeysForAgentMode(len(options))
	for i, opt := range options {
		fmt.Fprintf(s.w, "  %s) %s\n", keys[i], opt)
	}
	fmt.Fprint(s.w, "> ")
	return s.readLine(ctx)
}

// readLine blocks on the underlying reader; cancellation is only observed
// before the read starts, since bufio.Reader.ReadString can't be
// interrupted mid-call.
func (s *Stdin) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", ErrCancelled
	}
	line, err := s.r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
