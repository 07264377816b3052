// Package taskrun is the task interpreter: it dispatches each of the ~28
// commands and drives control flow, iteration, concurrency, and
// cancellation over a parsed program.Program.
//
// Grounded on internal/timeline.Engine/dispatch/loop from the teacher (poll
// loop -> dispatch table -> per-command handler -> log event) and
// internal/tools.MultiRunner's named-handler registry, reused here as the
// cmd dispatch table.
package taskrun

import (
	"context"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tallowoak/taskline/internal/chatclient"
	"github.com/tallowoak/taskline/internal/insertstore"
	"github.com/tallowoak/taskline/internal/program"
	"github.com/tallowoak/taskline/internal/promptchannel"
	"github.com/tallowoak/taskline/internal/value"
)

// frame owns a task list, its precomputed label map, and a cursor — one
// per serial/for/parallel_*/run_task nesting level, per §4.6.
type frame struct {
	tasks    []*program.TaskNode
	labels   map[string]int
	cursor   int
	parallel bool
}

func newFrame(tasks []*program.TaskNode, parallel bool) *frame {
	f := &frame{tasks: tasks, parallel: parallel, labels: make(map[string]int)}
	for i, t := range tasks {
		if t.Cmd == "label" {
			if v, ok := t.Field("name"); ok && v.Kind == value.KindString {
				f.labels[v.Str] = i
			}
		}
	}
	return f
}

// jumpSignal is returned (as an error) by exec to transfer control to a
// specific frame's cursor. runFrame either applies it (when it targets
// itself) or propagates it to an enclosing frame.
type jumpSignal struct {
	target *frame
	cursor int
}

func (j *jumpSignal) Error() string { return "internal control transfer (goto)" }

// Interpreter executes a single program against a single inserts store.
type Interpreter struct {
	Prog   *program.Program
	Store  *insertstore.Store
	Prompt promptchannel.Channel
	Chat   chatclient.Client
	Rand   *rand.Rand

	// RunID identifies this particular execution of Prog, minted once at
	// New and stable for the Interpreter's whole lifetime — used to tag
	// log lines (per-task dispatch, run start, save on interrupt) so two
	// runs of the same program aren't confused with each other. It is not
	// stored in the value.State that Snapshot returns.
	RunID string

	outMu sync.Mutex
	out   strings.Builder

	cursorMu  sync.Mutex
	topCursor int
}

// New builds an Interpreter. rnd may be nil, in which case a fresh
// top-level *rand.Rand is used.
func New(prog *program.Program, store *insertstore.Store, prompt promptchannel.Channel, chat chatclient.Client, rnd *rand.Rand) *Interpreter {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(1))
	}
	return &Interpreter{Prog: prog, Store: store, Prompt: prompt, Chat: chat, Rand: rnd, RunID: uuid.NewString()}
}

// Run drives the top-level frame to completion and returns the
// accumulated output buffer (also on error); printing it to stdout is
// left to the caller, as the CLI commands do.
func (ip *Interpreter) Run(ctx context.Context) (string, error) {
	top := newFrame(ip.Prog.Order, false)
	stack := []*frame{top}
	if err := ip.runFrame(ctx, stack); err != nil {
		if js, ok := err.(*jumpSignal); ok {
			return ip.output(), nameErrFromJump(js)
		}
		return ip.output(), err
	}
	return ip.output(), nil
}

func nameErrFromJump(js *jumpSignal) error {
	return nameErr(0, "goto target label has no matching task list on the frame stack")
}

// CurrentOutput returns the output buffer accumulated so far, for a
// prompt channel that wants to show the responder what's on screen
// (e.g. promptchannel.AgentMode's "output" field) while a prompt is
// still pending.
func (ip *Interpreter) CurrentOutput() string { return ip.output() }

func (ip *Interpreter) output() string {
	ip.outMu.Lock()
	defer ip.outMu.Unlock()
	return ip.out.String()
}

func (ip *Interpreter) appendOutput(s string) {
	ip.outMu.Lock()
	defer ip.outMu.Unlock()
	ip.out.WriteString(s)
}

func (ip *Interpreter) clearOutput() {
	ip.outMu.Lock()
	defer ip.outMu.Unlock()
	ip.out.Reset()
}

// runFrame advances fr.cursor through fr.tasks until it runs off the end
// or a real (non-jump) error occurs. stack holds every enclosing frame,
// innermost last, with stack[len(stack)-1] == fr.
func (ip *Interpreter) runFrame(ctx context.Context, stack []*frame) error {
	fr := stack[len(stack)-1]
	isTop := len(stack) == 1
	for fr.cursor < len(fr.tasks) {
		if err := ctx.Err(); err != nil {
			return &CancelledError{}
		}
		if isTop {
			ip.setOrderIndex(fr.cursor)
		}
		task := fr.tasks[fr.cursor]
		fr.cursor++
		err := ip.exec(ctx, task, stack)
		if err == nil {
			continue
		}
		if js, ok := err.(*jumpSignal); ok {
			if js.target == fr {
				fr.cursor = js.cursor
				continue
			}
			return js
		}
		return err
	}
	if isTop {
		ip.setOrderIndex(fr.cursor)
	}
	return nil
}

func (ip *Interpreter) setOrderIndex(idx int) {
	ip.cursorMu.Lock()
	ip.topCursor = idx
	ip.cursorMu.Unlock()
}

// OrderIndex returns the top-level frame's current cursor — the
// value.State.OrderIndex a save-slot snapshot taken right now would carry
// (§3: 0 means "before first task", N means "N top-level tasks done").
// Safe to call from another goroutine while Run is in flight, e.g. a
// signal handler capturing state at the menu-pause boundary.
func (ip *Interpreter) OrderIndex() int {
	ip.cursorMu.Lock()
	defer ip.cursorMu.Unlock()
	return ip.topCursor
}

// Snapshot captures the current value.State — order index plus a copy of
// the inserts store's local entries (insertstore.Store.Snapshot; the
// values themselves are not deep-copied) — for a savestate.Collaborator
// to persist.
func (ip *Interpreter) Snapshot() value.State {
	return value.State{OrderIndex: ip.OrderIndex(), Inserts: ip.Store.Snapshot()}
}

// ancestorIsParallel reports whether any frame in stack (including the
// current one) is a parallel_* branch, per §4.6's "disallowed in parallel"
// rule for goto/goto_map.
func ancestorIsParallel(stack []*frame) bool {
	for _, f := range stack {
		if f.parallel {
			return true
		}
	}
	return false
}

// resolveGoto finds name in the nearest enclosing non-parallel frame,
// walking from innermost to outermost.
func resolveGoto(stack []*frame, name string) (*frame, int, bool) {
	for i := len(stack) - 1; i >= 0; i-- {
		f := stack[i]
		if idx, ok := f.labels[name]; ok {
			return f, idx + 1, true
		}
	}
	return nil, 0, false
}

// mergeTask shallow-merges extra fields (everything but cmd/task_name) from
// a run_task invocation into the invoked named task, per §4.6.
func mergeTask(target *program.TaskNode, extra *program.TaskNode) *program.TaskNode {
	merged := value.NewOrderedMap()
	if target.Fields != nil {
		for _, k := range target.Fields.Keys() {
			v, _ := target.Fields.Get(k)
			merged.Set(k, v)
		}
	}
	if extra.Fields != nil {
		for _, k := range extra.Fields.Keys() {
			if k == "cmd" || k == "task_name" {
				continue
			}
			v, _ := extra.Fields.Get(k)
			merged.Set(k, v)
		}
	}
	return &program.TaskNode{
		Cmd:    target.Cmd,
		Fields: merged,
		Tasks:  target.Tasks,
		Line:   extra.Line,
	}
}
