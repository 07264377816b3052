// Package program is the frontend: it parses a JSON5 program document into
// a validated task tree and hands it to internal/taskrun.
package program

import "github.com/tallowoak/taskline/internal/value"

// TaskNode is a single `cmd`-keyed task, annotated with its source line.
// Fields holds every field on the task (including "cmd") as a Value tree;
// Tasks holds the parsed children of any nested task list the command
// carries (serial.tasks, for.tasks, parallel_wait/race.tasks, and the
// merged body of a run_task target), so the interpreter never has to
// re-walk Fields to find them.
type TaskNode struct {
	Cmd    string
	Fields *value.OrderedMap
	Tasks  []*TaskNode
	Line   int
}

// Field fetches a field by name.
func (t *TaskNode) Field(name string) (value.Value, bool) {
	if t.Fields == nil {
		return value.Value{}, false
	}
	return t.Fields.Get(name)
}

// Program is the parsed, validated document handed to the interpreter.
type Program struct {
	Order         []*TaskNode
	NamedTasks    map[string]*TaskNode
	DefaultState  DefaultState
	CompletionArgs *value.OrderedMap

	// SourceText is the raw JSON5 source. taskline keeps it around so an
	// external save-slot collaborator can splice serialized state back in
	// without losing comments/formatting (§6.3/§9); taskline itself never
	// rewrites it.
	SourceText string

	// SaveStates holds whatever was present under program.save_states at
	// load time, untouched. See internal/savestate.
	SaveStates *value.OrderedMap
}

// DefaultState is the initial inserts mapping a program starts from.
type DefaultState struct {
	Inserts *value.OrderedMap
}
