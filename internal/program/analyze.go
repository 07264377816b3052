package program

import (
	"fmt"

	"github.com/tallowoak/taskline/internal/value"
)

// AnalyzeError is a static error: unknown command, missing required field,
// unresolvable literal label, or a type mismatch on a literal field.
type AnalyzeError struct {
	Line int
	Msg  string
}

func (e *AnalyzeError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// requiredFields lists the fields each command must carry, checked
// structurally (not type-checked beyond presence — type errors surface at
// runtime once interpolation has resolved the actual values).
var requiredFields = map[string][]string{
	"print":           {"text"},
	"clear":           nil,
	"sleep":           {"seconds"},
	"set":             {"item", "output_name"},
	"unescape":        {"item", "output_name"},
	"show_inserts":    nil,
	"random_choice":   {"list", "output_name"},
	"join_list":       {"list", "output_name"},
	"list_concat":     {"lists", "output_name"},
	"list_append":     {"list", "item", "output_name"},
	"list_remove":     {"list", "item", "output_name"},
	"list_index":      {"list", "index", "output_name"},
	"list_slice":      {"list", "from_index", "to_index", "output_name"},
	"user_input":      {"prompt", "output_name"},
	"user_choice":     {"list", "output_name"},
	"await_insert":    {"name"},
	"label":           {"name"},
	"goto":            {"name"},
	"goto_map":        {"text", "target_maps"},
	"replace_map":     {"item", "output_name", "wildcard_maps"},
	"for":             {"name_list_map", "tasks"},
	"serial":          {"tasks"},
	"parallel_wait":   {"tasks"},
	"parallel_race":   {"tasks"},
	"run_task":        {"task_name"},
	"delete":          {"wildcards"},
	"delete_except":   {"wildcards"},
	"math":            {"input", "output_name"},
	"chat":            {"messages", "output_name"},
}

// Analyze statically validates every task in order (recursively) and every
// task nested inside a named task: known command, required fields present,
// and that goto/goto_map literal targets (when the target is a plain
// string, not interpolated) resolve to a label somewhere in the reachable
// label set. The top-level node of each named task is not itself checked;
// only its nested task list is. It returns every error found rather than
// stopping at the first.
func Analyze(p *Program) []error {
	var errs []error
	labelSets := collectLabelSets(p)

	var walk func(tasks []*TaskNode, labels map[string]bool)
	walk = func(tasks []*TaskNode, labels map[string]bool) {
		for _, t := range tasks {
			req, known := requiredFields[t.Cmd]
			if !known {
				errs = append(errs, &AnalyzeError{Line: t.Line, Msg: fmt.Sprintf("unknown command %q", t.Cmd)})
				continue
			}
			for _, f := range req {
				if _, ok := t.Field(f); !ok {
					errs = append(errs, &AnalyzeError{Line: t.Line, Msg: fmt.Sprintf("%q is missing required field %q", t.Cmd, f)})
				}
			}
			if t.Cmd == "goto" {
				if nameVal, ok := t.Field("name"); ok && nameVal.Kind == value.KindString {
					if !labels[nameVal.Str] {
						errs = append(errs, &AnalyzeError{Line: t.Line, Msg: fmt.Sprintf("goto target %q has no matching label in scope", nameVal.Str)})
					}
				}
			}
			if t.Cmd == "goto_map" {
				if mapsVal, ok := t.Field("target_maps"); ok && mapsVal.Kind == value.KindList {
					for _, entry := range mapsVal.List {
						if entry.Kind != value.KindMap || entry.Map.Len() != 1 {
							continue
						}
						target, _ := entry.Map.Get(entry.Map.Keys()[0])
						if target.Kind == value.KindString && !labels[target.Str] {
							errs = append(errs, &AnalyzeError{Line: t.Line, Msg: fmt.Sprintf("goto_map target %q has no matching label in scope", target.Str)})
						}
					}
				}
			}
			if len(t.Tasks) > 0 {
				walk(t.Tasks, mergeLabels(labels, labelsOf(t.Tasks)))
			}
		}
	}

	walk(p.Order, labelSets[topLevelKey])
	for _, t := range p.NamedTasks {
		if len(t.Tasks) > 0 {
			walk(t.Tasks, labelsOf(t.Tasks))
		}
	}
	return errs
}

const topLevelKey = "__order__"

// collectLabelSets precomputes, for the top-level order list, the set of
// label names defined directly in it (labels are local to their own task
// list per §4.6: a label defined inside a nested serial/for/parallel list
// is not visible to the lists enclosing it; mergeLabels makes enclosing
// labels visible inside nested lists).
func collectLabelSets(p *Program) map[string]map[string]bool {
	return map[string]map[string]bool{
		topLevelKey: labelsOf(p.Order),
	}
}

// mergeLabels unions a frame's own labels into its enclosing scope's set,
// mirroring taskrun.resolveGoto's innermost-to-outermost frame walk: a goto
// inside a nested task list can target a label defined in that list or in
// any list enclosing it.
func mergeLabels(outer, inner map[string]bool) map[string]bool {
	if len(inner) == 0 {
		return outer
	}
	out := make(map[string]bool, len(outer)+len(inner))
	for k := range outer {
		out[k] = true
	}
	for k := range inner {
		out[k] = true
	}
	return out
}

func labelsOf(tasks []*TaskNode) map[string]bool {
	out := make(map[string]bool)
	for _, t := range tasks {
		if t.Cmd == "label" {
			if nameVal, ok := t.Field("name"); ok && nameVal.Kind == value.KindString {
				out[nameVal.Str] = true
			}
		}
	}
	return out
}
