package taskrun

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tallowoak/taskline/internal/chatclient"
	"github.com/tallowoak/taskline/internal/insertstore"
	"github.com/tallowoak/taskline/internal/interp"
	"github.com/tallowoak/taskline/internal/logger"
	"github.com/tallowoak/taskline/internal/mathexpr"
	"github.com/tallowoak/taskline/internal/pattern"
	"github.com/tallowoak/taskline/internal/program"
	"github.com/tallowoak/taskline/internal/promptchannel"
	"github.com/tallowoak/taskline/internal/value"
)

// exec dispatches a single task by cmd. stack is the current frame stack,
// innermost (current) frame last; composite commands push their own frame
// onto it for the duration of their nested execution.
func (ip *Interpreter) exec(ctx context.Context, t *program.TaskNode, stack []*frame) error {
	if err := ctx.Err(); err != nil {
		return &CancelledError{}
	}
	if logger.Log != nil {
		logger.Debug("dispatch", "run_id", ip.RunID, "cmd", t.Cmd, "line", t.Line)
	}
	switch t.Cmd {
	case "print":
		return ip.execPrint(t)
	case "clear":
		ip.clearOutput()
		return nil
	case "sleep":
		return ip.execSleep(ctx, t)
	case "set":
		return ip.execSet(t)
	case "unescape":
		return ip.execUnescape(t)
	case "show_inserts":
		return ip.execShowInserts(t)
	case "random_choice":
		return ip.execRandomChoice(t)
	case "join_list":
		return ip.execJoinList(t)
	case "list_concat":
		return ip.execListConcat(t)
	case "list_append":
		return ip.execListAppend(t)
	case "list_remove":
		return ip.execListRemove(t)
	case "list_index":
		return ip.execListIndex(t)
	case "list_slice":
		return ip.execListSlice(t)
	case "user_input":
		return ip.execUserInput(ctx, t)
	case "user_choice":
		return ip.execUserChoice(ctx, t)
	case "await_insert":
		return ip.execAwaitInsert(ctx, t)
	case "label":
		return nil
	case "goto":
		return ip.execGoto(t, stack)
	case "goto_map":
		return ip.execGotoMap(t, stack)
	case "replace_map":
		return ip.execReplaceMap(t)
	case "for":
		return ip.execFor(ctx, t, stack)
	case "serial":
		return ip.execSerial(ctx, t, stack)
	case "parallel_wait":
		return ip.execParallelWait(ctx, t, stack)
	case "parallel_race":
		return ip.execParallelRace(ctx, t, stack)
	case "run_task":
		return ip.execRunTask(ctx, t, stack)
	case "delete":
		return ip.execDelete(t)
	case "delete_except":
		return ip.execDeleteExcept(t)
	case "math":
		return ip.execMath(t)
	case "chat":
		return ip.execChat(ctx, t)
	}
	return typeErr(t.Line, "unknown command %q", t.Cmd)
}

// --- string/value field helpers ---

func (ip *Interpreter) rawString(t *program.TaskNode, field string) (string, bool) {
	v, ok := t.Field(field)
	if !ok || v.Kind != value.KindString {
		return "", false
	}
	return v.Str, true
}

// interpField interpolates a required string field. A missing-key failure
// is returned as a *interp.MissingKeyError so callers that treat it as
// recoverable (goto_map, replace_map) can detect it with interp.IsMissingKey.
func (ip *Interpreter) interpField(t *program.TaskNode, field string) (string, error) {
	raw, ok := ip.rawString(t, field)
	if !ok {
		return "", typeErr(t.Line, "%q must be a string field", field)
	}
	out, err := interp.Interpolate(raw, ip.Store)
	if err != nil {
		if interp.IsMissingKey(err) {
			return "", err
		}
		return "", wrapRuntimeErr(t.Line, "InterpolationError", err)
	}
	return out, nil
}

type storeResolver struct{ s *insertstore.Store }

func (r storeResolver) Resolve(name string) (value.Value, bool) { return r.s.Get(name) }

func (ip *Interpreter) mathResolver() mathexpr.Resolver { return storeResolver{ip.Store} }

// numericField resolves a field that may be a literal number or, if a
// string, a math expression (interpolated first).
func (ip *Interpreter) numericField(t *program.TaskNode, field string) (int64, error) {
	v, ok := t.Field(field)
	if !ok {
		return 0, typeErr(t.Line, "missing field %q", field)
	}
	switch v.Kind {
	case value.KindInt:
		return v.Int, nil
	case value.KindFloat:
		if v.Float == float64(int64(v.Float)) {
			return int64(v.Float), nil
		}
		return 0, typeErr(t.Line, "%q must be an integer", field)
	case value.KindString:
		raw, err := interp.Interpolate(v.Str, ip.Store)
		if err != nil {
			return 0, wrapRuntimeErr(t.Line, "InterpolationMissingKey", err)
		}
		n, err := mathexpr.Eval(raw, ip.mathResolver())
		if err != nil {
			return 0, wrapRuntimeErr(t.Line, "MathError", err)
		}
		return n, nil
	}
	return 0, typeErr(t.Line, "%q must be a number or math expression", field)
}

// secondsField is like numericField but preserves fractional seconds for
// a literal float, since sleep's granularity is sub-second.
func (ip *Interpreter) secondsField(t *program.TaskNode, field string) (float64, error) {
	v, ok := t.Field(field)
	if !ok {
		return 0, typeErr(t.Line, "missing field %q", field)
	}
	switch v.Kind {
	case value.KindInt:
		return float64(v.Int), nil
	case value.KindFloat:
		return v.Float, nil
	case value.KindString:
		raw, err := interp.Interpolate(v.Str, ip.Store)
		if err != nil {
			return 0, wrapRuntimeErr(t.Line, "InterpolationMissingKey", err)
		}
		n, err := mathexpr.Eval(raw, ip.mathResolver())
		if err != nil {
			return 0, wrapRuntimeErr(t.Line, "MathError", err)
		}
		return float64(n), nil
	}
	return 0, typeErr(t.Line, "%q must be a number or math expression", field)
}

// listField resolves a field that names a list-valued insert (a bare
// string naming the insert directly, the same convention mathexpr's
// length/min/max use for their list argument) or is itself a literal
// array, whose string elements are individually interpolated.
func (ip *Interpreter) listField(t *program.TaskNode, field string) ([]value.Value, error) {
	v, ok := t.Field(field)
	if !ok {
		return nil, typeErr(t.Line, "missing field %q", field)
	}
	switch v.Kind {
	case value.KindString:
		found, ok := ip.Store.Get(v.Str)
		if !ok {
			return nil, nameErr(t.Line, "unknown insert %q", v.Str)
		}
		if found.Kind != value.KindList {
			return nil, typeErr(t.Line, "insert %q is not a list", v.Str)
		}
		return found.List, nil
	case value.KindList:
		out := make([]value.Value, len(v.List))
		for i, item := range v.List {
			if item.Kind == value.KindString {
				s, err := interp.Interpolate(item.Str, ip.Store)
				if err != nil {
					return nil, wrapRuntimeErr(t.Line, "InterpolationMissingKey", err)
				}
				out[i] = value.String(s)
				continue
			}
			out[i] = item
		}
		return out, nil
	}
	return nil, typeErr(t.Line, "%q must be a list or the name of a list insert", field)
}

func (ip *Interpreter) setOutput(t *program.TaskNode, field string, v value.Value) error {
	name, ok := ip.rawString(t, field)
	if !ok {
		return typeErr(t.Line, "%q must be a string field", field)
	}
	ip.Store.Set(name, v)
	return nil
}

// --- simple commands ---

func (ip *Interpreter) execPrint(t *program.TaskNode) error {
	text, err := ip.interpField(t, "text")
	if err != nil {
		return wrapRuntimeErr(t.Line, "InterpolationMissingKey", err)
	}
	ip.appendOutput(text)
	return nil
}

func (ip *Interpreter) execSleep(ctx context.Context, t *program.TaskNode) error {
	secs, err := ip.secondsField(t, "seconds")
	if err != nil {
		return err
	}
	d := time.Duration(secs * float64(time.Second))
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return &CancelledError{}
	}
}

func (ip *Interpreter) execSet(t *program.TaskNode) error {
	item, ok := t.Field("item")
	if !ok {
		return typeErr(t.Line, "set requires an \"item\" field")
	}
	result := item
	if item.Kind == value.KindString {
		s, err := interp.Interpolate(item.Str, ip.Store)
		if err != nil {
			return wrapRuntimeErr(t.Line, "InterpolationMissingKey", err)
		}
		result = value.String(s)
	}
	return ip.setOutput(t, "output_name", result)
}

// execUnescape runs the three-pass sequence §4.6 specifies for the
// unescape command: interpolate item, replace \{ -> { and \} -> } once
// (interp.Unescape's two-step primitive), then interpolate the result a
// second time. This third pass is what lets an escaped brace sequence
// that names a key — {greeting} stored as "\{greeting\}" — resolve to the
// insert's value rather than stopping at the literal "{greeting}" text;
// interp.Unescape itself stays a two-step primitive since replace_map's
// final pass (§4.4) needs exactly that, not a third interpolation.
func (ip *Interpreter) execUnescape(t *program.TaskNode) error {
	raw, ok := ip.rawString(t, "item")
	if !ok {
		return typeErr(t.Line, "\"item\" must be a string field")
	}
	unescaped, err := interp.Unescape(raw, ip.Store)
	if err != nil {
		return wrapRuntimeErr(t.Line, "InterpolationMissingKey", err)
	}
	result, err := interp.Interpolate(unescaped, ip.Store)
	if err != nil {
		return wrapRuntimeErr(t.Line, "InterpolationMissingKey", err)
	}
	return ip.setOutput(t, "output_name", value.String(result))
}

func (ip *Interpreter) execShowInserts(t *program.TaskNode) error {
	snap := ip.Store.Snapshot()
	ip.appendOutput(value.ToDisplay(value.Map(snap)))
	return nil
}

func (ip *Interpreter) execRandomChoice(t *program.TaskNode) error {
	list, err := ip.listField(t, "list")
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return typeErr(t.Line, "random_choice: list is empty")
	}
	idx := ip.Rand.Intn(len(list))
	return ip.setOutput(t, "output_name", list[idx])
}

func (ip *Interpreter) execJoinList(t *program.TaskNode) error {
	list, err := ip.listField(t, "list")
	if err != nil {
		return err
	}
	before, _ := ip.interpOptional(t, "before")
	between, _ := ip.interpOptional(t, "between")
	after, _ := ip.interpOptional(t, "after")

	parts := make([]string, len(list))
	for i, item := range list {
		parts[i] = value.ToDisplay(item)
	}
	result := before + strings.Join(parts, between) + after
	return ip.setOutput(t, "output_name", value.String(result))
}

func (ip *Interpreter) interpOptional(t *program.TaskNode, field string) (string, error) {
	raw, ok := ip.rawString(t, field)
	if !ok {
		return "", nil
	}
	out, err := interp.Interpolate(raw, ip.Store)
	if err != nil {
		return "", wrapRuntimeErr(t.Line, "InterpolationMissingKey", err)
	}
	return out, nil
}

func (ip *Interpreter) execListConcat(t *program.TaskNode) error {
	listsVal, ok := t.Field("lists")
	if !ok || listsVal.Kind != value.KindList {
		return typeErr(t.Line, "list_concat requires a \"lists\" field holding a list of lists")
	}
	var out []value.Value
	for _, entry := range listsVal.List {
		var items []value.Value
		switch entry.Kind {
		case value.KindString:
			found, ok := ip.Store.Get(entry.Str)
			if !ok || found.Kind != value.KindList {
				return typeErr(t.Line, "list_concat: %q is not a list insert", entry.Str)
			}
			items = found.List
		case value.KindList:
			items = make([]value.Value, len(entry.List))
			for i, item := range entry.List {
				if item.Kind == value.KindString {
					s, err := interp.Interpolate(item.Str, ip.Store)
					if err != nil {
						return wrapRuntimeErr(t.Line, "InterpolationMissingKey", err)
					}
					items[i] = value.String(s)
					continue
				}
				items[i] = item
			}
		default:
			return typeErr(t.Line, "list_concat: each entry in \"lists\" must be a list or list-insert name")
		}
		out = append(out, items...)
	}
	return ip.setOutput(t, "output_name", value.List(out))
}

func (ip *Interpreter) execListAppend(t *program.TaskNode) error {
	list, err := ip.listField(t, "list")
	if err != nil {
		return err
	}
	item, ok := t.Field("item")
	if !ok {
		return typeErr(t.Line, "list_append requires an \"item\" field")
	}
	if item.Kind == value.KindString {
		s, err := interp.Interpolate(item.Str, ip.Store)
		if err != nil {
			return wrapRuntimeErr(t.Line, "InterpolationMissingKey", err)
		}
		item = value.String(s)
	}
	out := append(append([]value.Value(nil), list...), item)
	return ip.setOutput(t, "output_name", value.List(out))
}

func (ip *Interpreter) execListRemove(t *program.TaskNode) error {
	list, err := ip.listField(t, "list")
	if err != nil {
		return err
	}
	item, ok := t.Field("item")
	if !ok {
		return typeErr(t.Line, "list_remove requires an \"item\" field")
	}
	if item.Kind == value.KindString {
		s, err := interp.Interpolate(item.Str, ip.Store)
		if err != nil {
			return wrapRuntimeErr(t.Line, "InterpolationMissingKey", err)
		}
		item = value.String(s)
	}
	out := make([]value.Value, 0, len(list))
	removed := false
	for _, v := range list {
		if !removed && value.Equal(v, item) {
			removed = true
			continue
		}
		out = append(out, v)
	}
	return ip.setOutput(t, "output_name", value.List(out))
}

func (ip *Interpreter) execListIndex(t *program.TaskNode) error {
	list, err := ip.listField(t, "list")
	if err != nil {
		return err
	}
	idx, err := ip.numericField(t, "index")
	if err != nil {
		return err
	}
	pos, ok := resolvePositiveIndex(idx, len(list))
	if !ok {
		return indexErr(t.Line, "list_index: index %d out of range for list of length %d", idx, len(list))
	}
	return ip.setOutput(t, "output_name", list[pos])
}

// resolvePositiveIndex converts a 1-based index (or -1 for last) into a
// 0-based slice position, reporting ok=false when out of range.
func resolvePositiveIndex(idx int64, n int) (int, bool) {
	if idx < 0 {
		pos := n + int(idx)
		if pos < 0 || pos >= n {
			return 0, false
		}
		return pos, true
	}
	if idx < 1 || int(idx) > n {
		return 0, false
	}
	return int(idx) - 1, true
}

func (ip *Interpreter) execListSlice(t *program.TaskNode) error {
	list, err := ip.listField(t, "list")
	if err != nil {
		return err
	}
	from, err := ip.numericField(t, "from_index")
	if err != nil {
		return err
	}
	to, err := ip.numericField(t, "to_index")
	if err != nil {
		return err
	}
	n := len(list)
	if to == 0 {
		return ip.setOutput(t, "output_name", value.List(nil))
	}
	fromPos := normalizeSliceIndex(from, n)
	toPos := normalizeSliceIndex(to, n)
	if toPos < fromPos {
		return ip.setOutput(t, "output_name", value.List(nil))
	}
	if fromPos < 0 {
		fromPos = 0
	}
	if toPos >= n {
		toPos = n - 1
	}
	if fromPos > n-1 || toPos < 0 {
		return ip.setOutput(t, "output_name", value.List(nil))
	}
	out := append([]value.Value(nil), list[fromPos:toPos+1]...)
	return ip.setOutput(t, "output_name", value.List(out))
}

// normalizeSliceIndex converts a 1-based (or -1-from-end) index to a
// 0-based position, without clamping — clamping happens in the caller.
func normalizeSliceIndex(idx int64, n int) int {
	if idx < 0 {
		return n + int(idx)
	}
	return int(idx) - 1
}

func (ip *Interpreter) execUserInput(ctx context.Context, t *program.TaskNode) error {
	prompt, err := ip.interpField(t, "prompt")
	if err != nil {
		return wrapRuntimeErr(t.Line, "InterpolationMissingKey", err)
	}
	text, err := ip.Prompt.UserInput(ctx, prompt)
	if err != nil {
		if err == promptchannel.ErrCancelled {
			return &CancelledError{}
		}
		return wrapRuntimeErr(t.Line, "PromptError", err)
	}
	return ip.setOutput(t, "output_name", value.String(interp.Escape(text)))
}

func (ip *Interpreter) execUserChoice(ctx context.Context, t *program.TaskNode) error {
	list, err := ip.listField(t, "list")
	if err != nil {
		return err
	}
	desc, _ := ip.interpOptional(t, "description")

	options := make([]string, len(list))
	for i, v := range list {
		options[i] = value.ToDisplay(v)
	}
	keys := choiceKeys(len(options))

	selection, err := ip.Prompt.UserChoice(ctx, desc, options)
	if err != nil {
		if err == promptchannel.ErrCancelled {
			return &CancelledError{}
		}
		return wrapRuntimeErr(t.Line, "PromptError", err)
	}
	for i, k := range keys {
		if selection == k {
			return ip.setOutput(t, "output_name", list[i])
		}
	}
	for i, o := range options {
		if selection == o {
			return ip.setOutput(t, "output_name", list[i])
		}
	}
	return typeErr(t.Line, "user_choice: selection %q matches no option", selection)
}

// choiceKeys generates the positional tokens offered for each option:
// "1".."9" for up to nine options, else "a".."z" then "aa", "ab", ... per
// §9's open question.
func choiceKeys(n int) []string {
	keys := make([]string, n)
	if n <= 9 {
		for i := 0; i < n; i++ {
			keys[i] = strconv.Itoa(i + 1)
		}
		return keys
	}
	for i := 0; i < n; i++ {
		keys[i] = letterKey(i)
	}
	return keys
}

func letterKey(i int) string {
	if i < 26 {
		return string(rune('a' + i))
	}
	i -= 26
	first := i / 26
	second := i % 26
	return string(rune('a'+first)) + string(rune('a'+second))
}

func (ip *Interpreter) execAwaitInsert(ctx context.Context, t *program.TaskNode) error {
	name, ok := ip.rawString(t, "name")
	if !ok {
		return typeErr(t.Line, "await_insert requires a \"name\" field")
	}
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, ok := ip.Store.Get(name); ok {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return &CancelledError{}
		}
	}
}

func (ip *Interpreter) execGoto(t *program.TaskNode, stack []*frame) error {
	if ancestorIsParallel(stack) {
		return typeErr(t.Line, "goto is not allowed inside parallel_wait/parallel_race")
	}
	name, ok := ip.rawString(t, "name")
	if !ok {
		return typeErr(t.Line, "goto requires a \"name\" field")
	}
	target, cursor, ok := resolveGoto(stack, name)
	if !ok {
		return nameErr(t.Line, "goto: no label %q in scope", name)
	}
	return &jumpSignal{target: target, cursor: cursor}
}

func (ip *Interpreter) execGotoMap(t *program.TaskNode, stack []*frame) error {
	if ancestorIsParallel(stack) {
		return typeErr(t.Line, "goto_map is not allowed inside parallel_wait/parallel_race")
	}
	raw, ok := ip.rawString(t, "text")
	if !ok {
		return typeErr(t.Line, "goto_map requires a \"text\" field")
	}
	subj := pattern.Str("")
	resolved, err := interp.Interpolate(raw, ip.Store)
	if err != nil {
		if !interp.IsMissingKey(err) {
			return wrapRuntimeErr(t.Line, "InterpolationError", err)
		}
		subj = pattern.Subject{IsNull: true}
	} else {
		subj = pattern.Str(resolved)
	}

	targetMapsVal, ok := t.Field("target_maps")
	if !ok || targetMapsVal.Kind != value.KindList {
		return typeErr(t.Line, "goto_map requires a \"target_maps\" list field")
	}
	for _, entry := range targetMapsVal.List {
		if entry.Kind != value.KindMap || entry.Map.Len() != 1 {
			return typeErr(t.Line, "each target_maps entry must be a single-key mapping")
		}
		key := entry.Map.Keys()[0]
		label, _ := entry.Map.Get(key)
		p := pattern.Compile(key)
		if _, ok := p.Match(subj); ok {
			if label.Kind != value.KindString {
				return typeErr(t.Line, "goto_map target must be a label name string")
			}
			target, cursor, ok := resolveGoto(stack, label.Str)
			if !ok {
				return nameErr(t.Line, "goto_map: no label %q in scope", label.Str)
			}
			return &jumpSignal{target: target, cursor: cursor}
		}
	}
	return nameErr(t.Line, "goto_map: no target_maps entry matched")
}

func (ip *Interpreter) execReplaceMap(t *program.TaskNode) error {
	raw, ok := ip.rawString(t, "item")
	if !ok {
		return typeErr(t.Line, "replace_map requires an \"item\" field")
	}
	wildcardMapsVal, ok := t.Field("wildcard_maps")
	if !ok || wildcardMapsVal.Kind != value.KindList {
		return typeErr(t.Line, "replace_map requires a \"wildcard_maps\" list field")
	}
	repeat := false
	if r, ok := t.Field("repeat_until_done"); ok && r.Kind == value.KindBool {
		repeat = r.Bool
	}

	current := raw
	var lastResult string
	const maxIterations = 1000
	for iter := 0; ; iter++ {
		subj, err := ip.resolveSubject(current)
		if err != nil {
			return err
		}
		matched, result, err := ip.applyWildcardMaps(t, subj, wildcardMapsVal.List)
		if err != nil {
			return err
		}
		if !matched {
			lastResult = current
			break
		}
		if !repeat {
			lastResult = result
			break
		}
		if result == current {
			lastResult = result
			break
		}
		current = result
		if iter >= maxIterations {
			return typeErr(t.Line, "replace_map: repeat_until_done did not reach a fixed point within %d iterations", maxIterations)
		}
	}
	return ip.setOutput(t, "output_name", value.String(lastResult))
}

func (ip *Interpreter) resolveSubject(s string) (pattern.Subject, error) {
	resolved, err := interp.Interpolate(s, ip.Store)
	if err != nil {
		if interp.IsMissingKey(err) {
			return pattern.Subject{IsNull: true}, nil
		}
		return pattern.Subject{}, err
	}
	return pattern.Str(resolved), nil
}

func (ip *Interpreter) applyWildcardMaps(t *program.TaskNode, subj pattern.Subject, maps []value.Value) (bool, string, error) {
	for _, entry := range maps {
		if entry.Kind != value.KindMap || entry.Map.Len() != 1 {
			return false, "", typeErr(t.Line, "each wildcard_maps entry must be a single-key mapping")
		}
		key := entry.Map.Keys()[0]
		repl, _ := entry.Map.Get(key)
		p := pattern.Compile(key)
		caps, ok := p.Match(subj)
		if !ok {
			continue
		}
		if repl.Kind != value.KindString {
			return false, "", typeErr(t.Line, "wildcard_maps replacement must be a string")
		}
		out, err := pattern.Replace(repl.Str, caps, ip.Store)
		if err != nil {
			return false, "", wrapRuntimeErr(t.Line, "InterpolationMissingKey", err)
		}
		return true, out, nil
	}
	return false, "", nil
}

func (ip *Interpreter) execDelete(t *program.TaskNode) error {
	pats, err := ip.patternField(t, "wildcards")
	if err != nil {
		return err
	}
	ip.Store.DeleteMatching(pats)
	return nil
}

func (ip *Interpreter) execDeleteExcept(t *program.TaskNode) error {
	pats, err := ip.patternField(t, "wildcards")
	if err != nil {
		return err
	}
	ip.Store.DeleteExceptMatching(pats)
	return nil
}

func (ip *Interpreter) patternField(t *program.TaskNode, field string) ([]*pattern.Pattern, error) {
	v, ok := t.Field(field)
	if !ok || v.Kind != value.KindList {
		return nil, typeErr(t.Line, "%q must be a list of glob strings", field)
	}
	raws := make([]string, len(v.List))
	for i, item := range v.List {
		if item.Kind != value.KindString {
			return nil, typeErr(t.Line, "%q entries must be strings", field)
		}
		s, err := interp.Interpolate(item.Str, ip.Store)
		if err != nil {
			return nil, wrapRuntimeErr(t.Line, "InterpolationMissingKey", err)
		}
		raws[i] = s
	}
	return pattern.CompileAll(raws), nil
}

func (ip *Interpreter) execMath(t *program.TaskNode) error {
	raw, ok := ip.rawString(t, "input")
	if !ok {
		return typeErr(t.Line, "math requires an \"input\" field")
	}
	resolved, err := interp.Interpolate(raw, ip.Store)
	if err != nil {
		return wrapRuntimeErr(t.Line, "InterpolationMissingKey", err)
	}
	n, err := mathexpr.Eval(resolved, ip.mathResolver())
	if err != nil {
		return wrapRuntimeErr(t.Line, "MathError", err)
	}
	return ip.setOutput(t, "output_name", value.Int(n))
}

func (ip *Interpreter) execChat(ctx context.Context, t *program.TaskNode) error {
	req, err := ip.buildChatRequest(t)
	if err != nil {
		return err
	}
	resp, err := ip.Chat.Chat(ctx, req)
	if err != nil {
		if err == context.Canceled {
			return &CancelledError{}
		}
		return transportErr(t.Line, err)
	}
	if len(resp.Outputs) == 1 {
		return ip.setOutput(t, "output_name", value.String(resp.Outputs[0]))
	}
	items := make([]value.Value, len(resp.Outputs))
	for i, o := range resp.Outputs {
		items[i] = value.String(o)
	}
	return ip.setOutput(t, "output_name", value.List(items))
}

func (ip *Interpreter) buildChatRequest(t *program.TaskNode) (*chatclient.Request, error) {
	messagesVal, ok := t.Field("messages")
	if !ok || messagesVal.Kind != value.KindList {
		return nil, typeErr(t.Line, "chat requires a \"messages\" list field")
	}
	var messages []chatclient.Message
	for _, m := range messagesVal.List {
		if m.Kind != value.KindMap {
			return nil, typeErr(t.Line, "chat: each message must be a mapping")
		}
		roleV, _ := m.Map.Get("role")
		contentV, _ := m.Map.Get("content")
		content := ""
		if contentV.Kind == value.KindString {
			s, err := interp.Interpolate(contentV.Str, ip.Store)
			if err != nil {
				return nil, wrapRuntimeErr(t.Line, "InterpolationMissingKey", err)
			}
			content = s
		}
		messages = append(messages, chatclient.Message{Role: value.ToDisplay(roleV), Content: content})
	}

	body := value.NewOrderedMap()
	if ip.Prog.CompletionArgs != nil {
		for _, k := range ip.Prog.CompletionArgs.Keys() {
			v, _ := ip.Prog.CompletionArgs.Get(k)
			body.Set(k, v)
		}
	}
	reserved := map[string]bool{"cmd": true, "output_name": true, "line": true, "traceback_label": true, "messages": true, "extra_body": true}
	for _, k := range t.Fields.Keys() {
		if reserved[k] {
			continue
		}
		v, _ := t.Fields.Get(k)
		body.Set(k, v)
	}
	if extraBody, ok := t.Field("extra_body"); ok && extraBody.Kind == value.KindMap {
		for _, k := range extraBody.Map.Keys() {
			v, _ := extraBody.Map.Get(k)
			body.Set(k, v)
		}
	}

	nOutputs := 1
	if n, ok := body.Get("n_outputs"); ok && n.Kind == value.KindInt {
		nOutputs = int(n.Int)
	}

	return &chatclient.Request{
		Messages:      messages,
		Body:          body,
		NOutputs:      nOutputs,
		CorrelationID: uuid.NewString(),
	}, nil
}
