package taskrun

import (
	"context"

	"github.com/tallowoak/taskline/internal/program"
	"github.com/tallowoak/taskline/internal/value"
	"golang.org/x/sync/errgroup"
)

func (ip *Interpreter) execSerial(ctx context.Context, t *program.TaskNode, stack []*frame) error {
	fr := newFrame(t.Tasks, false)
	return ip.runFrame(ctx, pushFrame(stack, fr))
}

// pushFrame returns a new stack slice with fr appended, never sharing a
// backing array with stack — siblings in a for loop or parallel branch
// each get their own frame without the risk of one overwriting another's
// top-of-stack slot.
func pushFrame(stack []*frame, fr *frame) []*frame {
	out := make([]*frame, len(stack)+1)
	copy(out, stack)
	out[len(stack)] = fr
	return out
}

// execFor walks name_list_map's lists in lockstep, binding each name to its
// i-th element and running tasks as a serial sub-frame for every i.
func (ip *Interpreter) execFor(ctx context.Context, t *program.TaskNode, stack []*frame) error {
	mapVal, ok := t.Field("name_list_map")
	if !ok || mapVal.Kind != value.KindMap {
		return typeErr(t.Line, "for requires a \"name_list_map\" object field")
	}
	names := mapVal.Map.Keys()
	if len(names) == 0 {
		return typeErr(t.Line, "for: name_list_map must not be empty")
	}
	lists := make(map[string][]value.Value, len(names))
	n := -1
	for _, name := range names {
		lv, _ := mapVal.Map.Get(name)
		list, err := ip.resolveForList(t, lv)
		if err != nil {
			return err
		}
		if n == -1 {
			n = len(list)
		} else if len(list) != n {
			return typeErr(t.Line, "for: all lists in name_list_map must have equal length")
		}
		lists[name] = list
	}

	for i := 0; i < n; i++ {
		for _, name := range names {
			ip.Store.Set(name, lists[name][i])
		}
		fr := newFrame(t.Tasks, false)
		if err := ip.runFrame(ctx, pushFrame(stack, fr)); err != nil {
			return err
		}
	}
	return nil
}

func (ip *Interpreter) resolveForList(t *program.TaskNode, v value.Value) ([]value.Value, error) {
	switch v.Kind {
	case value.KindString:
		found, ok := ip.Store.Get(v.Str)
		if !ok {
			return nil, nameErr(t.Line, "for: unknown insert %q", v.Str)
		}
		if found.Kind != value.KindList {
			return nil, typeErr(t.Line, "for: insert %q is not a list", v.Str)
		}
		return found.List, nil
	case value.KindList:
		return v.List, nil
	}
	return nil, typeErr(t.Line, "for: each name_list_map value must be a list or list-insert name")
}

// execParallelWait runs every sub-task concurrently via an errgroup; the
// first failure cancels the group's context, which every sibling observes
// at its next suspension point.
func (ip *Interpreter) execParallelWait(ctx context.Context, t *program.TaskNode, stack []*frame) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range t.Tasks {
		task := task
		g.Go(func() error {
			fr := newFrame([]*program.TaskNode{task}, true)
			return ip.runFrame(gctx, pushFrame(stack, fr))
		})
	}
	return g.Wait()
}

// execParallelRace runs every sub-task concurrently; whichever finishes
// first (success or error) wins, and every other sibling's context is
// cancelled immediately.
func (ip *Interpreter) execParallelRace(ctx context.Context, t *program.TaskNode, stack []*frame) error {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		err error
	}
	results := make(chan outcome, len(t.Tasks))
	for _, task := range t.Tasks {
		task := task
		go func() {
			fr := newFrame([]*program.TaskNode{task}, true)
			err := ip.runFrame(raceCtx, pushFrame(stack, fr))
			select {
			case results <- outcome{err: err}:
			case <-raceCtx.Done():
			}
		}()
	}

	select {
	case res := <-results:
		cancel()
		if isCancelled(res.err) {
			return nil
		}
		return res.err
	case <-ctx.Done():
		return &CancelledError{}
	}
}

// execRunTask looks up task_name in named_tasks, shallow-merges the
// invocation's extra fields into it, and executes it: as a new frame if it
// is a container command, or as a single exec call otherwise.
func (ip *Interpreter) execRunTask(ctx context.Context, t *program.TaskNode, stack []*frame) error {
	name, ok := ip.rawString(t, "task_name")
	if !ok {
		return typeErr(t.Line, "run_task requires a \"task_name\" field")
	}
	target, ok := ip.Prog.NamedTasks[name]
	if !ok {
		return nameErr(t.Line, "run_task: no named task %q", name)
	}
	merged := mergeTask(target, t)
	return ip.exec(ctx, merged, stack)
}
