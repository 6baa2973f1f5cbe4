package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/cachesim/sim"
)

// A Tracer can collect task traces
type Tracer interface {
	StartTask(task Task)
	StepTask(task Task)
	EndTask(task Task)
}

// CollectTrace lets the tracer receive the tasks of a domain. All the tracers
// of a domain share one hook and are called in the order they are attached.
// Attaching the same tracer twice panics.
func CollectTrace(domain NamedHookable, tracer Tracer) {
	h := findTraceHook(domain)
	if h == nil {
		h = &traceHook{}
		domain.AcceptHook(h)
	}

	for _, t := range h.tracers {
		if t == tracer {
			panic(fmt.Sprintf("domain %s already has tracer %s",
				domain.Name(), reflect.TypeOf(tracer)))
		}
	}

	h.tracers = append(h.tracers, tracer)
}

func findTraceHook(domain sim.Hookable) *traceHook {
	for _, hook := range domain.Hooks() {
		if h, ok := hook.(*traceHook); ok {
			return h
		}
	}

	return nil
}

type traceHook struct {
	tracers []Tracer
}

func (h *traceHook) Func(ctx sim.HookCtx) {
	task, ok := ctx.Item.(Task)
	if !ok {
		return
	}

	for _, t := range h.tracers {
		switch ctx.Pos {
		case HookPosTaskStart:
			t.StartTask(task)
		case HookPosTaskStep:
			t.StepTask(task)
		case HookPosTaskEnd:
			t.EndTask(task)
		}
	}
}
