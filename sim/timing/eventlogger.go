package timing

import (
	"log"

	"github.com/sarchlab/vpsim/sim/hooking"
)

// EventLogger is a hook that writes a line for every dispatched event and
// every halt of the engine.
type EventLogger struct {
	logger *log.Logger
}

// NewEventLogger creates an EventLogger that writes into logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

type named interface {
	Name() string
}

// Func implements hooking.Hook.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case HookPosBeforeEvent:
		evt, ok := ctx.Item.(*Event)
		if !ok {
			return
		}

		h.logger.Printf("[%d] %s <- %T%s",
			evt.Time, handlerName(evt.Handler), evt.Payload,
			secondaryMark(evt.Secondary))
	case HookPosHalt:
		h.logger.Printf("[%v] halt: %v", ctx.Item, ctx.Detail)
	}
}

func handlerName(handler Handler) string {
	if c, ok := handler.(named); ok {
		return c.Name()
	}

	if handler == nil {
		return "-"
	}

	return "?"
}

func secondaryMark(secondary bool) string {
	if secondary {
		return " (secondary)"
	}

	return ""
}
