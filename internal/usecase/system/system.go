// Package system implements the heartbeat reaction: each tick may turn
// into a spontaneous message from the bot.
package system

import (
	"context"
	"log/slog"

	"go.botmind.dev/internal/bus"
	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/usecase/chat"
)

// HandleHeartbeatCommand reacts to one system heartbeat.
type HandleHeartbeatCommand struct{}

// Handlers bundles the system use case handlers. The mediator is
// injected after build, since the heartbeat handler dispatches a
// follow-up command through it.
type Handlers struct {
	mediator *core.Mediator
	bus      bus.Bus
}

// NewHandlers creates the system handlers.
func NewHandlers(b bus.Bus) *Handlers {
	return &Handlers{bus: b}
}

// SetMediator wires the mediator once it is built.
func (h *Handlers) SetMediator(m *core.Mediator) {
	h.mediator = m
}

// Register binds the handlers on the mediator builder.
func (h *Handlers) Register(b *core.MediatorBuilder) {
	core.Register(b, h.HandleHeartbeat)
}

// HandleHeartbeat triggers a spontaneous dialog and announces the
// result on bot.speak. A failed dialog is logged, not propagated; a
// heartbeat that produces nothing is still a handled heartbeat.
func (h *Handlers) HandleHeartbeat(ctx context.Context, cmd HandleHeartbeatCommand) core.Result[core.Unit] {
	if h.mediator == nil {
		return core.Err[core.Unit](core.UnexpectedError("mediator not wired"))
	}

	res := core.Dispatch[chat.SpontaneousDialogResult](ctx, h.mediator, chat.SpontaneousDialogCommand{})
	if res.IsErr() {
		slog.Warn("Spontaneous dialog failed", "kind", res.Error().Kind.String(), "error", res.Error().Message)
		return core.Ok(core.Unit{})
	}

	dialog := res.Value()
	// Published directly, not through the outbox: an announcement lost
	// to a publish fault is replaced by the next tick.
	if pub := h.bus.Publish(ctx, bus.TopicBotSpeak, bus.SpeakEvent{
		Content:   dialog.Content,
		ChannelID: dialog.ChannelID,
	}); pub.IsErr() {
		return core.Err[core.Unit](pub.Error())
	}
	return core.Ok(core.Unit{})
}
