// Package messaging implements the ingest-side use cases: turning
// inbound platform messages into persisted history plus bus events,
// and shaping external feed updates into announcements.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.botmind.dev/internal/bus"
	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/domain"
	"go.botmind.dev/internal/persistence"
	"go.botmind.dev/internal/usecase"
)

// PublishReceivedMessageCommand records an inbound channel message and
// announces it on discord.message.
type PublishReceivedMessageCommand struct {
	Author    string
	Content   string
	ChannelID string
}

// PublishReceivedDirectMessageCommand records an inbound direct
// message and announces it on discord.direct_message.
type PublishReceivedDirectMessageCommand struct {
	Author    string
	Content   string
	ChannelID string
}

// ProcessSNSUpdateCommand shapes an external feed update into an
// announcement on bot.speak.
type ProcessSNSUpdateCommand struct {
	Text      string
	ChannelID string
}

// ProcessSNSUpdateResult carries the formatted announcement, empty
// when the update had no text.
type ProcessSNSUpdateResult struct {
	Content string
}

// Handlers bundles the messaging use case handlers.
type Handlers struct {
	uow    persistence.UnitOfWork
	events *usecase.Events
}

// NewHandlers creates the messaging handlers.
func NewHandlers(uow persistence.UnitOfWork, events *usecase.Events) *Handlers {
	return &Handlers{uow: uow, events: events}
}

// Register binds the handlers on the mediator builder.
func (h *Handlers) Register(b *core.MediatorBuilder) {
	core.Register(b, h.PublishReceivedMessage)
	core.Register(b, h.PublishReceivedDirectMessage)
	core.Register(b, h.ProcessSNSUpdate)
}

// PublishReceivedMessage persists the user message and publishes it
// for the worker to react to.
func (h *Handlers) PublishReceivedMessage(ctx context.Context, cmd PublishReceivedMessageCommand) core.Result[core.Unit] {
	return h.recordAndAnnounce(ctx, cmd.Author, cmd.Content, cmd.ChannelID, bus.TopicDiscordMessage)
}

// PublishReceivedDirectMessage persists the user message and publishes
// it on the direct message topic.
func (h *Handlers) PublishReceivedDirectMessage(ctx context.Context, cmd PublishReceivedDirectMessageCommand) core.Result[core.Unit] {
	return h.recordAndAnnounce(ctx, cmd.Author, cmd.Content, cmd.ChannelID, bus.TopicDiscordDirectMessage)
}

func (h *Handlers) recordAndAnnounce(ctx context.Context, author, content, channelID, topic string) core.Result[core.Unit] {
	if strings.TrimSpace(content) == "" {
		return core.Err[core.Unit](core.ValidationError("message content is empty"))
	}

	scope, uerr := h.uow.Begin(ctx)
	if uerr != nil {
		return core.Err[core.Unit](uerr)
	}
	defer scope.Close(ctx)

	userMsg := domain.NewUserMessage(content, time.Now().UTC())
	if err := scope.ChatHistory().Add(ctx, userMsg); err != nil {
		return core.Err[core.Unit](persistence.MapError(err))
	}

	env, uerr := h.events.Stage(ctx, scope, topic, bus.MessageReceivedEvent{
		Author:    author,
		Content:   content,
		ChannelID: channelID,
	})
	if uerr != nil {
		return core.Err[core.Unit](uerr)
	}

	if res := scope.Commit(ctx); res.IsErr() {
		return core.Err[core.Unit](res.Error())
	}
	if uerr := h.events.Publish(ctx, env); uerr != nil {
		return core.Err[core.Unit](uerr)
	}
	return core.Ok(core.Unit{})
}

// ProcessSNSUpdate formats the update and announces it. Updates
// without text are acknowledged and dropped.
func (h *Handlers) ProcessSNSUpdate(ctx context.Context, cmd ProcessSNSUpdateCommand) core.Result[ProcessSNSUpdateResult] {
	if strings.TrimSpace(cmd.Text) == "" {
		return core.Ok(ProcessSNSUpdateResult{})
	}

	content := fmt.Sprintf("👀 Look what I found:\n> %s", cmd.Text)

	scope, uerr := h.uow.Begin(ctx)
	if uerr != nil {
		return core.Err[ProcessSNSUpdateResult](uerr)
	}
	defer scope.Close(ctx)

	modelMsg := domain.NewModelMessage(content, time.Now().UTC())
	if err := scope.ChatHistory().Add(ctx, modelMsg); err != nil {
		return core.Err[ProcessSNSUpdateResult](persistence.MapError(err))
	}

	env, uerr := h.events.Stage(ctx, scope, bus.TopicBotSpeak, bus.SpeakEvent{
		Content:   content,
		ChannelID: cmd.ChannelID,
	})
	if uerr != nil {
		return core.Err[ProcessSNSUpdateResult](uerr)
	}

	if res := scope.Commit(ctx); res.IsErr() {
		return core.Err[ProcessSNSUpdateResult](res.Error())
	}
	if uerr := h.events.Publish(ctx, env); uerr != nil {
		return core.Err[ProcessSNSUpdateResult](uerr)
	}
	return core.Ok(ProcessSNSUpdateResult{Content: content})
}
