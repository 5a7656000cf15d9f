// Package chat implements the conversation use cases: recording a
// full user/model turn, generating content on demand, and producing
// spontaneous dialog from recent context.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.botmind.dev/internal/ai"
	"go.botmind.dev/internal/bus"
	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/domain"
	"go.botmind.dev/internal/persistence"
	"go.botmind.dev/internal/usecase"
)

const (
	generateHistoryLimit    = 100
	spontaneousHistoryLimit = 20
)

// spontaneousPrompt steers the model to open a short conversation on
// its own instead of answering anything.
const spontaneousPrompt = `# Situation
You feel like chatting.

# Task
Write one short message to start a conversation with your owner.

# Constraints
Do not open with a stock greeting. Keep it brief.`

// RecordChatTurnCommand persists a user message, generates the model
// reply, persists it, and announces the reply on bot.speak.
type RecordChatTurnCommand struct {
	UserText  string
	ChannelID string
}

// RecordChatTurnResult carries the generated reply.
type RecordChatTurnResult struct {
	Content string
}

// GenerateContentQuery generates a reply to a prompt. With an empty
// prompt the latest user message in history is answered instead.
type GenerateContentQuery struct {
	Prompt string

	// AnnounceChannelID, when set, stages a bot.speak event for the
	// reply in the same transaction as the model message, so a reply
	// that commits is always announced eventually.
	AnnounceChannelID string
}

// GenerateContentResult carries the generated content.
type GenerateContentResult struct {
	Content string
}

// SpontaneousDialogCommand asks for an unprompted message to the
// configured home channel.
type SpontaneousDialogCommand struct{}

// SpontaneousDialogResult carries the message and its destination.
type SpontaneousDialogResult struct {
	Content   string
	ChannelID string
}

// Handlers bundles the chat use case handlers and their dependencies.
type Handlers struct {
	uow       persistence.UnitOfWork
	generator ai.Generator
	events    *usecase.Events

	// provider selects which system instruction is active.
	provider string

	// homeChannelID receives spontaneous dialog.
	homeChannelID string
}

// NewHandlers creates the chat handlers.
func NewHandlers(uow persistence.UnitOfWork, generator ai.Generator, events *usecase.Events, provider, homeChannelID string) *Handlers {
	return &Handlers{
		uow:           uow,
		generator:     generator,
		events:        events,
		provider:      provider,
		homeChannelID: homeChannelID,
	}
}

// Register binds the handlers on the mediator builder.
func (h *Handlers) Register(b *core.MediatorBuilder) {
	core.Register(b, h.RecordChatTurn)
	core.Register(b, h.GenerateContent)
	core.Register(b, h.SpontaneousDialog)
}

// activeInstruction returns the active instruction text for the
// configured provider, or empty when none is active.
func (h *Handlers) activeInstruction(ctx context.Context, scope persistence.Scope) (string, *core.UseCaseError) {
	si, err := scope.Instructions().FindActiveByProvider(ctx, h.provider)
	if errors.Is(err, persistence.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", persistence.MapError(err)
	}
	return si.Instruction, nil
}

// RecordChatTurn runs one full turn. The user message, the model
// message, and the staged bot.speak event commit atomically; a
// generation fault rolls everything back and nothing is published.
func (h *Handlers) RecordChatTurn(ctx context.Context, cmd RecordChatTurnCommand) core.Result[RecordChatTurnResult] {
	if strings.TrimSpace(cmd.UserText) == "" {
		return core.Err[RecordChatTurnResult](core.ValidationError("user text is empty"))
	}
	if cmd.ChannelID == "" {
		return core.Err[RecordChatTurnResult](core.ValidationError("channel id is required"))
	}

	scope, uerr := h.uow.Begin(ctx)
	if uerr != nil {
		return core.Err[RecordChatTurnResult](uerr)
	}
	defer scope.Close(ctx)

	history, err := scope.ChatHistory().RecentHistory(ctx, generateHistoryLimit)
	if err != nil {
		return core.Err[RecordChatTurnResult](persistence.MapError(err))
	}

	userMsg := domain.NewUserMessage(cmd.UserText, time.Now().UTC())
	if err := scope.ChatHistory().Add(ctx, userMsg); err != nil {
		return core.Err[RecordChatTurnResult](persistence.MapError(err))
	}

	instruction, uerr := h.activeInstruction(ctx, scope)
	if uerr != nil {
		return core.Err[RecordChatTurnResult](uerr)
	}

	content, err := h.generator.Generate(ctx, ai.Request{
		SystemInstruction: instruction,
		History:           history,
		Prompt:            cmd.UserText,
	})
	if err != nil {
		return core.Err[RecordChatTurnResult](core.UnexpectedError("generate reply: %s", err.Error()))
	}

	modelMsg := domain.NewModelMessage(content, time.Now().UTC())
	if err := scope.ChatHistory().Add(ctx, modelMsg); err != nil {
		return core.Err[RecordChatTurnResult](persistence.MapError(err))
	}

	env, uerr := h.events.Stage(ctx, scope, bus.TopicBotSpeak, bus.SpeakEvent{
		Content:   content,
		ChannelID: cmd.ChannelID,
	})
	if uerr != nil {
		return core.Err[RecordChatTurnResult](uerr)
	}

	if res := scope.Commit(ctx); res.IsErr() {
		return core.Err[RecordChatTurnResult](res.Error())
	}
	if uerr := h.events.Publish(ctx, env); uerr != nil {
		return core.Err[RecordChatTurnResult](uerr)
	}
	return core.Ok(RecordChatTurnResult{Content: content})
}

// GenerateContent answers a prompt using history and the active
// instruction, persisting only the model reply. When a channel is
// given, the announcement rides the outbox: a publish fault after
// commit surfaces as UNEXPECTED and the relay delivers the staged
// event later.
func (h *Handlers) GenerateContent(ctx context.Context, query GenerateContentQuery) core.Result[GenerateContentResult] {
	scope, uerr := h.uow.Begin(ctx)
	if uerr != nil {
		return core.Err[GenerateContentResult](uerr)
	}
	defer scope.Close(ctx)

	history, err := scope.ChatHistory().RecentHistory(ctx, generateHistoryLimit)
	if err != nil {
		return core.Err[GenerateContentResult](persistence.MapError(err))
	}

	prompt := query.Prompt
	if prompt == "" {
		if len(history) == 0 {
			return core.Err[GenerateContentResult](core.ValidationError("no prompt provided and history is empty"))
		}
		last := history[len(history)-1]
		if last.Role != domain.RoleUser {
			return core.Err[GenerateContentResult](core.ValidationError("last message is not from user, and no prompt provided"))
		}
		prompt = last.Content
		history = history[:len(history)-1]
	}

	instruction, uerr := h.activeInstruction(ctx, scope)
	if uerr != nil {
		return core.Err[GenerateContentResult](uerr)
	}

	content, err := h.generator.Generate(ctx, ai.Request{
		SystemInstruction: instruction,
		History:           history,
		Prompt:            prompt,
	})
	if err != nil {
		return core.Err[GenerateContentResult](core.UnexpectedError("generate content: %s", err.Error()))
	}

	modelMsg := domain.NewModelMessage(content, time.Now().UTC())
	if err := scope.ChatHistory().Add(ctx, modelMsg); err != nil {
		return core.Err[GenerateContentResult](persistence.MapError(err))
	}

	var staged []bus.Envelope
	if query.AnnounceChannelID != "" {
		env, uerr := h.events.Stage(ctx, scope, bus.TopicBotSpeak, bus.SpeakEvent{
			Content:   content,
			ChannelID: query.AnnounceChannelID,
		})
		if uerr != nil {
			return core.Err[GenerateContentResult](uerr)
		}
		staged = append(staged, env)
	}

	if res := scope.Commit(ctx); res.IsErr() {
		return core.Err[GenerateContentResult](res.Error())
	}
	if uerr := h.events.Publish(ctx, staged...); uerr != nil {
		return core.Err[GenerateContentResult](uerr)
	}
	return core.Ok(GenerateContentResult{Content: content})
}

// SpontaneousDialog produces an unprompted message from recent context
// and persists only the model reply. The caller decides whether and
// where to announce it.
func (h *Handlers) SpontaneousDialog(ctx context.Context, cmd SpontaneousDialogCommand) core.Result[SpontaneousDialogResult] {
	scope, uerr := h.uow.Begin(ctx)
	if uerr != nil {
		return core.Err[SpontaneousDialogResult](uerr)
	}
	defer scope.Close(ctx)

	history, err := scope.ChatHistory().RecentHistory(ctx, spontaneousHistoryLimit)
	if err != nil {
		return core.Err[SpontaneousDialogResult](persistence.MapError(err))
	}

	instruction, uerr := h.activeInstruction(ctx, scope)
	if uerr != nil {
		return core.Err[SpontaneousDialogResult](uerr)
	}
	if instruction != "" {
		instruction += "\n"
	}
	instruction += spontaneousPrompt

	content, err := h.generator.Generate(ctx, ai.Request{
		SystemInstruction: instruction,
		History:           history,
	})
	if err != nil {
		return core.Err[SpontaneousDialogResult](core.UnexpectedError("generate dialog: %s", err.Error()))
	}

	modelMsg := domain.NewModelMessage(content, time.Now().UTC())
	if err := scope.ChatHistory().Add(ctx, modelMsg); err != nil {
		return core.Err[SpontaneousDialogResult](persistence.MapError(err))
	}
	if res := scope.Commit(ctx); res.IsErr() {
		return core.Err[SpontaneousDialogResult](res.Error())
	}
	return core.Ok(SpontaneousDialogResult{Content: content, ChannelID: h.homeChannelID})
}
