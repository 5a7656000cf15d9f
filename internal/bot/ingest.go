package bot

import (
	"context"
	"log/slog"
	"strings"

	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/usecase/messaging"
)

// InboundMessage is one message arriving from the chat platform.
type InboundMessage struct {
	Author    string
	Content   string
	ChannelID string

	// Direct marks a private message.
	Direct bool

	// FromBot marks messages authored by bots, including this one.
	FromBot bool
}

// Ingest turns inbound platform messages into mediator commands. On
// failure the user gets a short translated reply; detail goes to the
// log only.
type Ingest struct {
	mediator *core.Mediator
	delivery Delivery
	logger   *slog.Logger
}

// NewIngest creates the ingest pipeline.
func NewIngest(mediator *core.Mediator, delivery Delivery) *Ingest {
	return &Ingest{
		mediator: mediator,
		delivery: delivery,
		logger:   slog.Default().With("component", "ingest"),
	}
}

// HandleInbound processes one platform message. Bot-authored messages
// and slash commands are ignored.
func (i *Ingest) HandleInbound(ctx context.Context, msg InboundMessage) {
	if msg.FromBot || strings.HasPrefix(msg.Content, "/") {
		return
	}

	var uerr *core.UseCaseError
	if msg.Direct {
		res := core.Dispatch[core.Unit](ctx, i.mediator, messaging.PublishReceivedDirectMessageCommand{
			Author:    msg.Author,
			Content:   msg.Content,
			ChannelID: msg.ChannelID,
		})
		uerr = res.Error()
	} else {
		res := core.Dispatch[core.Unit](ctx, i.mediator, messaging.PublishReceivedMessageCommand{
			Author:    msg.Author,
			Content:   msg.Content,
			ChannelID: msg.ChannelID,
		})
		uerr = res.Error()
	}

	if uerr != nil {
		i.logger.Error("Inbound message failed",
			"channel_id", msg.ChannelID,
			"kind", uerr.Kind.String(),
			"error", uerr.Message)
		if err := i.delivery.Send(ctx, msg.ChannelID, UserMessage(uerr)); err != nil {
			i.logger.Error("Failed to deliver error reply", "channel_id", msg.ChannelID, "error", err)
		}
	}
}
