// Package worker hosts the thinking process: bus consumers that turn
// events into mediator commands, and the heartbeat producer that makes
// the system tick.
package worker

import (
	"context"
	"log/slog"
	"time"

	"go.botmind.dev/internal/bus"
	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/metrics"
	"go.botmind.dev/internal/usecase/chat"
	"go.botmind.dev/internal/usecase/messaging"
	"go.botmind.dev/internal/usecase/system"
)

const dedupTTL = time.Hour

// directMessageReply is the fixed acknowledgment sent for DMs.
const directMessageReply = "Thanks for the message! I read every DM."

// Consumer subscribes the worker's topics and dispatches one command
// per event. Duplicate envelopes are dropped; a CONCURRENCY_CONFLICT
// is retried once in process and then handed back to the bus for
// bounded redelivery; every other dispatch failure is logged and
// dropped so a permanently failing event cannot wedge the topic.
// Dispatch outcomes that commit state stage their follow-up events
// through the outbox, where the relay heals a failed publish.
type Consumer struct {
	mediator *core.Mediator
	bus      bus.Bus
	dedup    *dedup
	logger   *slog.Logger

	// homeChannelID receives feed announcements.
	homeChannelID string
}

// NewConsumer creates the worker consumer.
func NewConsumer(mediator *core.Mediator, b bus.Bus, homeChannelID string) *Consumer {
	return &Consumer{
		mediator:      mediator,
		bus:           b,
		dedup:         newDedup(dedupTTL),
		logger:        slog.Default().With("component", "worker-consumer"),
		homeChannelID: homeChannelID,
	}
}

// Bind registers the subscriptions. Must run before the bus starts.
func (c *Consumer) Bind() {
	c.bus.Subscribe(bus.TopicDiscordMessage, c.onMessage)
	c.bus.Subscribe(bus.TopicDiscordDirectMessage, c.onDirectMessage)
	c.bus.Subscribe(bus.TopicHeartbeat, c.onHeartbeat)
	c.bus.Subscribe(bus.TopicSNSUpdate, c.onSNSUpdate)
}

// consume wraps one subscriber with dedup and failure policy. handle
// returns the dispatch outcome as a UseCaseError.
func (c *Consumer) consume(ctx context.Context, env bus.Envelope, handle func(context.Context) *core.UseCaseError) error {
	if c.dedup.Check(env.ID) {
		metrics.BusConsumed.WithLabelValues(env.Topic, "duplicate").Inc()
		return nil
	}

	uerr := handle(ctx)
	if uerr != nil && uerr.Kind == core.KindConcurrencyConflict {
		c.logger.Info("Retrying after concurrency conflict", "topic", env.Topic, "envelope_id", env.ID)
		uerr = handle(ctx)
	}

	switch {
	case uerr == nil:
		c.dedup.Mark(env.ID)
		return nil
	case uerr.Kind == core.KindConcurrencyConflict:
		// Still conflicting; let the backend redeliver within its
		// delivery cap.
		return uerr
	default:
		c.logger.Error("Dropping event after permanent failure",
			"topic", env.Topic,
			"envelope_id", env.ID,
			"kind", uerr.Kind.String(),
			"error", uerr.Message)
		c.dedup.Mark(env.ID)
		return nil
	}
}

// onMessage answers a recorded channel message. The ingest side
// already persisted the user message; the reply is generated from
// history and the bot.speak announcement is staged with the model row,
// so a committed reply is announced even when the direct publish
// fails.
func (c *Consumer) onMessage(ctx context.Context, env bus.Envelope) error {
	var evt bus.MessageReceivedEvent
	if err := env.Decode(&evt); err != nil {
		c.logger.Error("Dropping malformed event", "topic", env.Topic, "error", err)
		return nil
	}

	return c.consume(ctx, env, func(ctx context.Context) *core.UseCaseError {
		res := core.Dispatch[chat.GenerateContentResult](ctx, c.mediator, chat.GenerateContentQuery{
			AnnounceChannelID: evt.ChannelID,
		})
		if res.IsErr() {
			return res.Error()
		}
		return nil
	})
}

// onDirectMessage acknowledges a DM with a fixed reply. Nothing is
// persisted here, so a failed publish is handed back to the bus for
// bounded redelivery instead of being dropped.
func (c *Consumer) onDirectMessage(ctx context.Context, env bus.Envelope) error {
	var evt bus.MessageReceivedEvent
	if err := env.Decode(&evt); err != nil {
		c.logger.Error("Dropping malformed event", "topic", env.Topic, "error", err)
		return nil
	}

	if c.dedup.Check(env.ID) {
		metrics.BusConsumed.WithLabelValues(env.Topic, "duplicate").Inc()
		return nil
	}

	pub := c.bus.Publish(ctx, bus.TopicBotSpeak, bus.SpeakEvent{
		Content:   directMessageReply,
		ChannelID: evt.ChannelID,
	})
	if pub.IsErr() {
		c.logger.Warn("Reply publish failed, leaving event for redelivery",
			"envelope_id", env.ID, "error", pub.Error().Message)
		return pub.Error()
	}

	c.dedup.Mark(env.ID)
	return nil
}

// onHeartbeat lets the system decide whether to speak spontaneously.
func (c *Consumer) onHeartbeat(ctx context.Context, env bus.Envelope) error {
	return c.consume(ctx, env, func(ctx context.Context) *core.UseCaseError {
		res := core.Dispatch[core.Unit](ctx, c.mediator, system.HandleHeartbeatCommand{})
		if res.IsErr() {
			return res.Error()
		}
		return nil
	})
}

// onSNSUpdate turns a feed update into a home channel announcement.
func (c *Consumer) onSNSUpdate(ctx context.Context, env bus.Envelope) error {
	var evt bus.SNSUpdateEvent
	if err := env.Decode(&evt); err != nil {
		c.logger.Error("Dropping malformed event", "topic", env.Topic, "error", err)
		return nil
	}

	return c.consume(ctx, env, func(ctx context.Context) *core.UseCaseError {
		res := core.Dispatch[messaging.ProcessSNSUpdateResult](ctx, c.mediator, messaging.ProcessSNSUpdateCommand{
			Text:      evt.Text,
			ChannelID: c.homeChannelID,
		})
		if res.IsErr() {
			return res.Error()
		}
		return nil
	})
}
