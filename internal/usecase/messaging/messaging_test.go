package messaging

import (
	"context"
	"strings"
	"testing"

	"go.botmind.dev/internal/bus"
	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/domain"
	"go.botmind.dev/internal/outbox"
	"go.botmind.dev/internal/persistence/memory"
	"go.botmind.dev/internal/usecase"
)

func newFixture(t *testing.T) (*memory.Store, *bus.MemoryBus, *Handlers) {
	t.Helper()
	store := memory.NewStore()
	b := bus.NewMemoryBus()
	events := usecase.NewEvents(b, store.Outbox())
	return store, b, NewHandlers(memory.NewUnitOfWork(store), events)
}

func TestPublishReceivedMessage(t *testing.T) {
	store, b, h := newFixture(t)

	res := h.PublishReceivedMessage(context.Background(), PublishReceivedMessageCommand{
		Author:    "alice",
		Content:   "good morning",
		ChannelID: "c-1",
	})
	if !res.IsOK() {
		t.Fatalf("expected success, got %v", res.Error())
	}

	msgs := store.ChatMessages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[0].Content != "good morning" {
		t.Errorf("unexpected persisted message %+v", msgs[0])
	}

	published := b.PublishedTo(bus.TopicDiscordMessage)
	if len(published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(published))
	}
	var ev bus.MessageReceivedEvent
	if err := published[0].Decode(&ev); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if ev.Author != "alice" || ev.Content != "good morning" || ev.ChannelID != "c-1" {
		t.Errorf("unexpected event %+v", ev)
	}

	entries := store.OutboxEntries()
	if len(entries) != 1 || entries[0].Status != outbox.StatusSent {
		t.Errorf("expected one confirmed outbox entry, got %+v", entries)
	}
}

func TestPublishReceivedDirectMessageTopic(t *testing.T) {
	_, b, h := newFixture(t)

	res := h.PublishReceivedDirectMessage(context.Background(), PublishReceivedDirectMessageCommand{
		Author:  "bob",
		Content: "psst",
	})
	if !res.IsOK() {
		t.Fatalf("expected success, got %v", res.Error())
	}
	if len(b.PublishedTo(bus.TopicDiscordDirectMessage)) != 1 {
		t.Error("expected event on the direct message topic")
	}
	if len(b.PublishedTo(bus.TopicDiscordMessage)) != 0 {
		t.Error("expected nothing on the channel message topic")
	}
}

func TestPublishReceivedMessageEmptyContent(t *testing.T) {
	store, b, h := newFixture(t)

	res := h.PublishReceivedMessage(context.Background(), PublishReceivedMessageCommand{
		Author:  "alice",
		Content: "   ",
	})
	if !res.IsErr() || res.Error().Kind != core.KindValidation {
		t.Errorf("expected VALIDATION, got %+v", res)
	}
	if store.ChatCount() != 0 || len(b.Published()) != 0 {
		t.Error("expected no side effects from a rejected message")
	}
}

func TestProcessSNSUpdate(t *testing.T) {
	store, b, h := newFixture(t)

	res := h.ProcessSNSUpdate(context.Background(), ProcessSNSUpdateCommand{
		Text:      "new release is out",
		ChannelID: "home-1",
	})
	if !res.IsOK() {
		t.Fatalf("expected success, got %v", res.Error())
	}
	if !strings.Contains(res.Value().Content, "new release is out") {
		t.Errorf("expected update text in announcement, got %q", res.Value().Content)
	}
	if !strings.HasPrefix(res.Value().Content, "👀") {
		t.Errorf("expected announcement framing, got %q", res.Value().Content)
	}

	msgs := store.ChatMessages()
	if len(msgs) != 1 || msgs[0].Role != domain.RoleModel {
		t.Errorf("expected announcement persisted as a model message, got %+v", msgs)
	}

	published := b.PublishedTo(bus.TopicBotSpeak)
	if len(published) != 1 {
		t.Fatalf("expected 1 speak event, got %d", len(published))
	}
	var ev bus.SpeakEvent
	if err := published[0].Decode(&ev); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if ev.ChannelID != "home-1" {
		t.Errorf("expected home channel, got %s", ev.ChannelID)
	}
}

func TestProcessSNSUpdateEmptyTextIsDropped(t *testing.T) {
	store, b, h := newFixture(t)

	res := h.ProcessSNSUpdate(context.Background(), ProcessSNSUpdateCommand{Text: "  "})
	if !res.IsOK() {
		t.Fatalf("expected success for empty update, got %v", res.Error())
	}
	if res.Value().Content != "" {
		t.Errorf("expected empty content, got %q", res.Value().Content)
	}
	if store.ChatCount() != 0 || len(b.Published()) != 0 {
		t.Error("expected no side effects for an empty update")
	}
}
