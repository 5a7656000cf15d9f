package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.botmind.dev/internal/bus"
)

type fakeDelivery struct {
	mu   sync.Mutex
	sent []struct{ ChannelID, Content string }
	err  error
}

func (d *fakeDelivery) Send(ctx context.Context, channelID, content string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, struct{ ChannelID, Content string }{channelID, content})
	return nil
}

func (d *fakeDelivery) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

func speakEnvelope(t *testing.T, content, channelID string) bus.Envelope {
	t.Helper()
	env, err := bus.NewEnvelope(bus.TopicBotSpeak, bus.SpeakEvent{Content: content, ChannelID: channelID})
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	return env
}

func TestSpeakerDeliversEvent(t *testing.T) {
	delivery := &fakeDelivery{}
	b := bus.NewMemoryBus()
	NewSpeaker(b, delivery).Bind()
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	res := b.Publish(context.Background(), bus.TopicBotSpeak, bus.SpeakEvent{
		Content:   "hello",
		ChannelID: "c-1",
	})
	if res.IsErr() {
		t.Fatalf("Publish failed: %v", res.Error())
	}
	if delivery.count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivery.count())
	}
	if delivery.sent[0].ChannelID != "c-1" || delivery.sent[0].Content != "hello" {
		t.Errorf("unexpected delivery %+v", delivery.sent[0])
	}
}

func TestSpeakerSuppressesRedelivery(t *testing.T) {
	delivery := &fakeDelivery{}
	s := NewSpeaker(bus.NewMemoryBus(), delivery)
	env := speakEnvelope(t, "hello", "c-1")

	if err := s.onSpeak(context.Background(), env); err != nil {
		t.Fatalf("onSpeak failed: %v", err)
	}
	if err := s.onSpeak(context.Background(), env); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if delivery.count() != 1 {
		t.Errorf("expected one delivery for a redelivered envelope, got %d", delivery.count())
	}
}

func TestSpeakerFailedDeliveryNotMarkedSent(t *testing.T) {
	delivery := &fakeDelivery{err: errors.New("discord down")}
	s := NewSpeaker(bus.NewMemoryBus(), delivery)
	env := speakEnvelope(t, "hello", "c-1")

	if err := s.onSpeak(context.Background(), env); err == nil {
		t.Fatal("expected delivery error to surface for redelivery")
	}

	// The platform recovered; the redelivered envelope goes out.
	delivery.err = nil
	if err := s.onSpeak(context.Background(), env); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if delivery.count() != 1 {
		t.Errorf("expected exactly one successful delivery, got %d", delivery.count())
	}
}

func TestSpeakerDropsEmptyAndMalformedEvents(t *testing.T) {
	delivery := &fakeDelivery{}
	s := NewSpeaker(bus.NewMemoryBus(), delivery)

	empty := speakEnvelope(t, "", "c-1")
	if err := s.onSpeak(context.Background(), empty); err != nil {
		t.Fatalf("expected empty event dropped, got %v", err)
	}

	noChannel := speakEnvelope(t, "hello", "")
	if err := s.onSpeak(context.Background(), noChannel); err != nil {
		t.Fatalf("expected channel-less event dropped, got %v", err)
	}

	malformed := speakEnvelope(t, "x", "c")
	malformed.Payload = []byte("{oops")
	if err := s.onSpeak(context.Background(), malformed); err != nil {
		t.Fatalf("expected malformed event dropped, got %v", err)
	}

	if delivery.count() != 0 {
		t.Errorf("expected no deliveries, got %d", delivery.count())
	}
}
