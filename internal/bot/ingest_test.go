package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/usecase/messaging"
)

type recordedDispatches struct {
	channel []messaging.PublishReceivedMessageCommand
	direct  []messaging.PublishReceivedDirectMessageCommand
	fail    *core.UseCaseError
}

func newIngestFixture(t *testing.T) (*recordedDispatches, *fakeDelivery, *Ingest) {
	t.Helper()
	rec := &recordedDispatches{}
	builder := core.NewMediatorBuilder()
	core.Register(builder, func(ctx context.Context, cmd messaging.PublishReceivedMessageCommand) core.Result[core.Unit] {
		if rec.fail != nil {
			return core.Err[core.Unit](rec.fail)
		}
		rec.channel = append(rec.channel, cmd)
		return core.Ok(core.Unit{})
	})
	core.Register(builder, func(ctx context.Context, cmd messaging.PublishReceivedDirectMessageCommand) core.Result[core.Unit] {
		if rec.fail != nil {
			return core.Err[core.Unit](rec.fail)
		}
		rec.direct = append(rec.direct, cmd)
		return core.Ok(core.Unit{})
	})
	mediator, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	delivery := &fakeDelivery{}
	return rec, delivery, NewIngest(mediator, delivery)
}

func TestHandleInboundChannelMessage(t *testing.T) {
	rec, _, ingest := newIngestFixture(t)

	ingest.HandleInbound(context.Background(), InboundMessage{
		Author:    "alice",
		Content:   "hi",
		ChannelID: "c-1",
	})
	if len(rec.channel) != 1 {
		t.Fatalf("expected 1 channel command, got %d", len(rec.channel))
	}
	if rec.channel[0].Author != "alice" || rec.channel[0].ChannelID != "c-1" {
		t.Errorf("unexpected command %+v", rec.channel[0])
	}
	if len(rec.direct) != 0 {
		t.Error("expected no direct message command")
	}
}

func TestHandleInboundDirectMessage(t *testing.T) {
	rec, _, ingest := newIngestFixture(t)

	ingest.HandleInbound(context.Background(), InboundMessage{
		Author:    "bob",
		Content:   "psst",
		ChannelID: "dm-1",
		Direct:    true,
	})
	if len(rec.direct) != 1 || len(rec.channel) != 0 {
		t.Errorf("expected only a direct command, got channel=%d direct=%d",
			len(rec.channel), len(rec.direct))
	}
}

func TestHandleInboundIgnoresBotsAndCommands(t *testing.T) {
	rec, _, ingest := newIngestFixture(t)

	ingest.HandleInbound(context.Background(), InboundMessage{
		Author: "botmind", Content: "echo", ChannelID: "c-1", FromBot: true,
	})
	ingest.HandleInbound(context.Background(), InboundMessage{
		Author: "alice", Content: "/help", ChannelID: "c-1",
	})
	if len(rec.channel) != 0 || len(rec.direct) != 0 {
		t.Error("expected bot messages and slash commands ignored")
	}
}

func TestHandleInboundFailureRepliesToUser(t *testing.T) {
	rec, delivery, ingest := newIngestFixture(t)
	rec.fail = core.ValidationError("bad input")

	ingest.HandleInbound(context.Background(), InboundMessage{
		Author: "alice", Content: "hi", ChannelID: "c-1",
	})
	if delivery.count() != 1 {
		t.Fatalf("expected 1 error reply, got %d", delivery.count())
	}
	if delivery.sent[0].Content != UserMessage(rec.fail) {
		t.Errorf("expected translated reply, got %q", delivery.sent[0].Content)
	}
	if strings.Contains(delivery.sent[0].Content, "bad input") {
		t.Error("internal detail must not reach the user")
	}
}

func TestUserMessageTranslations(t *testing.T) {
	if UserMessage(nil) != "" {
		t.Error("expected empty translation for nil error")
	}
	seen := map[string]bool{}
	for _, err := range []*core.UseCaseError{
		core.ValidationError("v"),
		core.NotFoundError("n"),
		core.ConcurrencyError("c"),
		core.UnexpectedError("u"),
	} {
		msg := UserMessage(err)
		if msg == "" {
			t.Errorf("expected a reply for kind %s", err.Kind)
		}
		if strings.Contains(msg, err.Message) {
			t.Errorf("reply for %s leaks the internal message", err.Kind)
		}
		seen[msg] = true
	}
	if len(seen) != 4 {
		t.Errorf("expected distinct replies per kind, got %d", len(seen))
	}
}

func TestIngestWebhook(t *testing.T) {
	rec, _, ingest := newIngestFixture(t)
	router := chi.NewRouter()
	ingest.Mount(router)

	body := `{"author":"alice","content":"hi","channel_id":"c-1"}`
	req := httptest.NewRequest(http.MethodPost, "/ingest/message", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", w.Code)
	}
	if len(rec.channel) != 1 {
		t.Errorf("expected 1 dispatched command, got %d", len(rec.channel))
	}
}

func TestIngestWebhookRejectsBadBodies(t *testing.T) {
	_, _, ingest := newIngestFixture(t)
	router := chi.NewRouter()
	ingest.Mount(router)

	for _, body := range []string{"{not json", `{"author":"a"}`, `{"content":"hi"}`} {
		req := httptest.NewRequest(http.MethodPost, "/ingest/message", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for %q, got %d", body, w.Code)
		}
	}
}

func TestDiscordDeliverySend(t *testing.T) {
	var gotAuth, gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, err := NewDiscordDelivery("token-1")
	if err != nil {
		t.Fatalf("NewDiscordDelivery failed: %v", err)
	}
	d.baseURL = srv.URL

	if err := d.Send(context.Background(), "c-42", "hello"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotAuth != "Bot token-1" {
		t.Errorf("expected bot auth header, got %q", gotAuth)
	}
	if gotPath != "/channels/c-42/messages" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if !strings.Contains(gotBody, `"content":"hello"`) {
		t.Errorf("unexpected body %s", gotBody)
	}
}

func TestDiscordDeliveryErrors(t *testing.T) {
	if _, err := NewDiscordDelivery(""); err == nil {
		t.Error("expected error for empty token")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	d, _ := NewDiscordDelivery("t")
	d.baseURL = srv.URL
	if err := d.Send(context.Background(), "c", "x"); err == nil {
		t.Error("expected error for non-2xx response")
	}
}
