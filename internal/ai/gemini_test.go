package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.botmind.dev/internal/domain"
)

func geminiServer(t *testing.T, reply string, capture *geminiRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{
					"role":  "model",
					"parts": []map[string]string{{"text": reply}},
				}},
			},
		})
	}))
}

func TestGeminiGenerate(t *testing.T) {
	var captured geminiRequest
	srv := geminiServer(t, "generated text", &captured)
	defer srv.Close()

	g, err := NewGemini(GeminiConfig{APIKey: "key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewGemini failed: %v", err)
	}

	got, err := g.Generate(context.Background(), Request{
		SystemInstruction: "be brief",
		History: []*domain.ChatMessage{
			domain.NewUserMessage("hello", time.Now()),
			domain.NewModelMessage("hi!", time.Now()),
		},
		Prompt: "how are you",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "generated text" {
		t.Errorf("expected generated text, got %q", got)
	}

	if captured.SystemInstruction == nil || captured.SystemInstruction.Parts[0].Text != "be brief" {
		t.Errorf("expected system instruction forwarded, got %+v", captured.SystemInstruction)
	}
	if len(captured.Contents) != 3 {
		t.Fatalf("expected history plus prompt, got %d contents", len(captured.Contents))
	}
	if captured.Contents[0].Role != "user" || captured.Contents[1].Role != "model" {
		t.Errorf("unexpected history roles %s, %s", captured.Contents[0].Role, captured.Contents[1].Role)
	}
	if captured.Contents[2].Role != "user" || captured.Contents[2].Parts[0].Text != "how are you" {
		t.Errorf("expected prompt last, got %+v", captured.Contents[2])
	}
}

func TestGeminiProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g, _ := NewGemini(GeminiConfig{APIKey: "key", BaseURL: srv.URL})
	if _, err := g.Generate(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestGeminiEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	g, _ := NewGemini(GeminiConfig{APIKey: "key", BaseURL: srv.URL})
	if _, err := g.Generate(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Error("expected error for empty candidates")
	}
}

func TestNewGeminiRequiresAPIKey(t *testing.T) {
	if _, err := NewGemini(GeminiConfig{}); err == nil {
		t.Error("expected error without api key")
	}
}
