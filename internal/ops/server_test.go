package ops

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"go.botmind.dev/internal/health"
)

func opsTestServer(t *testing.T, mounts ...func(chi.Router)) *httptest.Server {
	t.Helper()
	s := NewServer(0, []string{"*"}, health.NewChecker(), mounts...)
	srv := httptest.NewServer(s.server.Handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestServerHealthRoutes(t *testing.T) {
	srv := opsTestServer(t)

	for _, path := range []string{"/q/health", "/q/health/live", "/q/health/ready"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status %d", path, resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if !strings.Contains(string(body), "UP") {
			t.Errorf("GET %s body %q", path, body)
		}
	}
}

func TestServerMetricsRoute(t *testing.T) {
	srv := opsTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status %d", resp.StatusCode)
	}
}

func TestServerExtraMounts(t *testing.T) {
	srv := opsTestServer(t, func(r chi.Router) {
		r.Post("/webhooks/echo", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
	})

	resp, err := http.Post(srv.URL+"/webhooks/echo", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST mount: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("mounted route status %d", resp.StatusCode)
	}
}
