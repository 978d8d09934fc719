package httpapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"docbot/internal/http/handlers"
	"docbot/internal/metrics"
)

func TestRouterServesOpsEndpoints(t *testing.T) {
	m := metrics.New()
	m.Update("command")
	router := NewRouter(handlers.NewApp("veriftools", nil, nil), m.Handler(), zerolog.Nop(), nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	for path, want := range map[string]string{
		"/v1/healthz":   `"status":"ok"`,
		"/v1/templates": `"templates"`,
		"/metrics":      "docbot_updates_total",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), want) {
			t.Fatalf("GET %s = %d %s", path, resp.StatusCode, body)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Fatalf("GET %s: missing request id", path)
		}
	}
}

func TestRouterUnknownPath(t *testing.T) {
	router := NewRouter(handlers.NewApp("", nil, nil), nil, zerolog.Nop(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 without metrics", rec.Code)
	}
}
