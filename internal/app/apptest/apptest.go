// Package apptest builds a fully wired App against miniredis, in-memory
// SQLite and a fake catalog API.
package apptest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"catalog/internal/app"
	"catalog/internal/config"
	"catalog/internal/logger"

	"github.com/alicebob/miniredis/v2"
)

var seq atomic.Int64

// Env is a test App plus handles on its fakes.
type Env struct {
	App      *app.App
	Redis    *miniredis.Miniredis
	Upstream *httptest.Server
	// Calls counts requests that reached the fake catalog API.
	Calls *atomic.Int32
}

// Option adjusts the config before the App is built.
type Option func(*config.Config)

// New returns an installed App. The fake catalog serves products 1..20 with
// an image hosted by the same server.
func New(t testing.TB, opts ...Option) *Env {
	t.Helper()

	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/products/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/products/"))
		if err != nil || id < 1 || id > 20 {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Product(id, "http://"+r.Host+"/img/"+strconv.Itoa(id)+".png"))
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\nimage"))
	})
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)

	mr := miniredis.RunT(t)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := &config.Config{
		DatabaseURL:       fmt.Sprintf("sqlite://file:app_%s_%d?mode=memory&cache=shared", name, seq.Add(1)),
		RedisURL:          "redis://" + mr.Addr() + "/0",
		PublicBaseURL:     "https://shop.example",
		CORSOrigins:       []string{"*"},
		JWTSecret:         "test-secret",
		NonceTTL:          time.Hour,
		FakeStoreBaseURL:  upstream.URL,
		MediaDir:          t.TempDir(),
		RateLimitRequests: 20,
		RateLimitWindow:   time.Minute,
		Env:               "test",
		LogLevel:          "error",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	a, err := app.New(cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	if err := a.Install(context.Background()); err != nil {
		t.Fatalf("failed to install app: %v", err)
	}

	return &Env{App: a, Redis: mr, Upstream: upstream, Calls: &calls}
}

// Product is the fake catalog's payload for id.
func Product(id int, image string) map[string]interface{} {
	return map[string]interface{}{
		"id":          id,
		"title":       fmt.Sprintf("Product %d", id),
		"description": "A fine product.\n\nMade with care.",
		"price":       float64(id) + 0.99,
		"category":    "electronics",
		"image":       image,
		"rating":      map[string]interface{}{"rate": 4.2, "count": 10},
	}
}
