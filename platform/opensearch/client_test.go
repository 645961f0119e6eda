package opensearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSearchPostsToIndexAndDecodesHits(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"took":3,"hits":{"total":{"value":42,"relation":"eq"},"hits":[{"_id":"7","_score":1.5,"_source":{"product_id":7}}]}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Index: "products_current"})
	resp, err := client.Search(context.Background(), map[string]interface{}{"size": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/products_current/_search" {
		t.Fatalf("expected index search path, got %q", gotPath)
	}
	if gotBody["size"] != float64(1) {
		t.Fatalf("expected body to be forwarded, got %v", gotBody)
	}
	if resp.Hits.Total.Value != 42 || len(resp.Hits.Hits) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Hits.Hits[0].Score == nil || *resp.Hits.Hits[0].Score != 1.5 {
		t.Fatalf("expected score 1.5")
	}
}

func TestSearchReturnsStatusErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"cluster_block_exception"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Index: "products_current"})
	_, err := client.Search(context.Background(), map[string]interface{}{})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", statusErr.StatusCode)
	}
}

func TestPingHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(Config{BaseURL: srv.URL, Index: "products_current"})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := client.Ping(ctx)
	if err == nil {
		t.Fatalf("expected ping to fail on deadline")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("ping was not cancelled promptly")
	}
}

func TestPingSendsBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"version":{"number":"2.11.0"}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Index: "x", Username: "admin", Password: "secret"})
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
