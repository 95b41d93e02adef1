package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"watch-match-backend/internal/config"
	"watch-match-backend/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.CatalogConfig{
		BaseURL:      srv.URL,
		ImageBaseURL: "https://img.example/w500",
		APIKey:       "secret",
		Timeout:      time.Second,
	})
}

func TestDetailsMovie(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/603" {
			t.Errorf("path = %s, want /movie/603", r.URL.Path)
		}
		if got := r.URL.Query().Get("api_key"); got != "secret" {
			t.Errorf("api_key = %q, want secret", got)
		}
		w.Write([]byte(`{"id":603,"title":"The Matrix","poster_path":"/m.jpg","overview":"Neo"}`))
	})

	title, err := c.Details(context.Background(), models.MediaMovie, 603)
	if err != nil {
		t.Fatalf("Details() error = %v", err)
	}
	if title.Title != "The Matrix" {
		t.Errorf("Title = %q, want The Matrix", title.Title)
	}
	if title.Poster != "https://img.example/w500/m.jpg" {
		t.Errorf("Poster = %q", title.Poster)
	}
}

func TestDetailsSeriesUsesName(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":1399,"name":"Game of Thrones"}`))
	})

	title, err := c.Details(context.Background(), models.MediaTV, 1399)
	if err != nil {
		t.Fatalf("Details() error = %v", err)
	}
	if title.Title != "Game of Thrones" || title.Poster != "" {
		t.Errorf("got %+v", title)
	}
}

func TestDetailsNotFoundDoesNotTrip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < 10; i++ {
		_, err := c.Details(context.Background(), models.MediaMovie, 1)
		if !errors.Is(err, ErrTitleNotFound) {
			t.Fatalf("Details() error = %v, want ErrTitleNotFound", err)
		}
	}
	if c.breaker.State() != gobreaker.StateClosed {
		t.Errorf("breaker state = %v, want closed", c.breaker.State())
	}
}

func TestDetailsBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 5; i++ {
		if _, err := c.Details(context.Background(), models.MediaMovie, 1); err == nil {
			t.Fatal("Details() expected error")
		}
	}
	_, err := c.Details(context.Background(), models.MediaMovie, 1)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("Details() error = %v, want ErrOpenState", err)
	}
	if calls.Load() != 5 {
		t.Errorf("upstream calls = %d, want 5", calls.Load())
	}
}

func TestPosterURL(t *testing.T) {
	c := NewClient(config.CatalogConfig{ImageBaseURL: "https://img.example/w500/"})
	tests := map[string]string{
		"":                      "",
		"/a.jpg":                "https://img.example/w500/a.jpg",
		"a.jpg":                 "https://img.example/w500/a.jpg",
		"https://cdn.example/x": "https://cdn.example/x",
	}
	for in, want := range tests {
		if got := c.PosterURL(in); got != want {
			t.Errorf("PosterURL(%q) = %q, want %q", in, got, want)
		}
	}
}
