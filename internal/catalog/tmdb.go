// Package catalog looks up movie and series metadata in TMDB.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"watch-match-backend/internal/config"
	"watch-match-backend/internal/metrics"
	"watch-match-backend/internal/models"
)

// ErrTitleNotFound is returned when the catalog has no such item
var ErrTitleNotFound = errors.New("title not found")

// Title is the catalog metadata for one item
type Title struct {
	ID       int64            `json:"id"`
	Kind     models.MediaKind `json:"type"`
	Title    string           `json:"title"`
	Poster   string           `json:"poster,omitempty"`
	Overview string           `json:"overview,omitempty"`
}

// tmdbTitle covers both movie and tv detail responses
type tmdbTitle struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Name       string `json:"name"`
	PosterPath string `json:"poster_path"`
	Overview   string `json:"overview"`
}

// Client is a TMDB client guarded by a circuit breaker
type Client struct {
	httpClient   *http.Client
	baseURL      string
	imageBaseURL string
	apiKey       string
	breaker      *gobreaker.CircuitBreaker[*Title]
}

// NewClient creates a catalog client
func NewClient(cfg config.CatalogConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
		apiKey:       cfg.APIKey,
		breaker: gobreaker.NewCircuitBreaker[*Title](gobreaker.Settings{
			Name:        "tmdb",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// a missing title is an answer, not an outage
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrTitleNotFound)
			},
		}),
	}
}

// Details fetches metadata for a movie or series
func (c *Client) Details(ctx context.Context, kind models.MediaKind, id int64) (*Title, error) {
	title, err := c.breaker.Execute(func() (*Title, error) {
		return c.fetch(ctx, kind, id)
	})

	switch {
	case err == nil:
		metrics.CatalogRequests.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrTitleNotFound):
		metrics.CatalogRequests.WithLabelValues("not_found").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CatalogRequests.WithLabelValues("circuit_open").Inc()
	default:
		metrics.CatalogRequests.WithLabelValues("error").Inc()
	}
	return title, err
}

func (c *Client) fetch(ctx context.Context, kind models.MediaKind, id int64) (*Title, error) {
	u := fmt.Sprintf("%s/%s/%d", c.baseURL, kind, id)
	if c.apiKey != "" {
		u += "?api_key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s %d: %w", kind, id, ErrTitleNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var body tmdbTitle
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}

	name := body.Title
	if name == "" {
		name = body.Name
	}
	return &Title{
		ID:       id,
		Kind:     kind,
		Title:    name,
		Poster:   c.PosterURL(body.PosterPath),
		Overview: body.Overview,
	}, nil
}

// PosterURL expands a TMDB poster path to an absolute URL
func (c *Client) PosterURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.imageBaseURL + path
}
