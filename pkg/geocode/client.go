// Package geocode resolves free-text addresses to coordinates via the
// Nominatim API, with the rate limiting its usage policy requires.
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client geocodes a single free-text query.
type Client interface {
	// Geocode returns the best match for a query. A query with no match is
	// not an error: the result has Matched=false.
	Geocode(ctx context.Context, query string) (*Result, error)
}

// Result holds the geocoding output for a query.
type Result struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
	Matched     bool
}

// Option configures the Nominatim client.
type Option func(*nominatim)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *nominatim) {
		g.httpClient = hc
	}
}

// WithBaseURL overrides the Nominatim endpoint (used in tests).
func WithBaseURL(u string) Option {
	return func(g *nominatim) {
		g.baseURL = u
	}
}

// WithUserAgent sets the User-Agent header. Nominatim's usage policy
// requires an identifying agent.
func WithUserAgent(ua string) Option {
	return func(g *nominatim) {
		g.userAgent = ua
	}
}

// WithMinDelay sets the minimum delay between consecutive requests.
func WithMinDelay(d time.Duration) Option {
	return func(g *nominatim) {
		g.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *nominatim) {
		g.timeout = d
	}
}

// NewClient creates a Nominatim-backed Client. Defaults follow the public
// Nominatim usage policy: one request per second, 15s request timeout.
func NewClient(opts ...Option) Client {
	g := &nominatim{
		baseURL:   "https://nominatim.openstreetmap.org",
		userAgent: "family-mapper/0.1",
		timeout:   15 * time.Second,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{Timeout: g.timeout}
	}
	return g
}
