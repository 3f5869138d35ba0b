// Package fetch is the transport to the racing API.
//
// It returns raw response bytes and classifies every failure as a *Error.
// Decoding and validation live in the repository package.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public racing API host.
const DefaultBaseURL = "https://api.neds.com.au"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// Fetcher requests pages of next-to-go races.
type Fetcher struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	online    Connectivity
	userAgent string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRateLimit bounds outgoing requests. One selection cycle can issue up to
// ten escalating requests back to back, so burst should cover that.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(f *Fetcher) {
		if perSecond <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithConnectivity installs a pre-flight check run before every request.
func WithConnectivity(c Connectivity) Option {
	return func(f *Fetcher) { f.online = c }
}

// WithHTTPClient replaces the HTTP client (tests, custom transports).
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// NewFetcher creates a Fetcher for baseURL with the given request timeout.
func NewFetcher(baseURL string, timeout time.Duration, opts ...Option) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	f := &Fetcher{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(4), 10),
		online:    AlwaysOnline{},
		userAgent: "nexttogo/1.0",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NextRaces requests the top count imminent races and returns the raw body.
func (f *Fetcher) NextRaces(ctx context.Context, count int) ([]byte, error) {
	return f.do(ctx, Endpoint{Kind: NextRaces, Count: count})
}

func (f *Fetcher) do(ctx context.Context, ep Endpoint) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, NewTransportError(ctx.Err())
	}

	method, target, err := ep.Resolve(f.baseURL)
	if err != nil {
		return nil, NewTransportError(err)
	}

	if !f.online.Online(ctx) {
		return nil, ErrOffline
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, NewTransportError(fmt.Errorf("rate limiter wait: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, NewTransportError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, NewTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, NewServerError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, NewTransportError(fmt.Errorf("read body: %w", err))
	}
	return body, nil
}
