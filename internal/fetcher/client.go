package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/quantmind-br/readtree-go/internal/domain"
	"github.com/quantmind-br/readtree-go/pkg/version"
	"github.com/rs/zerolog"
)

// ClientOptions contains options for creating an HTTP client
type ClientOptions struct {
	// Timeout bounds connection setup and the wait for response headers.
	// Body reads are bounded by the request context only.
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
	Retrier    *RetrierOptions
	Logger     *zerolog.Logger
}

// DefaultClientOptions returns default client options
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:    60 * time.Second,
		MaxRetries: 3,
		UserAgent:  version.UserAgent(),
	}
}

// NewHTTPClient creates an *http.Client whose transport retries idempotent
// requests on throttling and gateway errors.
func NewHTTPClient(opts ClientOptions) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = version.UserAgent()
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.DialContext = (&net.Dialer{Timeout: opts.Timeout, KeepAlive: 30 * time.Second}).DialContext
	base.TLSHandshakeTimeout = opts.Timeout
	base.ResponseHeaderTimeout = opts.Timeout

	return &http.Client{
		Transport: NewRetryTransport(base, opts),
	}
}

// RetryTransport is an http.RoundTripper that retries GET and HEAD requests
// answered with a retryable status. Successful bodies are never buffered.
type RetryTransport struct {
	base      http.RoundTripper
	retrier   *Retrier
	userAgent string
}

// NewRetryTransport wraps base with retry and User-Agent handling
func NewRetryTransport(base http.RoundTripper, opts ClientOptions) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}

	ropts := DefaultRetrierOptions()
	if opts.Retrier != nil {
		ropts = *opts.Retrier
	}
	ropts.MaxRetries = opts.MaxRetries
	if opts.Logger != nil && ropts.OnRetry == nil {
		logger := opts.Logger
		ropts.OnRetry = func(err error, wait time.Duration) {
			logger.Debug().Err(err).Dur("wait", wait).Msg("Retrying request")
		}
	}

	return &RetryTransport{
		base:      base,
		retrier:   NewRetrier(ropts),
		userAgent: opts.UserAgent,
	}
}

// RoundTrip implements http.RoundTripper
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return t.base.RoundTrip(t.prepare(req.Context(), req))
	}

	ctx := req.Context()
	return RetryWithValue(ctx, t.retrier, func() (*http.Response, error) {
		resp, err := t.base.RoundTrip(t.prepare(ctx, req))
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			return nil, &domain.RetryableError{Err: domain.NewFetchError(req.URL.String(), 0, err)}
		}

		if ShouldRetryStatus(resp.StatusCode) {
			retryAfter := ParseRetryAfter(resp.Header.Get("Retry-After"))
			drain(resp.Body)
			return nil, &domain.RetryableError{
				Err:        domain.NewFetchError(req.URL.String(), resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)),
				RetryAfter: int(retryAfter.Seconds()),
			}
		}

		return resp, nil
	})
}

// prepare clones req for one attempt, since a RoundTripper must not modify its input
func (t *RetryTransport) prepare(ctx context.Context, req *http.Request) *http.Request {
	out := req.Clone(ctx)
	if t.userAgent != "" && out.Header.Get("User-Agent") == "" {
		out.Header.Set("User-Agent", t.userAgent)
	}
	return out
}

// drain discards a bounded amount of body so the connection can be reused
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
