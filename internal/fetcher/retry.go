package fetcher

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/quantmind-br/readtree-go/internal/domain"
)

// Retrier handles retry logic with exponential backoff
type Retrier struct {
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
	onRetry         func(err error, wait time.Duration)
}

// RetrierOptions contains options for creating a Retrier
type RetrierOptions struct {
	// MaxRetries is the number of retries after the first attempt. 0 disables retries.
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// OnRetry is called before each wait
	OnRetry func(err error, wait time.Duration)
}

// DefaultRetrierOptions returns default retrier options
func DefaultRetrierOptions() RetrierOptions {
	return RetrierOptions{
		MaxRetries:      3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}
}

// NewRetrier creates a new Retrier with the given options
func NewRetrier(opts RetrierOptions) *Retrier {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 3
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 1 * time.Second
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 30 * time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 2.0
	}

	return &Retrier{
		maxRetries:      opts.MaxRetries,
		initialInterval: opts.InitialInterval,
		maxInterval:     opts.MaxInterval,
		multiplier:      opts.Multiplier,
		onRetry:         opts.OnRetry,
	}
}

// retryAfterBackOff never waits less than the delay requested by the server
// for the last failed attempt
type retryAfterBackOff struct {
	backoff.BackOff
	floor time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next != backoff.Stop && b.floor > next {
		next = b.floor
	}
	b.floor = 0
	return next
}

// newBackoff creates a new exponential backoff. The returned retryAfterBackOff
// sits below the retry and context limits so a floor never outlives them.
func (r *Retrier) newBackoff(ctx context.Context) (backoff.BackOff, *retryAfterBackOff) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.Multiplier = r.multiplier
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()

	floor := &retryAfterBackOff{BackOff: b}
	return backoff.WithContext(backoff.WithMaxRetries(floor, uint64(r.maxRetries)), ctx), floor
}

func (r *Retrier) notify(err error, wait time.Duration) {
	if r.onRetry != nil {
		r.onRetry(err, wait)
	}
}

// RetryWithValue executes an operation with exponential backoff and returns a value.
// Only errors accepted by domain.IsRetryable are retried. A RetryableError
// carrying RetryAfter delays the next attempt by at least that long.
func RetryWithValue[T any](ctx context.Context, r *Retrier, operation func() (T, error)) (T, error) {
	var result T
	var lastErr error
	b, floor := r.newBackoff(ctx)

	err := backoff.RetryNotify(func() error {
		var err error
		result, err = operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}

		var retryable *domain.RetryableError
		if errors.As(err, &retryable) && retryable.RetryAfter > 0 {
			floor.floor = time.Duration(retryable.RetryAfter) * time.Second
		}
		return err
	}, b, r.notify)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && lastErr != nil && domain.IsRetryable(lastErr) {
			return result, ctxErr
		}
		return result, lastErr
	}

	return result, nil
}

// ShouldRetryStatus returns true if the HTTP status code should be retried
func ShouldRetryStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}

	// Cloudflare errors (520-530)
	return statusCode >= 520 && statusCode <= 530
}

// ParseRetryAfter parses the Retry-After header value, in seconds or as an HTTP date
func ParseRetryAfter(retryAfter string) time.Duration {
	retryAfter = strings.TrimSpace(retryAfter)
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(at); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
