// Package httpretry provides an HTTP client that retries rate-limited and
// failed upstream calls with exponential backoff.
//
// Two policies are supported. PolicyBounded gives up after MaxRetries and
// suits on-demand calls a user is waiting on. PolicyUnbounded backs off in
// minutes and keeps going until the upstream recovers or the context ends,
// which suits background refreshes.
package httpretry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/mailshake-monitor/internal/pkg/logger"
)

// DefaultAttemptTimeout bounds a single attempt, including reading the body.
const DefaultAttemptTimeout = 60 * time.Second

// HTTPDoer is the interface for executing HTTP requests.
// Both *http.Client and *RetryClient satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Policy selects the backoff strategy.
type Policy int

const (
	// PolicyBounded retries up to MaxRetries times, waiting BaseDelay*2^attempt
	// or the server's Retry-After.
	PolicyBounded Policy = iota
	// PolicyUnbounded retries forever, waiting UnitDelay*2^attempt capped at MaxDelay.
	PolicyUnbounded
)

func (p Policy) String() string {
	if p == PolicyUnbounded {
		return "unbounded"
	}
	return "bounded"
}

// ParsePolicy maps "bounded"/"unbounded" to a Policy. Anything else is bounded.
func ParsePolicy(s string) Policy {
	if strings.EqualFold(strings.TrimSpace(s), "unbounded") {
		return PolicyUnbounded
	}
	return PolicyBounded
}

// RetryEvent describes one decision to retry.
type RetryEvent struct {
	Attempt     int // 1 for the first retry
	StatusCode  int // 0 when the attempt failed in transport
	Err         error
	Delay       time.Duration
	NextAttempt time.Time
}

// Options configures a RetryClient. Zero values take the defaults noted.
type Options struct {
	Policy     Policy
	MaxRetries int           // bounded only, default 5
	BaseDelay  time.Duration // bounded only, default 1s
	UnitDelay  time.Duration // unbounded only, default 1m
	MaxDelay   time.Duration // unbounded only, default 30m
	// OnRetry is called before every backoff wait.
	OnRetry func(req *http.Request, ev RetryEvent)
}

// UpstreamError is returned once bounded retries are exhausted.
type UpstreamError struct {
	URL        string
	StatusCode int // last status seen, 0 if the last attempt failed in transport
	Attempts   int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s failed with status %d after %d attempts", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("upstream %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// RetryClient wraps an HTTPDoer with retry logic.
type RetryClient struct {
	client HTTPDoer
	opts   Options
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryClient creates a new RetryClient that wraps the given HTTPDoer.
// If client is nil, an http.Client with DefaultAttemptTimeout is used.
func NewRetryClient(client HTTPDoer, opts Options) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: DefaultAttemptTimeout}
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.UnitDelay <= 0 {
		opts.UnitDelay = time.Minute
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Minute
	}
	return &RetryClient{
		client: client,
		opts:   opts,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Policy returns the configured backoff policy.
func (rc *RetryClient) Policy() Policy { return rc.opts.Policy }

// Do executes the HTTP request with retry logic.
// It retries on 429, any 5xx, and transport errors (including per-attempt
// timeouts). Other statuses are returned to the caller as-is. Context
// cancellation stops retrying immediately.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	target := logger.RedactQueryParam(req.URL.String(), "apiKey")
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("httpretry: %w (last error: %v)", err, lastErr)
			}
			return nil, err
		}

		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("httpretry: failed to reset request body: %w", err)
			}
			req.Body = body
		}

		status := 0
		var retryAfter time.Duration

		resp, err := rc.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
		} else {
			if !isRetryableStatus(resp.StatusCode) {
				return resp, nil
			}
			status = resp.StatusCode
			retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), rc.now())
			// Drain for connection reuse
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("server returned retryable status %d", status)
		}

		if rc.opts.Policy == PolicyBounded && attempt >= rc.opts.MaxRetries {
			return nil, &UpstreamError{URL: target, StatusCode: status, Attempts: attempt + 1, Err: lastErr}
		}

		delay := rc.calculateDelay(attempt, retryAfter)
		ev := RetryEvent{
			Attempt:     attempt + 1,
			StatusCode:  status,
			Err:         lastErr,
			Delay:       delay,
			NextAttempt: rc.now().Add(delay),
		}
		logger.Warn("httpretry: retrying upstream request",
			"url", target,
			"status", status,
			"attempt", ev.Attempt,
			"policy", rc.opts.Policy.String(),
			"delay", delay.String(),
			"next_attempt", ev.NextAttempt.UTC().Format(time.RFC3339),
			"err", lastErr,
		)
		if rc.opts.OnRetry != nil {
			rc.opts.OnRetry(req, ev)
		}

		if err := rc.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("httpretry: %w (last error: %v)", err, lastErr)
		}
	}
}

// calculateDelay returns the wait before retry number attempt+1.
func (rc *RetryClient) calculateDelay(attempt int, retryAfter time.Duration) time.Duration {
	if rc.opts.Policy == PolicyUnbounded {
		// Cap the exponent so the float never overflows on long outages.
		exp := math.Min(float64(attempt), 32)
		d := float64(rc.opts.UnitDelay) * math.Pow(2, exp)
		if d > float64(rc.opts.MaxDelay) {
			return rc.opts.MaxDelay
		}
		return time.Duration(d)
	}
	if retryAfter > 0 {
		return retryAfter
	}
	return time.Duration(float64(rc.opts.BaseDelay) * math.Pow(2, float64(attempt)))
}

// parseRetryAfter understands both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// isRetryableStatus returns true for 429 and every 5xx.
func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= 500 && statusCode <= 599)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsUpstreamError reports whether err is (or wraps) an UpstreamError.
func IsUpstreamError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
