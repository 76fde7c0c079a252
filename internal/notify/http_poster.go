package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const httpErrorBodyLimit = 1024

type timingConfig struct {
	timeout           time.Duration
	rateInterval      time.Duration
	rateBurst         int
	backoffMaxElapsed time.Duration
	backoffMax        time.Duration
	backoffInitial    time.Duration
}

// Boot sessions are short-lived, so retries give up well before a
// supervisor would consider the unit hung.
var defaultTiming = timingConfig{
	timeout:           5 * time.Second,
	rateInterval:      1 * time.Second,
	rateBurst:         1,
	backoffMaxElapsed: 15 * time.Second,
	backoffMax:        5 * time.Second,
	backoffInitial:    500 * time.Millisecond,
}

// httpPoster POSTs payloads to a single endpoint. Retries are driven by
// backoff; retryablehttp only supplies the request plumbing.
type httpPoster struct {
	logger      zerolog.Logger
	target      string
	endpoint    string
	contentType string
	client      *retryablehttp.Client
	timing      timingConfig
	limiters    map[string]*rate.Limiter
	limiterMu   sync.Mutex
}

func newHTTPPoster(logger zerolog.Logger, target, endpoint, contentType string, timing timingConfig) *httpPoster {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = func(context.Context, *http.Response, error) (bool, error) {
		return false, nil
	}
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: timing.timeout}

	return &httpPoster{
		logger:      logger.With().Str("notifier", target).Logger(),
		target:      target,
		endpoint:    endpoint,
		contentType: contentType,
		client:      client,
		timing:      timing,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// deliver waits for the per-key limiter and posts every payload in order.
func (p *httpPoster) deliver(ctx context.Context, key string, payloads ...[]byte) error {
	if err := p.waitForRateLimit(ctx, key); err != nil {
		return err
	}
	for _, payload := range payloads {
		if err := p.postWithRetry(ctx, payload); err != nil {
			return err
		}
	}
	return nil
}

func (p *httpPoster) waitForRateLimit(ctx context.Context, key string) error {
	return p.limiter(key).Wait(ctx)
}

func (p *httpPoster) limiter(key string) *rate.Limiter {
	p.limiterMu.Lock()
	defer p.limiterMu.Unlock()

	if limiter, ok := p.limiters[key]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Every(p.timing.rateInterval), p.timing.rateBurst)
	p.limiters[key] = limiter
	return limiter
}

func (p *httpPoster) postWithRetry(ctx context.Context, payload []byte) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.timing.backoffInitial
	policy.MaxInterval = p.timing.backoffMax
	policy.MaxElapsedTime = p.timing.backoffMaxElapsed
	policy.Reset()

	for attempt := 1; ; attempt++ {
		err := p.postOnce(ctx, payload)
		if err == nil {
			return nil
		}

		var wait time.Duration
		var retryAfter *retryAfterError
		var retryable *retryableError
		switch {
		case errors.As(err, &retryAfter):
			wait = retryAfter.Duration
		case errors.As(err, &retryable):
			wait = policy.NextBackOff()
			if wait == backoff.Stop {
				return err
			}
		default:
			return err
		}

		p.logger.Debug().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("retrying notification")
		if !sleepWithContext(ctx, wait) {
			return ctx.Err()
		}
	}
}

func (p *httpPoster) postOnce(ctx context.Context, payload []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, p.timing.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", p.target, err)
	}
	req.Header.Set("Content-Type", p.contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("%s request failed: %w", p.target, err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, httpErrorBodyLimit))
	bodyText := strings.TrimSpace(string(body))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		limited := fmt.Errorf("%s rate limited: %s", p.target, resp.Status)
		if wait, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			return &retryAfterError{Duration: wait, err: limited}
		}
		return &retryableError{err: limited}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &retryableError{err: fmt.Errorf("%s server error: %s", p.target, resp.Status)}
	case bodyText != "":
		return fmt.Errorf("%s request failed: %s (%s)", p.target, resp.Status, bodyText)
	default:
		return fmt.Errorf("%s request failed: %s", p.target, resp.Status)
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if wait := time.Until(when); wait > 0 {
			return wait, true
		}
	}
	return 0, false
}

func sleepWithContext(ctx context.Context, wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }

func (e *retryableError) Unwrap() error { return e.err }

type retryAfterError struct {
	Duration time.Duration
	err      error
}

func (e *retryAfterError) Error() string {
	return fmt.Sprintf("rate limited; retry after %s", e.Duration)
}

func (e *retryAfterError) Unwrap() error { return e.err }
