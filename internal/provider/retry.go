package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

const (
	maxRetries         = 3
	defaultHTTPTimeout = 60 * time.Second
)

// transientError is a response status worth retrying (5xx, 429).
type transientError struct {
	status int
	body   string
}

func (e *transientError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.status, e.body)
}

func retryable(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

// backoffDelay grows quadratically with the attempt number plus jitter.
func backoffDelay(attempt int) time.Duration {
	base := time.Duration(attempt*attempt) * time.Second
	return base + time.Duration(rand.Int64N(int64(base/2 + 1)))
}

// doWithRetry sends the request built by buildReq, retrying transient
// failures (connection errors, 5xx, 429) with backoff. The request is
// rebuilt for every attempt so its body can be re-read. Cancellation of ctx
// aborts the wait between attempts.
func doWithRetry(ctx context.Context, client *http.Client, buildReq func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			logger.Warn("retrying request", "attempt", attempt+1, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if retryable(resp.StatusCode) {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = &transientError{status: resp.StatusCode, body: string(body)}
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}
