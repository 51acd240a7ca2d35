// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the list clients.
package httputil

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// RetryBaseDelay is the first backoff when a list server answers 429
	// without a usable Retry-After header. It doubles on every attempt.
	RetryBaseDelay = 10 * time.Second

	// MaxRetryAfter caps how long a Retry-After header can make a refresh wait.
	MaxRetryAfter = 2 * time.Minute
)

const defaultMaxRetries = 5

// DoWithRetry sends req and repeats it while the server answers 429. The
// wait honors Retry-After (seconds or HTTP date, capped at MaxRetryAfter)
// and otherwise backs off exponentially from RetryBaseDelay. maxRetries <= 0
// means 5. Once retries run out the last 429 response is returned for the
// caller to report.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}

		wait := retryDelay(resp.Header.Get("Retry-After"), attempt, time.Now())
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		slog.WarnContext(ctx, "list server rate limited request",
			"host", req.URL.Host, "wait", wait, "attempt", attempt+1, "max_retries", maxRetries)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// retryDelay picks the wait before retry number attempt+1.
func retryDelay(retryAfter string, attempt int, now time.Time) time.Duration {
	if d, ok := parseRetryAfter(strings.TrimSpace(retryAfter), now); ok {
		return min(d, MaxRetryAfter)
	}
	return RetryBaseDelay << attempt
}

func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	at, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	return max(at.Sub(now), 0), true
}
