package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	maxRetries   = 3
	maxBodyBytes = 4 << 20
)

// retrySleepFunc waits between retries (injectable for tests)
var retrySleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryBackoff is the first backoff; it doubles per attempt
var retryBackoff = 200 * time.Millisecond

// statusError carries a non-2xx HTTP status
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// getJSON fetches rawURL and decodes the JSON body into v.
// 404 is a miss. 429 and 5xx are retried with exponential backoff until ctx
// expires or the retries run out.
func getJSON(ctx context.Context, client *http.Client, rawURL string, headers map[string]string, v any) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = getJSONOnce(ctx, client, rawURL, headers, v)
		if !isRetryable(err) {
			return err
		}
		if attempt < maxRetries-1 {
			backoff := retryBackoff * time.Duration(1<<uint(attempt))
			if sleepErr := retrySleepFunc(ctx, backoff); sleepErr != nil {
				return err
			}
		}
	}
	return err
}

func getJSONOnce(ctx context.Context, client *http.Client, rawURL string, headers map[string]string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrMiss
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return &statusError{Code: resp.StatusCode, Body: snippet}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// isRetryable returns true for errors that indicate transient failures
func isRetryable(err error) bool {
	se, ok := err.(*statusError)
	if !ok {
		return false
	}
	return se.Code == http.StatusTooManyRequests || (se.Code >= 500 && se.Code < 600)
}
