package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 1 << 20

// APIError is a non-2xx answer from a provider API
type APIError struct {
	Provider   string
	StatusCode int
	Type       string // provider error type, if reported
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s API error (%d): %s - %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// errorDecoder pulls the error type and message out of a provider error body
type errorDecoder func(body []byte) (errType, message string)

// endpoint is a JSON HTTP API with a fixed header set
type endpoint struct {
	provider    string
	client      *http.Client
	headers     map[string]string
	decodeError errorDecoder
}

// post sends in as JSON and decodes the answer into out
func (e endpoint) post(ctx context.Context, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return e.do(req, out)
}

// get fetches url and decodes the answer into out (out may be nil)
func (e endpoint) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return e.do(req, out)
}

func (e endpoint) do(req *http.Request, out any) error {
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Provider: e.provider, StatusCode: resp.StatusCode, Message: truncate(string(body), 200)}
		if e.decodeError != nil {
			if typ, msg := e.decodeError(body); msg != "" {
				apiErr.Type, apiErr.Message = typ, msg
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
