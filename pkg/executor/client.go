// Package executor is the HTTP client for the remote task executor.
//
// The executor accepts a task, works on it for however long it takes,
// and eventually POSTs the result to the callback URL included in the
// submission. Submit therefore only confirms receipt, never completion.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Task is the dispatch payload sent to the executor.
type Task struct {
	RequestID       string            `json:"request_id"`
	Prompt          string            `json:"prompt"`
	Channel         string            `json:"channel"`
	ChatID          string            `json:"chat_id"`
	OriginMessageID string            `json:"origin_message_id,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CallbackURL     string            `json:"callback_url"`
}

// StatusError is a non-2xx response from the executor.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("executor returned %d: %s", e.Code, e.Body)
}

// Retryable classifies an error from Submit for the retry policy:
// network failures, 429 and 5xx are transient; any other HTTP status is
// terminal (the executor rejected the task and will keep rejecting it).
func Retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}
	return true
}

// Client submits tasks to the executor.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Submit POSTs the task to /v1/tasks. A 2xx response means the executor
// accepted the task for asynchronous processing.
func (c *Client) Submit(ctx context.Context, task Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encoding task %s: %w", task.RequestID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tasks", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("submitting task %s: %w", task.RequestID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Bounded read keeps error messages usable without trusting the
	// remote side to be brief.
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}
