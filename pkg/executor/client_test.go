package executor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSubmitPostsTask(t *testing.T) {
	var got Task
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "api-key", 5*time.Second)
	task := Task{
		RequestID:   "r1",
		Prompt:      "summarize the build failure",
		Channel:     "telegram",
		ChatID:      "42",
		CallbackURL: "https://relay.example.com/v1/callback",
	}
	if err := c.Submit(context.Background(), task); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if gotPath != "/v1/tasks" {
		t.Errorf("path: got %q, want /v1/tasks", gotPath)
	}
	if gotAuth != "Bearer api-key" {
		t.Errorf("authorization: got %q", gotAuth)
	}
	if got.RequestID != "r1" || got.CallbackURL != task.CallbackURL {
		t.Errorf("task mismatch: %+v", got)
	}
}

func TestSubmitStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad prompt", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second)
	err := c.Submit(context.Background(), Task{RequestID: "r1"})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusUnprocessableEntity {
		t.Errorf("code: got %d", statusErr.Code)
	}
	if statusErr.Body != "bad prompt" {
		t.Errorf("body: got %q", statusErr.Body)
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"network error", errors.New("dial tcp: connection refused"), true},
		{"429", &StatusError{Code: http.StatusTooManyRequests}, true},
		{"500", &StatusError{Code: http.StatusInternalServerError}, true},
		{"503", &StatusError{Code: http.StatusServiceUnavailable}, true},
		{"400", &StatusError{Code: http.StatusBadRequest}, false},
		{"404", &StatusError{Code: http.StatusNotFound}, false},
		{"422", &StatusError{Code: http.StatusUnprocessableEntity}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Retryable(tc.err); got != tc.want {
				t.Errorf("Retryable(%v): got %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestSubmitNetworkErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewClient(srv.URL, "", time.Second)
	err := c.Submit(context.Background(), Task{RequestID: "r1"})
	if err == nil {
		t.Fatal("expected error against closed server")
	}
	if !Retryable(err) {
		t.Errorf("network error should be retryable: %v", err)
	}
}
