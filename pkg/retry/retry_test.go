package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDelaySchedule(t *testing.T) {
	p := Policy{
		InitialDelay: 1000 * time.Millisecond,
		MaxDelay:     30000 * time.Millisecond,
		Multiplier:   2,
	}

	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
		30000 * time.Millisecond,
		30000 * time.Millisecond,
	}
	for n, w := range want {
		if got := p.Delay(n); got != w {
			t.Errorf("Delay(%d): got %v, want %v", n, got, w)
		}
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3}, 0, func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 2}, 0, func(context.Context) error {
		calls++
		return boom
	})
	if calls != 3 {
		t.Errorf("calls: got %d, want 3 (initial + 2 retries)", calls)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected last attempt error, got %v", err)
	}
}

func TestDoZeroAttemptsMeansSingleTry(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 0}, 0, func(context.Context) error {
		calls++
		return boom
	})
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected attempt error, got %v", err)
	}
}

func TestDoRespectsShouldRetry(t *testing.T) {
	terminal := errors.New("terminal")
	calls := 0
	p := Policy{
		MaxAttempts: 5,
		ShouldRetry: func(err error) bool { return false },
	}
	err := Do(context.Background(), p, 0, func(context.Context) error {
		calls++
		return terminal
	})
	if calls != 1 {
		t.Errorf("calls: got %d, want 1 (non-retryable)", calls)
	}
	if !errors.Is(err, terminal) {
		t.Errorf("expected terminal error, got %v", err)
	}
}

func TestDoRetriesOnlyTransientErrors(t *testing.T) {
	transient := errors.New("transient")
	terminal := errors.New("terminal")
	calls := 0
	p := Policy{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		Multiplier:   2,
		ShouldRetry:  func(err error) bool { return errors.Is(err, transient) },
	}
	err := Do(context.Background(), p, 0, func(context.Context) error {
		calls++
		if calls < 3 {
			return transient
		}
		return terminal
	})
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
	if !errors.Is(err, terminal) {
		t.Errorf("expected terminal error, got %v", err)
	}
}

func TestDoOverallTimeout(t *testing.T) {
	boom := errors.New("boom")
	p := Policy{
		MaxAttempts:  100,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   1,
	}
	start := time.Now()
	err := Do(context.Background(), p, 80*time.Millisecond, func(context.Context) error {
		return boom
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("timeout error should wrap last attempt error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout not honored, took %v", elapsed)
	}
}

func TestDoParentCancellationIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	boom := errors.New("boom")
	p := Policy{
		MaxAttempts:  100,
		InitialDelay: 50 * time.Millisecond,
		Multiplier:   1,
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, p, time.Minute, func(context.Context) error {
		return boom
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("parent cancellation must not report ErrTimeout")
	}
}

func TestDoDoesNotSleepAfterLastAttempt(t *testing.T) {
	boom := errors.New("boom")
	p := Policy{
		MaxAttempts:  1,
		InitialDelay: 10 * time.Second,
		Multiplier:   2,
		ShouldRetry:  func(error) bool { return false },
	}
	start := time.Now()
	_ = Do(context.Background(), p, 0, func(context.Context) error { return boom })
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("terminal failure slept for %v", elapsed)
	}
}
