package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClassifyLLMError(t *testing.T) {
	tests := []struct {
		err  error
		want RetryClass
	}{
		{errors.New("HTTP 429 Too Many Requests"), RetryClassRetryable},
		{errors.New("503 service unavailable"), RetryClassRetryable},
		{errors.New("dial tcp: connection refused"), RetryClassRetryable},
		{context.DeadlineExceeded, RetryClassMaybe},
		{errors.New("maximum context length exceeded"), RetryClassMaybe},
		{errors.New("401 unauthorized"), RetryClassNonRetryable},
		{errors.New("something odd"), RetryClassNonRetryable},
		{NewEngineError(errors.New("x"), RetryClassRetryable), RetryClassRetryable},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := ClassifyLLMError(tt.err); got != tt.want {
				t.Errorf("ClassifyLLMError() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyToolError(t *testing.T) {
	timeout := errors.New("tool grep timed out after 1s")
	if got := ClassifyToolError(timeout, true); got != RetryClassRetryable {
		t.Errorf("retryable tool timeout = %s", got)
	}
	if got := ClassifyToolError(timeout, false); got != RetryClassNonRetryable {
		t.Errorf("non-retryable tool timeout = %s", got)
	}
	if got := ClassifyToolError(errors.New("file not found"), true); got != RetryClassNonRetryable {
		t.Errorf("not found = %s", got)
	}
}

func TestBackoffDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second}
	for attempt, w := range want {
		if got := BackoffDelay(p, attempt, nil); got != w {
			t.Errorf("BackoffDelay(%d) = %v, want %v", attempt, got, w)
		}
	}

	ra := &EngineError{Err: errors.New("rate limited"), Class: RetryClassRetryable, RetryAfter: "3"}
	if got := BackoffDelay(p, 0, ra); got != time.Second {
		t.Errorf("Retry-After capped = %v, want 1s", got)
	}

	p.Jitter = true
	for i := 0; i < 20; i++ {
		got := BackoffDelay(p, 0, nil)
		if got < 100*time.Millisecond || got > 120*time.Millisecond {
			t.Fatalf("jittered delay %v out of range", got)
		}
	}
}

func TestRetryWithPolicy(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	calls := 0
	got, err := RetryWithPolicy(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("503")
		}
		return "ok", nil
	}, ClassifyLLMError, nil)
	if err != nil || got != "ok" || calls != 3 {
		t.Fatalf("got=%q err=%v calls=%d", got, err, calls)
	}

	calls = 0
	_, err = RetryWithPolicy(context.Background(), p, func(context.Context) (string, error) {
		calls++
		return "", errors.New("503")
	}, ClassifyLLMError, nil)
	if !IsRetryExhausted(err) || calls != 3 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}

	calls = 0
	_, err = RetryWithPolicy(context.Background(), p, func(context.Context) (string, error) {
		calls++
		return "", fmt.Errorf("400 bad request")
	}, ClassifyLLMError, nil)
	if err == nil || IsRetryExhausted(err) || calls != 1 {
		t.Fatalf("non-retryable: err=%v calls=%d", err, calls)
	}
}
