package clients

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrierStopsOnFirstSuccess(t *testing.T) {
	attempts := 0
	r := Retrier{MaxAttempts: 3, Backoff: time.Millisecond}
	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", attempts)
	}
}

func TestRetrierExhaustsAttempts(t *testing.T) {
	attempts := 0
	wantErr := errors.New("boom")
	r := Retrier{MaxAttempts: 3, Backoff: time.Millisecond}
	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return wantErr
	})
	if err != wantErr {
		t.Errorf("expected the last error to propagate, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetrierRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := Retrier{MaxAttempts: 3, Backoff: time.Millisecond}
	attempts := 0
	err := r.Do(ctx, func(ctx context.Context) error {
		attempts++
		return errors.New("boom")
	})
	if err == nil {
		t.Error("expected an error for a cancelled context")
	}
	if attempts != 0 {
		t.Errorf("expected no attempts once context is already cancelled, got %d", attempts)
	}
}
