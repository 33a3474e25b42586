package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestViolationStoreClientWriteSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewViolationStoreClient(srv.URL, http.DefaultClient, nil)
	err := c.Write(context.Background(), &ViolationRecord{SessionID: "s1"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if c.PendingCount() != 0 {
		t.Errorf("expected no pending retries, got %d", c.PendingCount())
	}
}

func TestViolationStoreClientQueuesOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewViolationStoreClient(srv.URL, http.DefaultClient, nil)
	c.Retrier = Retrier{MaxAttempts: 1}
	err := c.Write(context.Background(), &ViolationRecord{SessionID: "s1"})
	if err != nil {
		t.Fatalf("expected the write to queue rather than error, got %v", err)
	}
	if c.PendingCount() != 1 {
		t.Errorf("expected 1 pending retry, got %d", c.PendingCount())
	}
}

func TestViolationStoreClientHaltsWhenBufferFull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewViolationStoreClient(srv.URL, http.DefaultClient, nil)
	c.Retrier = Retrier{MaxAttempts: 1}
	c.bufferCap = 1

	if err := c.Write(context.Background(), &ViolationRecord{SessionID: "s1"}); err != nil {
		t.Fatalf("expected first queued write to succeed, got %v", err)
	}
	if err := c.Write(context.Background(), &ViolationRecord{SessionID: "s2"}); err != ErrSessionHalted {
		t.Errorf("expected ErrSessionHalted once the buffer is full, got %v", err)
	}
}

func TestViolationStoreClientDrainSucceedsOnRetry(t *testing.T) {
	fail := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewViolationStoreClient(srv.URL, http.DefaultClient, nil)
	c.Retrier = Retrier{MaxAttempts: 1}
	c.Write(context.Background(), &ViolationRecord{SessionID: "s1"})

	fail = false
	if err := c.DrainRetryBuffer(context.Background(), time.Now()); err != nil {
		t.Fatalf("expected drain to succeed, got %v", err)
	}
	if c.PendingCount() != 0 {
		t.Errorf("expected the retry buffer to drain, got %d pending", c.PendingCount())
	}
}

func TestViolationStoreClientDrainHaltsPastRetryWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewViolationStoreClient(srv.URL, http.DefaultClient, nil)
	c.Retrier = Retrier{MaxAttempts: 1}
	c.retryWindow = time.Second
	c.Write(context.Background(), &ViolationRecord{SessionID: "s1"})

	err := c.DrainRetryBuffer(context.Background(), time.Now().Add(2*time.Second))
	if err != ErrSessionHalted {
		t.Errorf("expected ErrSessionHalted past the retry window, got %v", err)
	}
}
