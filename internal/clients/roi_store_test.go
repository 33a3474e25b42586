package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestROIStoreClientParsesRectangleAndPolygon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[
			{"name":"counter","shape":"rectangle","coordinates":{"x":10,"y":10,"width":50,"height":50},"requires_scooper":true,"ingredient_type":"cheese"},
			{"name":"board","shape":"polygon","coordinates":[[0,0],[10,0],[5,10]],"requires_scooper":false}
		]}`))
	}))
	defer srv.Close()

	c := NewROIStoreClient(srv.URL, http.DefaultClient, nil)
	rois, ok := c.Fetch(context.Background(), time.Now())
	if !ok {
		t.Fatal("expected a usable snapshot")
	}
	if len(rois) != 2 {
		t.Fatalf("expected 2 rois, got %d", len(rois))
	}
	if rois[0].Rect.W != 50 {
		t.Errorf("expected rectangle width 50, got %f", rois[0].Rect.W)
	}
	if len(rois[1].Points) != 3 {
		t.Errorf("expected 3 polygon points, got %d", len(rois[1].Points))
	}
}

func TestROIStoreClientServesFromCacheWithinTTL(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewROIStoreClient(srv.URL, http.DefaultClient, nil)
	base := time.Now()
	c.Fetch(context.Background(), base)
	c.Fetch(context.Background(), base.Add(time.Second)) // within default 2s TTL
	if calls != 1 {
		t.Errorf("expected 1 upstream call within the TTL, got %d", calls)
	}

	c.Fetch(context.Background(), base.Add(3*time.Second)) // past TTL
	if calls != 2 {
		t.Errorf("expected a refetch once the TTL elapses, got %d calls", calls)
	}
}

func TestROIStoreClientFallsBackToLastKnownGood(t *testing.T) {
	succeed := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !succeed {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"data":[{"name":"counter","shape":"rectangle","coordinates":{"x":1,"y":1,"width":1,"height":1}}]}`))
	}))
	defer srv.Close()

	c := NewROIStoreClient(srv.URL, http.DefaultClient, nil)
	c.Retrier = Retrier{MaxAttempts: 1}
	base := time.Now()

	rois, ok := c.Fetch(context.Background(), base)
	if !ok || len(rois) != 1 {
		t.Fatal("expected an initial successful snapshot")
	}

	succeed = false
	rois, ok = c.Fetch(context.Background(), base.Add(10*time.Second))
	if !ok {
		t.Fatal("expected last-known-good fallback within the stale window")
	}
	if len(rois) != 1 {
		t.Errorf("expected the stale snapshot to be returned, got %d rois", len(rois))
	}
}

func TestROIStoreClientSkipsFrameWhenNoSnapshotAtAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewROIStoreClient(srv.URL, http.DefaultClient, nil)
	c.Retrier = Retrier{MaxAttempts: 1}
	_, ok := c.Fetch(context.Background(), time.Now())
	if ok {
		t.Error("expected no usable snapshot when the first fetch fails")
	}
}

func TestROIStoreClientFallbackExpiresPastStaleWindow(t *testing.T) {
	succeed := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !succeed {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"data":[{"name":"counter","shape":"rectangle","coordinates":{"x":1,"y":1,"width":1,"height":1}}]}`))
	}))
	defer srv.Close()

	c := NewROIStoreClient(srv.URL, http.DefaultClient, nil)
	c.Retrier = Retrier{MaxAttempts: 1}
	base := time.Now()

	c.Fetch(context.Background(), base)
	succeed = false
	_, ok := c.Fetch(context.Background(), base.Add(61*time.Second))
	if ok {
		t.Error("expected the stale snapshot to expire past its 60s fallback window")
	}
}
