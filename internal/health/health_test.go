package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := New()

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz_AllCheckersPass(t *testing.T) {
	h := New(
		Checker{Name: "worker", Check: func(context.Context) error { return nil }},
		Checker{Name: "telemetry", Check: func(context.Context) error { return nil }},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Checks["worker"] != "ok" || body.Checks["telemetry"] != "ok" {
		t.Errorf("checks = %v", body.Checks)
	}
}

func TestReadyz_FailingChecker(t *testing.T) {
	h := New(
		Checker{Name: "worker", Check: func(context.Context) error { return errors.New("stream stalled") }},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
}

func TestFreshness(t *testing.T) {
	ctx := context.Background()

	t.Run("no frames yet", func(t *testing.T) {
		c := Freshness("worker", func() time.Time { return time.Time{} }, 100*time.Millisecond)
		if err := c.Check(ctx); err == nil {
			t.Error("check passed before any frame was processed")
		}
	})

	t.Run("fresh stream", func(t *testing.T) {
		c := Freshness("worker", time.Now, 100*time.Millisecond)
		if err := c.Check(ctx); err != nil {
			t.Errorf("check failed on a fresh stream: %v", err)
		}
	})

	t.Run("stalled stream", func(t *testing.T) {
		stale := time.Now().Add(-time.Second)
		c := Freshness("worker", func() time.Time { return stale }, 100*time.Millisecond)
		if err := c.Check(ctx); err == nil {
			t.Error("check passed on a stalled stream")
		}
	})
}

func TestRegister(t *testing.T) {
	mux := http.NewServeMux()
	New().Register(mux)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
