package heartbeat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestMonitorReportsEdges(t *testing.T) {
	var up atomic.Bool
	up.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ProbePath || !up.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	edges := make(chan bool, 8)
	m, err := New(Config{
		BaseURL:  srv.URL,
		Interval: 10 * time.Millisecond,
		Timeout:  200 * time.Millisecond,
		OnChange: func(_ context.Context, available bool) { edges <- available },
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Stop()

	expectEdge(t, edges, true)
	if !m.Available() {
		t.Fatalf("expected available")
	}
	up.Store(false)
	expectEdge(t, edges, false)
	up.Store(true)
	expectEdge(t, edges, true)
}

func TestMonitorStartTwiceFails(t *testing.T) {
	m, err := New(Config{BaseURL: "http://127.0.0.1:1", Interval: time.Hour})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Fatalf("expected second start to fail")
	}
	m.Stop()
	m.Stop()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	m.Stop()
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without base url")
	}
}

func TestMonitorURL(t *testing.T) {
	m, err := New(Config{BaseURL: "http://localhost:8080/api"})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	if m.URL() != "http://localhost:8080/api/gamesList" {
		t.Fatalf("unexpected url %s", m.URL())
	}
}

func expectEdge(t *testing.T, edges <-chan bool, want bool) {
	t.Helper()
	select {
	case got := <-edges:
		if got != want {
			t.Fatalf("expected edge %v, got %v", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for edge %v", want)
	}
}
