package core

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveTarget(t *testing.T) {
	cases := []struct {
		base, target, want string
	}{
		{"http://localhost:8080", "/gamesList", "http://localhost:8080/gamesList"},
		{"http://localhost:8080/api", "games/1?x=2", "http://localhost:8080/api/games/1?x=2"},
		{"http://localhost:8080/api/", "/games", "http://localhost:8080/api/games"},
		{"", "/games", "/games"},
		{"http://localhost:8080", "http://other:9/x", "http://other:9/x"},
	}
	for _, tc := range cases {
		got, err := ResolveTarget(tc.base, tc.target)
		if err != nil {
			t.Fatalf("resolve %q %q: %v", tc.base, tc.target, err)
		}
		if got != tc.want {
			t.Fatalf("resolve %q %q: expected %q, got %q", tc.base, tc.target, tc.want, got)
		}
	}
}

func TestHTTPFetcherSendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		if r.Method != http.MethodPost || r.URL.Path != "/step" || string(data) != `{"n":1}` {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	body := `{"n":1}`
	res, err := HTTPFetcher{Client: srv.Client(), BaseURL: srv.URL}.Fetch(context.Background(), "POST", "/step", &body)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Status != http.StatusOK || string(res.Body) != `{"ok":true}` {
		t.Fatalf("unexpected result %d %s", res.Status, res.Body)
	}
}

func TestHTTPFetcherConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	if _, err := (HTTPFetcher{BaseURL: url}).Fetch(context.Background(), "GET", "/gamesList", nil); err == nil {
		t.Fatalf("expected connection error")
	}
}
