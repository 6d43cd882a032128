package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pkt.systems/hamsterbridge/internal/appconfig"
	"pkt.systems/hamsterbridge/internal/journal"
	"pkt.systems/hamsterbridge/internal/transport"
	"pkt.systems/hamsterbridge/schema"
)

func TestArgv0Alias(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{base: "hamsterprobe", want: "probe"},
		{base: "hamsterbridge", want: ""},
	}
	for _, tc := range tests {
		if got := argv0Alias(tc.base); got != tc.want {
			t.Fatalf("argv0Alias(%q) = %q, want %q", tc.base, got, tc.want)
		}
	}
}

func TestApplyArgv0Alias(t *testing.T) {
	got := applyArgv0Alias([]string{"/usr/bin/hamsterprobe", "/gamesList"})
	want := []string{"/usr/bin/hamsterprobe", "probe", "/gamesList"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("applyArgv0Alias = %v, want %v", got, want)
	}
	if got := applyArgv0Alias(nil); got != nil {
		t.Fatalf("expected nil args to pass through")
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "ws://127.0.0.1:8091/bridge", want: "ws://127.0.0.1:8091/bridge"},
		{in: "http://127.0.0.1:8091", want: "ws://127.0.0.1:8091/bridge"},
		{in: "https://host/hamster/bridge", want: "wss://host/hamster/bridge"},
		{in: "ftp://host", wantErr: true},
		{in: "ws://", wantErr: true},
	}
	for _, tc := range tests {
		got, err := websocketURL(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("websocketURL(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("websocketURL(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestToServerConfig(t *testing.T) {
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.HTTP.BasePath = "/hamster"
	out := toServerConfig(cfg)
	if out.HTTP.Addr != cfg.HTTP.Addr || out.HTTP.BasePath != "/hamster" {
		t.Fatalf("unexpected http config %+v", out.HTTP)
	}
	if out.Bridge.RequestTimeout != schema.DefaultRequestTimeout || out.Bridge.GameBaseURL != cfg.Game.BaseURL {
		t.Fatalf("unexpected bridge config %+v", out.Bridge)
	}
	if out.Heartbeat.Interval != time.Second {
		t.Fatalf("unexpected heartbeat interval %v", out.Heartbeat.Interval)
	}
}

// fakeHost answers every proxied request on the bridge socket.
func fakeHost(t *testing.T, response any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := transport.Upgrade(w, r)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()
		_ = conn.Serve(context.Background(), func(ctx context.Context, msg schema.Message) {
			if msg.Command() != schema.CmdRequest {
				return
			}
			id, _ := msg.Int(schema.KeyID)
			_ = conn.Post(ctx, schema.NewMessage(schema.CmdRequestResponse, schema.KeyID, id, schema.KeyResponse, response))
		})
	}))
}

func TestRunProbePrintsResponse(t *testing.T) {
	host := fakeHost(t, map[string]any{"games": []any{}})
	defer host.Close()

	var out bytes.Buffer
	opts := probeOptions{bridgeURL: host.URL, method: "get", timeout: 2 * time.Second}
	if err := runProbe(context.Background(), &out, opts, "/gamesList"); err != nil {
		t.Fatalf("probe: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	if _, ok := decoded["games"]; !ok {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestPrintJournal(t *testing.T) {
	ctx := context.Background()
	store, err := journal.Open(ctx, filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	if _, err := store.Record(ctx, "c1", transport.Inbound, schema.NewMessage(schema.CmdAddLog, schema.KeyMessage, "hi")); err != nil {
		t.Fatalf("record: %v", err)
	}
	entries, err := store.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var out bytes.Buffer
	if err := printJournal(&out, entries); err != nil {
		t.Fatalf("print: %v", err)
	}
	text := out.String()
	for _, want := range []string{"seq: 1", "conn: c1", "direction: in", "command: addLog", "message: hi"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
}
