package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/hamsterbridge/schema"
	"pkt.systems/pslog"
)

func newCaptureLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

func TestWithRequestAddsID(t *testing.T) {
	capture := &logCapture{}
	log := WithRequest(newCaptureLogger(capture), schema.RequestID(7))
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["request_id"] != float64(7) {
		t.Fatalf("expected request_id field, got %+v", entry)
	}
}

func TestWithCommandSkipsEmpty(t *testing.T) {
	capture := &logCapture{}
	log := WithCommand(newCaptureLogger(capture), "")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if _, ok := entry["command"]; ok {
		t.Fatalf("did not expect command field, got %+v", entry)
	}
}

func TestWithConnAddsField(t *testing.T) {
	capture := &logCapture{}
	ctx := pslog.ContextWithLogger(context.Background(), newCaptureLogger(capture))
	log := WithInput(WithConn(ctx, "c1"), schema.InputID(3))
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["conn"] != "c1" {
		t.Fatalf("expected conn field, got %+v", entry)
	}
	if entry["input_id"] != float64(3) {
		t.Fatalf("expected input_id field, got %+v", entry)
	}
}

func TestWithConnDeduplicatesMarkedContext(t *testing.T) {
	capture := &logCapture{}
	base := newCaptureLogger(capture).With("conn", "c1")
	ctx := ContextWithConnLogger(context.Background(), base, "c1")
	WithConn(ctx, "c1").Info("hello")

	line := capture.buf.String()
	if n := bytes.Count([]byte(line), []byte(`"conn"`)); n != 1 {
		t.Fatalf("expected a single conn field, got %d in %q", n, line)
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
