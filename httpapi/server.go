package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pkt.systems/hamsterbridge/core"
	"pkt.systems/hamsterbridge/internal/journal"
	"pkt.systems/hamsterbridge/internal/logx"
	"pkt.systems/hamsterbridge/internal/transport"
	"pkt.systems/hamsterbridge/schema"
	"pkt.systems/pslog"
)

// JournalReader lists recorded bridge messages.
type JournalReader interface {
	List(ctx context.Context, after int64, limit int) ([]journal.Entry, error)
}

// Deps are the components the server exposes.
type Deps struct {
	Bridge   *core.HostBridge
	Link     *Link
	Hub      *Hub
	Prompter *Prompter
	// Journal is optional; /api/journal answers 404 without it.
	Journal JournalReader
	// Observer is optional and sees every message on the bridge socket.
	Observer transport.Observer
}

// Server serves the bridge socket and the host UI API.
type Server struct {
	cfg      Config
	bridge   *core.HostBridge
	link     *Link
	hub      *Hub
	prompter *Prompter
	journal  JournalReader
	observer transport.Observer
	basePath string
	baseCtx  context.Context
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Bridge == nil || deps.Link == nil || deps.Hub == nil || deps.Prompter == nil {
		return nil, errors.New("http server requires bridge, link, hub and prompter")
	}
	return &Server{
		cfg:      cfg,
		bridge:   deps.Bridge,
		link:     deps.Link,
		hub:      deps.Hub,
		prompter: deps.Prompter,
		journal:  deps.Journal,
		observer: deps.Observer,
		basePath: normalizeBasePath(cfg.BasePath),
		baseCtx:  context.Background(),
	}, nil
}

// SetBaseContext sets the parent context for bridge connections. A hijacked
// websocket outlives its request context, so connections hang off this one.
func (s *Server) SetBaseContext(ctx context.Context) {
	if s == nil || ctx == nil {
		return
	}
	s.baseCtx = ctx
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/bridge", s.handleBridge)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/log", s.handleLog)
	mux.HandleFunc("/api/controls", s.handleControls)
	mux.HandleFunc("/api/prompts", s.handlePrompts)
	mux.HandleFunc("/api/prompts/answer", s.handleAnswer)
	mux.HandleFunc("/api/journal", s.handleJournal)
	mux.HandleFunc("/api/stream", s.handleStream)

	return mountBasePath(s.basePath, withRequestLogging(mux))
}

func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	conn, err := transport.Upgrade(w, r)
	if err != nil {
		pslog.Ctx(r.Context()).Warn("bridge upgrade failed", "err", err)
		return
	}
	ep := transport.Tap(conn, s.observer)
	connID := ep.ID()

	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()
	log := logx.WithConn(r.Context(), connID)
	ctx = logx.ContextWithConnLogger(ctx, log, connID)
	stop := context.AfterFunc(ctx, func() { _ = ep.Close() })
	defer stop()

	if prev := s.link.Attach(ep); prev != nil {
		log.Info("bridge replaced previous rendering context", "previous", prev.ID())
		_ = prev.Close()
	}
	s.hub.OnConnection(true, connID)
	log.Info("bridge attached")

	err = ep.Serve(ctx, s.bridge.Dispatch)
	if s.link.Detach(ep) {
		s.hub.OnConnection(false, "")
	}
	_ = ep.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("bridge closed", "err", err)
		return
	}
	log.Info("bridge detached")
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, s.buildSnapshot())
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	replay := s.bridge.Log()
	entries := replay.VisibleLog()
	if entries == nil {
		entries = []schema.LogEntry{}
	}
	writeJSON(w, http.StatusOK, LogPayload{Entries: entries, Cursor: replay.Cursor()})
}

type controlRequest struct {
	Control string `json:"control"`
}

func (s *Server) handleControls(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.bridge.Controls().Flags())
	case http.MethodPost:
		var req controlRequest
		if err := decodeJSON(r.Body, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.bridge.InvokeControl(r.Context(), req.Control); err != nil {
			switch {
			case errors.Is(err, schema.ErrUnknownControl):
				writeError(w, http.StatusBadRequest, err)
			case errors.Is(err, schema.ErrNotConnected):
				writeError(w, http.StatusConflict, err)
			default:
				writeError(w, http.StatusBadGateway, err)
			}
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func (s *Server) handlePrompts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, s.prompter.Open())
}

type answerRequest struct {
	ID      string `json:"id"`
	Value   string `json:"value"`
	Dismiss bool   `json:"dismiss"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	var req answerRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, errors.New("id is required"))
		return
	}
	if err := s.prompter.Answer(req.ID, req.Value, req.Dismiss); err != nil {
		var rejected *RejectedAnswerError
		switch {
		case errors.Is(err, schema.ErrPromptNotFound):
			writeError(w, http.StatusNotFound, err)
		case errors.As(err, &rejected):
			writeError(w, http.StatusUnprocessableEntity, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	if s.journal == nil {
		writeError(w, http.StatusNotFound, errors.New("journal disabled"))
		return
	}
	after := int64(parseUint(r.URL.Query().Get("after")))
	limit := parseInt(r.URL.Query().Get("limit"), journal.DefaultListLimit)
	entries, err := s.journal.List(r.Context(), after, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := pslog.Ctx(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	lastID := parseUint(r.Header.Get("Last-Event-ID"))

	// Subscribe before the snapshot so nothing published in between is lost.
	ch, unsubscribe, _, history := s.hub.Subscribe()
	defer unsubscribe()

	snapshot := s.buildSnapshot()
	_ = writeSSEvent(w, StreamEvent{
		Type:      EventSnapshot,
		Snapshot:  &snapshot,
		Timestamp: time.Now(),
	})
	flusher.Flush()

	replayCount := 0
	if lastID > 0 {
		for _, event := range history {
			if event.Seq > lastID {
				_ = writeSSEvent(w, event)
				replayCount++
			}
		}
		flusher.Flush()
	}

	notify := r.Context().Done()
	log.Info("http stream opened", "last_id", lastID, "replay", replayCount, "entries", len(snapshot.Log), "prompts", len(snapshot.Prompts))
	for {
		select {
		case <-notify:
			log.Info("http stream closed")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			_ = writeSSEvent(w, event)
			flusher.Flush()
		}
	}
}

func (s *Server) buildSnapshot() SnapshotPayload {
	state := s.bridge.Snapshot()
	if state.Log == nil {
		state.Log = []schema.LogEntry{}
	}
	state.Connected = s.link.ConnID() != ""
	state.GameUp = s.hub.GameAvailable()
	return SnapshotPayload{BridgeSnapshot: state, Prompts: s.prompter.Open()}
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
