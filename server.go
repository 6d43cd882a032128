// Package hamsterbridge composes the host side of the hamster simulator
// bridge: the bridge socket, the host UI API and the game heartbeat.
package hamsterbridge

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pkt.systems/hamsterbridge/core"
	"pkt.systems/hamsterbridge/httpapi"
	"pkt.systems/hamsterbridge/internal/heartbeat"
	"pkt.systems/hamsterbridge/internal/journal"
	"pkt.systems/hamsterbridge/internal/transport"
	"pkt.systems/hamsterbridge/schema"
	"pkt.systems/pslog"
)

// Server composes the HTTP bridge and the game heartbeat.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
	// Addr is the bound HTTP address once started.
	Addr() net.Addr
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Bridge     schema.BridgeConfig
	HTTP       httpapi.Config
	HubHistory int
	Heartbeat  HeartbeatConfig
	Journal    JournalConfig
}

// HeartbeatConfig tunes game server polling.
type HeartbeatConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// JournalConfig enables the SQLite message journal.
type JournalConfig struct {
	Enabled bool
	Path    string
}

// EventSink observes every host-side state change.
type EventSink interface {
	core.EventSink
	httpapi.PromptSink
}

// ServerDeps captures optional collaborators.
type ServerDeps struct {
	// Fetcher overrides the HTTP client used for proxied requests.
	Fetcher core.Fetcher
	// Sinks receive the same events as the web stream.
	Sinks  []EventSink
	Logger pslog.Logger
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHeartbeat bool
	enableJournal   bool
}

// WithHeartbeat enables game server polling.
func WithHeartbeat() ServerOption {
	return func(o *serverOptions) { o.enableHeartbeat = true }
}

// WithJournal records bridge messages when the journal is enabled in config.
func WithJournal() ServerOption {
	return func(o *serverOptions) { o.enableJournal = true }
}

// New constructs a composable bridge server.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	normalized, err := schema.NormalizeBridgeConfig(cfg.Bridge)
	if err != nil {
		return nil, err
	}
	cfg.Bridge = normalized
	if cfg.HTTP.Addr == "" {
		return nil, errors.New("http addr is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}

	hub := httpapi.NewHub(cfg.HubHistory, logger)
	sinks := make([]EventSink, 0, len(deps.Sinks)+1)
	sinks = append(sinks, hub)
	for _, sink := range deps.Sinks {
		if sink != nil {
			sinks = append(sinks, sink)
		}
	}
	var sink EventSink = hub
	if len(sinks) > 1 {
		sink = eventFanout{sinks: sinks}
	}

	link := httpapi.NewLink()
	prompter := httpapi.NewPrompter(sink, logger)
	bridge, err := core.NewHostBridge(cfg.Bridge, core.HostDeps{
		Poster:   link,
		Prompter: prompter,
		Fetcher:  deps.Fetcher,
		Sink:     sink,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	var store *journal.Store
	httpDeps := httpapi.Deps{Bridge: bridge, Link: link, Hub: hub, Prompter: prompter}
	if options.enableJournal && cfg.Journal.Enabled {
		store, err = journal.Open(context.Background(), cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
		httpDeps.Journal = store
		httpDeps.Observer = store
	}
	httpSrv, err := httpapi.NewServer(cfg.HTTP, httpDeps)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var monitor *heartbeat.Monitor
	if options.enableHeartbeat {
		monitor, err = heartbeat.New(heartbeat.Config{
			BaseURL:  cfg.Bridge.GameBaseURL,
			Interval: cfg.Heartbeat.Interval,
			Timeout:  cfg.Heartbeat.Timeout,
			OnChange: func(_ context.Context, available bool) {
				event := schema.GameEvent{Type: schema.GameEventUnavailable, URL: cfg.Bridge.GameBaseURL}
				if available {
					event.Type = schema.GameEventAvailable
				}
				sink.OnGame(event)
			},
		})
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	return &compositeServer{
		cfg:     cfg,
		options: options,
		httpSrv: httpSrv,
		bridge:  bridge,
		monitor: monitor,
		journal: store,
	}, nil
}

type compositeServer struct {
	cfg     ServerConfig
	options serverOptions
	httpSrv *httpapi.Server
	bridge  *core.HostBridge
	monitor *heartbeat.Monitor
	journal *journal.Store
	logger  pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
	addr    net.Addr
	done    chan struct{}
	err     error
	started bool
}

var _ transport.Observer = (*journal.Store)(nil)

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	ln, err := net.Listen("tcp", s.cfg.HTTP.Addr)
	if err != nil {
		return err
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.addr = ln.Addr()
	s.done = make(chan struct{})
	s.logger = pslog.Ctx(s.ctx)

	s.logger.Info(
		"server start",
		"http_addr", s.addr.String(),
		"http_base_path", s.cfg.HTTP.BasePath,
		"game_url", s.cfg.Bridge.GameBaseURL,
		"heartbeat", s.monitor != nil,
		"journal", s.journal != nil,
	)

	group, gctx := errgroup.WithContext(s.ctx)
	s.group = group
	s.httpSrv.SetBaseContext(gctx)
	group.Go(func() error {
		if err := httpapi.Serve(gctx, ln, s.httpSrv.Handler()); err != nil {
			s.logger.Error("http server failed", "err", err)
			return err
		}
		return nil
	})
	if s.monitor != nil {
		group.Go(func() error {
			if err := s.monitor.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			s.monitor.Stop()
			return nil
		})
	}
	go s.finish()
	return nil
}

// finish waits for every component, then releases shared resources.
func (s *compositeServer) finish() {
	err := s.group.Wait()
	s.cancel()
	s.bridge.Wait()
	if s.journal != nil {
		if cerr := s.journal.Close(); cerr != nil {
			s.logger.Warn("journal close failed", "err", cerr)
		}
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	done := s.done
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}
	<-done
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		pslog.Ctx(s.ctx).Error("server stopped", "err", s.err)
	}
	return s.err
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	log.Info("server stop requested")
	cancel()
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-done:
		log.Info("server stopped")
		return nil
	}
}

func (s *compositeServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
