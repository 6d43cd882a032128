// Package heartbeat watches whether the game server answers.
package heartbeat

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"pkt.systems/hamsterbridge/core"
	"pkt.systems/pslog"
)

const (
	// DefaultInterval is the poll period.
	DefaultInterval = time.Second
	// DefaultTimeout bounds one probe.
	DefaultTimeout = 500 * time.Millisecond
	// ProbePath is polled relative to the game base url.
	ProbePath = "/gamesList"
)

// Config configures a Monitor.
type Config struct {
	BaseURL  string
	Interval time.Duration
	Timeout  time.Duration
	Client   *http.Client
	// OnChange is called on every availability edge, never twice in a row
	// with the same value.
	OnChange func(ctx context.Context, available bool)
}

// Monitor polls the game server on its own goroutine between Start and Stop.
type Monitor struct {
	cfg    Config
	url    string
	client *http.Client

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	available bool
}

// New validates cfg and returns a stopped monitor.
func New(cfg Config) (*Monitor, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("heartbeat requires a base url")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	url, err := core.ResolveTarget(cfg.BaseURL, ProbePath)
	if err != nil {
		return nil, err
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Monitor{cfg: cfg, url: url, client: client}, nil
}

// URL returns the probed url.
func (m *Monitor) URL() string { return m.url }

// Available reports the last observed state.
func (m *Monitor) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// Start begins polling. It fails if the monitor is already running.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return errors.New("heartbeat already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
	pslog.Ctx(ctx).Debug("heartbeat started", "url", m.url, "interval", m.cfg.Interval)
	return nil
}

// Stop halts polling and waits for the poll goroutine to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	m.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	up := m.probe(ctx)
	if ctx.Err() != nil {
		return
	}
	m.mu.Lock()
	changed := up != m.available
	m.available = up
	m.mu.Unlock()
	if !changed {
		return
	}
	pslog.Ctx(ctx).Info("game availability changed", "url", m.url, "available", up)
	if m.cfg.OnChange != nil {
		m.cfg.OnChange(ctx, up)
	}
}

func (m *Monitor) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		pslog.Ctx(ctx).Trace("heartbeat probe failed", "err", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode == http.StatusOK
}
