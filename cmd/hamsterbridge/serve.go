package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/hamsterbridge"
	"pkt.systems/hamsterbridge/httpapi"
	"pkt.systems/hamsterbridge/internal/appconfig"
	"pkt.systems/hamsterbridge/internal/eventbus"
	"pkt.systems/pslog"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var tail bool
	var noHeartbeat bool
	var journalOn bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the host bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if journalOn {
				cfg.Journal.Enabled = true
			}

			deps := hamsterbridge.ServerDeps{Logger: logger}
			var bus *eventbus.Bus
			if tail {
				bus = eventbus.New(logger)
				deps.Sinks = append(deps.Sinks, bus)
			}
			opts := []hamsterbridge.ServerOption{hamsterbridge.WithJournal()}
			if !noHeartbeat {
				opts = append(opts, hamsterbridge.WithHeartbeat())
			}
			server, err := hamsterbridge.New(toServerConfig(cfg), deps, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			if err := server.Start(ctx); err != nil {
				return err
			}
			if bus != nil {
				events, cancel := bus.Subscribe()
				defer cancel()
				go tailEvents(ctx, logger, events)
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&tail, "tail", false, "log every host-side event")
	cmd.Flags().BoolVar(&noHeartbeat, "no-heartbeat", false, "do not poll the game server")
	cmd.Flags().BoolVar(&journalOn, "journal", false, "record bridge messages (overrides journal.enabled)")
	return cmd
}

func toServerConfig(cfg appconfig.Config) hamsterbridge.ServerConfig {
	return hamsterbridge.ServerConfig{
		Bridge:     cfg.BridgeSettings(),
		HTTP:       httpapi.Config{Addr: cfg.HTTP.Addr, BasePath: cfg.HTTP.BasePath},
		HubHistory: cfg.HTTP.StreamHistory,
		Heartbeat: hamsterbridge.HeartbeatConfig{
			Interval: cfg.PollInterval(),
			Timeout:  cfg.PollTimeout(),
		},
		Journal: hamsterbridge.JournalConfig{
			Enabled: cfg.Journal.Enabled,
			Path:    cfg.Journal.Path,
		},
	}
}

func tailEvents(ctx context.Context, logger pslog.Logger, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			switch event.Type {
			case eventbus.EventLog:
				text := ""
				if event.Log.Cursor >= 0 && event.Log.Cursor < len(event.Log.Entries) {
					text = event.Log.Entries[event.Log.Cursor].Text
				}
				logger.Info("log", "entries", len(event.Log.Entries), "cursor", event.Log.Cursor, "last", text)
			case eventbus.EventControls:
				logger.Info("controls", "flags", event.Controls.Flags)
			case eventbus.EventGame:
				logger.Info("game", "state", event.Game.Type, "url", event.Game.URL)
			case eventbus.EventPrompt:
				logger.Info("prompt", "id", event.Prompt.ID, "kind", event.Prompt.Kind, "text", event.Prompt.Text, "closed", event.Prompt.Closed)
			}
		}
	}
}
