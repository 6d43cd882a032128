package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/hamsterbridge/core"
	"pkt.systems/hamsterbridge/internal/transport"
	"pkt.systems/hamsterbridge/schema"
	"pkt.systems/pslog"
)

type probeOptions struct {
	bridgeURL string
	method    string
	body      string
	timeout   time.Duration
}

func newProbeCmd() *cobra.Command {
	opts := probeOptions{}
	cmd := &cobra.Command{
		Use:   "probe [target]",
		Short: "Send one proxied request through a running bridge",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "/gamesList"
			if len(args) == 1 {
				target = args[0]
			}
			return runProbe(cmd.Context(), cmd.OutOrStdout(), opts, target)
		},
	}
	cmd.Flags().StringVar(&opts.bridgeURL, "url", "ws://127.0.0.1:8091/bridge", "bridge websocket url")
	cmd.Flags().StringVarP(&opts.method, "method", "X", "GET", "request method")
	cmd.Flags().StringVarP(&opts.body, "data", "d", "", "request body")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", schema.DefaultRequestTimeout, "response timeout")
	return cmd
}

func runProbe(ctx context.Context, out io.Writer, opts probeOptions, target string) error {
	bridgeURL, err := websocketURL(opts.bridgeURL)
	if err != nil {
		return err
	}
	logger := pslog.Ctx(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := transport.Dial(ctx, bridgeURL, nil)
	if err != nil {
		return fmt.Errorf("dial bridge: %w", err)
	}
	defer func() { _ = conn.Close() }()
	logger.Debug("probe connected", "url", bridgeURL, "conn", conn.ID())

	sandbox, err := core.NewSandboxBridge(schema.BridgeConfig{RequestTimeout: opts.timeout}, core.SandboxDeps{
		Poster: conn,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	go func() {
		if err := conn.Serve(ctx, sandbox.Dispatch); err != nil {
			logger.Debug("probe connection closed", "err", err)
		}
	}()

	var body *string
	if opts.body != "" {
		body = &opts.body
	}
	raw, err := sandbox.Request(ctx, opts.method, target, body)
	if err != nil {
		return err
	}
	var pretty any
	if err := json.Unmarshal(raw, &pretty); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(pretty)
}

// websocketURL accepts http(s) and ws(s) urls and appends /bridge when no
// path is given.
func websocketURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", errors.New("bridge url must use ws, wss, http or https")
	}
	if u.Host == "" {
		return "", errors.New("bridge url needs a host")
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/bridge"
	}
	return u.String(), nil
}
