package logx

import (
	"context"

	"pkt.systems/hamsterbridge/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	connKey contextKey = iota
)

// WithConn annotates the logger with the connection id if present.
func WithConn(ctx context.Context, connID string) pslog.Logger {
	log := pslog.Ctx(ctx)
	if connID != "" {
		if current, ok := ctx.Value(connKey).(string); ok && current == connID {
			return log
		}
		log = log.With("conn", connID)
	}
	return log
}

// WithCommand annotates the logger with a message command.
func WithCommand(log pslog.Logger, cmd schema.Command) pslog.Logger {
	if cmd != "" {
		log = log.With("command", string(cmd))
	}
	return log
}

// WithRequest annotates the logger with a correlated request id.
func WithRequest(log pslog.Logger, id schema.RequestID) pslog.Logger {
	return log.With("request_id", int64(id))
}

// WithInput annotates the logger with a correlated input id.
func WithInput(log pslog.Logger, id schema.InputID) pslog.Logger {
	return log.With("input_id", int64(id))
}

// ContextWithConn stores the connection marker on the context for log de-duplication.
func ContextWithConn(ctx context.Context, connID string) context.Context {
	if ctx == nil || connID == "" {
		return ctx
	}
	return context.WithValue(ctx, connKey, connID)
}

// ContextWithConnLogger attaches the logger and connection marker to the context.
func ContextWithConnLogger(ctx context.Context, log pslog.Logger, connID string) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithConn(ctx, connID)
}
