// Package logging builds the process logger and turns bus events into log
// records.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	eventbus "github.com/hanpama/membergraph/internal/eventbus"
	events "github.com/hanpama/membergraph/internal/events"
	reqid "github.com/hanpama/membergraph/internal/reqid"
)

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// New returns a logger writing to w in the given format ("text" or "json").
func New(level, format string, w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// Subscribe logs HTTP requests, GraphQL operations, depth rejections and
// loader dispatches published on b. Call the returned func to detach.
func Subscribe(b *eventbus.Bus, logger *slog.Logger) (unsubscribe func()) {
	offs := []func(){
		eventbus.On(b, func(ctx context.Context, e events.HTTPFinish) {
			logger.LogAttrs(ctx, slog.LevelInfo, "http request",
				requestID(ctx),
				slog.String("method", e.Request.Method),
				slog.String("path", e.Request.URL.Path),
				slog.Int("status", e.Status),
				slog.Duration("duration", e.Duration),
			)
		}),
		eventbus.On(b, func(ctx context.Context, e events.GraphQLFinish) {
			attrs := []slog.Attr{
				requestID(ctx),
				slog.String("operation", e.OperationName),
				slog.String("type", e.OperationType),
				slog.Duration("duration", e.Duration),
			}
			if len(e.Errors) == 0 {
				logger.LogAttrs(ctx, slog.LevelDebug, "graphql operation", attrs...)
				return
			}
			attrs = append(attrs,
				slog.Int("errors", len(e.Errors)),
				slog.String("first_error", e.Errors[0].Error()),
			)
			logger.LogAttrs(ctx, slog.LevelInfo, "graphql operation", attrs...)
		}),
		eventbus.On(b, func(ctx context.Context, e events.DepthRejected) {
			logger.LogAttrs(ctx, slog.LevelWarn, "operation exceeds maximum depth",
				requestID(ctx),
				slog.String("operation", e.OperationName),
				slog.Int("max_depth", e.MaxDepth),
				slog.Int("violations", e.Violations),
			)
		}),
		eventbus.On(b, func(ctx context.Context, e events.LoaderDispatchFinish) {
			attrs := []slog.Attr{
				requestID(ctx),
				slog.String("loader", e.Loader),
				slog.Uint64("batch", e.Batch),
				slog.Int("keys", e.Keys),
				slog.Duration("duration", e.Duration),
			}
			if e.Err != nil {
				attrs = append(attrs, slog.String("error", e.Err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "loader dispatch failed", attrs...)
				return
			}
			logger.LogAttrs(ctx, slog.LevelDebug, "loader dispatch", attrs...)
		}),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

func requestID(ctx context.Context) slog.Attr {
	return slog.String("request_id", reqid.String(ctx))
}
