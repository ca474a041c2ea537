package controller

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/sharetube/watchsync/pkg/ctxlogger"
	"github.com/sharetube/watchsync/pkg/wsrouter"
)

func (c controller) wsRequestIdWSMw() wsrouter.Middleware[*wsConn] {
	return func(next wsrouter.HandlerFunc[*wsConn]) wsrouter.HandlerFunc[*wsConn] {
		return func(ctx context.Context, conn *wsConn, args []string) (string, error) {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", c.generateTimeBasedId()))
			return next(ctx, conn, args)
		}
	}
}

func (c controller) loggerWSMw() wsrouter.Middleware[*wsConn] {
	return func(next wsrouter.HandlerFunc[*wsConn]) wsrouter.HandlerFunc[*wsConn] {
		return func(ctx context.Context, conn *wsConn, args []string) (string, error) {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("command", wsrouter.GetCommandFromCtx(ctx)))
			c.logger.InfoContext(ctx, "websocket message received", "args", args)

			start := time.Now()

			ack, err := next(ctx, conn, args)

			c.logger.InfoContext(ctx, "websocket message handled",
				"ack", ack,
				"error", err,
				"processing_time_us", time.Since(start).Microseconds(),
				"goroutines", runtime.NumGoroutine(),
			)

			return ack, err
		}
	}
}
