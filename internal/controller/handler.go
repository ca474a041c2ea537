package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/ctxlogger"
)

// killReason maps a handler error to the text sent before the connection is closed.
func killReason(err error) string {
	if errors.Is(err, room.ErrServerFull) {
		return room.ErrServerFull.Error()
	}

	return room.ErrProtocolViolation.Error()
}

func (c controller) serveRoomConn(w http.ResponseWriter, r *http.Request) {
	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	ctx := ctxlogger.AppendCtx(context.WithoutCancel(r.Context()), slog.String("conn_id", c.generateTimeBasedId()))
	conn := newWSConn(ws, c.logger)
	go conn.writeLoop(c.cfg.Keepalive)

	c.logger.InfoContext(ctx, "websocket connected", "remote_addr", r.RemoteAddr)
	defer func() {
		conn.shutdown()
		<-conn.writerDone
		c.roomService.Leave(ctx, conn)
		c.logger.InfoContext(ctx, "websocket disconnected")
	}()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout))
	})

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.InfoContext(ctx, "websocket read failed", "error", err)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout))

		if msgType != websocket.TextMessage {
			err = room.ErrProtocolViolation
		} else {
			_, err = c.wsRouter.Dispatch(ctx, conn, string(data))
		}
		if err != nil {
			c.logger.InfoContext(ctx, "command rejected", "error", err)
			c.roomService.Kill(ctx, conn, killReason(err))
			<-conn.writerDone
			return
		}
	}
}
