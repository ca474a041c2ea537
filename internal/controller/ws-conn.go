package controller

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8 * 1024
	outboundBuffer = 256
)

type frame struct {
	text string
	kill bool
}

// wsConn is a room.Conn backed by a websocket. Frames are written by a single
// writer goroutine so Send and Kill never block the caller.
type wsConn struct {
	ws         *websocket.Conn
	out        chan frame
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once
	logger     *slog.Logger
}

func newWSConn(ws *websocket.Conn, logger *slog.Logger) *wsConn {
	return &wsConn{
		ws:         ws,
		out:        make(chan frame, outboundBuffer),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
		logger:     logger,
	}
}

func (c *wsConn) Send(msg string) {
	c.enqueue(frame{text: msg})
}

func (c *wsConn) Kill(reason string) {
	c.enqueue(frame{text: reason, kill: true})
}

func (c *wsConn) enqueue(f frame) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.out <- f:
	case <-c.done:
	default:
		// a peer this far behind cannot follow the room anymore
		c.logger.Warn("outbound buffer full, closing connection")
		c.shutdown()
	}
}

func (c *wsConn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writeLoop owns every write to the socket and closes it on exit, which
// unblocks the reader.
func (c *wsConn) writeLoop(keepalive time.Duration) {
	ticker := time.NewTicker(keepalive)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		close(c.writerDone)
	}()

	for {
		select {
		case f := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, []byte(f.text)); err != nil {
				c.logger.Debug("failed to write message", "error", err)
				c.shutdown()
				return
			}
			if f.kill {
				msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, f.text)
				c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
				c.shutdown()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.shutdown()
				return
			}
		case <-c.done:
			return
		}
	}
}
