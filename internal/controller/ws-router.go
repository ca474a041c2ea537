package controller

import (
	"github.com/sharetube/watchsync/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter[*wsConn] {
	mux := wsrouter.New[*wsConn]()
	mux.Use(c.wsRequestIdWSMw(), c.loggerWSMw())

	// room
	mux.Handle("create", wsrouter.Exact(0), c.handleCreate)
	mux.Handle("join", wsrouter.Exact(1), c.handleJoin)

	// playback
	mux.Handle("play", wsrouter.Exact(1), c.handlePlay)
	mux.Handle("pause", wsrouter.Exact(1), c.handlePause)
	mux.Handle("ready", wsrouter.Exact(1), c.handleReady)
	mux.Handle("buffer", wsrouter.Exact(1), c.handleBuffer)
	mux.Handle("sync", wsrouter.Exact(0), c.handleSync)
	mux.Handle("end", wsrouter.Exact(1), c.handleEnd)
	mux.Handle("skip", wsrouter.Exact(0), c.handleSkip)

	// queue
	mux.Handle("queue add", wsrouter.AtLeast(1), c.handleQueueAdd)
	mux.Handle("queue rm", wsrouter.Exact(1), c.handleQueueRm)
	mux.Handle("queue order", wsrouter.Arity{Min: 0, Max: 1}, c.handleQueueOrder)

	return mux
}
