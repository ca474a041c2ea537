package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	roomRepo "github.com/sharetube/watchsync/internal/repository/room"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/wsrouter"
)

type iRoomService interface {
	CreateRoom(context.Context, room.Conn) (string, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (string, error)
	Leave(context.Context, room.Conn)
	Kill(context.Context, room.Conn, string)
	CoordinatePlay(context.Context, *room.CoordinatePlayParams) (string, error)
	ClientReady(context.Context, *room.PlaybackParams) (string, error)
	ClientPause(context.Context, *room.PlaybackParams) (string, error)
	HandleBuffering(context.Context, *room.PlaybackParams) (string, error)
	Sync(context.Context, room.Conn) (string, error)
	SetEnded(context.Context, *room.SetEndedParams) (string, error)
	Skip(context.Context, room.Conn) (string, error)
	Enqueue(context.Context, *room.EnqueueParams) (string, error)
	Dequeue(context.Context, *room.DequeueParams) (string, error)
	Reorder(context.Context, *room.ReorderParams) (string, error)
}

type iStatsRepo interface {
	GetTotals(context.Context) (roomRepo.Totals, error)
}

type Config struct {
	// Keepalive is the ping interval.
	Keepalive time.Duration
	// IdleTimeout closes connections that sent nothing, pongs included.
	IdleTimeout time.Duration
}

type controller struct {
	roomService iRoomService
	statsRepo   iStatsRepo
	upgrader    websocket.Upgrader
	wsRouter    *wsrouter.WSRouter[*wsConn]
	logger      *slog.Logger
	cfg         Config
}

// NewController builds the HTTP surface. statsRepo may be nil when statistics are disabled.
func NewController(roomService iRoomService, statsRepo iStatsRepo, logger *slog.Logger, cfg *Config) *controller {
	c := controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		statsRepo:   statsRepo,
		logger:      logger,
		cfg:         *cfg,
	}
	c.wsRouter = c.getWSRouter()

	return &c
}
