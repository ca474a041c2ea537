package room

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	roomRepo "github.com/sharetube/watchsync/internal/repository/room"
	"github.com/sharetube/watchsync/pkg/ytvideodata"
)

var (
	// ErrProtocolViolation and ErrServerFull messages are sent to the client before it is disconnected.
	ErrProtocolViolation = errors.New("invalid command")
	ErrServerFull        = errors.New("server full")
)

type iConnRepo interface {
	Add(Conn, string) error
	Remove(Conn) (string, error)
	GetRoomId(Conn) (string, error)
}

type iStatsRepo interface {
	SaveStats(context.Context, *roomRepo.Stats) error
}

type iVideoResolver interface {
	Resolve(ctx context.Context, query string) (*ytvideodata.VideoData, error)
}

type iFaviconResolver interface {
	Initial(pageURL string) string
	Resolve(ctx context.Context, pageURL string) string
}

type iPool interface {
	Submit(job func()) error
}

type Config struct {
	// SyncTolerance is the readiness tolerance in seconds.
	SyncTolerance    float64
	SyncTimeout      time.Duration
	PauseIgnore      time.Duration
	SkipIgnore       time.Duration
	RoomCloseTimeout time.Duration
	// StatsSkipRoomId names a room whose stats are never recorded.
	StatsSkipRoomId string
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

type service struct {
	rooms           map[string]*room
	mu              sync.Mutex
	connRepo        iConnRepo
	statsRepo       iStatsRepo
	videoResolver   iVideoResolver
	faviconResolver iFaviconResolver
	pool            iPool
	clock           clock.Clock
	logger          *slog.Logger
	cfg             Config
}

// NewService builds the room service. statsRepo may be nil, then stats are only logged.
func NewService(
	connRepo iConnRepo,
	statsRepo iStatsRepo,
	videoResolver iVideoResolver,
	faviconResolver iFaviconResolver,
	pool iPool,
	logger *slog.Logger,
	cfg *Config,
) *service {
	s := service{
		rooms:           make(map[string]*room),
		connRepo:        connRepo,
		statsRepo:       statsRepo,
		videoResolver:   videoResolver,
		faviconResolver: faviconResolver,
		pool:            pool,
		clock:           cfg.Clock,
		logger:          logger,
		cfg:             *cfg,
	}
	if s.clock == nil {
		s.clock = clock.New()
	}

	return &s
}

// lockParticipant returns the caller's room locked. The caller must unlock it.
func (s *service) lockParticipant(conn Conn) (*room, *participant, error) {
	roomId, err := s.connRepo.GetRoomId(conn)
	if err != nil {
		return nil, nil, ErrProtocolViolation
	}

	s.mu.Lock()
	r, ok := s.rooms[roomId]
	s.mu.Unlock()
	if !ok {
		return nil, nil, ErrProtocolViolation
	}

	r.mu.Lock()
	p := r.participant(conn)
	if p == nil {
		r.mu.Unlock()
		return nil, nil, ErrProtocolViolation
	}

	return r, p, nil
}

func (s *service) broadcastAll(ctx context.Context, r *room, msg string) {
	s.logger.DebugContext(ctx, "broadcast all", "room_id", r.id, "message", msg)
	for _, p := range r.participants {
		p.conn.Send(msg)
	}
}

// broadcastActive skips participants that have not started playback.
func (s *service) broadcastActive(ctx context.Context, r *room, msg string) {
	s.logger.DebugContext(ctx, "broadcast active", "room_id", r.id, "message", msg)
	for _, p := range r.participants {
		if isActive(p.state) {
			p.conn.Send(msg)
		}
	}
}

func (s *service) kill(ctx context.Context, conn Conn, reason string) {
	s.logger.InfoContext(ctx, "killing connection", "reason", reason)
	conn.Kill(reason)
}
