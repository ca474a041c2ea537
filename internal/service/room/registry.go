package room

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	roomRepo "github.com/sharetube/watchsync/internal/repository/room"
	rules "github.com/sharetube/watchsync/internal/service"
)

const (
	roomIdBytes    = 3
	statsSaveLimit = 5 * time.Second
)

func generateRoomId() string {
	b := make([]byte, roomIdBytes)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

// CreateRoom creates a room with a fresh id and makes conn its first participant.
func (s *service) CreateRoom(ctx context.Context, conn Conn) (string, error) {
	if _, err := s.connRepo.GetRoomId(conn); err == nil {
		return "", fmt.Errorf("%w: already in a room", ErrProtocolViolation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	roomId := generateRoomId()
	for s.rooms[roomId] != nil {
		roomId = generateRoomId()
	}

	if _, err := s.createRoom(ctx, conn, roomId); err != nil {
		return "", err
	}

	return "create " + roomId, nil
}

// createRoom expects s.mu to be held.
func (s *service) createRoom(ctx context.Context, conn Conn, roomId string) (*room, error) {
	if _, ok := s.rooms[roomId]; ok {
		return nil, ErrServerFull
	}

	if err := s.connRepo.Add(conn, roomId); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}

	if len(s.rooms) == 0 {
		s.logger.InfoContext(ctx, "active rooms")
	}

	r := newRoom(roomId, conn, s.clock.Now())
	s.rooms[roomId] = r
	conn.Send("create " + roomId)

	s.logger.InfoContext(ctx, "room created", "room_id", roomId)
	return r, nil
}

// JoinRoom adds conn to the room, creating it if it does not exist, and
// replays the current queue to conn.
func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (string, error) {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.RoomId, rules.RoomIdRule...),
	); err != nil {
		return "", fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}

	if _, err := s.connRepo.GetRoomId(params.Conn); err == nil {
		return "", fmt.Errorf("%w: already in a room", ErrProtocolViolation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[params.RoomId]
	if !ok {
		created, err := s.createRoom(ctx, params.Conn, params.RoomId)
		if err != nil {
			return "", err
		}
		r = created
		r.mu.Lock()
		defer r.mu.Unlock()
	} else {
		r.mu.Lock()
		defer r.mu.Unlock()

		if err := s.connRepo.Add(params.Conn, params.RoomId); err != nil {
			return "", fmt.Errorf("%w: %w", ErrProtocolViolation, err)
		}
		r.participants = append(r.participants, &participant{conn: params.Conn, state: NotStarted{}})
		s.cancelTeardown(r)
		r.maxConcurrentParticipants = max(r.maxConcurrentParticipants, len(r.participants))
	}

	s.broadcastAll(ctx, r, "users "+strconv.Itoa(len(r.participants)))

	if len(r.queue) > 0 {
		if cmd, ok := r.queue[0].videoCommand(); ok {
			params.Conn.Send("video " + mustJSON(cmd))
		}
		for _, item := range r.queue[1:] {
			params.Conn.Send("queue add " + mustJSON(item))
		}
	}
	params.Conn.Send("join ok")

	return "join ok", nil
}

// Leave removes conn from its room and schedules the teardown of an empty room.
func (s *service) Leave(ctx context.Context, conn Conn) {
	roomId, err := s.connRepo.Remove(conn)
	if err != nil {
		return
	}

	s.mu.Lock()
	r, ok := s.rooms[roomId]
	s.mu.Unlock()
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.removeParticipant(conn) {
		return
	}

	s.broadcastAll(ctx, r, "users "+strconv.Itoa(len(r.participants)))

	if len(r.participants) == 0 {
		s.scheduleTeardown(ctx, r)
	}
}

// Kill disconnects conn with reason. Its participant is removed by the following Leave.
func (s *service) Kill(ctx context.Context, conn Conn, reason string) {
	s.kill(ctx, conn, reason)
}

// scheduleTeardown expects r.mu to be held.
func (s *service) scheduleTeardown(ctx context.Context, r *room) {
	s.cancelTeardown(r)

	gen := r.teardownGen
	ctx = context.WithoutCancel(ctx)
	r.teardown = s.clock.AfterFunc(s.cfg.RoomCloseTimeout, func() {
		s.teardownRoom(ctx, r, gen)
	})
}

// cancelTeardown expects r.mu to be held. A teardown already waiting for the
// lock sees the bumped generation and backs off.
func (s *service) cancelTeardown(r *room) {
	if r.teardown != nil {
		r.teardown.Stop()
		r.teardown = nil
	}
	r.teardownGen++
}

func (s *service) teardownRoom(ctx context.Context, r *room, gen uint64) {
	stats, ok := s.removeRoom(ctx, r, gen)
	if !ok {
		return
	}

	s.logger.InfoContext(ctx, "room statistic",
		"room_id", stats.RoomId,
		"max_concurrent_participants", stats.MaxConcurrentParticipants,
		"total_videos_queued", stats.TotalVideosQueued,
	)

	if s.statsRepo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, statsSaveLimit)
	defer cancel()

	if err := s.statsRepo.SaveStats(ctx, stats); err != nil {
		s.logger.WarnContext(ctx, "failed to save room stats", "room_id", stats.RoomId, "error", err)
	}
}

// removeRoom drops r from the registry unless a join arrived since the
// teardown was scheduled. It returns the stats to record, if any.
func (s *service) removeRoom(ctx context.Context, r *room, gen uint64) (*roomRepo.Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.teardownGen != gen || len(r.participants) > 0 || r.removed {
		return nil, false
	}

	r.removed = true
	r.teardown = nil
	s.clearSyncTimeout(r)
	if s.rooms[r.id] == r {
		delete(s.rooms, r.id)
	}

	s.logger.InfoContext(ctx, "room closed", "room_id", r.id)
	if len(s.rooms) == 0 {
		s.logger.InfoContext(ctx, "no more active rooms")
	}

	if r.id == s.cfg.StatsSkipRoomId {
		return nil, false
	}

	return &roomRepo.Stats{
		RoomId:                    r.id,
		MaxConcurrentParticipants: r.maxConcurrentParticipants,
		TotalVideosQueued:         r.totalVideosQueued,
		CreatedAt:                 r.createdAt.Unix(),
		ClosedAt:                  s.clock.Now().Unix(),
	}, true
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
