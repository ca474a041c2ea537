package room

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	rules "github.com/sharetube/watchsync/internal/service"
)

func formatTimestamp(ts float64) string {
	return strconv.FormatFloat(ts, 'f', -1, 64)
}

func validateTimestamp(ctx context.Context, ts float64) error {
	if err := validation.ValidateWithContext(ctx, ts, rules.TimestampRule...); err != nil {
		return fmt.Errorf("%w: timestamp %w", ErrProtocolViolation, err)
	}
	return nil
}

// CoordinatePlay handles a play request at params.Timestamp. The room starts
// playing once every active participant is ready at that position; otherwise
// everyone is paused and asked to buffer.
func (s *service) CoordinatePlay(ctx context.Context, params *CoordinatePlayParams) (string, error) {
	if err := validateTimestamp(ctx, params.Timestamp); err != nil {
		return "", err
	}

	r, p, err := s.lockParticipant(params.Conn)
	if err != nil {
		return "", err
	}
	defer r.mu.Unlock()

	return s.coordinatePlay(ctx, r, p, params.Timestamp, params.IsPlaying), nil
}

// coordinatePlay expects r.mu to be held.
func (s *service) coordinatePlay(ctx context.Context, r *room, caller *participant, ts float64, isPlaying bool) string {
	now := s.clock.Now()

	callerWasPlaying := false
	if prev, ok := caller.state.(Playing); ok {
		callerWasPlaying = math.Abs(prev.TimestampAt(now)-ts) <= s.cfg.SyncTolerance
	}

	if isPlaying {
		if _, awaiting := caller.state.(AwaitReady); !awaiting {
			caller.state = Playing{StartedAt: now, Timestamp: ts}
		}
	}

	if r.allReadyOrPlayingAt(ts, now, s.cfg.SyncTolerance) {
		s.clearSyncTimeout(r)
		if !callerWasPlaying || !r.allPlayingAt(ts, now, s.cfg.SyncTolerance) {
			s.setPlaying(ctx, r, ts)
		}
		return "play"
	}

	s.setPaused(ctx, r, ts)
	r.setActiveState(AwaitReady{Timestamp: ts})
	s.broadcastActive(ctx, r, "ready? "+formatTimestamp(ts))
	s.armSyncTimeout(ctx, r, ts)

	return "play await ready"
}

// ClientReady records that the caller buffered to params.Timestamp.
func (s *service) ClientReady(ctx context.Context, params *PlaybackParams) (string, error) {
	if err := validateTimestamp(ctx, params.Timestamp); err != nil {
		return "", err
	}

	r, p, err := s.lockParticipant(params.Conn)
	if err != nil {
		return "", err
	}
	defer r.mu.Unlock()

	p.state = Ready{Timestamp: params.Timestamp}
	if r.allReadyOrPlayingAt(params.Timestamp, s.clock.Now(), s.cfg.SyncTolerance) {
		s.clearSyncTimeout(r)
		s.setPlaying(ctx, r, params.Timestamp)
	}

	return "ready", nil
}

// ClientPause handles a pause made by a user. Pauses echoed back while the
// room reconciles are ignored.
func (s *service) ClientPause(ctx context.Context, params *PlaybackParams) (string, error) {
	if err := validateTimestamp(ctx, params.Timestamp); err != nil {
		return "", err
	}

	r, p, err := s.lockParticipant(params.Conn)
	if err != nil {
		return "", err
	}
	defer r.mu.Unlock()

	if _, awaiting := p.state.(AwaitReady); awaiting {
		return "pause ignore ready", nil
	}
	if s.clock.Now().Before(r.pauseIgnoreUntil) {
		return "pause ignore", nil
	}

	s.clearSyncTimeout(r)
	s.setPaused(ctx, r, params.Timestamp)

	return "pause client", nil
}

// HandleBuffering pauses a stalled caller and resynchronizes the room around it.
func (s *service) HandleBuffering(ctx context.Context, params *PlaybackParams) (string, error) {
	if err := validateTimestamp(ctx, params.Timestamp); err != nil {
		return "", err
	}

	r, p, err := s.lockParticipant(params.Conn)
	if err != nil {
		return "", err
	}
	defer r.mu.Unlock()

	switch p.state.(type) {
	case Paused:
		return "buffer deny", nil
	case AwaitReady:
		return "buffer await ready", nil
	}

	p.state = Paused{Timestamp: params.Timestamp}
	s.coordinatePlay(ctx, r, p, params.Timestamp, false)

	return "buffer", nil
}

// Sync starts playback for a participant that has not started yet by adopting
// the state of another active participant.
func (s *service) Sync(ctx context.Context, conn Conn) (string, error) {
	r, p, err := s.lockParticipant(conn)
	if err != nil {
		return "", err
	}
	defer r.mu.Unlock()

	if isActive(p.state) {
		return "sync deny", nil
	}

	now := s.clock.Now()
	start := 0.0
	if len(r.queue) > 0 {
		start = r.queue[0].startOffset()
	}
	p.state = Playing{StartedAt: now, Timestamp: start}

	var peer *participant
	for _, other := range r.participants {
		if other != p && isActive(other.state) {
			peer = other
			break
		}
	}
	if peer == nil {
		return "sync go", nil
	}

	switch state := peer.state.(type) {
	case Paused:
		s.setPaused(ctx, r, state.Timestamp)
		return "sync pause", nil
	case Ready:
		s.coordinatePlay(ctx, r, p, state.Timestamp, false)
		return "sync ready", nil
	case AwaitReady:
		s.coordinatePlay(ctx, r, p, state.Timestamp, false)
		return "sync awaitready", nil
	case Playing:
		s.coordinatePlay(ctx, r, p, state.TimestampAt(now), false)
		return "sync playing", nil
	default:
		return "sync go", nil
	}
}

// setPlaying expects r.mu to be held.
func (s *service) setPlaying(ctx context.Context, r *room, ts float64) {
	r.setActiveState(Playing{StartedAt: s.clock.Now(), Timestamp: ts})
	r.pauseIgnoreUntil = time.Time{}
	s.broadcastActive(ctx, r, "play")
}

// setPaused expects r.mu to be held. It opens the pause ignore window so the
// pauses clients report in reaction are not taken as user pauses.
func (s *service) setPaused(ctx context.Context, r *room, ts float64) {
	r.setActiveState(Paused{Timestamp: ts})
	r.pauseIgnoreUntil = s.clock.Now().Add(s.cfg.PauseIgnore)
	s.broadcastActive(ctx, r, "pause "+formatTimestamp(ts))
}

// armSyncTimeout expects r.mu to be held. It keeps a pending timeout.
func (s *service) armSyncTimeout(ctx context.Context, r *room, ts float64) {
	r.syncTimestamp = ts
	if r.syncTimeout != nil {
		return
	}

	r.syncTimeoutGen++
	gen := r.syncTimeoutGen
	ctx = context.WithoutCancel(ctx)
	r.syncTimeout = s.clock.AfterFunc(s.cfg.SyncTimeout, func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if r.syncTimeoutGen != gen || r.removed {
			return
		}
		r.syncTimeout = nil
		s.kickSlowClients(ctx, r)
	})
}

// clearSyncTimeout expects r.mu to be held.
func (s *service) clearSyncTimeout(r *room) {
	if r.syncTimeout != nil {
		r.syncTimeout.Stop()
		r.syncTimeout = nil
	}
	r.syncTimeoutGen++
}

// kickSlowClients expects r.mu to be held. Participants still awaiting
// readiness are disconnected; the rest start playing if they are ready.
func (s *service) kickSlowClients(ctx context.Context, r *room) {
	kicked := 0
	for _, p := range r.participants {
		if _, awaiting := p.state.(AwaitReady); awaiting {
			s.kill(ctx, p.conn, "sync timed out")
			p.state = NotStarted{}
			kicked++
		}
	}
	if kicked == 0 {
		return
	}

	s.logger.InfoContext(ctx, "kicked slow clients", "room_id", r.id, "count", kicked)

	ts := r.syncTimestamp
	now := s.clock.Now()
	hasReady := false
	for _, p := range r.participants {
		if _, ready := p.state.(Ready); ready {
			hasReady = true
		}
	}
	if hasReady && r.allReadyOrPlayingAt(ts, now, s.cfg.SyncTolerance) {
		s.setPlaying(ctx, r, ts)
	}
}
