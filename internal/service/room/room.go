package room

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type participant struct {
	conn  Conn
	state SyncState
}

type room struct {
	id           string
	mu           sync.Mutex
	participants []*participant
	queue        []*QueueItem

	syncTimeout      *clock.Timer
	syncTimeoutGen   uint64
	syncTimestamp    float64
	pauseIgnoreUntil time.Time
	skipIgnoreUntil  time.Time

	teardown    *clock.Timer
	teardownGen uint64
	removed     bool

	createdAt                 time.Time
	maxConcurrentParticipants int
	totalVideosQueued         int
}

func newRoom(id string, creator Conn, now time.Time) *room {
	return &room{
		id:                        id,
		participants:              []*participant{{conn: creator, state: NotStarted{}}},
		createdAt:                 now,
		maxConcurrentParticipants: 1,
	}
}

func (r *room) participant(conn Conn) *participant {
	for _, p := range r.participants {
		if p.conn == conn {
			return p
		}
	}
	return nil
}

func (r *room) removeParticipant(conn Conn) bool {
	for i, p := range r.participants {
		if p.conn == conn {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			return true
		}
	}
	return false
}

// setActiveState assigns state to every participant that has started playback.
func (r *room) setActiveState(state SyncState) {
	for _, p := range r.participants {
		if isActive(p.state) {
			p.state = state
		}
	}
}

func (r *room) allReadyOrPlayingAt(ts float64, now time.Time, tolerance float64) bool {
	for _, p := range r.participants {
		if !ReadyOrPlayingAt(p.state, ts, now, tolerance) {
			return false
		}
	}
	return true
}

func (r *room) allPlayingAt(ts float64, now time.Time, tolerance float64) bool {
	for _, p := range r.participants {
		if !PlayingAt(p.state, ts, now, tolerance) {
			return false
		}
	}
	return true
}

func (r *room) itemIndex(itemId string) int {
	for i, item := range r.queue {
		if item.Id == itemId {
			return i
		}
	}
	return -1
}
