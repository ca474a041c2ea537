package inmemory

import (
	"log/slog"
	"sync"

	"github.com/sharetube/watchsync/internal/repository/connection"
)

// repo binds live connections to the room they joined.
type repo[C comparable] struct {
	roomIds map[C]string
	mu      sync.RWMutex
}

func NewRepo[C comparable]() *repo[C] {
	return &repo[C]{
		roomIds: make(map[C]string),
	}
}

func (r *repo[C]) Add(conn C, roomId string) error {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	slog.Debug(funcName, "room_id", roomId)
	if _, ok := r.roomIds[conn]; ok {
		slog.Info(funcName, "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	r.roomIds[conn] = roomId

	slog.Debug(funcName, "result", "OK")
	return nil
}

// Remove unbinds conn and returns the room it was bound to.
func (r *repo[C]) Remove(conn C) (string, error) {
	funcName := "connection.inmemory.Remove"
	r.mu.Lock()
	defer r.mu.Unlock()

	roomId, ok := r.roomIds[conn]
	if !ok {
		slog.Debug(funcName, "error", connection.ErrNotFound)
		return "", connection.ErrNotFound
	}

	delete(r.roomIds, conn)

	slog.Debug(funcName, "result", roomId)
	return roomId, nil
}

func (r *repo[C]) GetRoomId(conn C) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomId, ok := r.roomIds[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	return roomId, nil
}
