package controller

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/watchsync/internal/repository/connection/inmemory"
	roomRepo "github.com/sharetube/watchsync/internal/repository/room"
	roomRedis "github.com/sharetube/watchsync/internal/repository/room/redis"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/favicon"
	"github.com/sharetube/watchsync/pkg/workerpool"
	"github.com/sharetube/watchsync/pkg/ytvideodata"
)

func newTestServer(t *testing.T, statsRepo iStatsRepo) *httptest.Server {
	t.Helper()
	return newTestServerWithConfig(t, statsRepo, &Config{
		Keepalive:   time.Second,
		IdleTimeout: 5 * time.Second,
	})
}

func newTestServerWithConfig(t *testing.T, statsRepo iStatsRepo, cfg *Config) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := workerpool.New(1, 4)
	t.Cleanup(pool.Close)

	roomService := room.NewService(
		inmemory.NewRepo[room.Conn](),
		nil,
		ytvideodata.NewResolver(&ytvideodata.Config{Timeout: time.Second}),
		favicon.NewResolver(http.DefaultClient, time.Second, logger),
		pool,
		logger,
		&room.Config{
			SyncTolerance:    1.5,
			SyncTimeout:      10 * time.Second,
			PauseIgnore:      2 * time.Second,
			SkipIgnore:       2 * time.Second,
			RoomCloseTimeout: 15 * time.Second,
			StatsSkipRoomId:  "test",
		},
	)
	c := NewController(roomService, statsRepo, logger, cfg)

	server := httptest.NewServer(c.GetMux())
	t.Cleanup(server.Close)

	return server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/room"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
}

func read(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	return string(data)
}

func TestJoinAndBroadcast(t *testing.T) {
	server := newTestServer(t, nil)

	p1 := dial(t, server)
	send(t, p1, "join abc")
	assert.Equal(t, "create abc", read(t, p1))
	assert.Equal(t, "users 1", read(t, p1))
	assert.Equal(t, "join ok", read(t, p1))

	p2 := dial(t, server)
	send(t, p2, "join abc")
	assert.Equal(t, "users 2", read(t, p2))
	assert.Equal(t, "join ok", read(t, p2))
	assert.Equal(t, "users 2", read(t, p1))

	send(t, p1, "queue add https://youtu.be/dQw4w9WgXcQ")
	for _, conn := range []*websocket.Conn{p1, p2} {
		msg := read(t, conn)
		require.True(t, strings.HasPrefix(msg, "video "), msg)
		assert.Contains(t, msg, "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	}

	send(t, p1, "sync")
	send(t, p1, "play 12.5")
	assert.Equal(t, "play", read(t, p1))

	p2.Close()
	assert.Equal(t, "users 1", read(t, p1))
}

func TestCreate(t *testing.T) {
	server := newTestServer(t, nil)

	p1 := dial(t, server)
	send(t, p1, "create")
	msg := read(t, p1)
	require.True(t, strings.HasPrefix(msg, "create "))

	p2 := dial(t, server)
	send(t, p2, "join "+strings.TrimPrefix(msg, "create "))
	assert.Equal(t, "users 2", read(t, p2))
}

func TestInvalidCommandKillsConnection(t *testing.T) {
	server := newTestServer(t, nil)

	for _, msg := range []string{"dance", "play", "play soon", "sync", "join a b"} {
		t.Run(msg, func(t *testing.T) {
			conn := dial(t, server)
			send(t, conn, msg)
			assert.Equal(t, "invalid command", read(t, conn))

			_, _, err := conn.ReadMessage()
			var closeErr *websocket.CloseError
			require.ErrorAs(t, err, &closeErr)
			assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
		})
	}
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t, nil)

	resp, err := http.Get(server.URL + "/api/v1/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStats(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })
	repo := roomRedis.NewRepo(rc, time.Hour)
	require.NoError(t, repo.SaveStats(context.Background(), &roomRepo.Stats{
		RoomId:                    "abc",
		MaxConcurrentParticipants: 4,
		TotalVideosQueued:         7,
	}))

	server := newTestServer(t, repo)
	resp, err := http.Get(server.URL + "/api/v1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data roomRepo.Totals `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, roomRepo.Totals{Rooms: 1, Videos: 7, MaxConcurrentParticipants: 4}, body.Data)
}

func TestStatsDisabled(t *testing.T) {
	server := newTestServer(t, nil)

	resp, err := http.Get(server.URL + "/api/v1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestIdleConnectionIsClosed(t *testing.T) {
	server := newTestServerWithConfig(t, nil, &Config{
		Keepalive:   100 * time.Millisecond,
		IdleTimeout: 300 * time.Millisecond,
	})

	idle := dial(t, server)
	send(t, idle, "join abc")
	assert.Equal(t, "create abc", read(t, idle))
	assert.Equal(t, "users 1", read(t, idle))
	assert.Equal(t, "join ok", read(t, idle))

	// swallow pings so no pong ever reaches the server
	idle.SetPingHandler(func(string) error { return nil })
	idle.SetReadDeadline(time.Now().Add(3 * time.Second))
	start := time.Now()
	_, _, err := idle.ReadMessage()
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "server should drop the connection after the idle timeout")

	// the idle participant has left, possibly just after p2 joined
	p2 := dial(t, server)
	send(t, p2, "join abc")
	for msg := read(t, p2); msg != "users 1"; msg = read(t, p2) {
		require.Contains(t, []string{"users 2", "join ok"}, msg)
	}
}

func TestPongKeepsConnectionAlive(t *testing.T) {
	server := newTestServerWithConfig(t, nil, &Config{
		Keepalive:   100 * time.Millisecond,
		IdleTimeout: 300 * time.Millisecond,
	})

	conn := dial(t, server)
	send(t, conn, "join abc")
	assert.Equal(t, "create abc", read(t, conn))
	assert.Equal(t, "users 1", read(t, conn))
	assert.Equal(t, "join ok", read(t, conn))

	// the default ping handler answers with a pong while we keep reading
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}
