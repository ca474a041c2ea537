package app

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/watchsync/pkg/ctxlogger"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	return ln.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *AppConfig {
	t.Helper()
	return &AppConfig{
		Host:             "127.0.0.1",
		Port:             freePort(t),
		LogLevel:         "error",
		LogBackend:       "std",
		SyncTolerance:    1.5,
		SyncTimeout:      10 * time.Second,
		PauseIgnore:      2 * time.Second,
		SkipIgnore:       2 * time.Second,
		RoomCloseTimeout: 15 * time.Second,
		StatsSkipRoomId:  "test",
		Keepalive:        20 * time.Second,
		IdleTimeout:      30 * time.Second,
		ResolveTimeout:   15 * time.Second,
		ResolveWorkers:   2,
		ResolveBacklog:   4,
		FaviconTimeout:   5 * time.Second,
		YtDlpPath:        "yt-dlp",
		StatsTTL:         time.Hour,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, testConfig(t).Validate())

	tests := map[string]func(*AppConfig){
		"port out of range":    func(c *AppConfig) { c.Port = 70000 },
		"unknown backend":      func(c *AppConfig) { c.LogBackend = "syslog" },
		"no workers":           func(c *AppConfig) { c.ResolveWorkers = 0 },
		"idle below keepalive": func(c *AppConfig) { c.IdleTimeout = c.Keepalive },
		"zero tolerance":       func(c *AppConfig) { c.SyncTolerance = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRunServesRooms(t *testing.T) {
	s := miniredis.RunT(t)
	redisPort, err := strconv.Atoi(s.Port())
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.RedisHost = s.Host()
	cfg.RedisPort = redisPort

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()

	base := "127.0.0.1:" + strconv.Itoa(cfg.Port)
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + base + "/api/v1/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	_, ok := slog.Default().Handler().(ctxlogger.ContextHandler)
	assert.True(t, ok, "package level logging should go through the configured handler")

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+base+"/api/room", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("join abc")))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "create abc", string(msg))

	resp, err := http.Get("http://" + base + "/api/v1/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunFailsWithoutRedis(t *testing.T) {
	s := miniredis.RunT(t)
	redisPort, err := strconv.Atoi(s.Port())
	require.NoError(t, err)
	redisHost := s.Host()
	s.Close()

	cfg := testConfig(t)
	cfg.RedisHost = redisHost
	cfg.RedisPort = redisPort

	assert.Error(t, Run(context.Background(), cfg))
}
