package room

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/watchsync/internal/repository/connection/inmemory"
	"github.com/sharetube/watchsync/pkg/workerpool"
	"github.com/sharetube/watchsync/pkg/ytvideodata"
)

type fakeConn struct {
	mu     sync.Mutex
	msgs   []string
	killed []string
}

func (c *fakeConn) Send(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *fakeConn) Kill(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.killed = append(c.killed, reason)
}

// take returns the messages received since the last call.
func (c *fakeConn) take() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.msgs
	c.msgs = nil
	return msgs
}

func (c *fakeConn) kills() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.killed...)
}

type fakeResolver struct {
	mu      sync.Mutex
	results map[string]*ytvideodata.VideoData
	calls   int
	// release blocks Resolve until closed.
	release chan struct{}
}

func (f *fakeResolver) set(query string, data *ytvideodata.VideoData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[query] = data
}

func (f *fakeResolver) Resolve(ctx context.Context, query string) (*ytvideodata.VideoData, error) {
	f.mu.Lock()
	f.calls++
	data, ok := f.results[query]
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if !ok {
		return nil, ytvideodata.ErrVideoNotFound
	}
	return data, nil
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeFavicon struct{}

func (fakeFavicon) Initial(pageURL string) string { return pageURL + "favicon.ico" }

func (fakeFavicon) Resolve(context.Context, string) string { return "" }

type goPool struct {
	wg   sync.WaitGroup
	full bool
}

func (p *goPool) Submit(job func()) error {
	if p.full {
		return workerpool.ErrBacklogFull
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		job()
	}()
	return nil
}

func (p *goPool) wait() { p.wg.Wait() }

type testEnv struct {
	s        *service
	clock    *clock.Mock
	resolver *fakeResolver
	pool     *goPool
}

func testConfig(c clock.Clock) *Config {
	return &Config{
		SyncTolerance:    1.5,
		SyncTimeout:      10 * time.Second,
		PauseIgnore:      2 * time.Second,
		SkipIgnore:       2 * time.Second,
		RoomCloseTimeout: 15 * time.Second,
		StatsSkipRoomId:  "test",
		Clock:            c,
	}
}

func newTestEnv(t *testing.T, statsRepo iStatsRepo) *testEnv {
	t.Helper()
	e := testEnv{
		clock:    clock.NewMock(),
		resolver: &fakeResolver{results: make(map[string]*ytvideodata.VideoData)},
		pool:     &goPool{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e.s = NewService(inmemory.NewRepo[Conn](), statsRepo, e.resolver, fakeFavicon{}, e.pool, logger, testConfig(e.clock))
	t.Cleanup(e.pool.wait)

	return &e
}

func (e *testEnv) join(t *testing.T, roomId string) *fakeConn {
	t.Helper()
	conn := &fakeConn{}
	ack, err := e.s.JoinRoom(context.Background(), &JoinRoomParams{Conn: conn, RoomId: roomId})
	require.NoError(t, err)
	require.Equal(t, "join ok", ack)

	return conn
}

func (e *testEnv) setState(t *testing.T, conn Conn, state SyncState) {
	t.Helper()
	r, p, err := e.s.lockParticipant(conn)
	require.NoError(t, err)
	defer r.mu.Unlock()
	p.state = state
}

func (e *testEnv) state(t *testing.T, conn Conn) SyncState {
	t.Helper()
	r, p, err := e.s.lockParticipant(conn)
	require.NoError(t, err)
	defer r.mu.Unlock()
	return p.state
}

func (e *testEnv) queue(t *testing.T, conn Conn) []QueueItem {
	t.Helper()
	r, _, err := e.s.lockParticipant(conn)
	require.NoError(t, err)
	defer r.mu.Unlock()

	items := make([]QueueItem, 0, len(r.queue))
	for _, item := range r.queue {
		items = append(items, *item)
	}
	return items
}

func (e *testEnv) hasRoom(roomId string) bool {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	_, ok := e.s.rooms[roomId]
	return ok
}

func withPrefix(msgs []string, prefix string) []string {
	var res []string
	for _, msg := range msgs {
		if strings.HasPrefix(msg, prefix) {
			res = append(res, msg)
		}
	}
	return res
}

func TestCommandsOutsideRoomAreViolations(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()
	conn := &fakeConn{}

	_, err := e.s.Sync(ctx, conn)
	assert.ErrorIs(t, err, ErrProtocolViolation)

	_, err = e.s.Skip(ctx, conn)
	assert.ErrorIs(t, err, ErrProtocolViolation)

	_, err = e.s.CoordinatePlay(ctx, &CoordinatePlayParams{Conn: conn, Timestamp: 1, IsPlaying: true})
	assert.ErrorIs(t, err, ErrProtocolViolation)
}
