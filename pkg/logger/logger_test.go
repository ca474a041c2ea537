package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/watchsync/pkg/ctxlogger"
)

func TestNew(t *testing.T) {
	for _, backend := range []Backend{BackendStd, BackendZap} {
		t.Run(string(backend), func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := New(&Config{Level: "info", Backend: backend, Output: &buf})
			require.NoError(t, err)

			ctx := ctxlogger.AppendCtx(context.Background(), slog.String("room_id", "abcd"))
			logger.DebugContext(ctx, "hidden")
			logger.InfoContext(ctx, "booted", "k", "v")

			var record map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &record), "expected exactly one JSON line, got %s", buf.String())
			assert.Equal(t, "booted", record["msg"])
			assert.Equal(t, "v", record["k"])
			assert.Equal(t, "abcd", record["room_id"])
		})
	}
}

func TestNewErrors(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(&Config{Level: "info", Backend: "syslog"})
	assert.Error(t, err)
}
