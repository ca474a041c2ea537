package workerpool

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsJobs(t *testing.T) {
	p := New(4, 16)

	var n atomic.Int32
	for range 10 {
		require.NoError(t, p.Submit(func() { n.Add(1) }))
	}
	p.Close()

	assert.Equal(t, int32(10), n.Load())
	assert.ErrorIs(t, p.Submit(func() {}), ErrClosed)
}

func TestPoolLimitsConcurrency(t *testing.T) {
	p := New(2, 8)

	var running, peak atomic.Int32
	release := make(chan struct{})
	for range 6 {
		require.NoError(t, p.Submit(func() {
			cur := running.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			<-release
			running.Add(-1)
		}))
	}
	close(release)
	p.Close()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPoolRejectsWhenBacklogFull(t *testing.T) {
	p := New(1, 1)
	block := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.Submit(func() {
		close(started)
		<-block
	}))
	<-started

	// the dispatcher holds one job waiting for a worker, the channel holds another
	var rejected bool
	for range 5 {
		if err := p.Submit(func() {}); err != nil {
			assert.ErrorIs(t, err, ErrBacklogFull)
			rejected = true
			break
		}
	}
	assert.True(t, rejected, "submissions beyond the backlog must be rejected")

	close(block)
	p.Close()
}
