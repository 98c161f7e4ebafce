// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/gridclient/affinity"
)

type fakeConn struct {
	addr   string
	closed atomic.Bool
}

func (c *fakeConn) Call(context.Context, string, any, any) error { return nil }

func (c *fakeConn) CallRaw(context.Context, string, []byte) ([]byte, error) { return nil, nil }

func (c *fakeConn) Close() error {
	if c.closed.Swap(true) {
		return ErrConnClosed
	}
	return nil
}

type fakeDialer struct {
	mu    sync.Mutex
	fail  error
	dials int
	conns []*fakeConn
}

func (d *fakeDialer) dial(_ context.Context, addr string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.fail != nil {
		return nil, d.fail
	}
	c := &fakeConn{addr: addr}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func newTestPool(d *fakeDialer, interval time.Duration) (*pool, *BasicMetricsCollector) {
	metrics := &BasicMetricsCollector{}
	return newPool(d.dial, interval, NoopLogger(), metrics), metrics
}

func TestPoolReusesConnection(t *testing.T) {
	d := &fakeDialer{}
	p, metrics := newTestPool(d, time.Second)
	node := affinity.Node{ID: "a", Addr: "a:1"}

	var wg sync.WaitGroup
	conns := make([]Conn, 16)
	for i := range conns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := p.get(context.Background(), node)
			assert.NoError(t, err)
			conns[i] = c
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, d.count())
	for _, c := range conns {
		assert.Same(t, conns[0], c)
	}
	assert.Equal(t, int64(1), metrics.Stats().DialCount)
}

func TestPoolRedialThrottle(t *testing.T) {
	boom := errors.New("connection refused")
	d := &fakeDialer{fail: boom}
	p, metrics := newTestPool(d, time.Hour)
	node := affinity.Node{ID: "a", Addr: "a:1"}

	_, err := p.get(context.Background(), node)
	assert.ErrorIs(t, err, boom)
	_, err = p.get(context.Background(), node)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, d.count(), "redial inside the interval")
	assert.Equal(t, int64(1), metrics.Stats().DialErrors)
}

func TestPoolRedialAfterInterval(t *testing.T) {
	d := &fakeDialer{fail: errors.New("down")}
	p, _ := newTestPool(d, 20*time.Millisecond)
	node := affinity.Node{ID: "a", Addr: "a:1"}

	_, err := p.get(context.Background(), node)
	require.Error(t, err)

	d.mu.Lock()
	d.fail = nil
	d.mu.Unlock()

	require.Eventually(t, func() bool {
		_, err := p.get(context.Background(), node)
		return err == nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, d.count())
}

func TestPoolInvalidate(t *testing.T) {
	d := &fakeDialer{}
	p, _ := newTestPool(d, time.Hour)
	node := affinity.Node{ID: "a", Addr: "a:1"}

	first, err := p.get(context.Background(), node)
	require.NoError(t, err)
	p.invalidate(node.ID, first)
	assert.True(t, first.(*fakeConn).closed.Load())

	// A healthy connection that dropped is redialed without waiting.
	second, err := p.get(context.Background(), node)
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	// A stale conn does not evict its replacement.
	p.invalidate(node.ID, first)
	again, err := p.get(context.Background(), node)
	require.NoError(t, err)
	assert.Same(t, second, again)
}

func TestPoolNodeMoved(t *testing.T) {
	d := &fakeDialer{}
	p, _ := newTestPool(d, time.Hour)

	first, err := p.get(context.Background(), affinity.Node{ID: "a", Addr: "a:1"})
	require.NoError(t, err)
	moved, err := p.get(context.Background(), affinity.Node{ID: "a", Addr: "a:2"})
	require.NoError(t, err)

	assert.True(t, first.(*fakeConn).closed.Load())
	assert.Equal(t, "a:2", moved.(*fakeConn).addr)
}

func TestPoolRetainAndClose(t *testing.T) {
	d := &fakeDialer{}
	p, _ := newTestPool(d, time.Hour)
	a := affinity.Node{ID: "a", Addr: "a:1"}
	b := affinity.Node{ID: "b", Addr: "b:1"}

	ca, err := p.get(context.Background(), a)
	require.NoError(t, err)
	cb, err := p.get(context.Background(), b)
	require.NoError(t, err)

	require.NoError(t, p.retain(affinity.NewTopology(2, a)))
	assert.False(t, ca.(*fakeConn).closed.Load())
	assert.True(t, cb.(*fakeConn).closed.Load())

	require.NoError(t, p.close())
	assert.True(t, ca.(*fakeConn).closed.Load())
	require.NoError(t, p.close())

	_, err = p.get(context.Background(), a)
	assert.ErrorIs(t, err, ErrClientClosed)
}
