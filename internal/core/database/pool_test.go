package db

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta/internal/core"
)

type fakeHandle struct {
	id      int
	pingErr error
	closed  atomic.Bool
}

func (h *fakeHandle) Ping(context.Context) error { return h.pingErr }

func (h *fakeHandle) Close(context.Context) error {
	h.closed.Store(true)
	return nil
}

// fakeDialer hands out handles in order; handles listed in dead fail their probe.
type fakeDialer struct {
	mu      sync.Mutex
	dialed  []*fakeHandle
	dead    map[int]bool
	dialErr error
}

func (d *fakeDialer) dial(context.Context) (*fakeHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	h := &fakeHandle{id: len(d.dialed)}
	if d.dead[h.id] {
		h.pingErr = errors.New("server closed the connection unexpectedly")
	}
	d.dialed = append(d.dialed, h)
	return h, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dialed)
}

func testPoolConfig() PoolConfig {
	return PoolConfig{
		MinConns:       0,
		MaxConns:       2,
		AcquireTimeout: 30 * time.Millisecond,
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
	}
}

func TestPool_OpensMinConnsEagerly(t *testing.T) {
	d := &fakeDialer{}
	cfg := testPoolConfig()
	cfg.MinConns = 2

	p, err := NewPool(context.Background(), d.dial, cfg)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 2, d.count())
	assert.Equal(t, int32(2), p.Stat().Idle)
}

func TestPool_InitialDialFailure(t *testing.T) {
	d := &fakeDialer{dialErr: errors.New("connection refused")}
	cfg := testPoolConfig()
	cfg.MinConns = 1

	_, err := NewPool(context.Background(), d.dial, cfg)
	assert.ErrorIs(t, err, core.ErrConnection)
}

func TestPool_RecyclesHealthyHandle(t *testing.T) {
	d := &fakeDialer{}
	p, err := NewPool(context.Background(), d.dial, testPoolConfig())
	require.NoError(t, err)
	defer p.Close()

	first, err := p.Acquire(context.Background())
	require.NoError(t, err)
	h := first.Value()
	first.Release(false)

	second, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer second.Release(false)

	assert.Same(t, h, second.Value())
	assert.Equal(t, 1, d.count())
}

func TestPool_DiscardsHandleFailingProbe(t *testing.T) {
	d := &fakeDialer{dead: map[int]bool{0: true}}
	p, err := NewPool(context.Background(), d.dial, testPoolConfig())
	require.NoError(t, err)
	defer p.Close()

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer lease.Release(false)

	assert.Equal(t, 1, lease.Value().id)
	assert.Eventually(t, func() bool { return d.dialed[0].closed.Load() }, time.Second, 5*time.Millisecond)
}

func TestPool_ConnectionErrorAfterAttempts(t *testing.T) {
	d := &fakeDialer{dead: map[int]bool{0: true, 1: true, 2: true, 3: true}}
	p, err := NewPool(context.Background(), d.dial, testPoolConfig())
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConnection)
	assert.Equal(t, 3, d.count())
}

func TestPool_DialErrorIsConnectionError(t *testing.T) {
	d := &fakeDialer{dialErr: errors.New("no route to host")}
	p, err := NewPool(context.Background(), d.dial, testPoolConfig())
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, core.ErrConnection)
	assert.NotErrorIs(t, err, core.ErrPoolExhausted)
}

func TestPool_Exhausted(t *testing.T) {
	d := &fakeDialer{}
	cfg := testPoolConfig()
	cfg.MaxConns = 1
	p, err := NewPool(context.Background(), d.dial, cfg)
	require.NoError(t, err)
	defer p.Close()

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release(false)

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, core.ErrPoolExhausted)
}

func TestPool_DiscardFreesCapacity(t *testing.T) {
	d := &fakeDialer{}
	cfg := testPoolConfig()
	cfg.MaxConns = 1
	p, err := NewPool(context.Background(), d.dial, cfg)
	require.NoError(t, err)
	defer p.Close()

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	broken := lease.Value()
	lease.Release(true)
	lease.Release(true)

	assert.Eventually(t, func() bool { return broken.closed.Load() }, time.Second, 5*time.Millisecond)

	next, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer next.Release(false)
	assert.NotSame(t, broken, next.Value())
}

func TestPool_ConcurrentAcquireStaysBounded(t *testing.T) {
	d := &fakeDialer{}
	cfg := testPoolConfig()
	cfg.MaxConns = 3
	cfg.AcquireTimeout = time.Second
	p, err := NewPool(context.Background(), d.dial, cfg)
	require.NoError(t, err)
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := p.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			assert.LessOrEqual(t, p.Stat().Acquired, int32(3))
			time.Sleep(time.Millisecond)
			lease.Release(false)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, d.count(), 3)
}
