package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/puddle/v2"

	"github.com/markdave123-py/contexta/internal/core"
	"github.com/markdave123-py/contexta/internal/core/retry"
)

// Handle is a single live connection to the store.
type Handle interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Dialer opens a new handle.
type Dialer[T Handle] func(ctx context.Context) (T, error)

// PoolConfig bounds the pool and tunes checkout.
//
// MinConns:       handles opened eagerly and kept after discards.
// MaxConns:       hard upper bound of live handles.
// AcquireTimeout: how long one checkout attempt waits for a free handle.
// MaxAttempts:    checkout attempts before giving up.
// RetryBaseDelay: first backoff between attempts; doubles each time.
type PoolConfig struct {
	MinConns       int32
	MaxConns       int32
	AcquireTimeout time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	Logger         *slog.Logger
}

// DefaultPoolConfig returns the production defaults (1..20 handles, 3 attempts from 0.5s).
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinConns:       1,
		MaxConns:       20,
		AcquireTimeout: 10 * time.Second,
		MaxAttempts:    3,
		RetryBaseDelay: 500 * time.Millisecond,
	}
}

// Pool is a bounded set of verified-live handles.
type Pool[T Handle] struct {
	res    *puddle.Pool[T]
	cfg    PoolConfig
	policy retry.Policy
	logger *slog.Logger
}

// Lease is a checked-out handle. It must be released exactly once; extra
// calls are ignored.
type Lease[T Handle] struct {
	res  *puddle.Resource[T]
	pool *Pool[T]
	once sync.Once
}

var errNoHandle = errors.New("no idle handle within acquire timeout")

// NewPool builds the pool and opens MinConns handles up front.
func NewPool[T Handle](ctx context.Context, dial Dialer[T], cfg PoolConfig) (*Pool[T], error) {
	def := DefaultPoolConfig()
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = def.MaxConns
	}
	if cfg.MinConns < 0 {
		cfg.MinConns = 0
	}
	if cfg.MinConns > cfg.MaxConns {
		cfg.MinConns = cfg.MaxConns
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = def.AcquireTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = def.RetryBaseDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "db-pool")

	res, err := puddle.NewPool(&puddle.Config[T]{
		Constructor: func(ctx context.Context) (T, error) {
			return dial(ctx)
		},
		Destructor: func(h T) {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.Close(closeCtx); err != nil {
				logger.Warn("closing discarded handle", "err", err)
			}
		},
		MaxSize: cfg.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create pool: %w", core.ErrConnection, err)
	}

	p := &Pool[T]{
		res: res,
		cfg: cfg,
		policy: retry.Policy{
			Name:        "db-acquire",
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			Logger:      logger,
		},
		logger: logger,
	}

	for i := int32(0); i < cfg.MinConns; i++ {
		if err := res.CreateResource(ctx); err != nil {
			res.Close()
			return nil, fmt.Errorf("%w: open initial connection: %w", core.ErrConnection, err)
		}
	}
	return p, nil
}

// Acquire checks out a handle and probes it. A handle failing the probe is
// destroyed and another attempt is made, with exponential backoff between
// attempts. Exhausting the attempts yields core.ErrPoolExhausted when the
// pool never had a free handle, core.ErrConnection otherwise.
func (p *Pool[T]) Acquire(ctx context.Context) (*Lease[T], error) {
	var lease *Lease[T]
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		acqCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
		defer cancel()

		res, err := p.res.Acquire(acqCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return errNoHandle
			}
			return err
		}

		if err := res.Value().Ping(ctx); err != nil {
			res.Destroy()
			return fmt.Errorf("liveness probe: %w", err)
		}
		lease = &Lease[T]{res: res, pool: p}
		return nil
	})
	if err == nil {
		return lease, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return nil, fmt.Errorf("%w: acquire: %w", core.ErrConnection, err)
	}
	if errors.Is(err, errNoHandle) {
		return nil, fmt.Errorf("%w: %d handles in use", core.ErrPoolExhausted, p.cfg.MaxConns)
	}
	p.logger.Error("could not acquire a live connection", "attempts", p.cfg.MaxAttempts, "err", err)
	return nil, fmt.Errorf("%w: %w", core.ErrConnection, err)
}

// Stat reports current pool occupancy.
func (p *Pool[T]) Stat() PoolStat {
	s := p.res.Stat()
	return PoolStat{
		Total:    s.TotalResources(),
		Idle:     s.IdleResources(),
		Acquired: s.AcquiredResources(),
		Max:      s.MaxResources(),
	}
}

// Close closes every idle handle and waits for leased ones to come back.
func (p *Pool[T]) Close() {
	p.res.Close()
}

// refill tops the pool back up to MinConns after a discard.
func (p *Pool[T]) refill() {
	if p.res.Stat().TotalResources() >= p.cfg.MinConns {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.AcquireTimeout)
		defer cancel()
		if err := p.res.CreateResource(ctx); err != nil && !errors.Is(err, puddle.ErrClosedPool) {
			p.logger.Warn("refilling pool", "err", err)
		}
	}()
}

// PoolStat is a snapshot of pool occupancy.
type PoolStat struct {
	Total    int32 `json:"total"`
	Idle     int32 `json:"idle"`
	Acquired int32 `json:"acquired"`
	Max      int32 `json:"max"`
}

// Value returns the leased handle.
func (l *Lease[T]) Value() T {
	return l.res.Value()
}

// Release hands the handle back. With discard set the handle is closed and
// dropped instead, which is what callers do after any database error so a
// connection in an unknown transaction state is never reused.
func (l *Lease[T]) Release(discard bool) {
	l.once.Do(func() {
		if discard {
			l.res.Destroy()
			l.pool.refill()
			return
		}
		l.res.Release()
	})
}
