// Package pool implements the bounded connection pool described in spec
// §4.8: a single-DSN generalization of the teacher's per-tenant
// TenantPool/Manager pair (internal/pool/pool.go), operating over
// dbclient.Conn instead of a raw net.Conn plus hand-rolled auth.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/dbbouncer/dbclient"
	"github.com/dbbouncer/dbclient/internal/obsv"
)

// Stats holds a snapshot of pool occupancy (spec §8 "Pool conservation:
// in_use + idle <= max").
type Stats struct {
	Backend   string
	Active    int
	Idle      int
	Total     int
	Waiting   int
	MaxConns  int
	MinConns  int
	Exhausted int64
}

// OnPoolExhausted is invoked whenever Acquire must wait because the pool
// is at MaxConns, mirroring the teacher's OnPoolExhausted hook.
type OnPoolExhausted func()

// Pool is a bounded collection of live connections to a single DSN (spec
// §4.8). The zero value is not usable; construct with New.
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond

	dsn    *dbclient.DSN
	dialer dbclient.Dialer
	logger *slog.Logger

	minConns       int
	maxConns       int
	idleTimeout    time.Duration
	maxLifetime    time.Duration
	acquireTimeout time.Duration

	idle      []*PooledConn
	active    map[*PooledConn]struct{}
	total     int
	waiting   int
	exhausted int64

	closed bool
	stopCh chan struct{}

	metrics         *obsv.Collector
	onPoolExhausted OnPoolExhausted
}

// New builds a pool dialing dsn.Addr() with net.Dialer{}.
func New(dsn *dbclient.DSN) *Pool {
	return NewWithDialer(dsn, &net.Dialer{Timeout: dsn.Pool.EffectiveDialTimeout(), KeepAlive: 30 * time.Second})
}

// NewWithDialer builds a pool with an injectable Dialer (tests, custom
// transports), matching the teacher's pattern of taking dialing out of
// NewTenantPool's direct net.Dial call.
func NewWithDialer(dsn *dbclient.DSN, dialer dbclient.Dialer) *Pool {
	p := &Pool{
		dsn:            dsn,
		dialer:         dialer,
		logger:         slog.Default(),
		minConns:       dsn.Pool.EffectiveMinConns(),
		maxConns:       dsn.Pool.EffectiveMaxConns(),
		idleTimeout:    dsn.Pool.EffectiveIdleTimeout(),
		maxLifetime:    dsn.Pool.EffectiveMaxLifetime(),
		acquireTimeout: dsn.Pool.EffectiveAcquireTimeout(),
		idle:           make([]*PooledConn, 0),
		active:         make(map[*PooledConn]struct{}),
		stopCh:         make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	go p.reapLoop()
	if p.minConns > 0 {
		go p.warmUp()
	}
	return p
}

// SetLogger redirects the pool's structured logging. Must be called
// before the pool sees traffic.
func (p *Pool) SetLogger(l *slog.Logger) {
	if l != nil {
		p.logger = l
	}
}

// SetMetrics wires a Collector for the acquire-wait histogram and the
// pool-exhausted counter. The pool does not set the Collector's
// connection-count gauges or its database-error counter. Must be called
// before the pool sees traffic.
func (p *Pool) SetMetrics(m *obsv.Collector) {
	p.metrics = m
}

// SetOnPoolExhausted sets the callback invoked whenever Acquire must wait.
// Must be called before the pool sees traffic.
func (p *Pool) SetOnPoolExhausted(cb OnPoolExhausted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onPoolExhausted = cb
}

func (p *Pool) backendLabel() string {
	return p.dsn.Backend.String()
}

func (p *Pool) warmUp() {
	for i := 0; i < p.minConns; i++ {
		p.mu.Lock()
		if p.closed || p.total >= p.minConns {
			p.mu.Unlock()
			return
		}
		p.total++
		p.mu.Unlock()

		pc, err := p.dial(context.Background())
		if err != nil {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			p.logger.Warn("pool warm-up connection failed", "index", i+1, "total", p.minConns, "backend", p.backendLabel(), "err", err)
			return
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			pc.close()
			return
		}
		pc.markIdle()
		p.idle = append(p.idle, pc)
		p.mu.Unlock()
	}
}

func (p *Pool) dial(ctx context.Context) (*PooledConn, error) {
	dialCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, p.dsn.Pool.EffectiveDialTimeout())
		defer cancel()
	}
	conn, err := dbclient.OpenDSN(dialCtx, p.dsn, p.dialer)
	if err != nil {
		return nil, err
	}
	return newPooledConn(conn, p), nil
}

func (p *Pool) recordAcquire(start time.Time) {
	if p.metrics != nil {
		p.metrics.AcquireDuration(p.backendLabel(), time.Since(start))
	}
}

// Acquire returns the longest-idle connection, dials a new one if under
// MaxConns, or waits (spec §4.8). Honors both ctx's deadline and the pool's
// configured AcquireTimeout, whichever is earlier. Waiters block on a
// sync.Cond rather than a queue, so they are not served in strict arrival
// order: deadline timers and SetLimits wake every waiter, and a caller that
// arrives while a woken waiter is reacquiring the lock can take the freed
// connection first.
func (p *Pool) Acquire(ctx context.Context) (*PooledConn, error) {
	start := time.Now()
	deadlineAt := start.Add(p.acquireTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadlineAt) {
		deadlineAt = ctxDeadline
	}

	p.mu.Lock()
	for {
		select {
		case <-ctx.Done():
			p.mu.Unlock()
			return nil, ctx.Err()
		default:
		}

		if p.closed {
			p.mu.Unlock()
			return nil, &dbclient.PoolClosedError{}
		}

		for len(p.idle) > 0 {
			pc := p.idle[0]
			p.idle = p.idle[1:]

			if pc.isExpired(p.maxLifetime) {
				pc.close()
				p.total--
				continue
			}

			pc.markActive()
			p.active[pc] = struct{}{}
			p.mu.Unlock()
			p.recordAcquire(start)
			return pc, nil
		}

		if p.total < p.maxConns {
			p.total++
			p.mu.Unlock()

			pc, err := p.dial(ctx)
			if err != nil {
				p.mu.Lock()
				p.total--
				p.mu.Unlock()
				return nil, fmt.Errorf("dbclient/pool: dialing %s: %w", p.dsn.Addr(), err)
			}

			pc.markActive()
			p.mu.Lock()
			p.active[pc] = struct{}{}
			p.mu.Unlock()
			p.recordAcquire(start)
			return pc, nil
		}

		p.waiting++
		p.exhausted++
		cb := p.onPoolExhausted
		if p.metrics != nil {
			p.metrics.PoolExhausted(p.backendLabel())
		}
		p.mu.Unlock()

		if cb != nil {
			cb()
		}

		p.mu.Lock()
		remaining := time.Until(deadlineAt)
		if remaining <= 0 {
			p.waiting--
			p.mu.Unlock()
			return nil, &dbclient.PoolTimeoutError{}
		}

		timer := time.AfterFunc(remaining, func() { p.cond.Broadcast() })
		p.cond.Wait() // releases p.mu, waits for signal, reacquires p.mu
		timer.Stop()

		p.waiting--

		if p.closed {
			p.mu.Unlock()
			return nil, &dbclient.PoolClosedError{}
		}
		if time.Now().After(deadlineAt) {
			p.mu.Unlock()
			return nil, &dbclient.PoolTimeoutError{}
		}
		// retry from the top of the loop (p.mu is held)
	}
}

// SetLimits updates the pool's sizing knobs at runtime, e.g. from a
// hot-reloaded defaults file (SPEC_FULL.md §3 fsnotify wiring). Zero
// values leave the corresponding knob unchanged. Takes effect on the next
// Acquire or reap pass.
func (p *Pool) SetLimits(minConns, maxConns int, idleTimeout, maxLifetime, acquireTimeout time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if minConns > 0 {
		p.minConns = minConns
	}
	if maxConns > 0 {
		p.maxConns = maxConns
	}
	if idleTimeout > 0 {
		p.idleTimeout = idleTimeout
	}
	if maxLifetime > 0 {
		p.maxLifetime = maxLifetime
	}
	if acquireTimeout > 0 {
		p.acquireTimeout = acquireTimeout
	}
	p.cond.Broadcast()
}

// InjectTestConn adds a pre-built PooledConn directly into the idle list,
// bypassing dial. Test-only, mirroring the teacher's InjectTestConn.
func (p *Pool) InjectTestConn(conn dbclient.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pc := newPooledConn(conn, p)
	pc.markIdle()
	p.idle = append(p.idle, pc)
	p.total++
	p.cond.Signal()
}

// Return releases pc back to the pool (spec §4.8: "a returned connection
// is inspected; if poisoned, it is discarded and the size counter
// decremented; otherwise placed back on the idle queue").
func (p *Pool) Return(pc *PooledConn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.active, pc)

	if p.closed || pc.conn.Poisoned() || pc.isExpired(p.maxLifetime) {
		pc.close()
		p.total--
		p.cond.Signal()
		return
	}

	pc.markIdle()
	p.idle = append(p.idle, pc)
	p.cond.Signal()
}

// Stats returns a point-in-time snapshot of pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Backend:   p.backendLabel(),
		Active:    len(p.active),
		Idle:      len(p.idle),
		Total:     p.total,
		Waiting:   p.waiting,
		MaxConns:  p.maxConns,
		MinConns:  p.minConns,
		Exhausted: p.exhausted,
	}
}

// Drain closes all idle connections and waits (up to 30s) for active ones
// to be returned, then force-closes any stragglers.
func (p *Pool) Drain() {
	p.mu.Lock()
	for _, pc := range p.idle {
		pc.close()
		p.total--
	}
	p.idle = p.idle[:0]
	activeCount := len(p.active)
	p.mu.Unlock()

	if activeCount == 0 {
		return
	}

	p.logger.Info("draining active connections", "count", activeCount, "backend", p.backendLabel())
	timeout := time.After(30 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			if len(p.active) == 0 {
				p.mu.Unlock()
				return
			}
			p.mu.Unlock()
		case <-timeout:
			p.mu.Lock()
			for pc := range p.active {
				pc.close()
				p.total--
			}
			p.active = make(map[*PooledConn]struct{})
			p.mu.Unlock()
			p.logger.Warn("force-closed active connections after drain timeout", "backend", p.backendLabel())
			return
		}
	}
}

// Close shuts the pool down. Safe to call multiple times.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.stopCh)
	p.cond.Broadcast()
	p.mu.Unlock()

	p.Drain()
}

func (p *Pool) reapLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.reapIdle()
		case <-p.stopCh:
			return
		}
	}
}

func (p *Pool) reapIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.idle) <= p.minConns {
		return
	}

	kept := make([]*PooledConn, 0, len(p.idle))
	excess := len(p.idle) - p.minConns
	for i, pc := range p.idle {
		if i < excess && (pc.isIdleTimedOut(p.idleTimeout) || pc.isExpired(p.maxLifetime)) {
			pc.close()
			p.total--
		} else {
			kept = append(kept, pc)
		}
	}
	p.idle = kept
}
