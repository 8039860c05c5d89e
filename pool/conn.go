package pool

import (
	"sync"
	"time"

	"github.com/dbbouncer/dbclient"
)

type connState int

const (
	connStateIdle connState = iota
	connStateActive
	connStateClosed
)

// PooledConn wraps a dbclient.Conn with the bookkeeping the pool needs to
// decide whether to reuse, reap, or discard it (spec §4.8), generalizing
// the teacher's PooledConn from a per-tenant net.Conn wrapper to one
// wrapping the backend-polymorphic dbclient.Conn.
type PooledConn struct {
	mu        sync.Mutex
	conn      dbclient.Conn
	state     connState
	createdAt time.Time
	lastUsed  time.Time
	pool      *Pool
}

func newPooledConn(conn dbclient.Conn, p *Pool) *PooledConn {
	now := time.Now()
	return &PooledConn{
		conn:      conn,
		state:     connStateIdle,
		createdAt: now,
		lastUsed:  now,
		pool:      p,
	}
}

// Conn returns the underlying backend-polymorphic connection.
func (pc *PooledConn) Conn() dbclient.Conn {
	return pc.conn
}

// Return releases this connection back to its pool. Equivalent to calling
// Pool.Return(pc) directly.
func (pc *PooledConn) Return() {
	if pc.pool != nil {
		pc.pool.Return(pc)
	}
}

func (pc *PooledConn) markActive() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.state = connStateActive
	pc.lastUsed = time.Now()
}

func (pc *PooledConn) markIdle() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.state = connStateIdle
	pc.lastUsed = time.Now()
}

func (pc *PooledConn) State() connState {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.state
}

func (pc *PooledConn) isExpired(maxLifetime time.Duration) bool {
	if maxLifetime <= 0 {
		return false
	}
	return time.Since(pc.createdAt) > maxLifetime
}

func (pc *PooledConn) isIdleTimedOut(idleTimeout time.Duration) bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if idleTimeout <= 0 {
		return false
	}
	return pc.state == connStateIdle && time.Since(pc.lastUsed) > idleTimeout
}

func (pc *PooledConn) close() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.state = connStateClosed
	return pc.conn.Close()
}
