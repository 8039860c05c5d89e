// Package dbclient is a bit-exact client for the MySQL/MariaDB
// client/server protocol v10 and the PostgreSQL frontend/backend protocol
// v3.0: framing, handshake/authentication, prepared statements,
// binary/text row decode, a backend-agnostic execute/fetch/describe
// facade, and a bounded connection pool. Value conversion beyond raw
// bytes plus a coarse type kind, TLS cipher configuration, and query
// validation are deliberately out of scope — see the Conn and Row
// documentation for what is and isn't decoded on the caller's behalf.
package dbclient

import (
	"context"
	"fmt"
	"net"
)

// Conn is the backend-polymorphic connection facade (spec §4.7). A Conn
// is never shared between goroutines; the pool enforces exclusive
// ownership.
type Conn interface {
	// Execute runs sql with params bound and returns the number of rows
	// affected. For statements that return rows, prefer Fetch.
	Execute(ctx context.Context, sql string, params []Param) (uint64, error)

	// Fetch runs sql with params bound and returns a lazy, single-pass,
	// backpressured sequence of result rows.
	Fetch(ctx context.Context, sql string, params []Param) (*RowIter, error)

	// FetchOptional runs sql and returns at most one row, or (nil, nil)
	// if the result set is empty.
	FetchOptional(ctx context.Context, sql string, params []Param) (*Row, error)

	// Describe reports a statement's parameter types and result columns
	// without executing it.
	Describe(ctx context.Context, sql string) (*Describe, error)

	// Prepare creates a server-side prepared statement (spec §3
	// "PreparedStatement").
	Prepare(ctx context.Context, sql string) (Stmt, error)

	// Ping verifies the connection is alive (spec §4 supplemented
	// feature: promoted from a bare command to a first-class operation).
	Ping(ctx context.Context) error

	// Close shuts the connection down, best-effort notifying the server
	// (COM_QUIT / Terminate) first.
	Close() error

	// Poisoned reports whether a framing or I/O error has left the
	// connection's state unrecoverable; the pool must discard such a
	// connection instead of returning it to the idle queue.
	Poisoned() bool
}

// Stmt is a server-side prepared statement (spec §3 "PreparedStatement";
// SPEC_FULL.md §4 "ComStmtReset and ComStmtClose full lifecycle").
type Stmt interface {
	// Execute binds params and runs the prepared statement, returning a
	// lazy row sequence decoded against the statement's cached column
	// metadata.
	Execute(ctx context.Context, params []Param) (*RowIter, error)

	// Describe returns the parameter/result metadata captured at
	// prepare time.
	Describe() *Describe

	// Reset clears any bound-parameter/cursor state server-side without
	// destroying the statement, making it reusable for another Execute.
	Reset(ctx context.Context) error

	// Close destroys the statement server-side. The Stmt must not be
	// used afterward.
	Close(ctx context.Context) error
}

// MySQLConn is the subset of MySQL-only operations not part of the
// backend-agnostic Conn interface (spec §6 "select_database... MySQL
// only"; SPEC_FULL.md §4 COM_DEBUG/SetOption escape hatch). A Conn
// obtained from a mysql:// or mariadb:// DSN also implements this.
type MySQLConn interface {
	SelectDatabase(ctx context.Context, name string) error
	Debug(ctx context.Context) error
	SetOption(ctx context.Context, multiStatementsOff bool) error
}

// Dialer opens the raw transport a connection is built on; defaults to
// net.Dialer but can be overridden (tests, custom transports).
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// Open parses rawURL and dials a single connection (spec §6 "open(url)").
// Callers that want pooling should use pool.New instead, which calls Open
// (or an equivalent dial) per physical connection.
func Open(ctx context.Context, rawURL string) (Conn, error) {
	return OpenWithDialer(ctx, rawURL, &net.Dialer{})
}

// OpenWithDialer is Open with an injectable Dialer, for callers that
// substitute their own transport. The pool does not use it; it calls
// OpenDSN with its own Dialer.
func OpenWithDialer(ctx context.Context, rawURL string, dialer Dialer) (Conn, error) {
	dsn, err := ParseDSN(rawURL)
	if err != nil {
		return nil, err
	}
	return OpenDSN(ctx, dsn, dialer)
}

// BackendOpener builds a Conn from an already-dialed transport. mysqlconn
// and pgconn each register one via RegisterBackend from an init func, so
// dbclient itself never imports either internal driver package — that
// would-be dependency runs in the other direction instead.
type BackendOpener func(ctx context.Context, dsn *DSN, conn net.Conn) (Conn, error)

var backendOpeners = map[Backend]BackendOpener{}

// RegisterBackend wires a backend implementation into Open/OpenDSN.
func RegisterBackend(b Backend, open BackendOpener) {
	backendOpeners[b] = open
}

// OpenDSN dials dsn.Addr() with dialer and hands the raw connection to the
// registered backend opener for dsn.Backend.
func OpenDSN(ctx context.Context, dsn *DSN, dialer Dialer) (Conn, error) {
	opener, ok := backendOpeners[dsn.Backend]
	if !ok {
		return nil, fmt.Errorf("dbclient: no backend registered for %s (import internal/mysqlconn or internal/pgconn)", dsn.Backend)
	}
	rawConn, err := dialer.DialContext(ctx, "tcp", dsn.Addr())
	if err != nil {
		return nil, &IOError{Err: err}
	}
	conn, err := opener(ctx, dsn, rawConn)
	if err != nil {
		rawConn.Close()
		return nil, err
	}
	return conn, nil
}
