package dbclient

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Backend identifies which wire protocol a DSN selects.
type Backend int

const (
	BackendPostgres Backend = iota
	BackendMySQL
)

func (b Backend) String() string {
	if b == BackendPostgres {
		return "postgres"
	}
	return "mysql"
}

// PoolConfig carries the pool's tunable knobs, shaped like the teacher's
// per-tenant pool defaults (spec §4.8; SPEC_FULL.md §2.3): generalized
// here to a single DSN rather than one set of defaults per tenant.
type PoolConfig struct {
	MinConns       int
	MaxConns       int
	AcquireTimeout time.Duration
	DialTimeout    time.Duration
	IdleTimeout    time.Duration
	MaxLifetime    time.Duration
}

// EffectiveMaxConns returns MaxConns, or a built-in default of 10 if unset
// (mirrors TenantConfig.EffectiveMaxConnections in the teacher's config
// package).
func (c PoolConfig) EffectiveMaxConns() int {
	if c.MaxConns > 0 {
		return c.MaxConns
	}
	return 10
}

// EffectiveMinConns returns MinConns, defaulting to 0 (no pre-warming).
func (c PoolConfig) EffectiveMinConns() int {
	if c.MinConns > 0 {
		return c.MinConns
	}
	return 0
}

// EffectiveAcquireTimeout returns AcquireTimeout, defaulting to 5s.
func (c PoolConfig) EffectiveAcquireTimeout() time.Duration {
	if c.AcquireTimeout > 0 {
		return c.AcquireTimeout
	}
	return 5 * time.Second
}

// EffectiveDialTimeout returns DialTimeout, defaulting to 10s.
func (c PoolConfig) EffectiveDialTimeout() time.Duration {
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return 10 * time.Second
}

// EffectiveIdleTimeout returns IdleTimeout, defaulting to 5m.
func (c PoolConfig) EffectiveIdleTimeout() time.Duration {
	if c.IdleTimeout > 0 {
		return c.IdleTimeout
	}
	return 5 * time.Minute
}

// EffectiveMaxLifetime returns MaxLifetime, defaulting to 1h.
func (c PoolConfig) EffectiveMaxLifetime() time.Duration {
	if c.MaxLifetime > 0 {
		return c.MaxLifetime
	}
	return time.Hour
}

// DSN is a parsed connection URL (spec §6):
// scheme://[user[:password]@]host[:port]/[database]
type DSN struct {
	Backend  Backend
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Pool     PoolConfig
}

// ParseDSN parses a connection URL into a DSN. Query parameters
// (pool_max, pool_min, pool_acquire_timeout_ms, ...) map onto PoolConfig
// fields; this is additive surface SPEC_FULL.md introduces beyond
// spec.md's URL grammar so Open can configure a pool from a single string.
func ParseDSN(raw string) (*DSN, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("dbclient: parsing connection URL: %w", err)
	}

	var backend Backend
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		backend = BackendPostgres
	case "mysql", "mariadb":
		backend = BackendMySQL
	default:
		return nil, fmt.Errorf("dbclient: unsupported scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("dbclient: connection URL missing host")
	}

	port := 0
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("dbclient: invalid port %q: %w", p, err)
		}
	} else if backend == BackendPostgres {
		port = 5432
	} else {
		port = 3306
	}

	d := &DSN{
		Backend:  backend,
		Host:     host,
		Port:     port,
		Database: strings.TrimPrefix(u.Path, "/"),
	}
	if u.User != nil {
		d.User = u.User.Username()
		d.Password, _ = u.User.Password()
	}

	q := u.Query()
	d.Pool.MaxConns = atoiOrZero(q.Get("pool_max"))
	d.Pool.MinConns = atoiOrZero(q.Get("pool_min"))
	if ms := atoiOrZero(q.Get("pool_acquire_timeout_ms")); ms > 0 {
		d.Pool.AcquireTimeout = time.Duration(ms) * time.Millisecond
	}
	if ms := atoiOrZero(q.Get("pool_dial_timeout_ms")); ms > 0 {
		d.Pool.DialTimeout = time.Duration(ms) * time.Millisecond
	}
	if ms := atoiOrZero(q.Get("pool_idle_timeout_ms")); ms > 0 {
		d.Pool.IdleTimeout = time.Duration(ms) * time.Millisecond
	}
	if ms := atoiOrZero(q.Get("pool_max_lifetime_ms")); ms > 0 {
		d.Pool.MaxLifetime = time.Duration(ms) * time.Millisecond
	}

	return d, nil
}

// Addr returns the "host:port" dial address.
func (d *DSN) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
