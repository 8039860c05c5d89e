// Package dsnconfig loads an optional YAML pool-defaults file
// (SPEC_FULL.md §3 "gopkg.in/yaml.v3 ... generalizing internal/config.Load"),
// used only by cmd/dbclient-bench — the library's programmatic PoolConfig
// never touches the filesystem.
package dsnconfig

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dbbouncer/dbclient"
)

// Defaults is the on-disk shape of dbclient.yaml: one set of pool knobs
// applied to every DSN the demo program opens, generalizing the teacher's
// per-tenant config.PoolDefaults to a single-pool world.
type Defaults struct {
	MinConnections int           `yaml:"min_connections"`
	MaxConnections int           `yaml:"max_connections"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxLifetime    time.Duration `yaml:"max_lifetime"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
}

// ToPoolConfig converts Defaults to the library's dbclient.PoolConfig.
func (d Defaults) ToPoolConfig() dbclient.PoolConfig {
	return dbclient.PoolConfig{
		MinConns:       d.MinConnections,
		MaxConns:       d.MaxConnections,
		IdleTimeout:    d.IdleTimeout,
		MaxLifetime:    d.MaxLifetime,
		AcquireTimeout: d.AcquireTimeout,
		DialTimeout:    d.DialTimeout,
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		if val, ok := os.LookupEnv(string(varName)); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a pool-defaults YAML file, substituting
// ${VAR_NAME} references against the environment first.
func Load(path string) (*Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dsnconfig: reading %s: %w", path, err)
	}

	data = substituteEnvVars(data)

	d := &Defaults{}
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("dsnconfig: parsing %s: %w", path, err)
	}
	return d, nil
}
