package dsnconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defaults.yaml")
	contents := `
min_connections: 2
max_connections: 20
idle_timeout: 5m
max_lifetime: 1h
acquire_timeout: 3s
dial_timeout: 10s
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.MinConnections != 2 || d.MaxConnections != 20 {
		t.Fatalf("unexpected connection limits: %+v", d)
	}
	if d.IdleTimeout != 5*time.Minute {
		t.Errorf("IdleTimeout = %v, want 5m", d.IdleTimeout)
	}
	if d.AcquireTimeout != 3*time.Second {
		t.Errorf("AcquireTimeout = %v, want 3s", d.AcquireTimeout)
	}
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defaults.yaml")
	contents := "max_connections: ${TEST_DSNCONFIG_MAX}\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("TEST_DSNCONFIG_MAX", "42")

	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.MaxConnections != 42 {
		t.Fatalf("MaxConnections = %d, want 42 (env substitution failed)", d.MaxConnections)
	}
}

func TestLoadLeavesUnresolvedEnvVarUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defaults.yaml")
	// An unresolved ${VAR} left in a YAML string value is harmless; this
	// documents that substituteEnvVars does not error on missing vars.
	contents := "min_connections: 1\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got := substituteEnvVars([]byte("${DBCLIENT_DOES_NOT_EXIST}"))
	if string(got) != "${DBCLIENT_DOES_NOT_EXIST}" {
		t.Fatalf("expected unresolved var left as-is, got %q", got)
	}

	if _, err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestToPoolConfig(t *testing.T) {
	d := Defaults{
		MinConnections: 1,
		MaxConnections: 8,
		IdleTimeout:    2 * time.Minute,
		MaxLifetime:    30 * time.Minute,
		AcquireTimeout: time.Second,
		DialTimeout:    5 * time.Second,
	}
	cfg := d.ToPoolConfig()
	if cfg.MinConns != 1 || cfg.MaxConns != 8 {
		t.Fatalf("unexpected PoolConfig: %+v", cfg)
	}
	if cfg.IdleTimeout != 2*time.Minute || cfg.DialTimeout != 5*time.Second {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
}
