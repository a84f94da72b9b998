package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("default port: %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "memory" {
		t.Fatalf("default driver: %s", cfg.Database.Driver)
	}
	if cfg.Lock.TTL != 30*time.Second {
		t.Fatalf("default lock ttl: %v", cfg.Lock.TTL)
	}
}

func TestLoad_FileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  port: 9090
database:
  driver: postgres
  dsn: postgres://localhost/settlements
lock:
  backend: redis
  ttl: 45s
workers:
  count: 8
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port: %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN == "" {
		t.Fatalf("database: %+v", cfg.Database)
	}
	if cfg.Lock.Backend != "redis" || cfg.Lock.TTL != 45*time.Second {
		t.Fatalf("lock: %+v", cfg.Lock)
	}
	if cfg.Workers.Count != 8 {
		t.Fatalf("workers: %d", cfg.Workers.Count)
	}
	// Unspecified sections keep their defaults.
	if cfg.Logging.Level != "info" {
		t.Fatalf("logging level: %s", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("LOCK_TTL", "90s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("env should beat file: %d", cfg.Server.Port)
	}
	if cfg.Lock.TTL != 90*time.Second {
		t.Fatalf("lock ttl: %v", cfg.Lock.TTL)
	}
}

func TestLoad_Validation(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		body string
	}{
		{"bad driver", "database:\n  driver: sqlite\n"},
		{"postgres without dsn", "database:\n  driver: postgres\n"},
		{"bad lock backend", "lock:\n  backend: zookeeper\n"},
		{"zero workers", "workers:\n  count: -1\n"},
		{"bad port", "server:\n  port: 70000\n"},
	}
	for _, tc := range cases {
		path := filepath.Join(dir, tc.name+".yaml")
		if err := os.WriteFile(path, []byte(tc.body), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestServerConfig_Addr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8080}
	if s.Addr() != "127.0.0.1:8080" {
		t.Fatalf("addr: %s", s.Addr())
	}
}
