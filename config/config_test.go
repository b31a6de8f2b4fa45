package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadOrCreateWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", DefaultConfigFileName)

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Backend != BackendSQLite || cfg.Board.DefaultColumn != "backlog" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if !strings.Contains(string(data), "[storage]") {
		t.Fatalf("expected toml output, got:\n%s", data)
	}
}

func TestLoadOrCreateReadsTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.toml")
	content := `
debug = true

[storage]
backend = "memory"

[board]
default_column = "this_week"
persist_sibling_positions = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Debug || cfg.Storage.Backend != BackendMemory || cfg.Board.DefaultColumn != "this_week" || !cfg.Board.PersistSiblingPositions {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Storage.SQLitePath != DefaultDBName || cfg.Board.Scope != "local" {
		t.Fatalf("missing values should be defaulted: %+v", cfg)
	}
}

func TestLoadOrCreateReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	content := `
storage:
  backend: memory
board:
  rollback_failed_creates: true
  scope: demo
keys:
  quit: x
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Board.RollbackFailedCreates || cfg.Board.Scope != "demo" || cfg.Keys.Quit != "x" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Keys.Grab != " " {
		t.Fatalf("unset keys should keep defaults, got %q", cfg.Keys.Grab)
	}
}

func TestLoadOrCreateRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown backend", content: "[storage]\nbackend = \"mongo\"\n"},
		{name: "tables without connection", content: "[storage]\nbackend = \"tables\"\n"},
		{name: "bad column", content: "[board]\ndefault_column = \"archive\"\n"},
		{name: "bad duration", content: "[redis]\ncache_ttl = \"soon\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := LoadOrCreate(path); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"STORAGE_BACKEND":              "tables",
		"STORAGE_CONNECTION_STRING":    "UseDevelopmentStorage=true",
		"TASKS_TABLE":                  "BoardTasks",
		"REDIS_CONNECTION_STRING":      "localhost:6379",
		"DEBUG":                        "true",
		"FUNCTIONS_CUSTOMHANDLER_PORT": "7071",
		"LOCAL_AUTH_SHARED_SECRET":     "s3cret",
	}
	cfg := Default()
	cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if cfg.Storage.Backend != BackendTables || cfg.Storage.TasksTable != "BoardTasks" {
		t.Fatalf("storage overrides not applied: %+v", cfg.Storage)
	}
	if !cfg.Debug || cfg.Server.ListenAddr != ":7071" || cfg.Auth.SharedSecret != "s3cret" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("", time.Minute); got != time.Minute {
		t.Fatalf("empty = %v", got)
	}
	if got := Duration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("90s = %v", got)
	}
	if got := Duration("nope", time.Minute); got != time.Minute {
		t.Fatalf("invalid = %v", got)
	}
}

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		conn     string
		addr     string
		password string
		tls      bool
		wantErr  bool
	}{
		{name: "url", conn: "redis://:pw@cache:6380/0", addr: "cache:6380", password: "pw"},
		{name: "azure", conn: "prism.redis.cache.windows.net:6380,password=abc=,ssl=True,abortConnect=False", addr: "prism.redis.cache.windows.net:6380", password: "abc=", tls: true},
		{name: "plain host", conn: "localhost:6379", addr: "localhost:6379"},
		{name: "empty", conn: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := RedisOptions(tt.conn)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if opts.Addr != tt.addr || opts.Password != tt.password || (opts.TLSConfig != nil) != tt.tls {
				t.Fatalf("unexpected options addr=%s password=%s tls=%v", opts.Addr, opts.Password, opts.TLSConfig != nil)
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv("PRISM_BOARD_CONFIG", "/tmp/custom.yaml")
	if got := ResolvePath(); got != "/tmp/custom.yaml" {
		t.Fatalf("env override ignored: %s", got)
	}
	t.Setenv("PRISM_BOARD_CONFIG", "")
	if got := ResolvePath(); filepath.Base(got) != DefaultConfigFileName {
		t.Fatalf("unexpected default path %s", got)
	}
}
