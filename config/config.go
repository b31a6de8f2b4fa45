package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"prism-board/domain"
)

const (
	DefaultConfigFileName = "prism-board.toml"
	DefaultDBName         = "prism-board.db"

	BackendTables = "tables"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type StorageConfig struct {
	Backend          string `toml:"backend" yaml:"backend"`
	ConnectionString string `toml:"connection_string" yaml:"connection_string"`
	TasksTable       string `toml:"tasks_table" yaml:"tasks_table"`
	EventsQueue      string `toml:"events_queue" yaml:"events_queue"`
	SQLitePath       string `toml:"sqlite_path" yaml:"sqlite_path"`
}

type RedisConfig struct {
	ConnectionString string `toml:"connection_string" yaml:"connection_string"`
	CacheTTL         string `toml:"cache_ttl" yaml:"cache_ttl"`
	UpdatesChannel   string `toml:"updates_channel" yaml:"updates_channel"`
	DeduperTTL       string `toml:"deduper_ttl" yaml:"deduper_ttl"`
}

type AuthConfig struct {
	Domain       string `toml:"domain" yaml:"domain"`
	Audience     string `toml:"audience" yaml:"audience"`
	SharedSecret string `toml:"shared_secret" yaml:"shared_secret"`
}

type ServerConfig struct {
	ListenAddr   string   `toml:"listen_addr" yaml:"listen_addr"`
	AllowOrigins []string `toml:"allow_origins" yaml:"allow_origins"`
}

type BoardConfig struct {
	DefaultColumn           string `toml:"default_column" yaml:"default_column"`
	RollbackFailedCreates   bool   `toml:"rollback_failed_creates" yaml:"rollback_failed_creates"`
	PersistSiblingPositions bool   `toml:"persist_sibling_positions" yaml:"persist_sibling_positions"`
	ReloadTimeout           string `toml:"reload_timeout" yaml:"reload_timeout"`
	Scope                   string `toml:"scope" yaml:"scope"`
}

type Keymap struct {
	Quit           string `toml:"quit" yaml:"quit"`
	Left           string `toml:"left" yaml:"left"`
	Right          string `toml:"right" yaml:"right"`
	Up             string `toml:"up" yaml:"up"`
	Down           string `toml:"down" yaml:"down"`
	Grab           string `toml:"grab" yaml:"grab"`
	Drop           string `toml:"drop" yaml:"drop"`
	Cancel         string `toml:"cancel" yaml:"cancel"`
	Add            string `toml:"add" yaml:"add"`
	Delete         string `toml:"delete" yaml:"delete"`
	Complete       string `toml:"complete" yaml:"complete"`
	Reload         string `toml:"reload" yaml:"reload"`
	FilterType     string `toml:"filter_type" yaml:"filter_type"`
	FilterPriority string `toml:"filter_priority" yaml:"filter_priority"`
}

type Config struct {
	Debug   bool          `toml:"debug" yaml:"debug"`
	Storage StorageConfig `toml:"storage" yaml:"storage"`
	Redis   RedisConfig   `toml:"redis" yaml:"redis"`
	Auth    AuthConfig    `toml:"auth" yaml:"auth"`
	Server  ServerConfig  `toml:"server" yaml:"server"`
	Board   BoardConfig   `toml:"board" yaml:"board"`
	Keys    Keymap        `toml:"keys" yaml:"keys"`
}

// ResolvePath returns PRISM_BOARD_CONFIG when set, otherwise the config file
// under the user's config directory.
func ResolvePath() string {
	if p := os.Getenv("PRISM_BOARD_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultConfigFileName
	}
	return filepath.Join(dir, "prism-board", DefaultConfigFileName)
}

// LoadOrCreate reads the config file at path, writing the defaults there first
// when it does not exist. Files ending in .yaml or .yml are read as YAML,
// everything else as TOML. Environment overrides are applied last.
func LoadOrCreate(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := unmarshal(path, data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	cfg.fillDefaults()
	return cfg, cfg.Validate()
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return toml.Unmarshal(data, cfg)
}

func write(path string, cfg Config) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = toml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend:    BackendSQLite,
			TasksTable: "Tasks",
			SQLitePath: DefaultDBName,
		},
		Redis: RedisConfig{
			CacheTTL:       "5m",
			UpdatesChannel: "board-updates",
			DeduperTTL:     "24h",
		},
		Server: ServerConfig{
			ListenAddr:   ":8080",
			AllowOrigins: []string{"*"},
		},
		Board: BoardConfig{
			DefaultColumn: string(domain.DefaultColumn),
			ReloadTimeout: "15s",
			Scope:         "local",
		},
		Keys: Keymap{
			Quit:           "q",
			Left:           "h",
			Right:          "l",
			Up:             "k",
			Down:           "j",
			Grab:           " ",
			Drop:           "enter",
			Cancel:         "esc",
			Add:            "a",
			Delete:         "d",
			Complete:       "c",
			Reload:         "r",
			FilterType:     "t",
			FilterPriority: "p",
		},
	}
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Storage.Backend == "" {
		c.Storage.Backend = def.Storage.Backend
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = def.Storage.SQLitePath
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = def.Server.ListenAddr
	}
	if c.Board.DefaultColumn == "" {
		c.Board.DefaultColumn = def.Board.DefaultColumn
	}
	if c.Board.Scope == "" {
		c.Board.Scope = def.Board.Scope
	}
}

// applyEnv overrides file values with the deployment environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("STORAGE_CONNECTION_STRING", &c.Storage.ConnectionString)
	str("TASKS_TABLE", &c.Storage.TasksTable)
	str("EVENTS_QUEUE", &c.Storage.EventsQueue)
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("REDIS_CONNECTION_STRING", &c.Redis.ConnectionString)
	str("CACHE_TTL", &c.Redis.CacheTTL)
	str("DEDUPER_TTL", &c.Redis.DeduperTTL)
	str("AUTH0_DOMAIN", &c.Auth.Domain)
	str("AUTH0_AUDIENCE", &c.Auth.Audience)
	str("LOCAL_AUTH_SHARED_SECRET", &c.Auth.SharedSecret)
	str("LISTEN_ADDR", &c.Server.ListenAddr)
	if v, ok := lookup("FUNCTIONS_CUSTOMHANDLER_PORT"); ok && v != "" {
		c.Server.ListenAddr = ":" + v
	}
	if v, ok := lookup("DEBUG"); ok {
		if dbg, err := strconv.ParseBool(v); err == nil {
			c.Debug = dbg
		}
	}
}

// Validate rejects configurations that cannot start.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendTables:
		if c.Storage.ConnectionString == "" || c.Storage.TasksTable == "" {
			return errors.New("missing storage config")
		}
	case BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if !domain.ColumnID(c.Board.DefaultColumn).Valid() {
		return fmt.Errorf("unknown default column %q", c.Board.DefaultColumn)
	}
	for name, v := range map[string]string{
		"redis.cache_ttl":      c.Redis.CacheTTL,
		"redis.deduper_ttl":    c.Redis.DeduperTTL,
		"board.reload_timeout": c.Board.ReloadTimeout,
	} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d < 0 {
			return fmt.Errorf("invalid %s: %q", name, v)
		}
	}
	return nil
}

// Duration parses v, falling back to def when v is empty or invalid.
func Duration(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}
