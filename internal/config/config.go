package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends accepted by session_store.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

type Config struct {
	DataDir           string `json:"data_dir"`
	LogLevel          string `json:"log_level"`
	LogFormat         string `json:"log_format"`
	MaxConcurrent     int    `json:"max_concurrent"`
	SessionTTLSeconds int    `json:"session_ttl_seconds"`
	SessionStore      string `json:"session_store"`
	Timezone          string `json:"timezone"`
	OrgName           string `json:"org_name"`
	PruneSchedule     string `json:"prune_schedule"`
	LaneIdleMinutes   int    `json:"lane_idle_minutes"`
	Office            struct {
		Name      string  `json:"name"`
		Address   string  `json:"address"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		URL       string  `json:"url"`
	} `json:"office"`
	Pacing struct {
		ShortMS  int `json:"short_ms"`
		NormalMS int `json:"normal_ms"`
		LongMS   int `json:"long_ms"`
		GapMS    int `json:"gap_ms"`
	} `json:"pacing"`
	Sessions struct {
		DatabaseURL string `json:"database_url"`
	} `json:"sessions"`
	Billing struct {
		DatabaseURL string `json:"database_url"`
	} `json:"billing"`
	Redis struct {
		Addr     string `json:"addr"`
		Password string `json:"password"`
		DB       int    `json:"db"`
	} `json:"redis"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
	HTTP struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
}

func defaults() *Config {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".tirtabot"),
		MaxConcurrent: 4,
	}
	cfg.LogLevel = "info"
	cfg.LogFormat = "text"
	cfg.SessionTTLSeconds = 300
	cfg.SessionStore = StorePostgres
	cfg.Timezone = "Asia/Jakarta"
	cfg.OrgName = "BLUD Air Minum Kota Cimahi"
	cfg.PruneSchedule = "@every 10m"
	cfg.LaneIdleMinutes = 10
	cfg.Office.Name = "BLUD Air Minum Kota Cimahi"
	cfg.Office.Address = "4HJ3+7X7, Citeureup, Kec. Cimahi Utara, Kota Cimahi, Jawa Barat 40512"
	cfg.Office.Latitude = -6.8693818
	cfg.Office.Longitude = 107.5541125
	cfg.Pacing.ShortMS = 2000
	cfg.Pacing.NormalMS = 3000
	cfg.Pacing.LongMS = 5000
	cfg.Pacing.GapMS = 2000
	cfg.Redis.Addr = "localhost:6379"
	cfg.HTTP.Listen = "127.0.0.1:8080"
	return cfg
}

// Load reads the config file at path, writing the defaults there first when
// it does not exist. A .env file in the working directory is loaded before
// the environment overrides are applied; variables already set win.
func Load(path string) (*Config, error) {
	cfg := defaults()

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides cfg from the environment (highest precedence).
func applyEnv(cfg *Config) error {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("SESSIONS_DATABASE_URL"); v != "" {
		cfg.Sessions.DatabaseURL = v
	}
	if v := os.Getenv("BILLING_DATABASE_URL"); v != "" {
		cfg.Billing.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("APP_NAME"); v != "" {
		cfg.OrgName = v
	}
	if v := os.Getenv("HTTP_LISTEN"); v != "" {
		cfg.HTTP.Listen = v
		cfg.HTTP.Enabled = true
	}
	if v := os.Getenv("SESSION_TIME"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds <= 0 {
			return fmt.Errorf("SESSION_TIME must be a positive number of seconds, got %q", v)
		}
		cfg.SessionTTLSeconds = seconds
	}
	return nil
}

// SessionTTL returns the sliding session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// LaneIdleTimeout returns how long an idle sender lane is kept alive.
func (c *Config) LaneIdleTimeout() time.Duration {
	return time.Duration(c.LaneIdleMinutes) * time.Minute
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// PacingDurations returns the short, normal, long and gap typing delays.
func (c *Config) PacingDurations() (short, normal, long, gap time.Duration) {
	return ms(c.Pacing.ShortMS), ms(c.Pacing.NormalMS), ms(c.Pacing.LongMS), ms(c.Pacing.GapMS)
}

// Save writes cfg to path atomically.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}

func writeDefaults(path string, cfg *Config) error {
	if err := Save(path, cfg); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg into its nested JSON map form.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues returns the flattened config, with secrets masked when mask is set.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

func readFlat(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return Flatten(m), nil
}

// GetValue reads one dot-separated key from the config file at path.
func GetValue(path, key string) (any, error) {
	flat, err := readFlat(path)
	if err != nil {
		return nil, err
	}
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue writes one dot-separated key into the config file at path. The
// raw value is stored as JSON when it parses as JSON and as a string
// otherwise.
func SetValue(path, key, raw string) error {
	flat, err := readFlat(path)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		v = raw
	}
	flat[key] = v
	data, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}
