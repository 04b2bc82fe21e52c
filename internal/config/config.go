// Package config loads the daemon's operational configuration: store and
// cache locations, the server timezone, and the thresholds used by the
// heartbeat processor and the reconcilers. Values come from a JSON file
// with environment-variable overrides, the latter loaded through
// godotenv so a developer .env file behaves the same as exported shell
// variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the complete daemon configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Store    StoreConfig    `json:"store"`
	Cache    CacheConfig    `json:"cache"`
	Tracking TrackingConfig `json:"tracking"`
}

type ServerConfig struct {
	ListenAddr      string        `json:"listen_addr"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

type StoreConfig struct {
	DSN             string        `json:"dsn"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

type CacheConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// TrackingConfig holds the §4 thresholds: how long a client may stay
// silent, how long an idle stretch may run, how long a break may run, and
// the server timezone that defines "today" and "endOfDay".
type TrackingConfig struct {
	Timezone            string        `json:"timezone"`
	IdleThreshold        time.Duration `json:"idle_threshold"`         // 5 min
	AutoCheckoutThreshold time.Duration `json:"auto_checkout_threshold"` // 60 min
	ExcessiveIdleCap     time.Duration `json:"excessive_idle_cap"`     // 30 min
	ExcessiveBreakCap    time.Duration `json:"excessive_break_cap"`    // 2 h
	GapDetectorThreshold time.Duration `json:"gap_detector_threshold"` // 5 min
	EndOfDayTailWindow   time.Duration `json:"end_of_day_tail_window"` // 15 min
	CacheTTL             time.Duration `json:"cache_ttl"`              // ~24h
}

// Default returns the configuration's sensible production defaults,
// mirroring the fixed literals in spec.md §4.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			DSN:             "attendance.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Cache: CacheConfig{
			Enabled: true,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Tracking: TrackingConfig{
			Timezone:              "UTC",
			IdleThreshold:          5 * time.Minute,
			AutoCheckoutThreshold:  60 * time.Minute,
			ExcessiveIdleCap:       30 * time.Minute,
			ExcessiveBreakCap:      2 * time.Hour,
			GapDetectorThreshold:   5 * time.Minute,
			EndOfDayTailWindow:     15 * time.Minute,
			CacheTTL:               24 * time.Hour,
		},
	}
}

// Load reads a JSON config file (if path is non-empty and exists),
// overlays a .env file found in the working directory, then applies any
// matching environment variables on top. Missing files are not an error —
// the defaults are a complete, runnable configuration on their own.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	_ = godotenv.Load() // best-effort; absence of .env is normal in production

	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ATTENDANCE_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("ATTENDANCE_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("ATTENDANCE_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("ATTENDANCE_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Enabled = b
		}
	}
	if v := os.Getenv("ATTENDANCE_TIMEZONE"); v != "" {
		cfg.Tracking.Timezone = v
	}
}
