package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Auth       AuthConfig
	Escalation EscalationConfig
	Journal    JournalConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type AuthConfig struct {
	// JWTSecret signs bearer tokens. Required.
	JWTSecret string
	// ContentKey is the base64 32-byte key sealing journal/chat content at
	// rest. Required.
	ContentKey string
	TokenTTL   time.Duration
}

type EscalationConfig struct {
	// SweepInterval is how often unassigned pending tickets are retried.
	SweepInterval time.Duration
}

type JournalConfig struct {
	// TrendSentiment is the 7-day average sentiment below which a chat
	// session is suggested.
	TrendSentiment float64
	// TrendRiskFlags is the 7-day risk-flagged entry count above which a
	// chat session is suggested.
	TrendRiskFlags int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server:  ServerConfig{Port: 4600},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Auth:    AuthConfig{TokenTTL: 24 * time.Hour},
		Escalation: EscalationConfig{
			SweepInterval: 30 * time.Second,
		},
		Journal: JournalConfig{
			TrendSentiment: -0.3,
			TrendRiskFlags: 2,
		},
		Log: LogConfig{Level: "info"},
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "safespace")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".local", "share", "safespace")
}

// Load reads configuration from an optional JSON file at
// $XDG_CONFIG_HOME/safespace/config.json, then applies SAFESPACE_* environment
// overrides. Environment variables win on all platforms.
func Load() (Config, error) {
	return loadWith(defaultConfigPath())
}

func defaultConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "safespace", "config.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "safespace", "config.json")
}

func loadWith(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnvOverrides(&cfg)

	if cfg.Auth.JWTSecret == "" {
		return Config{}, errors.New("missing required config: JWT secret. Set SAFESPACE_JWT_SECRET")
	}
	if cfg.Auth.ContentKey == "" {
		return Config{}, errors.New("missing required config: content encryption key. Set SAFESPACE_CONTENT_KEY")
	}
	return cfg, nil
}

// fileConfig mirrors the JSON layout of the config file. All fields are
// optional; absent fields keep their defaults.
type fileConfig struct {
	Port           *int     `json:"port"`
	DataDir        *string  `json:"data_dir"`
	JWTSecret      *string  `json:"jwt_secret"`
	ContentKey     *string  `json:"content_key"`
	TokenTTL       *string  `json:"token_ttl"`
	SweepInterval  *string  `json:"sweep_interval"`
	TrendSentiment *float64 `json:"trend_sentiment"`
	TrendRiskFlags *int     `json:"trend_risk_flags"`
	LogLevel       *string  `json:"log_level"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if fc.Port != nil {
		cfg.Server.Port = *fc.Port
	}
	if fc.DataDir != nil {
		cfg.Storage.DataDir = *fc.DataDir
	}
	if fc.JWTSecret != nil {
		cfg.Auth.JWTSecret = *fc.JWTSecret
	}
	if fc.ContentKey != nil {
		cfg.Auth.ContentKey = *fc.ContentKey
	}
	if fc.TokenTTL != nil {
		d, err := time.ParseDuration(*fc.TokenTTL)
		if err != nil {
			return fmt.Errorf("parsing token_ttl: %w", err)
		}
		cfg.Auth.TokenTTL = d
	}
	if fc.SweepInterval != nil {
		d, err := time.ParseDuration(*fc.SweepInterval)
		if err != nil {
			return fmt.Errorf("parsing sweep_interval: %w", err)
		}
		cfg.Escalation.SweepInterval = d
	}
	if fc.TrendSentiment != nil {
		cfg.Journal.TrendSentiment = *fc.TrendSentiment
	}
	if fc.TrendRiskFlags != nil {
		cfg.Journal.TrendRiskFlags = *fc.TrendRiskFlags
	}
	if fc.LogLevel != nil {
		cfg.Log.Level = *fc.LogLevel
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SAFESPACE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SAFESPACE_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SAFESPACE_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("SAFESPACE_CONTENT_KEY"); v != "" {
		cfg.Auth.ContentKey = v
	}
	if v := os.Getenv("SAFESPACE_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = d
		}
	}
	if v := os.Getenv("SAFESPACE_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Escalation.SweepInterval = d
		}
	}
	if v := os.Getenv("SAFESPACE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
