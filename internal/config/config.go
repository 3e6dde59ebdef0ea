// Package config resolves runtime settings from defaults, an optional YAML
// file, a .env file and DAILYD_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sandeepkv93/dailyd/internal/daily"
)

var ErrInvalidConfig = errors.New("config: invalid value")

const DefaultConfigFile = "dailyd.yaml"

type RuntimeConfig struct {
	DBPath               string `mapstructure:"db_path" json:"db_path"`
	CatalogPath          string `mapstructure:"catalog_path" json:"catalog_path"`
	ResetHour            int    `mapstructure:"reset_hour" json:"reset_hour"`
	DailyDelta           int    `mapstructure:"daily_delta" json:"daily_delta"`
	InitialDays          int    `mapstructure:"initial_days" json:"initial_days"`
	MissedResetPolicy    string `mapstructure:"missed_reset_policy" json:"missed_reset_policy"`
	SchedulerBuffer      int    `mapstructure:"scheduler_buffer" json:"scheduler_buffer"`
	RollMinCycles        int    `mapstructure:"roll_min_cycles" json:"roll_min_cycles"`
	RollMaxCycles        int    `mapstructure:"roll_max_cycles" json:"roll_max_cycles"`
	RollSeed             uint64 `mapstructure:"roll_seed" json:"roll_seed"`
	DesktopNotifications bool   `mapstructure:"desktop_notifications" json:"desktop_notifications"`
	HTTPAddr             string `mapstructure:"http_addr" json:"http_addr"`
	LogLevel             string `mapstructure:"log_level" json:"log_level"`
	LogFile              string `mapstructure:"log_file" json:"log_file"`
}

func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		DBPath:               "dailyd.db",
		ResetHour:            3,
		DailyDelta:           -1,
		InitialDays:          30,
		MissedResetPolicy:    string(daily.PolicyOnce),
		SchedulerBuffer:      64,
		RollMinCycles:        2,
		RollMaxCycles:        4,
		DesktopNotifications: false,
		HTTPAddr:             "127.0.0.1:8787",
		LogLevel:             "info",
		LogFile:              "dailyd.log",
	}
}

func (c RuntimeConfig) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("%w: db_path is required", ErrInvalidConfig)
	}
	if c.ResetHour < 0 || c.ResetHour > 23 {
		return fmt.Errorf("%w: reset_hour must be within 0-23, got %d", ErrInvalidConfig, c.ResetHour)
	}
	if _, err := daily.ParsePolicy(c.MissedResetPolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.RollMinCycles < 0 || c.RollMaxCycles < c.RollMinCycles {
		return fmt.Errorf("%w: roll cycles %d..%d", ErrInvalidConfig, c.RollMinCycles, c.RollMaxCycles)
	}
	if c.SchedulerBuffer <= 0 {
		return fmt.Errorf("%w: scheduler_buffer must be positive", ErrInvalidConfig)
	}
	return nil
}

// Policy returns the parsed missed-reset policy. Call Validate first.
func (c RuntimeConfig) Policy() daily.Policy {
	p, err := daily.ParsePolicy(c.MissedResetPolicy)
	if err != nil {
		return daily.PolicyOnce
	}
	return p
}

type LoadOptions struct {
	// ConfigPath is read if set; otherwise DefaultConfigFile is read if present.
	ConfigPath string
	// DotEnvPaths are loaded into the environment when they exist.
	DotEnvPaths []string
}

func Load(opts LoadOptions) (RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()

	dotenv := opts.DotEnvPaths
	if dotenv == nil {
		dotenv = []string{".env"}
	}
	if err := LoadDotEnv(dotenv...); err != nil {
		return RuntimeConfig{}, err
	}

	path := opts.ConfigPath
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		loaded, err := LoadFile(path, cfg)
		if err != nil {
			return RuntimeConfig{}, err
		}
		cfg = loaded
	}

	cfg = RuntimeConfigFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return RuntimeConfig{}, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto base. Keys missing from the
// file keep their base value.
func LoadFile(path string, base RuntimeConfig) (RuntimeConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return RuntimeConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := base
	if err := v.Unmarshal(&cfg); err != nil {
		return RuntimeConfig{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads the given files that exist. Variables already set in the
// environment win.
func LoadDotEnv(paths ...string) error {
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

func RuntimeConfigFromEnv(base RuntimeConfig) RuntimeConfig {
	cfg := base
	if v, ok := getEnvString("DAILYD_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := getEnvString("DAILYD_CATALOG_PATH"); ok {
		cfg.CatalogPath = v
	}
	if v, ok := getEnvInt("DAILYD_RESET_HOUR"); ok && v >= 0 && v <= 23 {
		cfg.ResetHour = v
	}
	if v, ok := getEnvInt("DAILYD_DAILY_DELTA"); ok {
		cfg.DailyDelta = v
	}
	if v, ok := getEnvInt("DAILYD_INITIAL_DAYS"); ok {
		cfg.InitialDays = v
	}
	if v, ok := getEnvString("DAILYD_MISSED_RESET_POLICY"); ok {
		cfg.MissedResetPolicy = v
	}
	if v, ok := getEnvInt("DAILYD_SCHEDULER_BUFFER"); ok && v > 0 {
		cfg.SchedulerBuffer = v
	}
	if v, ok := getEnvInt("DAILYD_ROLL_MIN_CYCLES"); ok && v >= 0 {
		cfg.RollMinCycles = v
	}
	if v, ok := getEnvInt("DAILYD_ROLL_MAX_CYCLES"); ok && v >= 0 {
		cfg.RollMaxCycles = v
	}
	if v, ok := getEnvString("DAILYD_ROLL_SEED"); ok {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.RollSeed = seed
		}
	}
	if v, ok := getEnvBool("DAILYD_DESKTOP_NOTIFICATIONS"); ok {
		cfg.DesktopNotifications = v
	}
	if v, ok := getEnvString("DAILYD_HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := getEnvString("DAILYD_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := getEnvString("DAILYD_LOG_FILE"); ok {
		cfg.LogFile = v
	}
	return cfg
}

func getEnvString(name string) (string, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	return raw, raw != ""
}

func getEnvInt(name string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func getEnvBool(name string) (bool, bool) {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return false, false
	}
	switch raw {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}
