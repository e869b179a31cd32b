package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Log levels use the numeric values of the original deployment
// tooling: 10 debug, 20 info, 30 warn, 40 error.
const (
	LevelDebug = 10
	LevelInfo  = 20
	LevelWarn  = 30
	LevelError = 40
)

const maxPrefixLength = 3

type Config struct {
	DiscordToken string `yaml:"discord_token"`
	Prefix       string `yaml:"bot_prefix"`
	LogLevel     int    `yaml:"log_level"`
	TimeZone     string `yaml:"time_zone"`
	RulesPath    string `yaml:"rules_path"`

	Location *time.Location `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Prefix:    "!",
		LogLevel:  LevelInfo,
		TimeZone:  "UTC",
		RulesPath: "rules.yaml",
	}
}

// Load reads the optional YAML config file, applies env overrides and
// validates the result. Any missing or invalid required setting is a
// startup error; the caller is expected to exit on it.
func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.Prefix == "" || len(cfg.Prefix) > maxPrefixLength {
		return Config{}, fmt.Errorf("bot prefix %q must be 1-%d characters", cfg.Prefix, maxPrefixLength)
	}
	switch cfg.LogLevel {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
	default:
		return Config{}, fmt.Errorf("log level %d must be one of 10, 20, 30, 40", cfg.LogLevel)
	}
	location, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return Config{}, fmt.Errorf("time zone %q: %w", cfg.TimeZone, err)
	}
	cfg.Location = location

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.Prefix = envString("BOT_PREFIX", cfg.Prefix)
	cfg.LogLevel = envInt("LOG_LEVEL", cfg.LogLevel)
	cfg.TimeZone = envString("TIME_ZONE", cfg.TimeZone)
	cfg.RulesPath = envString("RULES_PATH", cfg.RulesPath)
}

func BuildLogger(level int) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	return cfg.Build()
}

func parseLevel(level int) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
