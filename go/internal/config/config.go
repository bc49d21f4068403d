// Package config loads server settings from an optional YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/claimline/go/internal/game/lifecycle"
	"github.com/mcdev12/claimline/go/internal/models"
)

type Config struct {
	Server ServerConfig     `yaml:"server"`
	Game   GameConfig       `yaml:"game"`
	Timing lifecycle.Timing `yaml:"timing"`
	Log    LogConfig        `yaml:"log"`
	NATS   NATSConfig       `yaml:"nats"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type GameConfig struct {
	SingleActiveMatch bool    `yaml:"single_active_match"`
	CostPerPoint      float64 `yaml:"cost_per_point"`
	DurationSec       float64 `yaml:"duration_sec"`
	TotalRounds       int     `yaml:"total_rounds"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Dir holds the per-room audit files.
	Dir string `yaml:"dir"`
}

// NATSConfig enables the JetStream mirror when URL is set.
type NATSConfig struct {
	URL           string `yaml:"url"`
	StreamName    string `yaml:"stream_name"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Memory        bool   `yaml:"memory"`
}

// RoomDefaults returns the settings used for fields a room creator leaves unset.
func (g GameConfig) RoomDefaults() models.RoomSettings {
	return models.RoomSettings{
		CostPerPoint: g.CostPerPoint,
		DurationSec:  g.DurationSec,
		TotalRounds:  g.TotalRounds,
	}
}

func Default() Config {
	defaults := models.DefaultRoomSettings()
	return Config{
		Server: ServerConfig{
			Port:            "3000",
			ShutdownTimeout: 10 * time.Second,
		},
		Game: GameConfig{
			SingleActiveMatch: true,
			CostPerPoint:      defaults.CostPerPoint,
			DurationSec:       defaults.DurationSec,
			TotalRounds:       defaults.TotalRounds,
		},
		Timing: lifecycle.DefaultTiming(),
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
		},
		NATS: NATSConfig{
			StreamName:    "CLAIMLINE_ROOMS",
			SubjectPrefix: "claimline.rooms",
		},
	}
}

// Load starts from Default, applies the YAML file at path when path is not empty, then the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.Log.Dir = getEnv("LOG_DIR", cfg.Log.Dir)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Game.SingleActiveMatch = getEnvAsBool("SINGLE_ACTIVE_MATCH", cfg.Game.SingleActiveMatch)
	cfg.Game.TotalRounds = getEnvAsInt("DEFAULT_TOTAL_ROUNDS", cfg.Game.TotalRounds)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
