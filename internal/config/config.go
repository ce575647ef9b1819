package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is populated from the environment. A .env file in the working
// directory is loaded first when present.
type Config struct {
	Addr string `env:"ADDR" envDefault:":8080"`

	// AllowedOrigins is matched against the Origin header of WebSocket
	// upgrades. Empty means same-origin only.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	JWTSecret     string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	TokenTTLHours int    `env:"TOKEN_TTL_HOURS" envDefault:"24"`

	// SnapshotBackend selects where session snapshots go: file, redis, or
	// none.
	SnapshotBackend    string `env:"SNAPSHOT_BACKEND" envDefault:"file"`
	SnapshotPath       string `env:"SNAPSHOT_PATH" envDefault:"game-state.json"`
	RedisAddr          string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	PersistIntervalSec int    `env:"PERSIST_INTERVAL_SEC" envDefault:"30"`

	LeaderboardSize int `env:"LEADERBOARD_SIZE" envDefault:"5"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.SnapshotBackend {
	case "file", "redis", "none":
	default:
		return Config{}, fmt.Errorf("unknown snapshot backend %q", cfg.SnapshotBackend)
	}
	return cfg, nil
}
