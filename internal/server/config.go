package server

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	DBPath         string        `env:"DB_PATH" envDefault:"data/questlog.db"`
	UploadDir      string        `env:"UPLOAD_DIR" envDefault:"uploads"`
	MaxUploadSize  int64         `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	TokenSecret    string        `env:"TOKEN_SECRET" envDefault:"dev-secret-change-me"`
	TokenTTL       time.Duration `env:"TOKEN_TTL" envDefault:"12h"`
	RoomName       string        `env:"ROOM_NAME" envDefault:"party"`
}

// LoadConfig builds a Config instance from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
