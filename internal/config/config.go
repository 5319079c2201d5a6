package config

import (
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	defaultDBPath      = "./dev.db"
	defaultPort        = "8080"
	defaultEnv         = "development"
	defaultLogLevel    = "info"
	defaultMaxUploadMB = 10
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AdminEmail    string
	AdminPassword string
	SessionSecret string
	DBPath        string
	Port          string
	Env           string
	LogLevel      string
	LogFormat     string
	MaxUploadMB   int64
}

// IsDev reports whether the application runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local":
		return true
	}
	return false
}

// ErrMissingSessionSecret is returned by Validate when a non-development
// deployment has no session signing key.
var ErrMissingSessionSecret = errors.New("SESSION_SECRET must be set outside development")

// Validate rejects configurations the server must not start with.
func (c Config) Validate() error {
	if !c.IsDev() && strings.TrimSpace(c.SessionSecret) == "" {
		return ErrMissingSessionSecret
	}
	return nil
}

// MaxUploadBytes is the request body limit applied to spreadsheet uploads.
func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	// Local development convenience; production injects real environment variables.
	if err := loadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	v := viper.New()
	v.SetDefault("DB_PATH", defaultDBPath)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("APP_ENV", defaultEnv)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("LOG_FORMAT", "")
	v.SetDefault("MAX_UPLOAD_MB", defaultMaxUploadMB)
	for _, key := range []string{"ADMIN_EMAIL", "ADMIN_PASSWORD", "SESSION_SECRET"} {
		v.SetDefault(key, "")
	}
	v.AutomaticEnv()

	cfg := Config{
		AdminEmail:    v.GetString("ADMIN_EMAIL"),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
		SessionSecret: v.GetString("SESSION_SECRET"),
		DBPath:        v.GetString("DB_PATH"),
		Port:          v.GetString("PORT"),
		Env:           v.GetString("APP_ENV"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		LogFormat:     v.GetString("LOG_FORMAT"),
		MaxUploadMB:   v.GetInt64("MAX_UPLOAD_MB"),
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
		if cfg.IsDev() {
			cfg.LogFormat = "console"
		}
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = defaultMaxUploadMB
	}

	if cfg.AdminEmail == "" {
		log.Warn().Msg("ADMIN_EMAIL is not set")
	}
	if cfg.AdminPassword == "" {
		log.Warn().Msg("ADMIN_PASSWORD is not set")
	}
	if cfg.SessionSecret == "" {
		log.Warn().Msg("SESSION_SECRET is not set")
	}

	return cfg
}
