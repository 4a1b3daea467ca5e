// Package config reads server configuration from environment variables.
package config

import (
	"errors"
	"os"
)

// Missing-variable errors.
var (
	ErrMissingOpenAIKey     = errors.New("missing OPENAI_API_KEY environment variable")
	ErrMissingSpotifyID     = errors.New("missing SPOTIFY_ID environment variable")
	ErrMissingSpotifySecret = errors.New("missing SPOTIFY_SECRET environment variable")
	ErrMissingDatabaseURL   = errors.New("missing DATABASE_URL environment variable")
)

// Config holds the server configuration.
type Config struct {
	Addr                string
	DatabaseURL         string
	OpenAIKey           string
	SpotifyClientID     string
	SpotifyClientSecret string
	LogFile             string // empty means stderr only
}

// Load reads configuration from environment variables. ADDR and LOG_FILE
// are optional; everything else is required.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:                os.Getenv("ADDR"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		OpenAIKey:           os.Getenv("OPENAI_API_KEY"),
		SpotifyClientID:     os.Getenv("SPOTIFY_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_SECRET"),
		LogFile:             os.Getenv("LOG_FILE"),
	}

	if cfg.OpenAIKey == "" {
		return nil, ErrMissingOpenAIKey
	}
	if cfg.SpotifyClientID == "" {
		return nil, ErrMissingSpotifyID
	}
	if cfg.SpotifyClientSecret == "" {
		return nil, ErrMissingSpotifySecret
	}
	if cfg.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	return cfg, nil
}
