package config

import (
	"errors"
	"testing"
)

func TestLoad(t *testing.T) {
	setAll := func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test")
		t.Setenv("SPOTIFY_ID", "id")
		t.Setenv("SPOTIFY_SECRET", "secret")
		t.Setenv("DATABASE_URL", "postgres://localhost/trackline")
		t.Setenv("ADDR", "")
		t.Setenv("LOG_FILE", "")
	}

	t.Run("all set", func(t *testing.T) {
		setAll(t)
		t.Setenv("ADDR", "0.0.0.0:9000")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Addr != "0.0.0.0:9000" || cfg.OpenAIKey != "sk-test" {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	missing := []struct {
		envVar string
		want   error
	}{
		{"OPENAI_API_KEY", ErrMissingOpenAIKey},
		{"SPOTIFY_ID", ErrMissingSpotifyID},
		{"SPOTIFY_SECRET", ErrMissingSpotifySecret},
		{"DATABASE_URL", ErrMissingDatabaseURL},
	}
	for _, tt := range missing {
		t.Run("missing "+tt.envVar, func(t *testing.T) {
			setAll(t)
			t.Setenv(tt.envVar, "")

			if _, err := Load(); !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}
}
