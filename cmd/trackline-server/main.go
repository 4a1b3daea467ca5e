// Command trackline-server runs the trackline API server.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/oskarlind/trackline/internal/catalog"
	"github.com/oskarlind/trackline/internal/config"
	"github.com/oskarlind/trackline/internal/db"
	"github.com/oskarlind/trackline/internal/picker"
	"github.com/oskarlind/trackline/internal/selection"
	"github.com/oskarlind/trackline/internal/session"
	"github.com/oskarlind/trackline/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		}))
	}

	ctx := context.Background()

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		return err
	}

	songs := picker.New(cfg.OpenAIKey)
	previews := catalog.NewResolver(catalog.NewITunesClient(), catalog.NewDeezerClient())
	links := catalog.NewSpotifyLinks(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret)

	cards := selection.NewLoop(songs, previews, links, database.SeenSongs())
	sessions := session.NewManager(session.NewPgStore(database.Matches()), database.SeenSongs(), db.KindDuel)
	defer sessions.Close()

	handlers := web.NewHandlers(cards, database.SeenSongs(), sessions, web.InstallIDVerifier())
	server := web.NewServer(web.ServerConfig{Addr: cfg.Addr}, handlers)

	return server.Run()
}
