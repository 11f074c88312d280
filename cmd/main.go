package main

import (
	"context"
	"errors"
	"os"

	"github.com/subnurb/mediaplace/internal/services"
	"github.com/subnurb/mediaplace/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	var adapters []services.Service
	if config.Credentials.SoundCloud.AccessToken != "" {
		adapters = append(adapters, services.NewSoundCloudService(
			config.Credentials.SoundCloud.BaseURL,
			config.Credentials.SoundCloud.AccessToken,
		))
	}
	adapters = append(adapters, services.NewYouTubeService(
		config.Credentials.YouTube.ProxyURL,
		config.Credentials.YouTube.AuthFile,
	))

	runner := NewRunner(RunnerOpts{
		Config:   config,
		Registry: services.NewRegistry(adapters...),
		Logger:   logger,
	})

	app := &cli.Command{
		Name:     "mediaplace",
		Usage:    "Sync playlists between SoundCloud & YouTube Music",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize database and run migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.SetupDatabase,
	}
}
