package main

import (
	"context"
	"fmt"

	"github.com/subnurb/mediaplace/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	engine, closer, err := r.openEngine()
	if err != nil {
		return err
	}
	defer closer()

	host := cmd.String("host")
	if host == "" {
		host = r.config.Server.Host
	}
	port := r.config.Server.Port
	if p := cmd.Int("port"); p > 0 {
		port = int(p)
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	r.logger.Info("starting API server", "addr", addr)

	srv := server.NewServer(engine, r.logger)
	return srv.Start(ctx, addr)
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "Bind address (overrides config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port (overrides config)"},
		},
		Action: r.Serve,
	}
}
