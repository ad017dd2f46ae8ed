// Command popcache refreshes and serves the popularity ranking and the
// per-subject recently-viewed logs kept in Redis.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "popcache:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "popcache",
		Usage: "popular-items ranking and recently-viewed logs on Redis",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML config file (default: popcache.yaml if present)",
				EnvVars: []string{"POPCACHE_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "redis-url",
				Usage: "Redis URL, overrides redis.url",
			},
			&cli.StringFlag{
				Name:  "postgres-url",
				Usage: "PostgreSQL URL of the source of truth, overrides postgres.url",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "trace, debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "json or console",
			},
		},
		Commands: []*cli.Command{
			refreshCmd,
			topCmd,
			viewCmd,
			recentCmd,
			serveCmd,
			benchCmd,
		},
	}
	return app.RunContext(ctx, args)
}
