package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "txingest",
		Usage: "Transaction feed ingestion service CLI",
		Description: `A command-line tool for managing and debugging the txingest service.

Use this CLI to inspect ingested records and tail the live update feed.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Database inspection commands
			{
				Name:  "db",
				Usage: "Database inspection commands",
				Subcommands: []*cli.Command{
					listTransactionsCommand(),
					getTransactionCommand(),
					countTransactionsCommand(),
				},
			},
			// Live feed commands
			{
				Name:  "feed",
				Usage: "Live feed commands",
				Subcommands: []*cli.Command{
					tailCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"POSTGRES_DB_URL"},
			},
			&cli.StringFlag{
				Name:    "feed-url",
				Usage:   "Feed endpoint URL",
				EnvVars: []string{"FEED_URL"},
				Value:   "nats://127.0.0.1:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
