package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "citabot",
		Usage: "Multi-tenant WhatsApp and web chat assistant for appointment based businesses",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Aliases: []string{"e"},
				Usage:   "Path to a .env file loaded before reading the environment",
				Value:   ".env",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, WhatsApp sessions and the task server",
				Action: serve,
			},
			{
				Name:   "worker",
				Usage:  "Consume video ingest tasks from the Redis media queue",
				Action: worker,
			},
			{
				Name:   "migrate",
				Usage:  "Apply the database schema",
				Action: migrate,
			},
			{
				Name:  "cleanup-videos",
				Usage: "Remove downloaded video files older than --max-age",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "max-age",
						Usage: "Minimum age of the files to delete",
						Value: 2 * time.Hour,
					},
				},
				Action: cleanupVideos,
			},
			{
				Name:   "ensure-admin",
				Usage:  "Create the admin account from ADMIN_USERNAME and ADMIN_PASSWORD",
				Action: ensureAdmin,
			},
		},
		DefaultCommand: "serve",
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("citabot exited")
	}
}
