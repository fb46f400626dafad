package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"syncroom/internal/app"
	"syncroom/internal/config"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	var (
		configPath string
		host       string
		port       int
		dbPath     string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the coordinator",
		Long: `Start the coordinator.

Configuration precedence: flags > config file > SYNCROOM_* environment
variables > defaults.

Examples:
  syncroomd serve
  syncroomd serve --port=9000 --db=/var/lib/syncroom/rooms.db
  syncroomd serve --config=/etc/syncroom/config.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(configPath)
			if cmd.Flags().Changed("host") {
				cfg.HTTP.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.HTTP.Port = port
			}
			if cmd.Flags().Changed("db") {
				cfg.Database.Path = dbPath
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = debug
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to JSON config file")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	return cmd
}

func runServe(cfg *config.Config) error {
	application, err := app.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return application.Stop(shutdownCtx)
}
