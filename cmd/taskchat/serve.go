package main

import (
	"github.com/spf13/cobra"

	"taskchat/api/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API for task CRUD and chat.

Configuration comes from the environment, an optional .env file, and an
optional YAML file named by CONFIG_FILE.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer a.Close()

			a.logger.Info("Starting taskchat", map[string]any{
				"version":     a.config.Version,
				"port":        a.config.ServerPort,
				"log_level":   a.config.LogLevel,
				"store":       a.config.StoreBackend,
				"interpreter": a.config.Interpreter,
			})

			srv := server.New(server.Dependencies{
				Service:  a.service,
				Engine:   a.engine,
				Registry: a.registry,
				Config:   a.config,
				Logger:   a.logger,
			})
			return srv.Start()
		},
	}
}
