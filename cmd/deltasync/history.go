package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/whennemuth/deltasync/internal/config"
	"github.com/whennemuth/deltasync/internal/logging"
)

func newHistoryCmd() *cobra.Command {
	var clientID string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent delta_history rows for a client (relational backend only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if cfg.Backend != config.BackendRelational {
				return fmt.Errorf("history is only available for the relational backend, got %q", cfg.Backend)
			}

			level := cfg.LogLevel
			if logLevel != "" {
				level = logLevel
			}
			log := logging.New(level, devLog)

			backend, err := buildRelationalBackend(cfg, log)
			if err != nil {
				return err
			}

			entries, err := backend.GetHistory(cmd.Context(), clientID, limit)
			if err != nil {
				return err
			}

			for _, e := range entries {
				fmt.Printf("%s  client=%s  added=%d updated=%d removed=%d  at=%s\n",
					e.ID, e.ClientID, e.AddedCount, e.UpdatedCount, e.RemovedCount, e.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "demo-client", "client identifier")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows to print")
	return cmd
}
