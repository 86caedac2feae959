package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/whennemuth/deltasync/internal/config"
	"github.com/whennemuth/deltasync/internal/logging"
	"github.com/whennemuth/deltasync/internal/orchestrator"
	"github.com/whennemuth/deltasync/internal/store"
)

func newRunCmd() *cobra.Command {
	var clientID string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one sync cycle against a demo in-memory source and target",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if logLevel != "" {
				level = logLevel
			}
			log := logging.New(level, devLog)

			backend, err := buildBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}

			lockTTL, err := cfg.LockTTLDuration()
			if err != nil {
				return err
			}

			orch := orchestrator.New(
				orchestrator.WithLogger(log),
				orchestrator.WithLockTTL(lockTTL),
			)

			var opts []orchestrator.RunOption
			if dryRun {
				opts = append(opts, orchestrator.WithDryRun(true))
			}

			result, err := orch.RunCycle(cmd.Context(), orchestrator.Config{
				ClientID: clientID,
				Store:    backend,
				Source:   newDemoSource(),
				Mapper:   newDemoMapper(),
				Target:   newDemoTarget(log),
			}, opts...)
			if err != nil {
				return err
			}

			fmt.Printf("added=%d updated=%d removed=%d duration=%s message=%q\n",
				result.Added, result.Updated, result.Removed, result.Duration, result.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "demo-client", "client identifier")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute and log the delta without pushing or committing")
	return cmd
}

func buildBackend(ctx context.Context, cfg config.Config, log zerolog.Logger) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendFilesystem:
		return store.NewFilesystemBackend(cfg.Filesystem.Path, log)
	case config.BackendObjectBucket:
		return store.NewObjectBucketBackend(ctx, store.ObjectBucketConfig{
			BucketName: cfg.ObjectBucket.BucketName,
			KeyPrefix:  cfg.ObjectBucket.KeyPrefix,
			Region:     cfg.ObjectBucket.Region,
		}, log)
	case config.BackendRelational:
		return buildRelationalBackend(cfg, log)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
