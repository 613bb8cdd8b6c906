package main

import (
	"context"
	"fmt"
	"os"

	"carma_backend/internal/comparables/repository"
	"carma_backend/internal/scheduler"
	"carma_backend/platform/config"
	"carma_backend/platform/db"
	"carma_backend/platform/logger"

	"github.com/spf13/cobra"
)

var (
	batchSize int
	count     int
)

var rootCmd = &cobra.Command{
	Use:   "comparables-precompute",
	Short: "Enqueue comparables precomputation for every available listing",
	Long: "Pages through every available listing and enqueues a comparables.precompute task " +
		"for each, so the scheduler warms the response cache.",
	SilenceUsage: true,
	RunE:         runPrecompute,
}

func init() {
	rootCmd.Flags().IntVar(&batchSize, "batch", 500, "Listing ids fetched per page")
	rootCmd.Flags().IntVar(&count, "count", 0, "Comparables per listing (defaults to COMPARABLES_DEFAULT_COUNT)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPrecompute(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if batchSize < 1 {
		return fmt.Errorf("--batch must be positive")
	}
	if count < 0 || count > 50 {
		return fmt.Errorf("--count must be between 1 and 50")
	}
	if count == 0 {
		count = cfg.GetDefaultResultCount()
	}

	log := logger.New(cfg.Env)
	log.Info("starting comparables precompute", "batch", batchSize, "count", count)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("initialize scheduler client: %w", err)
	}
	defer func() { _ = client.Close() }()

	store := repository.NewPostgres(pool, cfg.GetStoreQueryTimeout(), log)
	sweeper := scheduler.NewPrecomputeSweeper(store, client, log, 0, batchSize, count)

	enqueued, err := sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("precompute stopped after %d tasks: %w", enqueued, err)
	}
	log.Info("comparables precompute completed", "enqueued", enqueued)
	return nil
}
