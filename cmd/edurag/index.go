package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var recreate bool
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Create the chunk vector index if it does not exist",
		Long: "Create the chunk vector index if it does not exist.\n\n" +
			"With --recreate the index is dropped and built again from the stored chunks, " +
			"which is needed after changing embedding dimensions or HNSW settings.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, logger, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, err := openRedis(ctx, cfg.Redis, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			chunks := newChunkRepo(store, cfg, logger)
			if recreate {
				if err := chunks.RebuildIndex(ctx); err != nil {
					return fmt.Errorf("rebuild index: %w", err)
				}
				cmd.Println("index rebuilt")
				return nil
			}

			created, err := chunks.EnsureIndex(ctx)
			if err != nil {
				return fmt.Errorf("ensure index: %w", err)
			}
			logger.Info("Chunk index ready",
				zap.Bool("created", created),
				zap.Int("dimensions", cfg.Embedding.Dimensions),
			)
			if created {
				cmd.Println("index created")
			} else {
				cmd.Println("index already exists")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&recreate, "recreate", false, "drop and rebuild the index, keeping stored chunks")
	return cmd
}
