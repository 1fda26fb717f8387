package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectrag/internal/config"
	"github.com/fyrsmithlabs/projectrag/internal/ownership"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print store statistics from the persisted snapshot",
	Long: `Load the configured snapshot, validate it and print project and vector
counts as JSON. No vectors are written.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats(cmd.Context(), configPath, cmd.OutOrStdout())
	},
}

func runStats(ctx context.Context, path string, out io.Writer) error {
	cfg, err := config.LoadWithFile(path)
	if err != nil {
		return err
	}

	// Counting needs no model, so the hash provider stands in for the
	// configured one.
	cfg.Embeddings.Provider = "hash"
	cfg.Embeddings.CacheSize = 0

	comps, err := buildStore(ctx, cfg, ownership.AllowAll, zap.NewNop())
	if err != nil {
		return err
	}
	defer comps.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(comps.store.Stats()); err != nil {
		return fmt.Errorf("writing stats: %w", err)
	}
	return nil
}
