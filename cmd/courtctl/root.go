package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/sanosuguru/go-court-reservation/internal/bootstrap"
	"github.com/sanosuguru/go-court-reservation/internal/config"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/metrics"
)

var cfg *config.Config

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "courtctl",
		Short: "コート予約サービスの運用コマンド",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.Load()
			logger.Set(logger.NewLogger(cfg.App.Env))
		},
		SilenceUsage: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(reapHoldsCmd())
	root.AddCommand(recurringCmd())
	return root
}

// openContainer はサービス一式を組み立てる
func openContainer(ctx context.Context) (*bootstrap.Container, error) {
	return bootstrap.New(ctx, cfg, metrics.New())
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
