package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/connections-insights/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "insights",
	Short: "Entity-relationship graph builder for business documents and news",
	Long:  "Ingests annual reports and filings, extracts companies, people and their relationships into a property graph, and scores incoming news along connection paths to interested entities.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
