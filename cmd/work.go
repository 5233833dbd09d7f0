package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/connections-insights/internal/ingest"
	"github.com/sells-group/connections-insights/internal/news"
)

var (
	workIngestOnly bool
	workNewsOnly   bool
)

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Run the document ingestion and news worker pools",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		g, gCtx := errgroup.WithContext(ctx)

		if !workNewsOnly {
			zap.L().Info("work: starting ingestion workers", zap.Int("workers", cfg.Ingest.Workers))
			g.Go(func() error {
				return ingest.RunPool(gCtx, env.Pipeline, cfg.Ingest.Workers, ingest.Worker{
					Visibility:  time.Duration(cfg.Ingest.VisibilityTimeoutMins) * time.Minute,
					MaxReceives: cfg.Ingest.MaxReceives,
				})
			})
		}
		if !workIngestOnly {
			zap.L().Info("work: starting news workers", zap.Int("workers", cfg.News.Workers))
			g.Go(func() error {
				return news.RunPool(gCtx, env.News, cfg.News.Workers, news.Worker{
					Visibility: time.Duration(cfg.News.VisibilityTimeoutMins) * time.Minute,
				})
			})
		}

		// Scratch and prompt records expire on their own; sweep them while
		// the workers run so the tables stay small.
		g.Go(func() error {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-ticker.C:
					if n, err := env.Store.DeleteExpiredScratch(gCtx); err == nil && n > 0 {
						zap.L().Info("work: expired scratch removed", zap.Int("count", n))
					}
					if n, err := env.Store.DeleteExpiredPrompts(gCtx); err == nil && n > 0 {
						zap.L().Info("work: expired prompts removed", zap.Int("count", n))
					}
				}
			}
		})

		return g.Wait()
	},
}

func init() {
	workCmd.Flags().BoolVar(&workIngestOnly, "ingest-only", false, "run only the document ingestion workers")
	workCmd.Flags().BoolVar(&workNewsOnly, "news-only", false, "run only the news workers")
	rootCmd.AddCommand(workCmd)
}
