package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/connections-insights/internal/news"
)

var newsgenCount int

var newsgenCmd = &cobra.Command{
	Use:   "newsgen",
	Short: "Generate fictional news articles onto the news queue",
	Long:  "Generates synthetic financial articles, most of them mentioning entities already in the graph, and queues them for the news path. For exercising the system without a real feed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		gen := &news.Generator{
			Graph:  env.Graph,
			LLM:    env.Invoker,
			Blobs:  env.Blobs,
			Store:  env.Store,
			Bucket: cfg.Blob.NewsBucket,
		}
		if err := gen.Generate(ctx, newsgenCount); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "generated %d article(s)\n", newsgenCount)
		return nil
	},
}

func init() {
	newsgenCmd.Flags().IntVar(&newsgenCount, "count", 10, "number of articles to generate")
	rootCmd.AddCommand(newsgenCmd)
}
