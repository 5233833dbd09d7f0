package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/connections-insights/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show document processing progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		statuses, err := env.Store.ListStatuses(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FILE\tSTATUS\tPROGRESS\tSTARTED\tERROR")
		for _, s := range statuses {
			errMsg := s.ErrorMessage
			if len(errMsg) > 60 {
				errMsg = errMsg[:60] + "…"
			}
			fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\t%s\n",
				s.FileName, s.Status(), s.Progress(),
				s.StartedAt.Format("2006-01-02 15:04"), errMsg)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		for _, queue := range []string{store.DocumentQueue, store.NewsQueue} {
			dead, err := env.Store.ListDeadLetters(ctx, queue)
			if err != nil {
				return err
			}
			if len(dead) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d dead-lettered message(s) on %s\n", len(dead), queue)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
