package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vigilcam/vigil/internal/utils"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent events from the Postgres mirror",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runHistory(cmd.Context(), historyLimit)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of events to show, newest first")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(ctx context.Context, limit int) error {
	if DB == nil {
		err := errors.New("no database configured; pass --db or set POSTGRES_HOST")
		utils.ShowError("History needs the Postgres mirror", err, nil)
		return err
	}
	if limit < 1 {
		err := fmt.Errorf("limit must be >= 1, got %d", limit)
		utils.ShowError("Invalid flags", err, nil)
		return err
	}

	events, err := DB.RecentEvents(ctx, limit)
	if err != nil {
		utils.ShowError("Failed to query events", err, nil)
		return err
	}
	if len(events) == 0 {
		fmt.Println("No mirrored events yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TIME\tIDENTITY\tKIND\tDISTANCE\tFRAME\tSESSION")
	fmt.Fprintln(w, "----\t--------\t----\t--------\t-----\t-------")

	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%d\t%.8s\n",
			ev.TS.Local().Format("2006-01-02 15:04:05"),
			ev.Identity, ev.Kind, ev.Distance, ev.Frame, ev.Session.String())
	}
	w.Flush()
	return nil
}
