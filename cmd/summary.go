package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vigilcam/vigil/internal/eventlog"
	"github.com/vigilcam/vigil/internal/report"
	"github.com/vigilcam/vigil/internal/utils"
)

var summaryOpts Options
var summaryChart string

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Aggregate event logs into per-identity presence statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runSummary(summaryChart, summaryOpts)
	},
}

func init() {
	summaryCmd.Flags().StringVar(&summaryOpts.LogDir, "log-dir", "logs", "Directory of CSV event logs")
	summaryCmd.Flags().Float64Var(&summaryOpts.FPS, "fps", 30, "Frame rate used to convert dwell frames to wall time")
	summaryCmd.Flags().StringVar(&summaryChart, "chart", "summary.png", "Write an arrivals bar chart to this path (empty to skip)")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(chartPath string, opts Options) error {
	if opts.FPS <= 0 {
		err := fmt.Errorf("fps must be positive, got %g", opts.FPS)
		utils.ShowError("Invalid flags", err, nil)
		return err
	}

	rows, skipped, err := eventlog.ReadDir(opts.LogDir)
	if err != nil {
		utils.ShowError("Failed to read event logs", err, nil)
		return err
	}
	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "⚠️  Ignored %d malformed log rows.\n", skipped)
	}
	if len(rows) == 0 {
		fmt.Println("No events logged yet.")
		return nil
	}

	stats := report.Aggregate(rows)

	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "📊 PRESENCE SUMMARY (%d events)\n", len(rows))
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tARRIVALS\tDEPARTURES\tDWELL FRAMES\tDWELL TIME")
	fmt.Fprintln(w, "--------\t--------\t----------\t------------\t----------")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n",
			s.Key, s.Arrivals, s.Departures, s.DwellFrames, fmtTime(float64(s.DwellFrames)/opts.FPS))
	}
	w.Flush()

	if chartPath == "" {
		return nil
	}
	rendered, err := report.RenderChart(stats, chartPath)
	if err != nil {
		utils.ShowError("Failed to render chart", err, nil)
		return err
	}
	if !rendered {
		fmt.Fprintln(os.Stderr, "⚠️  No arrivals in the logs; chart skipped.")
		return nil
	}
	fmt.Fprintf(os.Stderr, "📈 Chart written to %s\n", chartPath)
	return nil
}
