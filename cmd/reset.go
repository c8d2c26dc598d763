package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vigilcam/vigil/internal/utils"
)

var (
	resetMirror bool
	resetLogs   bool
	resetSnaps  bool
	resetOpts   Options
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset system state (Mirror Tables, Event Logs, Snapshots)",
	Long:  "Clears recorded data. By default, it resets everything. Use flags to clear specific components.",
	Run: func(cmd *cobra.Command, args []string) {
		// If no flags are set, default to clearing EVERYTHING
		if !resetMirror && !resetLogs && !resetSnaps {
			resetMirror = true
			resetLogs = true
			resetSnaps = true
		}

		reader := bufio.NewReader(os.Stdin)

		if resetMirror {
			if DB == nil {
				fmt.Fprintln(os.Stderr, "⚠️  No database configured; skipping mirror reset.")
			} else if confirm(reader, "⚠️  Are you sure you want to DROP all mirror tables?") {
				fmt.Println("🗑️  Clearing Database...")
				if err := DB.Reset(cmd.Context()); err != nil {
					utils.Die("Failed to reset database", err, nil)
				}
			}
		}

		if resetLogs {
			if confirm(reader, fmt.Sprintf("⚠️  Are you sure you want to delete all event logs under %s?", resetOpts.LogDir)) {
				fmt.Println("🗑️  Clearing Event Logs...")
				removeDir(resetOpts.LogDir)
			}
		}

		if resetSnaps {
			if confirm(reader, fmt.Sprintf("⚠️  Are you sure you want to delete all snapshots under %s?", resetOpts.SnapDir)) {
				fmt.Println("🗑️  Clearing Snapshots...")
				removeDir(resetOpts.SnapDir)
			}
		}

		fmt.Println("✨ System Reset Complete.")
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetMirror, "mirror", false, "Clear the Postgres mirror tables")
	resetCmd.Flags().BoolVar(&resetLogs, "logs", false, "Clear CSV event logs")
	resetCmd.Flags().BoolVar(&resetSnaps, "snapshots", false, "Clear unknown-face snapshots")
	resetCmd.Flags().StringVar(&resetOpts.LogDir, "log-dir", "logs", "Directory of CSV event logs")
	resetCmd.Flags().StringVar(&resetOpts.SnapDir, "snap-dir", "snapshots", "Directory of unknown-face snapshots")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removeDir(path string) {
	if err := os.RemoveAll(path); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}
