package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vigilcam/vigil/internal/recognize"
	"github.com/vigilcam/vigil/internal/utils"
)

var renameOpts Options

var renameCmd = &cobra.Command{
	Use:   "rename <old_name> <new_name>",
	Short: "Rename an enrolled identity in the encoding store",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runRename(cmd.Context(), args[0], args[1], renameOpts)
	},
}

func init() {
	renameCmd.Flags().StringVarP(&renameOpts.StorePath, "store", "s", "people.json", "Path to the enrolled encodings store")
	rootCmd.AddCommand(renameCmd)
}

func runRename(ctx context.Context, oldName, newName string, opts Options) {
	// 1. Rename in the file store.
	gallery, err := recognize.LoadGallery(opts.StorePath)
	if err != nil {
		utils.Die("Failed to load encoding store", err, nil)
	}
	if !gallery.Rename(oldName, newName) {
		utils.Die("Rename failed", fmt.Errorf("'%s' is not enrolled or '%s' already is", oldName, newName), nil)
	}
	if err := gallery.Save(opts.StorePath); err != nil {
		utils.Die("Failed to write encoding store", err, nil)
	}

	// 2. Keep the mirror in step when one is configured.
	if DB != nil {
		if err := DB.RenameEnrolled(ctx, oldName, newName); err != nil {
			utils.Die("Failed to rename identity in database", err, nil)
		}
	}

	fmt.Printf("✅ Identity '%s' renamed to '%s'\n", oldName, newName)
}
