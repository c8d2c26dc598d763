package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vigilcam/vigil/internal/recognize"
	"github.com/vigilcam/vigil/internal/utils"
)

var listOpts Options

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all enrolled identities in the encoding store",
	Run: func(cmd *cobra.Command, args []string) {
		runList(listOpts)
	},
}

func init() {
	listCmd.Flags().StringVarP(&listOpts.StorePath, "store", "s", "people.json", "Path to the enrolled encodings store")
	rootCmd.AddCommand(listCmd)
}

func runList(opts Options) {
	gallery, err := recognize.LoadGallery(opts.StorePath)
	if err != nil {
		utils.Die("Failed to load encoding store", err, nil)
	}

	if gallery.Len() == 0 {
		fmt.Println("No identities enrolled.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tREFERENCES")
	fmt.Fprintln(w, "----\t----------")

	for _, id := range gallery.Identities() {
		fmt.Fprintf(w, "%s\t%d\n", id.Name, len(id.Refs))
	}
	w.Flush()
}
