package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vigilcam/vigil/internal/recognize"
	"github.com/vigilcam/vigil/internal/utils"
	"github.com/vigilcam/vigil/internal/worker"
)

var findOpts Options

var findCmd = &cobra.Command{
	Use:   "find <image_path>",
	Short: "Match a single photo against the encoding store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runFind(cmd.Context(), args[0], findOpts)
	},
}

func init() {
	findCmd.Flags().StringVarP(&findOpts.StorePath, "store", "s", "people.json", "Path to the enrolled encodings store")
	findCmd.Flags().Float64VarP(&findOpts.Threshold, "threshold", "t", 0.50, "Face matching threshold (lower is stricter)")
	findCmd.Flags().StringVarP(&findOpts.Model, "model", "m", "hog", "Face detection model: hog (CPU) or cnn (GPU)")
	rootCmd.AddCommand(findCmd)
}

func runFind(ctx context.Context, imagePath string, opts Options) error {
	if _, err := os.Stat(imagePath); os.IsNotExist(err) {
		utils.ShowError("Input file does not exist", err, nil)
		return err
	}

	gallery, err := recognize.LoadGallery(opts.StorePath)
	if err != nil {
		utils.ShowError("Failed to load encoding store", err, nil)
		return err
	}
	if gallery.Len() == 0 {
		fmt.Fprintln(os.Stderr, "⚠️  Encoding store is empty; nothing can match.")
	}

	fmt.Fprintln(os.Stderr, "🚀 Starting AI Engine...")
	enc, err := worker.NewEncoder(ctx, opts.Model)
	if err != nil {
		utils.ShowError("Failed to start AI worker", err, nil)
		return err
	}
	defer enc.Close()

	imgData, err := os.ReadFile(imagePath)
	if err != nil {
		utils.ShowError("Failed to read image file", err, nil)
		return err
	}

	fmt.Fprintln(os.Stderr, "🔍 Analyzing face...")
	faces, err := enc.ProcessFrame(imgData)
	if err != nil {
		utils.ShowError("AI processing failed", err, enc.Cmd)
		return err
	}

	if len(faces) == 0 {
		fmt.Println("❌ No faces detected in the provided image.")
		return nil
	}

	// Pick largest face if multiple
	bestFace := faces[0]
	if len(faces) > 1 {
		fmt.Printf("⚠️  Multiple faces detected (%d). Using the largest face.\n", len(faces))
		for _, f := range faces[1:] {
			if f.Area() > bestFace.Area() {
				bestFace = f
			}
		}
	}

	// Per-identity distances, nearest reference each.
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tDISTANCE\tVERDICT")
	fmt.Fprintln(w, "----\t--------\t-------")
	for _, id := range gallery.Identities() {
		best := math.Inf(1)
		for _, ref := range id.Refs {
			if d := recognize.EuclideanDist(bestFace.Vec, ref); d < best {
				best = d
			}
		}
		verdict := ""
		if best <= opts.Threshold {
			verdict = "MATCH"
		}
		fmt.Fprintf(w, "%s\t%.4f\t%s\n", id.Name, best, verdict)
	}
	w.Flush()

	m := gallery.Match(bestFace.Vec, opts.Threshold)
	if m.Known() {
		fmt.Printf("\n✅ Found Match: %s (distance %.4f)\n", m.Name, m.Distance)
	} else {
		fmt.Println("\n❌ No match found in encoding store.")
	}

	// Cross-check against the Postgres mirror when one is configured; a
	// disagreement usually means enroll ran without the mirror attached.
	if DB != nil {
		fmt.Fprintln(os.Stderr, "🗄️  Cross-checking database mirror...")
		name, dist, err := DB.FindClosestEnrolled(ctx, bestFace.Vec)
		if err != nil {
			utils.ShowError("Database search failed", err, nil)
			return err
		}
		switch {
		case name == "":
			fmt.Println("🗄️  Mirror has no enrolled faces.")
		case dist <= opts.Threshold:
			fmt.Printf("🗄️  Mirror agrees: %s (distance %.4f)\n", name, dist)
		default:
			fmt.Printf("🗄️  Mirror nearest: %s (distance %.4f, above threshold)\n", name, dist)
		}
	}

	return nil
}
