package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/vigilcam/vigil/internal/recognize"
	"github.com/vigilcam/vigil/internal/types"
	"github.com/vigilcam/vigil/internal/utils"
	"github.com/vigilcam/vigil/internal/worker"
)

var enrollOpts Options
var enrollFacesDir string

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Build the encoding store from directories of labeled photos",
	Long:  "Reads <faces>/<Name>/*.jpg reference photos, encodes every face, and overwrites the encoding store that the watch command matches against.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runEnroll(cmd.Context(), enrollFacesDir, enrollOpts)
	},
}

func init() {
	enrollCmd.Flags().StringVarP(&enrollFacesDir, "faces", "f", "faces", "Directory of per-person photo folders")
	enrollCmd.Flags().StringVarP(&enrollOpts.StorePath, "store", "s", "people.json", "Path to write the encoding store")
	enrollCmd.Flags().StringVarP(&enrollOpts.Model, "model", "m", "hog", "Face detection model: hog (CPU) or cnn (GPU)")
	rootCmd.AddCommand(enrollCmd)
}

type personPhotos struct {
	name   string
	photos []string
}

func runEnroll(ctx context.Context, facesDir string, opts Options) error {
	// 1. Collect photos per person before spawning anything heavy.
	people, total, err := collectPhotos(facesDir)
	if err != nil {
		utils.ShowError("Failed to read faces directory", err, nil)
		return err
	}
	if total == 0 {
		err := fmt.Errorf("no photos found under %s (expected %s/<name>/*.jpg|jpeg|png)", facesDir, facesDir)
		utils.ShowError("Nothing to enroll", err, nil)
		return err
	}

	// 2. Start the sidecar once and feed it every photo.
	fmt.Fprintf(os.Stderr, "🚀 Starting AI Engine (%s)...\n", opts.Model)
	enc, err := worker.NewEncoder(ctx, opts.Model)
	if err != nil {
		utils.ShowError("Failed to start AI worker", err, nil)
		return err
	}
	defer enc.Close()

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("🧠 Enrolling faces"),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
	)

	gallery := recognize.NewGallery()
	skipped := 0
	for _, person := range people {
		for _, photo := range person.photos {
			data, err := os.ReadFile(photo)
			if err != nil {
				utils.ShowError("Failed to read photo", err, nil)
				return err
			}

			faces, err := enc.ProcessFrame(data)
			if err != nil {
				var frameErr *types.FrameError
				if errors.As(err, &frameErr) {
					fmt.Fprintf(os.Stderr, "\n⚠️  %s: %v, skipping\n", photo, err)
					skipped++
					bar.Add(1)
					continue
				}
				utils.ShowError("AI processing failed", err, enc.Cmd)
				return err
			}

			if len(faces) == 0 {
				fmt.Fprintf(os.Stderr, "\n⚠️  No face found in %s, skipping\n", photo)
				skipped++
				bar.Add(1)
				continue
			}

			// Reference photos should hold one face; when they hold more,
			// the subject is assumed to be the one closest to the camera.
			face := faces[0]
			if len(faces) > 1 {
				fmt.Fprintf(os.Stderr, "\n⚠️  %d faces in %s, using the largest\n", len(faces), photo)
				for _, f := range faces[1:] {
					if f.Area() > face.Area() {
						face = f
					}
				}
			}

			gallery.Add(person.name, face.Vec)
			bar.Add(1)
		}
	}
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	if gallery.Len() == 0 {
		err := fmt.Errorf("none of the %d photos contained a detectable face", total)
		utils.ShowError("Enrollment produced an empty store", err, nil)
		return err
	}

	// 3. Overwrite the store.
	if err := gallery.Save(opts.StorePath); err != nil {
		utils.ShowError("Failed to write encoding store", err, nil)
		return err
	}
	fmt.Fprintf(os.Stderr, "✅ Enrolled %d identities (%d encodings) into %s\n", gallery.Len(), gallery.RefCount(), opts.StorePath)
	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "⚠️  %d photos skipped.\n", skipped)
	}

	// 4. Mirror to Postgres when configured.
	if DB != nil {
		if err := DB.ReplaceEnrolled(ctx, gallery); err != nil {
			utils.ShowError("Failed to mirror enrollment to database", err, nil)
			return err
		}
		fmt.Fprintln(os.Stderr, "🗄️  Mirrored enrollment to Postgres.")
	}
	return nil
}

// collectPhotos lists <dir>/<name>/* image files. os.ReadDir returns
// entries sorted by name, so the store's identity order, and with it the
// matcher's tie-breaking, is deterministic.
func collectPhotos(dir string) ([]personPhotos, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}

	var people []personPhotos
	total := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		photoEntries, err := os.ReadDir(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, 0, err
		}
		var photos []string
		for _, pe := range photoEntries {
			if pe.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(pe.Name())) {
			case ".jpg", ".jpeg", ".png":
				photos = append(photos, filepath.Join(dir, entry.Name(), pe.Name()))
			}
		}
		if len(photos) == 0 {
			continue
		}
		people = append(people, personPhotos{name: entry.Name(), photos: photos})
		total += len(photos)
	}
	return people, total, nil
}
