package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigilcam/vigil/internal/camera"
	"github.com/vigilcam/vigil/internal/engine"
	"github.com/vigilcam/vigil/internal/eventlog"
	"github.com/vigilcam/vigil/internal/overlay"
	"github.com/vigilcam/vigil/internal/recognize"
	"github.com/vigilcam/vigil/internal/snapshot"
	"github.com/vigilcam/vigil/internal/utils"
	"github.com/vigilcam/vigil/internal/worker"
)

var watchOpts Options

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a camera and log arrivals and departures of enrolled faces",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runWatch(cmd.Context(), watchOpts)
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchOpts.Camera, "camera", "c", "0", "Camera selector: device index, rtsp:// URL, or video file")
	watchCmd.Flags().StringVarP(&watchOpts.StorePath, "store", "s", "people.json", "Path to the enrolled encodings store")
	watchCmd.Flags().StringVar(&watchOpts.LogDir, "log-dir", "logs", "Directory for CSV event logs")
	watchCmd.Flags().StringVar(&watchOpts.SnapDir, "snap-dir", "snapshots", "Directory for unknown-face snapshots")
	watchCmd.Flags().Float64VarP(&watchOpts.Threshold, "threshold", "t", 0.50, "Face matching threshold (lower is stricter)")
	watchCmd.Flags().IntVarP(&watchOpts.Grace, "grace", "g", 15, "Frames a face may go undetected before it is declared departed")
	watchCmd.Flags().IntVar(&watchOpts.Reannounce, "reannounce", 300, "Frames of continuous presence between repeat log entries")
	watchCmd.Flags().IntVar(&watchOpts.Cooldown, "cooldown", 90, "Minimum frames between unknown-face snapshots")
	watchCmd.Flags().StringVarP(&watchOpts.Model, "model", "m", "hog", "Face detection model: hog (CPU) or cnn (GPU)")
	watchCmd.Flags().StringVarP(&watchOpts.Annotate, "annotate", "a", "", "Write an annotated MP4 of the session to this path")
	watchCmd.Flags().Float64Var(&watchOpts.FPS, "fps", 30, "Capture frame rate for live devices and the annotated output")
	watchCmd.Flags().BoolVar(&watchOpts.MaskUnknown, "mask-unknown", false, "Mask unknown faces in the annotated output instead of boxing them")
	watchCmd.Flags().StringVar(&watchOpts.MaskStyle, "mask-style", overlay.MaskGauss, "Mask style for unknown faces: gauss or pixel")
	rootCmd.AddCommand(watchCmd)
}

// runWatch wires the whole session together: gallery, sidecar, camera,
// sinks, and the frame loop.
func runWatch(ctx context.Context, opts Options) error {
	// 1. Validate flags before starting any heavy process.
	if err := validateWatchFlags(&opts); err != nil {
		utils.ShowError("Invalid flags", err, nil)
		return err
	}

	// 2. Load the enrolled gallery. Missing or corrupt store is fatal;
	// empty is allowed but makes every face unknown.
	gallery, err := recognize.LoadGallery(opts.StorePath)
	if err != nil {
		utils.ShowError("Failed to load encoding store", err, nil)
		return err
	}
	if gallery.Len() == 0 {
		fmt.Fprintln(os.Stderr, "⚠️  Encoding store is empty; every face will be logged as unknown.")
	} else {
		fmt.Fprintf(os.Stderr, "🧠 Loaded %d identities (%d reference encodings).\n", gallery.Len(), gallery.RefCount())
	}

	// 3. Start the Python encoder sidecar.
	fmt.Fprintf(os.Stderr, "🚀 Starting AI Engine (%s)...\n", opts.Model)
	enc, err := worker.NewEncoder(ctx, opts.Model)
	if err != nil {
		utils.ShowError("Failed to start AI worker", err, nil)
		return err
	}
	defer enc.Close()

	// 4. Open the camera; this blocks until the first frame arrives, so a
	// dead device fails here with FFmpeg's stderr attached.
	fmt.Fprintf(os.Stderr, "🎥 Opening camera %s...\n", opts.Camera)
	cam, err := camera.Open(ctx, opts.Camera, opts.FPS)
	if err != nil {
		utils.ShowError("Failed to open camera", err, nil)
		return err
	}
	defer cam.Close()

	// 5. Event sinks: the CSV log always, the Postgres mirror when
	// configured.
	logPath := eventlog.SessionPath(opts.LogDir, time.Now())
	csvLog, err := eventlog.NewWriter(logPath)
	if err != nil {
		utils.ShowError("Failed to create event log", err, nil)
		return err
	}
	defer csvLog.Close()
	sinks := []engine.EventSink{csvLog}

	if DB != nil {
		session, err := DB.BeginSession(ctx, opts.Camera, opts.Threshold)
		if err != nil {
			utils.ShowError("Failed to begin database session", err, nil)
			return err
		}
		sinks = append(sinks, DB.Mirror(session))
		fmt.Fprintf(os.Stderr, "🗄️  Mirroring events to Postgres (session %s).\n", session)
	}

	// 6. Snapshot writer for unknown faces.
	snaps, err := snapshot.NewWriter(opts.SnapDir)
	if err != nil {
		utils.ShowError("Failed to create snapshot directory", err, nil)
		return err
	}

	cfg := engine.Config{
		Source:    cam,
		Encoder:   enc,
		Gallery:   gallery,
		Threshold: opts.Threshold,
		Tracker:   recognize.NewTracker(opts.Grace, opts.Reannounce),
		Throttle:  recognize.NewThrottler(opts.Cooldown),
		Sinks:     sinks,
		Snapshots: snaps,
		Warn: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "⚠️  "+format+"\n", args...)
		},
	}

	// 7. Optional annotated output. Recorded files carry their own frame
	// rate; live inputs run at the capture rate.
	var video *overlay.Annotator
	if opts.Annotate != "" {
		outFPS := opts.FPS
		if !utils.IsLiveSource(opts.Camera) {
			if probed, err := utils.ProbeFPS(ctx, opts.Camera); err != nil {
				fmt.Fprintf(os.Stderr, "⚠️  Could not probe frame rate of %s, using %.0f FPS: %v\n", opts.Camera, opts.FPS, err)
			} else {
				outFPS = probed
			}
		}
		video = overlay.New(overlay.Config{
			Path:        opts.Annotate,
			FPS:         outFPS,
			MaskUnknown: opts.MaskUnknown,
			MaskStyle:   opts.MaskStyle,
		})
		cfg.Annotator = video
	}

	fmt.Fprintf(os.Stderr, "⚙️  Tracker initialized with Euclidean Distance (Threshold: %.2f)\n", opts.Threshold)
	fmt.Fprintf(os.Stderr, "📼 Logging events to %s\n", logPath)

	// 8. Run the loop until the stream ends or Ctrl+C.
	stats, runErr := engine.New(cfg).Run(ctx)

	// 9. Finalize the annotated video before reporting; the MP4 index is
	// only written when FFmpeg's stdin closes cleanly.
	if video != nil {
		if err := video.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Annotated video may be incomplete: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "🎬 Annotated video written to %s\n", opts.Annotate)
		}
	}

	if runErr != nil {
		utils.ShowError("Camera loop failed", runErr, nil)
		return runErr
	}

	// 10. Session summary.
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🏁 WATCH SUMMARY\n")
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🎞️  Frames processed:   %d (%d skipped)\n", stats.Frames, stats.Skipped)
	fmt.Fprintf(os.Stderr, "👁️  Face detections:    %d\n", stats.Detections)
	fmt.Fprintf(os.Stderr, "📝 Events logged:      %d (%d dropped)\n", stats.Events, stats.Dropped)
	fmt.Fprintf(os.Stderr, "📸 Unknown snapshots:  %d\n", stats.Snapshots)
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")

	return nil
}

// validateWatchFlags ensures all CLI arguments are valid before starting heavy processes.
func validateWatchFlags(opts *Options) error {
	if _, err := utils.BuildCaptureArgs(opts.Camera, opts.FPS); err != nil {
		return err
	}
	if opts.Threshold <= 0 || opts.Threshold > 1.0 {
		return fmt.Errorf("threshold must be between 0.0 and 1.0, got %g", opts.Threshold)
	}
	if opts.Grace < 1 {
		return fmt.Errorf("grace must be >= 1 frame, got %d", opts.Grace)
	}
	if opts.Reannounce < 1 {
		return fmt.Errorf("reannounce must be >= 1 frame, got %d", opts.Reannounce)
	}
	if opts.Cooldown < 1 {
		return fmt.Errorf("cooldown must be >= 1 frame, got %d", opts.Cooldown)
	}
	if opts.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %g", opts.FPS)
	}
	if opts.Model != "hog" && opts.Model != "cnn" {
		return fmt.Errorf("model must be hog or cnn, got %q", opts.Model)
	}
	if opts.MaskStyle != overlay.MaskGauss && opts.MaskStyle != overlay.MaskPixel {
		return fmt.Errorf("mask-style must be %s or %s, got %q", overlay.MaskGauss, overlay.MaskPixel, opts.MaskStyle)
	}
	return nil
}

func fmtTime(seconds float64) string {
	duration := time.Duration(seconds * float64(time.Second))
	h := int(duration.Hours())
	m := int(duration.Minutes()) % 60
	s := int(duration.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
