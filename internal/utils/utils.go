package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// --- 1. Process Safety & Command Wrapping ---

// SafeCommand wraps a standard exec.Cmd with a buffer to catch Stderr
// (FFmpeg and Python logs). This ensures we don't lose critical crash
// information if a child process dies mid-session.
type SafeCommand struct {
	*exec.Cmd
	Stderr *bytes.Buffer
}

// NewSafeCommand initializes a context-bound command and attaches a buffer to
// its Stderr pipe. Cancelling the context kills the child, which unblocks any
// reader on its pipes. It prepares the command but does not start it.
func NewSafeCommand(ctx context.Context, name string, args ...string) *SafeCommand {
	cmd := exec.CommandContext(ctx, name, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	return &SafeCommand{Cmd: cmd, Stderr: stderr}
}

// Die is the unified fatal-exit strategy for vigil.
// It prints a formatted error box and dumps child-process logs if a
// SafeCommand is provided.
func Die(context string, err error, s *SafeCommand) {
	ShowError(context, err, s)
	os.Exit(1)
}

// ShowError prints the same error box as Die without exiting, for commands
// that return their error up to cobra instead.
func ShowError(context string, err error, s *SafeCommand) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🚨 VIGIL ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DETAILS: %v\n", err)
	}

	// If we have a SafeCommand and it captured logs, print them.
	if s != nil && s.Stderr.Len() > 0 {
		fmt.Fprintf(os.Stderr, "\nCHILD PROCESS LOGS:\n%s\n", s.Stderr.String())
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}

// ErrWithLogs folds a child's captured stderr into an error so the
// diagnostic survives to wherever the error is finally reported.
func ErrWithLogs(context string, err error, s *SafeCommand) error {
	var logs string
	if s != nil {
		logs = strings.TrimSpace(s.Stderr.String())
	}
	switch {
	case err == nil && logs == "":
		return errors.New(context)
	case err == nil:
		return fmt.Errorf("%s\nchild process logs:\n%s", context, logs)
	case logs == "":
		return fmt.Errorf("%s: %w", context, err)
	default:
		return fmt.Errorf("%s: %w\nchild process logs:\n%s", context, err, logs)
	}
}

// --- 2. Video Plumbing (Shared by Watch, Enroll & Annotate) ---

var (
	JpegSOI = []byte{0xFF, 0xD8} // Start of Image
	JpegEOI = []byte{0xFF, 0xD9} // End of Image
)

// SplitJpeg is the custom splitter for bufio.Scanner.
// It locates the Start Of Image (FFD8) and End Of Image (FFD9) markers to
// extract full JPEG frames from an image2pipe stream.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, JpegSOI)
	if start == -1 {
		return 0, nil, nil
	}
	end := bytes.Index(data[start:], JpegEOI)
	if end == -1 {
		return 0, nil, nil
	}
	return start + end + 2, data[start : start+end+2], nil
}

// BuildCaptureArgs maps a camera selector to FFmpeg input arguments.
// A decimal integer selects a V4L2 device (/dev/videoN), an rtsp:// URL
// selects a network stream over TCP, and anything else is treated as a
// recorded video file that must exist.
func BuildCaptureArgs(selector string, fps float64) ([]string, error) {
	if n, err := strconv.Atoi(selector); err == nil {
		if n < 0 {
			return nil, fmt.Errorf("camera index must be >= 0, got %d", n)
		}
		return []string{
			"-f", "v4l2",
			"-framerate", strconv.FormatFloat(fps, 'f', -1, 64),
			"-i", fmt.Sprintf("/dev/video%d", n),
		}, nil
	}
	if strings.HasPrefix(selector, "rtsp://") {
		return []string{"-rtsp_transport", "tcp", "-i", selector}, nil
	}
	info, err := os.Stat(selector)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("video file does not exist: %s", selector)
		}
		return nil, fmt.Errorf("unable to access video file %s: %w", selector, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("camera selector %s is a directory, expected a device index, rtsp:// URL, or video file", selector)
	}
	return []string{"-i", selector}, nil
}

// IsLiveSource reports whether a selector names a live input (device or RTSP)
// as opposed to a recorded file. Live inputs have no frame rate to probe.
func IsLiveSource(selector string) bool {
	if _, err := strconv.Atoi(selector); err == nil {
		return true
	}
	return strings.HasPrefix(selector, "rtsp://")
}

// NewFFmpegCaptureCmd creates the capture pipe: any supported input decoded
// to an MJPEG image2pipe stream on stdout that Go can split into frames.
func NewFFmpegCaptureCmd(ctx context.Context, selector string, fps float64) (*SafeCommand, error) {
	inputArgs, err := BuildCaptureArgs(selector, fps)
	if err != nil {
		return nil, err
	}
	// -hide_banner and -loglevel error keep the stderr buffer small
	args := append([]string{"-hide_banner", "-loglevel", "error"}, inputArgs...)
	args = append(args, "-f", "image2pipe", "-vcodec", "mjpeg", "-")
	return NewSafeCommand(ctx, "ffmpeg", args...), nil
}

// NewFFmpegEncodeCmd creates the annotated-video encoder: raw RGBA frames on
// stdin, H.264 MP4 on disk.
func NewFFmpegEncodeCmd(ctx context.Context, outPath string, fps float64, width, height int) *SafeCommand {
	return NewSafeCommand(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "-",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		outPath,
	)
}

// ProbeFPS uses ffprobe to read the average frame rate of a recorded video,
// needed to time the annotated output when the input is a file.
func ProbeFPS(ctx context.Context, path string) (float64, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return 0, fmt.Errorf("ffprobe not found: %w", err)
	}

	type ffprobeOutput struct {
		Streams []struct {
			AvgFrameRate string `json:"avg_frame_rate"`
			RFrameRate   string `json:"r_frame_rate"`
		} `json:"streams"`
	}

	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=avg_frame_rate,r_frame_rate", "-of", "json", path)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var res ffprobeOutput
	if err := json.Unmarshal(out, &res); err != nil {
		return 0, fmt.Errorf("ffprobe JSON parse error: %w", err)
	}
	if len(res.Streams) == 0 {
		return 0, fmt.Errorf("no video stream in %s", path)
	}

	// avg_frame_rate is "0/0" for some containers; fall back to r_frame_rate.
	if fps, err := ParseRate(res.Streams[0].AvgFrameRate); err == nil {
		return fps, nil
	}
	return ParseRate(res.Streams[0].RFrameRate)
}

// ParseRate converts an ffprobe rational rate ("30000/1001", "25/1", "30")
// to frames per second.
func ParseRate(rate string) (float64, error) {
	num, den, found := strings.Cut(rate, "/")
	if !found {
		f, err := strconv.ParseFloat(rate, 64)
		if err != nil || f <= 0 {
			return 0, fmt.Errorf("invalid frame rate %q", rate)
		}
		return f, nil
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q", rate)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 || n <= 0 {
		return 0, fmt.Errorf("invalid frame rate %q", rate)
	}
	return n / d, nil
}
