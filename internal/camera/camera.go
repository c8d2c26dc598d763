package camera

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vigilcam/vigil/internal/types"
	"github.com/vigilcam/vigil/internal/utils"
)

const megabyte = 1024 * 1024

// Camera streams JPEG frames from an FFmpeg capture process. Frames are
// pulled by a single goroutine; Camera is not safe for concurrent use.
type Camera struct {
	cmd     *utils.SafeCommand
	scanner *bufio.Scanner
	first   []byte
	index   int
	done    bool
	waited  bool
}

func newCamera(cmd *utils.SafeCommand, r io.Reader) *Camera {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)
	return &Camera{cmd: cmd, scanner: scanner}
}

// Open starts the capture process for a camera selector (device index,
// rtsp:// URL, or video file) and blocks until the first frame arrives.
// A camera that cannot deliver a single frame fails here, with FFmpeg's
// stderr folded into the error, instead of hanging the loop later.
func Open(ctx context.Context, selector string, fps float64) (*Camera, error) {
	ffmpeg, err := utils.NewFFmpegCaptureCmd(ctx, selector, fps)
	if err != nil {
		return nil, err
	}

	out, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create capture pipe: %w", err)
	}
	if err := ffmpeg.Start(); err != nil {
		return nil, fmt.Errorf("failed to start FFmpeg: %w", err)
	}

	c := newCamera(ffmpeg, out)
	if err := c.prime(); err != nil {
		return nil, err
	}
	return c, nil
}

// prime blocks until the capture proves it can deliver, parking the first
// frame for Next.
func (c *Camera) prime() error {
	if !c.scanner.Scan() {
		return c.streamErr("capture produced no frames")
	}
	c.first = append([]byte(nil), c.scanner.Bytes()...)
	return nil
}

// Next returns the next frame. Indices are 1-based and strictly increasing;
// the timestamp is taken when the frame is handed out. A finished stream
// returns io.EOF; a broken one returns the underlying failure.
func (c *Camera) Next() (*types.Frame, error) {
	if c.done {
		return nil, io.EOF
	}
	if c.first != nil {
		data := c.first
		c.first = nil
		c.index++
		return &types.Frame{Index: c.index, TS: time.Now(), Data: data}, nil
	}
	if !c.scanner.Scan() {
		c.done = true
		if err := c.scanner.Err(); err != nil {
			return nil, fmt.Errorf("frame scanner failed: %w", err)
		}
		if c.cmd != nil {
			if err := c.wait(); err != nil {
				return nil, utils.ErrWithLogs("capture process failed", err, c.cmd)
			}
		}
		return nil, io.EOF
	}
	// Copy out of the scanner's buffer; the next Scan overwrites it.
	data := append([]byte(nil), c.scanner.Bytes()...)
	c.index++
	return &types.Frame{Index: c.index, TS: time.Now(), Data: data}, nil
}

// Close stops the capture process. Safe to call after the stream ended.
func (c *Camera) Close() {
	if c.cmd == nil || c.waited {
		return
	}
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	_ = c.wait()
}

func (c *Camera) wait() error {
	if c.waited {
		return nil
	}
	c.waited = true
	return c.cmd.Wait()
}

// streamErr explains a stream that ended before it should have, preferring
// the scanner's error, then the process exit, then captured stderr.
func (c *Camera) streamErr(context string) error {
	if err := c.scanner.Err(); err != nil {
		return fmt.Errorf("%s: %w", context, err)
	}
	if c.cmd == nil {
		return errors.New(context)
	}
	return utils.ErrWithLogs(context, c.wait(), c.cmd)
}
