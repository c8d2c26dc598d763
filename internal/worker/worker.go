package worker

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/vigilcam/vigil/internal/types"
	"github.com/vigilcam/vigil/internal/utils" // Using the SafeCommand wrapper
)

// Encoder is the face detector/encoder sidecar: a long-lived Python process
// that turns an image into zero or more face locations plus 128-d encodings.
// One frame is in flight at a time, matching the single-threaded watch loop.
type Encoder struct {
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser
}

// NewEncoder starts the sidecar. model selects the detector ("hog" is fast
// on CPU, "cnn" is more accurate but needs real hardware). The process is
// bound to ctx, so cancelling it unblocks any pending read.
func NewEncoder(ctx context.Context, model string) (*Encoder, error) {
	py := utils.NewSafeCommand(ctx, "python3", "-u", "python/encoder.py", "--model", model)

	// Create a side-channel pipe (FD 3) for clean data transfer: stdout stays
	// free for stray library prints that would otherwise corrupt the protocol.
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close() // Prevent FD leak
		r.Close() // Close read-end too!
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close() // Close write end if start fails
		r.Close() // Close read-end too!
		return nil, fmt.Errorf("encoder worker failed to start: %w", err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &Encoder{
		Cmd:      py,
		Stdin:    stdin,
		DataPipe: r,
	}, nil
}

// ProcessFrame sends one image to the sidecar and decodes its reply.
// Protocol: [uint32 BE length][image bytes] on stdin, [uint32 BE length][JSON]
// back on the data pipe. The JSON is either a list of faces or an error
// object; the latter comes back as a *types.FrameError so callers can skip
// the frame without tearing down the session.
func (e *Encoder) ProcessFrame(data []byte) ([]types.FaceResult, error) {
	if err := binary.Write(e.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := e.Stdin.Write(data); err != nil {
		return nil, err
	}

	// Read Result. A failed read here is how we catch a dead worker
	// (e.g. ModuleNotFoundError on startup, OOM kill mid-run).
	header := make([]byte, 4)
	if _, err := io.ReadFull(e.DataPipe, header); err != nil {
		return nil, err
	}

	respLen := binary.BigEndian.Uint32(header)
	respBody := make([]byte, respLen)
	if _, err := io.ReadFull(e.DataPipe, respBody); err != nil {
		return nil, err
	}

	var faces []types.FaceResult
	if err := json.Unmarshal(respBody, &faces); err != nil {
		// Check if it's a Python error object (e.g. {"error": "..."})
		var errorResult types.ErrorResult
		if json.Unmarshal(respBody, &errorResult) == nil && errorResult.Error != "" {
			return nil, &types.FrameError{Msg: errorResult.Error}
		}
		// Garbage on the pipe means the protocol itself is broken
		return nil, fmt.Errorf("malformed encoder response: %w", err)
	}
	return faces, nil
}

// Close shuts the sidecar down and reaps the process.
func (e *Encoder) Close() {
	e.Stdin.Close()
	e.DataPipe.Close()
	e.Cmd.Wait()
}
