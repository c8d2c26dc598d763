package snapshot

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/vigilcam/vigil/internal/types"
)

// Writer saves cropped face captures for unknown visitors. Failures are the
// caller's to warn about; a lost snapshot never stops the loop.
type Writer struct {
	dir string
}

// NewWriter ensures the snapshot directory exists.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Writer{dir: dir}, nil
}

// Save crops the detection out of the frame with a 20% margin per side and
// writes it as a JPEG named unknown_<unix>_<frame>.jpg. Returns the path.
func (w *Writer) Save(frame *types.Frame, face types.FaceResult) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return "", fmt.Errorf("failed to decode frame %d: %w", frame.Index, err)
	}

	crop := imaging.Crop(img, cropRect(face, img.Bounds()))

	path := filepath.Join(w.dir, fmt.Sprintf("unknown_%d_%d.jpg", frame.TS.Unix(), frame.Index))
	if err := imaging.Save(crop, path, imaging.JPEGQuality(90)); err != nil {
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}
	return path, nil
}

// cropRect pads the bounding box by 20% of its size on every side, clipped
// to the frame.
func cropRect(face types.FaceResult, bounds image.Rectangle) image.Rectangle {
	marginX := (face.Right() - face.Left()) / 5
	marginY := (face.Bottom() - face.Top()) / 5
	padded := image.Rect(
		face.Left()-marginX,
		face.Top()-marginY,
		face.Right()+marginX,
		face.Bottom()+marginY,
	)
	return padded.Intersect(bounds)
}
