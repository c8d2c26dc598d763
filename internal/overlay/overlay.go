package overlay

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/vigilcam/vigil/internal/recognize"
	"github.com/vigilcam/vigil/internal/types"
	"github.com/vigilcam/vigil/internal/utils"
)

const (
	boxThickness = 2
	labelHeight  = 16
	labelInset   = 3
)

var (
	knownColor   = color.RGBA{G: 255, A: 255}
	unknownColor = color.RGBA{R: 255, A: 255}
)

// Config selects where the annotated video goes and how unknown faces are
// rendered.
type Config struct {
	Path        string
	FPS         float64
	MaskUnknown bool
	MaskStyle   string
}

// Annotator draws recognition results onto frames and streams them into an
// FFmpeg H.264 encoder. It is presentational only: a broken annotator never
// affects tracking, so all its errors are for the caller to warn about.
//
// The encoder starts lazily on the first frame, once output dimensions are
// known. Not safe for concurrent use.
type Annotator struct {
	cfg     Config
	cmd     *utils.SafeCommand
	stdin   io.WriteCloser
	width   int
	height  int
	scratch []uint8 // blur intermediate, reused across frames
}

// New returns an annotator for the given output configuration.
func New(cfg Config) *Annotator {
	return &Annotator{cfg: cfg}
}

// Draw renders one frame. faces and matches run in parallel: matches[i] is
// the gallery verdict for faces[i].
func (a *Annotator) Draw(ctx context.Context, frame *types.Frame, faces []types.FaceResult, matches []recognize.Match) error {
	src, err := imaging.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return fmt.Errorf("failed to decode frame %d: %w", frame.Index, err)
	}
	img := toRGBA(src)

	if a.stdin == nil {
		if err := a.start(ctx, img.Bounds().Dx(), img.Bounds().Dy()); err != nil {
			return err
		}
	}
	if img.Bounds().Dx() != a.width || img.Bounds().Dy() != a.height {
		return fmt.Errorf("frame %d is %dx%d, encoder expects %dx%d",
			frame.Index, img.Bounds().Dx(), img.Bounds().Dy(), a.width, a.height)
	}

	for i, face := range faces {
		box := image.Rect(face.Left(), face.Top(), face.Right(), face.Bottom())
		match := matches[i]

		if !match.Known() && a.cfg.MaskUnknown {
			a.maskFace(img, box.Intersect(img.Bounds()))
			continue
		}

		c := knownColor
		if !match.Known() {
			c = unknownColor
		}
		drawBox(img, box, c)
		drawLabel(img, box, fmt.Sprintf("%s (%.2f)", match.Key(), match.Distance), c)
	}

	if _, err := a.stdin.Write(img.Pix); err != nil {
		return utils.ErrWithLogs("video encoder rejected a frame", err, a.cmd)
	}
	return nil
}

// start spawns the encoder once frame dimensions are known.
func (a *Annotator) start(ctx context.Context, width, height int) error {
	cmd := utils.NewFFmpegEncodeCmd(ctx, a.cfg.Path, a.cfg.FPS, width, height)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create encoder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start video encoder: %w", err)
	}
	a.cmd = cmd
	a.stdin = stdin
	a.width = width
	a.height = height
	return nil
}

// Close flushes the encoder and waits for the output file to finalize.
// A no-op when no frame was ever drawn.
func (a *Annotator) Close() error {
	if a.stdin == nil {
		return nil
	}
	a.stdin.Close()
	a.stdin = nil
	if err := a.cmd.Wait(); err != nil {
		return utils.ErrWithLogs("video encoder failed", err, a.cmd)
	}
	return nil
}

// toRGBA converts a decoded frame (usually YCbCr out of the JPEG decoder)
// into the RGBA layout the rawvideo encoder input expects.
func toRGBA(src image.Image) *image.RGBA {
	if m, ok := src.(*image.RGBA); ok {
		return m
	}
	b := src.Bounds()
	m := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(m, m.Bounds(), src, b.Min, draw.Src)
	return m
}

// drawBox outlines a rect, boxThickness pixels growing inward. SetRGBA
// drops out-of-bounds pixels, so partially off-screen boxes are safe.
func drawBox(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	for t := 0; t < boxThickness; t++ {
		r := rect.Inset(t)
		if r.Empty() {
			return
		}
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, r.Min.Y, c)
			img.SetRGBA(x, r.Max.Y-1, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			img.SetRGBA(r.Min.X, y, c)
			img.SetRGBA(r.Max.X-1, y, c)
		}
	}
}

// drawLabel paints a filled strip with the identity and distance above the
// box, falling below it when the box touches the top edge.
func drawLabel(img *image.RGBA, rect image.Rectangle, text string, c color.RGBA) {
	strip := image.Rect(rect.Min.X, rect.Min.Y-labelHeight, rect.Max.X, rect.Min.Y)
	if strip.Min.Y < img.Bounds().Min.Y {
		strip = image.Rect(rect.Min.X, rect.Max.Y, rect.Max.X, rect.Max.Y+labelHeight)
	}
	strip = strip.Intersect(img.Bounds())
	if strip.Empty() {
		return
	}
	draw.Draw(img, strip, image.NewUniform(c), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(strip.Min.X+labelInset, strip.Min.Y+basicfont.Face7x13.Ascent),
	}
	d.DrawString(text)
}
