package overlay

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/vigilcam/vigil/internal/types"
)

func TestDrawBox(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 40))
	drawBox(img, image.Rect(10, 10, 30, 30), knownColor)

	// Two pixels of outline, growing inward.
	for _, p := range []image.Point{{10, 10}, {11, 11}, {29, 29}, {28, 28}, {10, 29}, {29, 10}} {
		if img.RGBAAt(p.X, p.Y) != knownColor {
			t.Errorf("Expected outline at %v", p)
		}
	}
	// The interior and the outside stay untouched.
	for _, p := range []image.Point{{20, 20}, {12, 12}, {9, 10}, {30, 30}} {
		if img.RGBAAt(p.X, p.Y) == knownColor {
			t.Errorf("Expected no outline at %v", p)
		}
	}
}

func TestDrawBoxPartiallyOffImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 40))
	drawBox(img, image.Rect(-10, -10, 5, 5), unknownColor)

	// The visible edges are drawn, nothing panics on the clipped ones.
	if img.RGBAAt(0, 4) != unknownColor {
		t.Error("Expected bottom edge of the clipped box at (0,4)")
	}
	if img.RGBAAt(4, 0) != unknownColor {
		t.Error("Expected right edge of the clipped box at (4,0)")
	}
}

func TestDrawLabelAboveBox(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 80))
	box := image.Rect(20, 30, 60, 50)
	drawLabel(img, box, "a", knownColor)

	// Strip occupies (20,14)-(60,30), right of the short text it is solid.
	if img.RGBAAt(59, 15) != knownColor {
		t.Error("Expected label strip above the box")
	}
	if img.RGBAAt(20, 13) == knownColor {
		t.Error("Strip leaked above its height")
	}
	if img.RGBAAt(20, 30) == knownColor {
		t.Error("Strip leaked into the box")
	}
}

func TestDrawLabelBelowBoxAtTopEdge(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 80))
	box := image.Rect(20, 0, 60, 20)
	drawLabel(img, box, "a", unknownColor)

	// No room above, so the strip flips below the box: (20,20)-(60,36).
	if img.RGBAAt(59, 21) != unknownColor {
		t.Error("Expected label strip below the box")
	}
	if img.RGBAAt(21, 10) == unknownColor {
		t.Error("Strip drawn inside the box")
	}
}

// gradient fills an image so every mosaic block has a distinct average.
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), A: 255})
		}
	}
	return img
}

func TestMaskPixel(t *testing.T) {
	img := gradient(64, 64)
	orig := img.RGBAAt(62, 62)

	a := New(Config{MaskStyle: MaskPixel})
	a.maskFace(img, image.Rect(0, 0, 60, 60))

	// Every pixel inside one block collapses to the block average.
	ref := img.RGBAAt(0, 0)
	for y := 0; y < 15; y++ {
		for x := 0; x < 15; x++ {
			if img.RGBAAt(x, y) != ref {
				t.Fatalf("Block not uniform at (%d,%d): %v != %v", x, y, img.RGBAAt(x, y), ref)
			}
		}
	}
	// Neighboring blocks differ, so the mosaic still has structure.
	if img.RGBAAt(20, 0) == ref {
		t.Error("Adjacent blocks should have different averages")
	}
	// Outside the rect nothing changes.
	if img.RGBAAt(62, 62) != orig {
		t.Error("Mask wrote outside its rect")
	}
}

func TestMaskGauss(t *testing.T) {
	// A 1px checkerboard is the hardest content to hide structure in.
	img := image.NewRGBA(image.Rect(0, 0, 60, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 60; x++ {
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}

	a := New(Config{MaskStyle: MaskGauss})
	a.maskFace(img, image.Rect(0, 0, 60, 60))

	for y := 0; y < 60; y++ {
		for x := 0; x < 60; x++ {
			c := img.RGBAAt(x, y)
			for _, v := range []uint8{c.R, c.G, c.B} {
				if v < 32 || v > 224 {
					t.Fatalf("Pixel (%d,%d) still near an extreme after blur: %v", x, y, c)
				}
			}
			if c.A != 255 {
				t.Fatalf("Alpha not preserved at (%d,%d)", x, y)
			}
		}
	}
}

func TestMaskFaceEmptyRect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	a := New(Config{MaskStyle: MaskGauss})
	a.maskFace(img, image.Rectangle{}) // must not panic
}

func TestToRGBA(t *testing.T) {
	// JPEG frames decode to YCbCr; the encoder needs RGBA bytes.
	src := imaging.New(32, 24, color.NRGBA{R: 10, G: 120, B: 230, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := imaging.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	img := toRGBA(decoded)
	if img.Bounds() != image.Rect(0, 0, 32, 24) {
		t.Fatalf("Unexpected bounds %v", img.Bounds())
	}
	c := img.RGBAAt(16, 12)
	if diff(c.R, 10) > 12 || diff(c.G, 120) > 12 || diff(c.B, 230) > 12 {
		t.Errorf("Color drifted too far through JPEG: %v", c)
	}

	// An RGBA input passes through without copying.
	direct := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if toRGBA(direct) != direct {
		t.Error("Expected RGBA passthrough")
	}
}

func diff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestDrawUndecodableFrame(t *testing.T) {
	a := New(Config{Path: "out.mp4", FPS: 30})
	frame := &types.Frame{Index: 1, TS: time.Now(), Data: []byte{0x00, 0x01}}

	err := a.Draw(context.Background(), frame, nil, nil)
	if err == nil {
		t.Fatal("Expected an error for an undecodable frame")
	}
	// The encoder never started, so Close has nothing to tear down.
	if a.stdin != nil {
		t.Error("Encoder started for a frame that never decoded")
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close on a never-started annotator failed: %v", err)
	}
}
