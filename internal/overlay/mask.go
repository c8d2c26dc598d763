package overlay

import "image"

// Mask styles for unknown faces.
const (
	MaskGauss = "gauss"
	MaskPixel = "pixel"
)

// maskStrength is the blur radius / mosaic block size. Enough to make a
// face unrecognizable at webcam resolutions without flattening the whole
// box to one color.
const maskStrength = 15

// maskFace irreversibly obscures a detection box. rect must already be
// clipped to the image.
func (a *Annotator) maskFace(img *image.RGBA, rect image.Rectangle) {
	if rect.Empty() {
		return
	}
	switch a.cfg.MaskStyle {
	case MaskGauss:
		a.maskGauss(img, rect)
	default:
		maskPixel(img, rect)
	}
}

// maskGauss runs a separable box blur over the rect: a horizontal sliding
// window into scratch, then a vertical one back into the image. Cost is
// linear in pixels regardless of radius. Edge pixels are clamped, so the
// window average drifts slightly near borders; for a privacy mask that is
// irrelevant.
func (a *Annotator) maskGauss(img *image.RGBA, rect image.Rectangle) {
	w, h := rect.Dx(), rect.Dy()
	radius := maskStrength
	if radius > w/2 {
		radius = w / 2
	}
	if radius > h/2 {
		radius = h / 2
	}
	if radius < 1 {
		radius = 1
	}
	window := uint32(2*radius + 1)

	if cap(a.scratch) < w*h*4 {
		a.scratch = make([]uint8, w*h*4)
	}
	scratch := a.scratch[:w*h*4]

	// Horizontal pass: image rows into scratch.
	for y := 0; y < h; y++ {
		at := func(x int) int {
			if x < 0 {
				x = 0
			}
			if x >= w {
				x = w - 1
			}
			return img.PixOffset(rect.Min.X+x, rect.Min.Y+y)
		}
		var r, g, b uint32
		for k := -radius; k <= radius; k++ {
			off := at(k)
			r += uint32(img.Pix[off])
			g += uint32(img.Pix[off+1])
			b += uint32(img.Pix[off+2])
		}
		for x := 0; x < w; x++ {
			off := (y*w + x) * 4
			scratch[off] = uint8(r / window)
			scratch[off+1] = uint8(g / window)
			scratch[off+2] = uint8(b / window)
			scratch[off+3] = 0xFF

			out, in := at(x-radius), at(x+radius+1)
			r += uint32(img.Pix[in]) - uint32(img.Pix[out])
			g += uint32(img.Pix[in+1]) - uint32(img.Pix[out+1])
			b += uint32(img.Pix[in+2]) - uint32(img.Pix[out+2])
		}
	}

	// Vertical pass: scratch columns back into the image.
	for x := 0; x < w; x++ {
		at := func(y int) int {
			if y < 0 {
				y = 0
			}
			if y >= h {
				y = h - 1
			}
			return (y*w + x) * 4
		}
		var r, g, b uint32
		for k := -radius; k <= radius; k++ {
			off := at(k)
			r += uint32(scratch[off])
			g += uint32(scratch[off+1])
			b += uint32(scratch[off+2])
		}
		for y := 0; y < h; y++ {
			off := img.PixOffset(rect.Min.X+x, rect.Min.Y+y)
			img.Pix[off] = uint8(r / window)
			img.Pix[off+1] = uint8(g / window)
			img.Pix[off+2] = uint8(b / window)
			img.Pix[off+3] = 0xFF

			out, in := at(y-radius), at(y+radius+1)
			r += uint32(scratch[in]) - uint32(scratch[out])
			g += uint32(scratch[in+1]) - uint32(scratch[out+1])
			b += uint32(scratch[in+2]) - uint32(scratch[out+2])
		}
	}
}

// maskPixel replaces each block with its average color, leaving a coarse
// mosaic.
func maskPixel(img *image.RGBA, rect image.Rectangle) {
	for y := rect.Min.Y; y < rect.Max.Y; y += maskStrength {
		for x := rect.Min.X; x < rect.Max.X; x += maskStrength {
			x2 := min(x+maskStrength, rect.Max.X)
			y2 := min(y+maskStrength, rect.Max.Y)

			var r, g, b, n uint32
			for by := y; by < y2; by++ {
				off := img.PixOffset(x, by)
				for bx := x; bx < x2; bx++ {
					r += uint32(img.Pix[off])
					g += uint32(img.Pix[off+1])
					b += uint32(img.Pix[off+2])
					off += 4
					n++
				}
			}
			fr, fg, fb := uint8(r/n), uint8(g/n), uint8(b/n)

			for by := y; by < y2; by++ {
				off := img.PixOffset(x, by)
				for bx := x; bx < x2; bx++ {
					img.Pix[off] = fr
					img.Pix[off+1] = fg
					img.Pix[off+2] = fb
					img.Pix[off+3] = 0xFF
					off += 4
				}
			}
		}
	}
}
