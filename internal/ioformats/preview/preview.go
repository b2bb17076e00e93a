// Package preview renders a parameter map (or the ErrorTracker map) as a
// colour-mapped PNG, for visual sanity checks when no DICOM viewer is at
// hand, with a window/level LUT and a text-label overlay.
package preview

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/mberks/madym/internal/image3d"
	"github.com/mberks/madym/internal/madymerr"
)

// WindowLevel maps a raw voxel value into [0,1] given a display window
// centred on Level with full width Width; values are clamped at the ends.
type WindowLevel struct {
	Level, Width float64
}

// Normalize converts v to [0,1].
func (wl WindowLevel) Normalize(v float64) float64 {
	if wl.Width <= 0 {
		return 0
	}
	lo := wl.Level - wl.Width/2
	n := (v - lo) / wl.Width
	if n < 0 {
		n = 0
	}
	if n > 1 {
		n = 1
	}
	return n
}

// AutoWindowLevel derives a WindowLevel spanning the finite values of one
// slice of img, centred between min and max.
func AutoWindowLevel(img *image3d.Image3D, sliceIndex int) WindowLevel {
	offset := sliceIndex * img.Nx * img.Ny
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < img.Nx*img.Ny; i++ {
		v := img.Data[offset+i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if math.IsInf(lo, 1) || math.IsInf(hi, -1) {
		return WindowLevel{Level: 0, Width: 1}
	}
	return WindowLevel{Level: (lo + hi) / 2, Width: hi - lo}
}

// jetColour maps a normalised value in [0,1] onto a blue-to-red heat-map
// colour, the conventional parameter-map colour scale.
func jetColour(n float64) color.RGBA {
	r := clamp255(1.5 - math.Abs(4*n-3))
	g := clamp255(1.5 - math.Abs(4*n-2))
	b := clamp255(1.5 - math.Abs(4*n-1))
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func clamp255(v float64) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v * 255)
}

// WritePNG renders one slice of img through wl and a jet colour map, with
// an optional text label drawn in the corner, and writes it to path.
func WritePNG(path string, img *image3d.Image3D, sliceIndex int, wl WindowLevel, label string) error {
	if sliceIndex < 0 || sliceIndex >= img.Nz {
		return madymerr.New(madymerr.DimensionMismatch, "preview.WritePNG", "slice index out of range")
	}

	width, height := img.Nx, img.Ny
	offset := sliceIndex * width * height
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := img.Data[offset+y*width+x]
			var c color.RGBA
			if math.IsNaN(v) {
				c = color.RGBA{0, 0, 0, 255}
			} else {
				c = jetColour(wl.Normalize(v))
			}
			out.SetRGBA(x, y, c)
		}
	}

	if label != "" {
		drawLabel(out, label)
	}

	f, err := os.Create(path)
	if err != nil {
		return madymerr.Wrap(madymerr.FileFormatBad, "preview.WritePNG", "creating "+path, err)
	}
	defer f.Close()

	if err := png.Encode(f, out); err != nil {
		return madymerr.Wrap(madymerr.FileFormatBad, "preview.WritePNG", "encoding "+path, err)
	}
	return nil
}

// drawLabel writes text in the image's top-left corner, scaled up from the
// x/image basicfont 7x13 bitmap face for legibility over a small parameter map.
func drawLabel(dst *image.RGBA, text string) {
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, text).Ceil()
	const textHeight = 13

	textImg := image.NewRGBA(image.Rect(0, 0, textWidth, textHeight))
	drawer := &font.Drawer{
		Dst:  textImg,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.Point26_6{Y: fixed.I(textHeight)},
	}
	drawer.DrawString(text)

	scale := 2.0
	scaledW := int(float64(textWidth) * scale)
	scaledH := int(float64(textHeight) * scale)
	if scaledW > dst.Bounds().Dx()-4 {
		scaledW = dst.Bounds().Dx() - 4
	}
	scaled := image.NewRGBA(image.Rect(0, 0, scaledW, scaledH))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), textImg, textImg.Bounds(), draw.Over, nil)

	draw.Draw(dst, image.Rect(2, 2, 2+scaledW, 2+scaledH), scaled, image.Point{}, draw.Over)
}
