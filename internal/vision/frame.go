// Package vision holds the frame contract shared by every consumer of
// captured pixels and the image primitives built on OpenCV.
package vision

import (
	"image"
	"time"

	"golang.org/x/image/draw"

	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
)

// Frame is one captured image of the game window or of the near-player
// region.
//
// Invariant: when Minimized is false, Color and Gray are non-nil and share
// the same bounds with Min at the origin.
type Frame struct {
	Color     *image.RGBA
	Gray      *image.Gray
	Source    geom.Rect
	Captured  time.Time
	Minimized bool
}

// NewFrame wraps a color capture, deriving its grayscale view.
//
// Postcondition: returns a Frame with Minimized set iff img has zero area.
func NewFrame(img *image.RGBA, source geom.Rect, at time.Time) *Frame {
	if img == nil || img.Bounds().Empty() {
		return &Frame{Source: source, Captured: at, Minimized: true}
	}
	return &Frame{Color: img, Gray: ToGray(img), Source: source, Captured: at}
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int {
	if f.Gray == nil {
		return 0
	}
	return f.Gray.Bounds().Dx()
}

// Height returns the frame height in pixels.
func (f *Frame) Height() int {
	if f.Gray == nil {
		return 0
	}
	return f.Gray.Bounds().Dy()
}

// ToGray converts img to an origin-anchored grayscale image. All hashing
// and alignment inputs go through this one conversion so that composites
// and screenshots agree pixel for pixel.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// ToRGBA copies img into an origin-anchored RGBA image.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// CropGray returns a compact copy of r within g. r is clipped to g's bounds.
func CropGray(g *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Intersect(g.Bounds())
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), g, r.Min, draw.Src)
	return out
}

// CropRGBA returns a compact copy of r within img. r is clipped to img's bounds.
func CropRGBA(img *image.RGBA, r image.Rectangle) *image.RGBA {
	r = r.Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}

// Composite renders fg (which may be transparent) over floor and returns
// the flattened result sized to floor.
func Composite(fg, floor image.Image) *image.NRGBA {
	fb := floor.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, fb.Dx(), fb.Dy()))
	draw.Draw(out, out.Bounds(), floor, fb.Min, draw.Src)
	draw.Draw(out, out.Bounds(), fg, fg.Bounds().Min, draw.Over)
	return out
}

// Blend linearly mixes overlay into dst in place:
// dst = (1-alpha)*dst + alpha*overlay for each color channel.
//
// Precondition: alpha in [0, 1].
func Blend(dst *image.NRGBA, overlay image.Image, alpha float64) {
	if alpha <= 0 {
		return
	}
	ob := overlay.Bounds()
	b := dst.Bounds()
	for y := 0; y < b.Dy() && y < ob.Dy(); y++ {
		for x := 0; x < b.Dx() && x < ob.Dx(); x++ {
			r, g, bl, _ := overlay.At(ob.Min.X+x, ob.Min.Y+y).RGBA()
			i := dst.PixOffset(b.Min.X+x, b.Min.Y+y)
			dst.Pix[i+0] = mix(dst.Pix[i+0], uint8(r>>8), alpha)
			dst.Pix[i+1] = mix(dst.Pix[i+1], uint8(g>>8), alpha)
			dst.Pix[i+2] = mix(dst.Pix[i+2], uint8(bl>>8), alpha)
		}
	}
}

func mix(a, b uint8, alpha float64) uint8 {
	v := (1-alpha)*float64(a) + alpha*float64(b)
	if v > 255 {
		v = 255
	}
	return uint8(v + 0.5)
}
