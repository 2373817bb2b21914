// Package testutil provides synthetic tiles, recording fakes and a
// PostgreSQL test container shared by package tests.
package testutil

import (
	"image"
	"image/color"
	"math/rand"

	"github.com/gurgalex/SiralimAccess-sub000/internal/assets"
	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
)

// NoiseTile returns an opaque 32x32 tile of seeded random texture. Distinct
// seeds give tiles whose perceptual hashes differ.
func NoiseTile(seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, geom.TileSize, geom.TileSize))
	// 4x4 blocks keep the texture in the low frequencies pHash looks at.
	for by := 0; by < geom.TileSize; by += 4 {
		for bx := 0; bx < geom.TileSize; bx += 4 {
			c := color.NRGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			}
			for y := by; y < by+4; y++ {
				for x := bx; x < bx+4; x++ {
					img.SetNRGBA(x, y, c)
				}
			}
		}
	}
	return img
}

// SpriteTile returns a 32x32 tile with a transparent border and a seeded
// opaque core, standing in for a placed object.
func SpriteTile(seed int64) *image.NRGBA {
	core := NoiseTile(seed)
	img := image.NewNRGBA(image.Rect(0, 0, geom.TileSize, geom.TileSize))
	for y := 6; y < geom.TileSize-6; y++ {
		for x := 6; x < geom.TileSize-6; x++ {
			img.SetNRGBA(x, y, core.NRGBAAt(x, y))
		}
	}
	return img
}

// BlackTile returns an opaque black 32x32 tile.
func BlackTile() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, geom.TileSize, geom.TileSize))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

// Sprite builds a single-frame sprite record around img.
func Sprite(id int64, name string, kind assets.SpriteKind, img image.Image) *assets.Sprite {
	return &assets.Sprite{
		ID:        id,
		ShortName: name,
		LongName:  name + " (long)",
		Kind:      kind,
		Frames:    []*assets.Frame{assets.NewFrameFromImage(id*100, id, img)},
	}
}

// TileGrid paints a tiles-wide by tiles-high frame where every tile is fill,
// then applies each placement, keyed by tile column and row, composited
// over fill. Offset shifts the whole grid by a sub-tile amount to mimic
// smooth scrolling; uncovered edges keep the fill pattern.
func TileGrid(tiles int, fill image.Image, offset image.Point, placements map[image.Point]image.Image) *image.RGBA {
	size := tiles * geom.TileSize
	out := image.NewRGBA(image.Rect(0, 0, size, size))
	for ty := -1; ty <= tiles; ty++ {
		for tx := -1; tx <= tiles; tx++ {
			origin := image.Pt(tx*geom.TileSize+offset.X, ty*geom.TileSize+offset.Y)
			drawTile(out, origin, fill, true)
			if p, ok := placements[image.Pt(tx, ty)]; ok {
				drawTile(out, origin, p, false)
			}
		}
	}
	return out
}

func drawTile(dst *image.RGBA, origin image.Point, src image.Image, opaque bool) {
	b := src.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			px, py := origin.X+x, origin.Y+y
			if !(image.Pt(px, py).In(dst.Bounds())) {
				continue
			}
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			if !opaque && c.A == 0 {
				continue
			}
			if !opaque && c.A < 255 {
				under := dst.RGBAAt(px, py)
				a := float64(c.A) / 255
				c = color.NRGBA{
					R: uint8(float64(c.R)*a + float64(under.R)*(1-a)),
					G: uint8(float64(c.G)*a + float64(under.G)*(1-a)),
					B: uint8(float64(c.B)*a + float64(under.B)*(1-a)),
					A: 255,
				}
			}
			dst.SetRGBA(px, py, color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
		}
	}
}
