// Package grid recovers the game's 32-pixel tile grid from a frame that
// may be scrolled by a sub-tile amount.
package grid

import (
	"image"

	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
	"github.com/gurgalex/SiralimAccess-sub000/internal/vision"
)

// RejectThreshold is the normalized squared-difference score above which a
// template match is treated as absent.
const RejectThreshold = 1.0 / 16

// Grid describes the tile-aligned area of a frame.
//
// Invariant: Rect.W and Rect.H are multiples of geom.TileSize and
// Rect.TopLeft() == TopLeft.
type Grid struct {
	// TopLeft is the first whole-tile intersection at or after the frame
	// origin.
	TopLeft geom.Point
	// BottomRight is the last whole-tile intersection within the frame.
	BottomRight geom.Point
	// Rect is the maximal tile-aligned rectangle the frame contains.
	Rect geom.Rect
}

// Cols returns the number of whole tiles per row.
func (g Grid) Cols() int { return g.Rect.W / geom.TileSize }

// Rows returns the number of whole tile rows.
func (g Grid) Rows() int { return g.Rect.H / geom.TileSize }

// TileRect returns the pixel rectangle of the tile at column col, row row.
func (g Grid) TileRect(col, row int) image.Rectangle {
	x := g.Rect.X + col*geom.TileSize
	y := g.Rect.Y + row*geom.TileSize
	return image.Rect(x, y, x+geom.TileSize, y+geom.TileSize)
}

// Align locates floor within frame.
//
// Postcondition: returns a 32x32 Rect at the best match and true, or false
// when the best score exceeds RejectThreshold or matching fails.
func Align(frame, floor *image.Gray) (geom.Rect, bool) {
	loc, score, err := vision.MatchTemplate(frame, floor)
	if err != nil {
		return geom.Rect{}, false
	}
	// NaN-safe: a failed comparison rejects.
	if !(score <= RejectThreshold) {
		return geom.Rect{}, false
	}
	b := floor.Bounds()
	return geom.Rect{X: loc.X, Y: loc.Y, W: b.Dx(), H: b.Dy()}, true
}

// FromMatch derives the frame grid from a matched tile position in a frame
// of the given size.
func FromMatch(match geom.Rect, width, height int) Grid {
	return fromOrigin(mod(match.X, geom.TileSize), mod(match.Y, geom.TileSize), width, height)
}

// Centered returns the grid that places a whole tile at the frame centre,
// where the avatar is drawn. It is the fallback when nothing aligns.
func Centered(width, height int) Grid {
	avatar := AvatarTile(width, height)
	return fromOrigin(mod(avatar.X, geom.TileSize), mod(avatar.Y, geom.TileSize), width, height)
}

// AvatarTile returns the top-left pixel of the avatar's tile in a frame of
// the given size. The game keeps the avatar centred.
func AvatarTile(width, height int) geom.Point {
	return geom.Pt(width/2-geom.TileSize/2, height/2-geom.TileSize/2)
}

func fromOrigin(ox, oy, width, height int) Grid {
	cols := (width - ox) / geom.TileSize
	rows := (height - oy) / geom.TileSize
	if cols < 0 {
		cols = 0
	}
	if rows < 0 {
		rows = 0
	}
	br := geom.Pt(ox+cols*geom.TileSize, oy+rows*geom.TileSize)
	return Grid{
		TopLeft:     geom.Pt(ox, oy),
		BottomRight: br,
		Rect:        geom.Rect{X: ox, Y: oy, W: br.X - ox, H: br.Y - oy},
	}
}

func mod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}
