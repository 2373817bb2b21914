// Package geom provides the integer point and rectangle types shared by the
// capture, alignment and scanning stages.
package geom

import (
	"fmt"
	"image"
)

// TileSize is the edge length in pixels of one game tile.
const TileSize = 32

// Point is an integer (x, y) pair. Depending on context it is either a tile
// offset relative to the avatar or an absolute pixel position.
type Point struct {
	X int
	Y int
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y int) Point { return Point{X: x, Y: y} }

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// TileDistance returns the tile-sum (Manhattan) distance between p and q.
func (p Point) TileDistance(q Point) int {
	return abs(p.X-q.X) + abs(p.Y-q.Y)
}

// Image converts p to an image.Point.
func (p Point) Image() image.Point { return image.Pt(p.X, p.Y) }

func (p Point) String() string { return fmt.Sprintf("(%d, %d)", p.X, p.Y) }

// Rect is an integer rectangle in window-relative pixels.
//
// Invariant: W >= 0 and H >= 0 for every Rect produced by this package.
type Rect struct {
	X int
	Y int
	W int
	H int
}

// TopLeft returns (X, Y).
func (r Rect) TopLeft() Point { return Point{X: r.X, Y: r.Y} }

// BottomRight returns (X+W, Y+H).
func (r Rect) BottomRight() Point { return Point{X: r.X + r.W, Y: r.Y + r.H} }

// Empty reports whether r has zero area.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Image converts r to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Offset returns r translated by p.
func (r Rect) Offset(p Point) Rect {
	return Rect{X: r.X + p.X, Y: r.Y + p.Y, W: r.W, H: r.H}
}

func (r Rect) String() string {
	return fmt.Sprintf("Rect(x=%d, y=%d, w=%d, h=%d)", r.X, r.Y, r.W, r.H)
}

// FromImage converts an image.Rectangle to a Rect.
func FromImage(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// TileCoord is a tile-unit coordinate.
type TileCoord struct {
	X int
	Y int
}

// Point returns the pixel position of the tile's top-left corner on the
// 32-pixel grid.
func (t TileCoord) Point() Point {
	return Point{X: t.X * TileSize, Y: t.Y * TileSize}
}

// TileFromPixels converts a pixel position to the tile containing it.
func TileFromPixels(px, py int) Point {
	return Point{X: floorDiv(px, TileSize), Y: floorDiv(py, TileSize)}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
