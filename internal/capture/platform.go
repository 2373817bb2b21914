// Package capture finds the game window and grabs frames of it on fixed
// cadences.
package capture

import (
	"errors"
	"image"

	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
)

var (
	// ErrGameNotOpen is returned when no window matches the game's class
	// and title.
	ErrGameNotOpen = errors.New("game window not open")
	// ErrGameFullscreen is returned when the game window covers the whole
	// display.
	ErrGameFullscreen = errors.New("game window is fullscreen")
)

// WindowInfo describes the located game window in screen coordinates.
type WindowInfo struct {
	// Client is the drawable area without title bar or borders.
	Client geom.Rect
	// Outer includes the window decorations.
	Outer geom.Rect
	// Display is the full screen the window lives on.
	Display geom.Rect
}

// Fullscreen reports whether the outer rectangle equals the display.
func (w WindowInfo) Fullscreen() bool {
	return !w.Display.Empty() && w.Outer == w.Display
}

// Platform abstracts the OS window lookup and screen capture primitives.
type Platform interface {
	// FindWindow locates the game window. Returns ErrGameNotOpen when absent.
	FindWindow(class, title string) (WindowInfo, error)
	// Grab captures r in screen coordinates. A minimized or unmapped
	// window yields a zero-area image and a nil error.
	Grab(r geom.Rect) (*image.RGBA, error)
}

// NearbyRegion returns the screen rectangle covering (2·radius+1)² whole
// tiles centred on the avatar tile, which the game draws at the middle of
// the client area.
//
// Precondition: radius >= 0.
func NearbyRegion(window geom.Rect, radius int) geom.Rect {
	if window.Empty() {
		return geom.Rect{X: window.X, Y: window.Y}
	}
	side := (2*radius + 1) * geom.TileSize
	avatarX := window.X + window.W/2 - geom.TileSize/2
	avatarY := window.Y + window.H/2 - geom.TileSize/2
	return geom.Rect{
		X: avatarX - radius*geom.TileSize,
		Y: avatarY - radius*geom.TileSize,
		W: side,
		H: side,
	}
}
