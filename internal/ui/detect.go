// Package ui classifies the whole-window frame into a game screen and
// narrates it through a per-screen speaker.
package ui

import (
	"fmt"
	"image"
	"image/color"

	"github.com/gurgalex/SiralimAccess-sub000/internal/vision"
)

// DialogHealthBarRatio rejects a bright bottom-band box that starts right
// of this fraction of the frame width. The battle health bars share the
// dialog's colour but sit on the right.
var DialogHealthBarRatio = 0.40

const (
	// dialogBand is the fraction of the frame height, from the bottom,
	// searched for a dialog box.
	dialogBand     = 0.30
	dialogMinArea  = 40
	highlightArea  = 30
	stripMinBlocks = 2
)

var (
	dialogWhite = vision.ColorRange{
		Lo: color.RGBA{R: 230, G: 230, B: 230, A: 255},
		Hi: color.RGBA{R: 255, G: 255, B: 255, A: 255},
	}
	menuGreen = vision.ColorRange{
		Lo: color.RGBA{R: 0, G: 170, B: 0, A: 255},
		Hi: color.RGBA{R: 120, G: 255, B: 120, A: 255},
	}
	indicatorYellow = vision.ColorRange{
		Lo: color.RGBA{R: 200, G: 170, B: 0, A: 255},
		Hi: color.RGBA{R: 255, G: 255, B: 90, A: 255},
	}
)

// Detections is what the layout detectors found in one frame. Rectangles
// are in frame coordinates.
type Detections struct {
	Dialog        image.Rectangle
	HasDialog     bool
	Highlight     image.Rectangle
	HasHighlight  bool
	CreatureStrip image.Rectangle
	HasStrip      bool
}

// Any reports whether some UI element was detected.
func (d Detections) Any() bool {
	return d.HasDialog || d.HasHighlight || d.HasStrip
}

// Detect runs every detector in priority order.
func Detect(img *image.RGBA) (Detections, error) {
	var d Detections
	var err error
	if d.Dialog, d.HasDialog, err = DetectDialog(img); err != nil {
		return d, err
	}
	if d.Highlight, d.HasHighlight, err = DetectHighlight(img); err != nil {
		return d, err
	}
	if d.CreatureStrip, d.HasStrip, err = DetectCreatureStrip(img); err != nil {
		return d, err
	}
	return d, nil
}

// DetectDialog finds bright white text in the bottom band of the frame.
func DetectDialog(img *image.RGBA) (image.Rectangle, bool, error) {
	b := img.Bounds()
	top := b.Max.Y - int(float64(b.Dy())*dialogBand)
	band := image.Rect(b.Min.X, top, b.Max.X, b.Max.Y)
	rs, err := regionsIn(img, band, dialogWhite, dialogMinArea)
	if err != nil {
		return image.Rectangle{}, false, fmt.Errorf("detecting dialog: %w", err)
	}
	if len(rs) == 0 {
		return image.Rectangle{}, false, nil
	}
	box := vision.Union(rs)
	if float64(box.Min.X-b.Min.X) > DialogHealthBarRatio*float64(b.Dx()) {
		return image.Rectangle{}, false, nil
	}
	return box, true, nil
}

// DetectHighlight finds the largest green menu-highlight region anywhere
// in the frame.
func DetectHighlight(img *image.RGBA) (image.Rectangle, bool, error) {
	rs, err := regionsIn(img, img.Bounds(), menuGreen, highlightArea)
	if err != nil {
		return image.Rectangle{}, false, fmt.Errorf("detecting highlight: %w", err)
	}
	var best image.Rectangle
	for _, r := range rs {
		if r.Dx()*r.Dy() > best.Dx()*best.Dy() {
			best = r
		}
	}
	if best.Empty() {
		return image.Rectangle{}, false, nil
	}
	// Menu entries are a single line; widen to catch the unhighlighted
	// remainder of the row.
	row := image.Rect(best.Min.X-4, best.Min.Y-2, best.Max.X+4, best.Max.Y+2).Intersect(img.Bounds())
	return row, true, nil
}

// DetectCreatureStrip finds the yellow selection indicators down the left
// quarter of the frame shown while choosing or reordering creatures.
func DetectCreatureStrip(img *image.RGBA) (image.Rectangle, bool, error) {
	b := img.Bounds()
	left := image.Rect(b.Min.X, b.Min.Y, b.Min.X+b.Dx()/4, b.Max.Y)
	rs, err := regionsIn(img, left, indicatorYellow, highlightArea)
	if err != nil {
		return image.Rectangle{}, false, fmt.Errorf("detecting creature strip: %w", err)
	}
	if len(rs) < stripMinBlocks {
		return image.Rectangle{}, false, nil
	}
	return vision.Union(rs), true, nil
}

// regionsIn runs ColorRegions over r and maps results back to frame
// coordinates.
func regionsIn(img *image.RGBA, r image.Rectangle, cr vision.ColorRange, minArea int) ([]image.Rectangle, error) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil, nil
	}
	rs, err := vision.ColorRegions(vision.CropRGBA(img, r), cr, minArea)
	if err != nil {
		return nil, err
	}
	for i := range rs {
		rs[i] = rs[i].Add(r.Min)
	}
	return rs, nil
}
