package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// ErrTemplateTooLarge is returned when a template exceeds the searched image.
var ErrTemplateTooLarge = errors.New("vision: template larger than image")

// grayMat copies g into a new single-channel Mat. gocv reads Pix directly,
// so sub-images must be compacted first.
func grayMat(g *image.Gray) (gocv.Mat, error) {
	b := g.Bounds()
	if b.Min != (image.Point{}) || g.Stride != b.Dx() {
		g = CropGray(g, b)
	}
	return gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8U, g.Pix)
}

func matToGray(m gocv.Mat) (*image.Gray, error) {
	data, err := m.DataPtrUint8()
	if err != nil {
		return nil, fmt.Errorf("reading mat bytes: %w", err)
	}
	out := image.NewGray(image.Rect(0, 0, m.Cols(), m.Rows()))
	copy(out.Pix, data)
	return out, nil
}

// MatchTemplate finds the location where tmpl best matches img using the
// normalized squared-difference method.
//
// Postcondition: score is in [0, 1] for non-degenerate input; lower is a
// better match. A NaN score (flat black input) is reported as 1.
func MatchTemplate(img, tmpl *image.Gray) (image.Point, float64, error) {
	ib, tb := img.Bounds(), tmpl.Bounds()
	if tb.Dx() > ib.Dx() || tb.Dy() > ib.Dy() {
		return image.Point{}, 1, ErrTemplateTooLarge
	}
	src, err := grayMat(img)
	if err != nil {
		return image.Point{}, 1, fmt.Errorf("image mat: %w", err)
	}
	defer src.Close()
	tm, err := grayMat(tmpl)
	if err != nil {
		return image.Point{}, 1, fmt.Errorf("template mat: %w", err)
	}
	defer tm.Close()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(src, tm, &result, gocv.TmSqdiffNormed, mask)
	minVal, _, minLoc, _ := gocv.MinMaxLoc(result)
	score := float64(minVal)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		score = 1
	}
	return minLoc, score, nil
}

// Threshold binarizes g: pixels brighter than thresh become 255, others 0.
// With invert the polarity is swapped, which suits OCR of light text on a
// dark banner.
func Threshold(g *image.Gray, thresh uint8, invert bool) (*image.Gray, error) {
	src, err := grayMat(g)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()

	typ := gocv.ThresholdBinary
	if invert {
		typ = gocv.ThresholdBinaryInv
	}
	gocv.Threshold(src, &dst, float32(thresh), 255, typ)
	return matToGray(dst)
}

// CountAbove returns the number of pixels in g strictly brighter than thresh.
func CountAbove(g *image.Gray, thresh uint8) (int, error) {
	bin, err := Threshold(g, thresh, false)
	if err != nil {
		return 0, err
	}
	m, err := grayMat(bin)
	if err != nil {
		return 0, err
	}
	defer m.Close()
	return gocv.CountNonZero(m), nil
}

// ColorRange is an inclusive per-channel RGB range.
type ColorRange struct {
	Lo color.RGBA
	Hi color.RGBA
}

// ColorRegions returns the bounding rectangles of connected regions of img
// whose pixels fall inside cr, ignoring regions smaller than minArea.
func ColorRegions(img *image.RGBA, cr ColorRange, minArea int) ([]image.Rectangle, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("color mat: %w", err)
	}
	defer src.Close()

	mask := gocv.NewMat()
	defer mask.Close()
	// ImageToMatRGB yields BGR channel order.
	lo := gocv.NewScalar(float64(cr.Lo.B), float64(cr.Lo.G), float64(cr.Lo.R), 0)
	hi := gocv.NewScalar(float64(cr.Hi.B), float64(cr.Hi.G), float64(cr.Hi.R), 0)
	gocv.InRangeWithScalar(src, lo, hi, &mask)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var out []image.Rectangle
	for i := 0; i < contours.Size(); i++ {
		r := gocv.BoundingRect(contours.At(i))
		if r.Dx()*r.Dy() < minArea {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Union returns the smallest rectangle containing every rectangle in rs.
func Union(rs []image.Rectangle) image.Rectangle {
	var u image.Rectangle
	for _, r := range rs {
		u = u.Union(r)
	}
	return u
}
