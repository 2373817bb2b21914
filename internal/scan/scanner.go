package scan

import (
	"image"

	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
	"github.com/gurgalex/SiralimAccess-sub000/internal/grid"
	"github.com/gurgalex/SiralimAccess-sub000/internal/spritehash"
	"github.com/gurgalex/SiralimAccess-sub000/internal/vision"
)

// Scanner identifies the objects on every tile of an aligned grid.
type Scanner struct {
	index  *spritehash.Index
	quests *QuestSprites
}

// NewScanner returns a Scanner reading index and quests.
//
// Precondition: index must be non-nil; quests may be nil.
func NewScanner(index *spritehash.Index, quests *QuestSprites) *Scanner {
	return &Scanner{index: index, quests: quests}
}

// Scan hashes each whole tile of g within gray and records hits relative to
// the avatar, which sits at the centre of the frame. The avatar's own tile
// is skipped; unknown tiles are ignored.
//
// Postcondition: within each kind, offsets are in row-major order.
func (s *Scanner) Scan(gray *image.Gray, g grid.Grid) Found {
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	avatar := grid.AvatarTile(w, h)
	found := make(Found)
	for row := 0; row < g.Rows(); row++ {
		for col := 0; col < g.Cols(); col++ {
			r := g.TileRect(col, row)
			rel := RelativeTile(geom.Pt(r.Min.X, r.Min.Y), avatar)
			if rel == (geom.Point{}) {
				continue
			}
			info, ok := s.index.Lookup(vision.CropGray(gray, r))
			if !ok {
				continue
			}
			found.Add(Classify(info, s.quests), rel)
		}
	}
	return found
}

// RelativeTile converts a tile's top-left pixel into a tile offset from the
// avatar's tile, rounding to the nearest whole tile.
func RelativeTile(tile, avatar geom.Point) geom.Point {
	half := geom.TileSize / 2
	return geom.TileFromPixels(tile.X-avatar.X+half, tile.Y-avatar.Y+half)
}

// MergeObjects appends known absolute object positions, such as castle
// decorations from the save file, as offsets from player. Objects farther
// than radius tiles on either axis, or on the player's tile, are skipped.
func MergeObjects(found Found, objects map[FoundType][]geom.Point, player geom.Point, radius int) {
	for _, kind := range AllFoundTypes {
		for _, p := range objects[kind] {
			rel := p.Sub(player)
			if rel == (geom.Point{}) || abs(rel.X) > radius || abs(rel.Y) > radius {
				continue
			}
			found.Add(kind, rel)
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
