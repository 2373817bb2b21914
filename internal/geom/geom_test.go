package geom_test

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
)

func TestRect_Corners(t *testing.T) {
	r := geom.Rect{X: 3, Y: 4, W: 32, H: 64}
	assert.Equal(t, geom.Pt(3, 4), r.TopLeft())
	assert.Equal(t, geom.Pt(35, 68), r.BottomRight())
	assert.Equal(t, image.Rect(3, 4, 35, 68), r.Image())
	assert.False(t, r.Empty())
	assert.True(t, geom.Rect{W: 0, H: 5}.Empty())
}

func TestTileFromPixels(t *testing.T) {
	assert.Equal(t, geom.Pt(27, 33), geom.TileFromPixels(864, 1056))
	assert.Equal(t, geom.Pt(-1, 0), geom.TileFromPixels(-1, 31))
}

func TestTileCoord_Point(t *testing.T) {
	assert.Equal(t, geom.Pt(64, 96), geom.TileCoord{X: 2, Y: 3}.Point())
}

func TestTileDistance_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := geom.Pt(rapid.IntRange(-500, 500).Draw(rt, "px"), rapid.IntRange(-500, 500).Draw(rt, "py"))
		q := geom.Pt(rapid.IntRange(-500, 500).Draw(rt, "qx"), rapid.IntRange(-500, 500).Draw(rt, "qy"))
		assert.Equal(rt, p.TileDistance(q), q.TileDistance(p))
		assert.GreaterOrEqual(rt, p.TileDistance(q), 0)
		assert.Equal(rt, p, p.Add(q).Sub(q))
	})
}

func TestFromImage_RoundTrip(t *testing.T) {
	r := geom.Rect{X: -2, Y: 7, W: 10, H: 3}
	assert.Equal(t, r, geom.FromImage(r.Image()))
}
