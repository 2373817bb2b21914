package assets_test

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurgalex/SiralimAccess-sub000/internal/assets"
)

const catalogYAML = `
realms:
  - id: 6
    key: blood_grove
    overlay_alpha: 0.25
    log_objects: [obj_bloodgrove_tree]
sprites:
  - id: 1
    short_name: castle_floor
    long_name: Castle Floor
    kind: floor
    frames: [castle_floor.png]
  - id: 2
    short_name: bg_floor
    long_name: Blood Grove Floor
    kind: floor
    realm_id: 6
    frames: [bg_floor.png]
  - id: 3
    short_name: web_sac
    long_name: Web Sac
    kind: decoration
    frames: [web_sac.png]
  - id: 4
    short_name: bg_chest
    long_name: Blood Grove Chest
    kind: chest
    realm_id: 6
  - id: 5
    short_name: bg_water
    long_name: Blood Grove Water
    kind: overlay
    realm_id: 6
    frames: [bg_floor.png]
quests:
  - id: 10
    title: "Strange Spiders\nDestroy the web sacs."
    quest_type: item
    sprites: [3]
castle_decorations:
  - d: 44
    sprite_id: 3
`

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func loadTestCatalog(t *testing.T) *assets.Catalog {
	t.Helper()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "castle_floor.png"), color.NRGBA{R: 90, G: 90, B: 90, A: 255})
	writePNG(t, filepath.Join(dir, "bg_floor.png"), color.NRGBA{R: 120, G: 20, B: 20, A: 255})
	writePNG(t, filepath.Join(dir, "web_sac.png"), color.NRGBA{R: 240, G: 240, B: 240, A: 255})
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0644))
	c, err := assets.LoadCatalogFromFile(path)
	require.NoError(t, err)
	return c
}

func TestCatalog_FloorQueries(t *testing.T) {
	c := loadTestCatalog(t)
	ctx := context.Background()

	castle, err := c.FloorSpritesGenericCastle(ctx)
	require.NoError(t, err)
	require.Len(t, castle, 1)

	bg, err := c.FloorSpritesByRealm(ctx, 6)
	require.NoError(t, err)
	require.Len(t, bg, 1)
	gray, err := bg[0].Gray()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 32), gray.Bounds())
}

func TestCatalog_QuestByTitleFirstLine(t *testing.T) {
	c := loadTestCatalog(t)
	q, err := c.QuestByTitleFirstLine(context.Background(), "Strange Spiders")
	require.NoError(t, err)
	assert.Equal(t, int64(10), q.ID)
	assert.Equal(t, "Strange Spiders", q.TitleFirstLine())
	assert.True(t, q.Supported)

	_, err = c.QuestByTitleFirstLine(context.Background(), "Nope")
	assert.ErrorIs(t, err, assets.ErrNotFound)
}

func TestCatalog_KindQueries(t *testing.T) {
	c := loadTestCatalog(t)
	ctx := context.Background()

	chests, err := c.ChestsWithRealm(ctx)
	require.NoError(t, err)
	require.Len(t, chests, 1)
	assert.Equal(t, "bg_chest", chests[0].ShortName)

	overlay, err := c.OverlaySpriteByRealm(ctx, 6)
	require.NoError(t, err)
	assert.NotNil(t, overlay)

	realmID := assets.RealmID(6)
	sprites, err := c.SpritesForRealm(ctx, &realmID)
	require.NoError(t, err)
	assert.Len(t, sprites, 4, "overlay sprites are excluded")

	decos, err := c.CastleDecorationSprites(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), decos[44])
}

func TestCatalog_RejectsDuplicateLongName(t *testing.T) {
	c := assets.NewCatalog()
	require.NoError(t, c.AddSprite(&assets.Sprite{ID: 1, ShortName: "a", LongName: "Same"}))
	assert.Error(t, c.AddSprite(&assets.Sprite{ID: 2, ShortName: "b", LongName: "Same"}))
}

func TestParseSpriteKind(t *testing.T) {
	for k := assets.KindFloor; k <= assets.KindWardrobe; k++ {
		got, err := assets.ParseSpriteKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := assets.ParseSpriteKind("dragon")
	assert.Error(t, err)
}

func TestRealmByKey(t *testing.T) {
	r, err := assets.RealmByKey("blood_grove")
	require.NoError(t, err)
	assert.Equal(t, assets.BloodGrove, r)
	assert.Equal(t, "Blood Grove", r.String())
	_, err = assets.RealmByKey("atlantis")
	assert.Error(t, err)
}
