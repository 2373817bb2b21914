package gamestate_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/gurgalex/SiralimAccess-sub000/internal/assets"
	"github.com/gurgalex/SiralimAccess-sub000/internal/gamestate"
	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
	"github.com/gurgalex/SiralimAccess-sub000/internal/scan"
)

const saveKey = "k3y!"

var saveRunes = rapid.RuneFrom([]rune("abcdefghijklmnopqrstuvwxyzABCXYZ0123456789[]{}\":,=; \n"))

const saveText = `[General]
version="1.4"
; comment
[Castle]
decorations="[{""d"":1,""x"":64,""y"":96}]"
`

func TestDecodeSave_ReversesEncode(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.StringOfN(saveRunes, 0, 200, -1).Draw(rt, "text")
		key := rapid.StringOfN(saveRunes, 1, 12, -1).Draw(rt, "key")
		enc, err := gamestate.EncodeSave(text, key)
		require.NoError(rt, err)
		got, err := gamestate.DecodeSave(enc, key)
		require.NoError(rt, err)
		assert.Equal(rt, text, got)
	})
}

func TestDecodeSave_Errors(t *testing.T) {
	_, err := gamestate.DecodeSave([]byte("abc"), "")
	assert.ErrorIs(t, err, gamestate.ErrEmptyKey)
	_, err = gamestate.DecodeSave([]byte{0xff, 0xfe}, "k")
	assert.ErrorIs(t, err, gamestate.ErrInvalidSave)
}

func TestDecodeSave_ShiftsByKey(t *testing.T) {
	got, err := gamestate.DecodeSave([]byte("bdf"), "\x01\x02")
	require.NoError(t, err)
	assert.Equal(t, "abe", got)
}

func TestParseSave(t *testing.T) {
	s := gamestate.ParseSave("[General]\nversion=\"1.4\"\n; note\nname = Alex\n[Castle]\nlevel=3\n")
	assert.Equal(t, "1.4", s["General.version"])
	assert.Equal(t, "Alex", s["General.name"])
	assert.Equal(t, "3", s["Castle.level"])
}

func TestCastleDecorations(t *testing.T) {
	s := gamestate.Save{gamestate.CastleDecorationsKey: `[{"d":4,"x":64,"y":96},{"d":9,"x":0,"y":32}]`}
	decs, err := gamestate.CastleDecorations(s)
	require.NoError(t, err)
	assert.Equal(t, []gamestate.Decoration{{D: 4, Pos: geom.Pt(2, 3)}, {D: 9, Pos: geom.Pt(0, 1)}}, decs)

	decs, err = gamestate.CastleDecorations(gamestate.Save{})
	require.NoError(t, err)
	assert.Empty(t, decs)

	_, err = gamestate.CastleDecorations(gamestate.Save{gamestate.CastleDecorationsKey: "{"})
	assert.Error(t, err)
}

func decorationCatalog(t *testing.T) *assets.Catalog {
	t.Helper()
	c := assets.NewCatalog()
	require.NoError(t, c.AddSprite(&assets.Sprite{ID: 1, ShortName: "altar_castle", LongName: "Castle Altar", Kind: assets.KindAltar}))
	require.NoError(t, c.AddSprite(&assets.Sprite{ID: 2, ShortName: "teleportation_shrine", LongName: "Shrine", Kind: assets.KindDecoration}))
	require.NoError(t, c.AddSprite(&assets.Sprite{ID: 3, ShortName: "rug", LongName: "Rug", Kind: assets.KindDecoration}))
	c.AddDecoration(1, 1)
	c.AddDecoration(2, 2)
	c.AddDecoration(3, 3)
	return c
}

func TestSaveFile_CastleObjects(t *testing.T) {
	plain := "[Castle]\ndecorations=\"" +
		`[{"d":1,"x":320,"y":320},{"d":2,"x":64,"y":64},{"d":3,"x":0,"y":0},{"d":99,"x":0,"y":0}]` + "\"\n"
	enc, err := gamestate.EncodeSave(plain, saveKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "slot1.sav")
	require.NoError(t, os.WriteFile(path, enc, 0o600))

	src := gamestate.SaveFile{Path: path, Key: saveKey, Store: decorationCatalog(t)}
	objs, err := src.CastleObjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []geom.Point{geom.Pt(10, 10)}, objs[scan.FoundAltar])
	assert.Equal(t, []geom.Point{geom.Pt(2, 2)}, objs[scan.FoundTeleportationShrine])
	assert.Equal(t, []geom.Point{geom.Pt(0, 0)}, objs[scan.FoundDecoration])
}

func TestSaveFile_Missing(t *testing.T) {
	src := gamestate.SaveFile{Path: filepath.Join(t.TempDir(), "none.sav"), Key: saveKey, Store: decorationCatalog(t)}
	_, err := src.CastleObjects(context.Background())
	assert.Error(t, err)
}

func TestParseSave_QuotedJSON(t *testing.T) {
	s := gamestate.ParseSave(saveText)
	assert.Equal(t, "1.4", s["General.version"])
	assert.Contains(t, s[gamestate.CastleDecorationsKey], `""d""`)
}
