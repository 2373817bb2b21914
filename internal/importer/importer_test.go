package importer_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/gurgalex/SiralimAccess-sub000/internal/assets"
	"github.com/gurgalex/SiralimAccess-sub000/internal/importer"
	"github.com/gurgalex/SiralimAccess-sub000/internal/realm"
	"github.com/gurgalex/SiralimAccess-sub000/internal/spritehash"
	"github.com/gurgalex/SiralimAccess-sub000/internal/testutil"
)

type recordingSink struct {
	snap *assets.Snapshot
	err  error
}

func (s *recordingSink) Import(_ context.Context, snap *assets.Snapshot) error {
	s.snap = snap
	return s.err
}

const groveID assets.RealmID = 6

func sampleCatalog(t *testing.T) *assets.Catalog {
	t.Helper()
	c := assets.NewCatalog()
	require.NoError(t, c.AddRealm(assets.RealmInfo{ID: groveID, Realm: assets.BloodGrove}))
	grove := groveID

	add := func(s *assets.Sprite, realm *assets.RealmID) {
		s.RealmID = realm
		require.NoError(t, c.AddSprite(s))
	}
	add(testutil.Sprite(1, "castle_floor", assets.KindFloor, testutil.NoiseTile(1)), nil)
	add(testutil.Sprite(2, "castle_floor_b", assets.KindFloor, testutil.NoiseTile(2)), nil)
	add(testutil.Sprite(3, "grove_floor", assets.KindFloor, testutil.NoiseTile(3)), &grove)
	add(testutil.Sprite(4, "altar", assets.KindAltar, testutil.SpriteTile(4)), nil)
	add(testutil.Sprite(5, "grove_chest", assets.KindChest, testutil.SpriteTile(5)), &grove)
	require.NoError(t, c.AddQuest(&assets.Quest{ID: 9, Title: "Lost Chest", QuestType: assets.QuestCursedChest, Supported: true}))
	c.AddDecoration(44, 4)
	return c
}

func TestImporter_Run_WritesSnapshot(t *testing.T) {
	cat := sampleCatalog(t)
	sink := &recordingSink{}
	var out bytes.Buffer

	require.NoError(t, importer.New(sink, &out).Run(context.Background(), cat))
	require.NotNil(t, sink.snap)

	assert.Len(t, sink.snap.Realms, 1)
	assert.Len(t, sink.snap.Sprites, 5)
	assert.Len(t, sink.snap.Quests, 1)
	assert.Equal(t, map[int]int64{44: 4}, sink.snap.Decorations)

	// One hash list per floor frame: two castle floors and one grove floor.
	require.Len(t, sink.snap.Hashes, 3)
	assert.Contains(t, out.String(), "total")
	assert.Contains(t, out.String(), assets.BloodGrove.String())
}

func TestImporter_Run_CastleFloorsHashOnlyGenericSprites(t *testing.T) {
	cat := sampleCatalog(t)
	sink := &recordingSink{}
	require.NoError(t, importer.New(sink, &bytes.Buffer{}).Run(context.Background(), cat))

	for _, floorID := range []int64{100, 200} {
		for _, e := range sink.snap.Hashes[floorID] {
			assert.NotEqual(t, "grove_chest", e.ShortName)
		}
	}
	var grove []string
	for _, e := range sink.snap.Hashes[300] {
		grove = append(grove, e.ShortName)
	}
	assert.Contains(t, grove, "grove_chest")
	assert.Contains(t, grove, "altar")
}

func TestImporter_Run_SinkErrorIsReturned(t *testing.T) {
	boom := errors.New("disk full")
	err := importer.New(&recordingSink{err: boom}, &bytes.Buffer{}).Run(context.Background(), sampleCatalog(t))
	assert.ErrorIs(t, err, boom)
}

func TestImporter_Snapshot_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := importer.New(&recordingSink{}, &bytes.Buffer{}).Snapshot(ctx, sampleCatalog(t))
	assert.ErrorIs(t, err, context.Canceled)
}

// Property: the precomputed hashes for a floor set index exactly the keys
// that compositing the realm's sprites at runtime would.
func TestImporter_PrecomputedMatchesRuntime(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		floors := rapid.IntRange(1, 3).Draw(rt, "floors")
		sprites := rapid.IntRange(0, 4).Draw(rt, "sprites")

		c := assets.NewCatalog()
		id := int64(1)
		for i := 0; i < floors; i++ {
			s := testutil.Sprite(id, fmt.Sprintf("floor%d", i), assets.KindFloor, testutil.NoiseTile(id*7))
			if err := c.AddSprite(s); err != nil {
				rt.Fatal(err)
			}
			id++
		}
		for i := 0; i < sprites; i++ {
			seed := rapid.Int64Range(1, 1000).Draw(rt, "seed")
			s := testutil.Sprite(id, fmt.Sprintf("obj%d", i), assets.KindDecoration, testutil.SpriteTile(seed))
			if err := c.AddSprite(s); err != nil {
				rt.Fatal(err)
			}
			id++
		}

		snap, err := importer.New(&recordingSink{}, &bytes.Buffer{}).Snapshot(context.Background(), c)
		if err != nil {
			rt.Fatal(err)
		}
		fs, err := realm.FloorSetFor(context.Background(), c, nil)
		if err != nil {
			rt.Fatal(err)
		}
		var entries []assets.HashEntry
		for _, floorID := range fs.FrameIDs() {
			entries = append(entries, snap.Hashes[floorID]...)
		}

		precomputed := spritehash.NewIndex()
		if err := precomputed.Load(fs, entries); err != nil {
			rt.Fatal(err)
		}
		generic, err := c.SpritesForRealm(context.Background(), nil)
		if err != nil {
			rt.Fatal(err)
		}
		live := spritehash.NewIndex()
		if err := live.Rebuild(fs, generic); err != nil {
			rt.Fatal(err)
		}
		if !assert.ObjectsAreEqual(live.Keys(), precomputed.Keys()) {
			rt.Fatalf("precomputed keys differ from runtime keys")
		}
	})
}
