package assets

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a store lookup yields no record.
var ErrNotFound = errors.New("assets: not found")

// Store is the read-only query surface of the sprite, floor and quest
// database. Implementations must be safe for concurrent use.
type Store interface {
	// Realms returns every realm record.
	Realms(ctx context.Context) ([]RealmInfo, error)
	// FloorSpritesByRealm returns the floor frames of the realm in id order.
	FloorSpritesByRealm(ctx context.Context, id RealmID) ([]*Frame, error)
	// FloorSpritesGenericCastle returns the floor frames shared by the castle.
	FloorSpritesGenericCastle(ctx context.Context) ([]*Frame, error)
	// HashesForFloorSet returns precomputed hashes for composites over the
	// given floor frames. An empty result means none were precomputed.
	HashesForFloorSet(ctx context.Context, floorFrameIDs []int64) ([]HashEntry, error)
	// QuestByTitleFirstLine resolves a quest by the first line of its title.
	// Returns ErrNotFound when no quest matches.
	QuestByTitleFirstLine(ctx context.Context, s string) (*Quest, error)
	NPCsAll(ctx context.Context) ([]*Sprite, error)
	ResourceNodesAll(ctx context.Context) ([]*Sprite, error)
	ChestsWithRealm(ctx context.Context) ([]*Sprite, error)
	// OverlaySpriteByRealm returns the realm overlay frame or ErrNotFound.
	OverlaySpriteByRealm(ctx context.Context, id RealmID) (*Frame, error)
	// SpritesForRealm returns the realm's own sprites plus every generic
	// (realm-less) sprite. A nil id selects generic sprites only.
	SpritesForRealm(ctx context.Context, id *RealmID) ([]*Sprite, error)
	// SpriteByID returns ErrNotFound for unknown ids.
	SpriteByID(ctx context.Context, id int64) (*Sprite, error)
	// CastleDecorationSprites maps save-file decoration ids to sprite ids.
	CastleDecorationSprites(ctx context.Context) (map[int]int64, error)
}

// Snapshot is the full content of a Store, as written by the import tool.
type Snapshot struct {
	Realms  []RealmInfo
	Sprites []*Sprite
	Quests  []*Quest
	// Decorations maps save-file decoration ids to sprite ids.
	Decorations map[int]int64
	// Hashes holds precomputed composite hashes keyed by floor frame id,
	// in insertion order.
	Hashes map[int64][]HashEntry
}
