package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gurgalex/SiralimAccess-sub000/internal/assets"
)

// AssetRepository is the PostgreSQL assets.Store. Decoded frames are
// cached by id so repeated queries share pixels.
type AssetRepository struct {
	db *pgxpool.Pool

	mu     sync.Mutex
	frames map[int64]*assets.Frame
}

// NewAssetRepository creates an AssetRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewAssetRepository(db *pgxpool.Pool) *AssetRepository {
	return &AssetRepository{db: db, frames: make(map[int64]*assets.Frame)}
}

var _ assets.Store = (*AssetRepository)(nil)

// Realms implements assets.Store.
func (r *AssetRepository) Realms(ctx context.Context) ([]assets.RealmInfo, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, key, overlay_alpha, log_objects FROM realms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying realms: %w", err)
	}
	defer rows.Close()

	var out []assets.RealmInfo
	for rows.Next() {
		var (
			id    int
			key   string
			alpha float64
			objs  []string
		)
		if err := rows.Scan(&id, &key, &alpha, &objs); err != nil {
			return nil, fmt.Errorf("scanning realm: %w", err)
		}
		realm, err := assets.RealmByKey(key)
		if err != nil {
			return nil, err
		}
		out = append(out, assets.RealmInfo{ID: assets.RealmID(id), Realm: realm, OverlayAlpha: alpha, LogObjects: objs})
	}
	return out, rows.Err()
}

// querySprites loads the sprites matching where, with their frames, in id
// order.
func (r *AssetRepository) querySprites(ctx context.Context, where string, args ...any) ([]*assets.Sprite, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.id, s.short_name, s.long_name, s.kind, s.realm_id, f.id, f.frame_index, f.png
		 FROM sprites s LEFT JOIN sprite_frames f ON f.sprite_id = s.id
		 WHERE `+where+`
		 ORDER BY s.id, f.frame_index`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sprites: %w", err)
	}
	defer rows.Close()

	var out []*assets.Sprite
	for rows.Next() {
		var (
			id                 int64
			short, long, kindS string
			realmID            *int
			frameID            *int64
			frameIndex         *int
			data               []byte
		)
		if err := rows.Scan(&id, &short, &long, &kindS, &realmID, &frameID, &frameIndex, &data); err != nil {
			return nil, fmt.Errorf("scanning sprite: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			kind, err := assets.ParseSpriteKind(kindS)
			if err != nil {
				return nil, fmt.Errorf("sprite %d: %w", id, err)
			}
			s := &assets.Sprite{ID: id, ShortName: short, LongName: long, Kind: kind}
			if realmID != nil {
				rid := assets.RealmID(*realmID)
				s.RealmID = &rid
			}
			out = append(out, s)
		}
		if frameID != nil {
			s := out[len(out)-1]
			s.Frames = append(s.Frames, r.frame(*frameID, id, *frameIndex, data))
		}
	}
	return out, rows.Err()
}

func (r *AssetRepository) frame(id, spriteID int64, index int, data []byte) *assets.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.frames[id]; ok {
		return f
	}
	f := assets.NewFrameFromPNG(id, spriteID, index, data)
	r.frames[id] = f
	return f
}

func flatten(sprites []*assets.Sprite) []*assets.Frame {
	var out []*assets.Frame
	for _, s := range sprites {
		out = append(out, s.Frames...)
	}
	return out
}

// FloorSpritesByRealm implements assets.Store.
func (r *AssetRepository) FloorSpritesByRealm(ctx context.Context, id assets.RealmID) ([]*assets.Frame, error) {
	sprites, err := r.querySprites(ctx, `s.kind = $1 AND s.realm_id = $2`, assets.KindFloor.String(), int(id))
	if err != nil {
		return nil, err
	}
	return flatten(sprites), nil
}

// FloorSpritesGenericCastle implements assets.Store.
func (r *AssetRepository) FloorSpritesGenericCastle(ctx context.Context) ([]*assets.Frame, error) {
	sprites, err := r.querySprites(ctx, `s.kind = $1 AND s.realm_id IS NULL`, assets.KindFloor.String())
	if err != nil {
		return nil, err
	}
	return flatten(sprites), nil
}

// HashesForFloorSet implements assets.Store.
func (r *AssetRepository) HashesForFloorSet(ctx context.Context, floorFrameIDs []int64) ([]assets.HashEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT hash, short_name, long_name, kind FROM sprite_hashes
		 WHERE floor_frame_id = ANY($1)
		 ORDER BY floor_frame_id, seq`,
		floorFrameIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sprite hashes: %w", err)
	}
	defer rows.Close()

	var out []assets.HashEntry
	for rows.Next() {
		var (
			hash        int64
			short, long string
			kindS       string
		)
		if err := rows.Scan(&hash, &short, &long, &kindS); err != nil {
			return nil, fmt.Errorf("scanning sprite hash: %w", err)
		}
		kind, err := assets.ParseSpriteKind(kindS)
		if err != nil {
			return nil, err
		}
		out = append(out, assets.HashEntry{Hash: uint64(hash), ShortName: short, LongName: long, Kind: kind})
	}
	return out, rows.Err()
}

// QuestByTitleFirstLine implements assets.Store.
func (r *AssetRepository) QuestByTitleFirstLine(ctx context.Context, s string) (*assets.Quest, error) {
	var (
		q       assets.Quest
		qtype   string
		realmID *int
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, title, quest_type, realm_id, sprite_ids, description, supported
		 FROM quests WHERE title_first_line = $1`,
		strings.TrimSpace(s),
	).Scan(&q.ID, &q.Title, &qtype, &realmID, &q.SpriteIDs, &q.Description, &q.Supported)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, assets.ErrNotFound
		}
		return nil, fmt.Errorf("querying quest: %w", err)
	}
	q.QuestType = assets.QuestType(qtype)
	if realmID != nil {
		rid := assets.RealmID(*realmID)
		q.RealmID = &rid
	}
	return &q, nil
}

// NPCsAll implements assets.Store.
func (r *AssetRepository) NPCsAll(ctx context.Context) ([]*assets.Sprite, error) {
	return r.querySprites(ctx, `s.kind = $1`, assets.KindNPC.String())
}

// ResourceNodesAll implements assets.Store.
func (r *AssetRepository) ResourceNodesAll(ctx context.Context) ([]*assets.Sprite, error) {
	return r.querySprites(ctx, `s.kind = $1`, assets.KindResourceNode.String())
}

// ChestsWithRealm implements assets.Store.
func (r *AssetRepository) ChestsWithRealm(ctx context.Context) ([]*assets.Sprite, error) {
	return r.querySprites(ctx, `s.kind = $1 AND s.realm_id IS NOT NULL`, assets.KindChest.String())
}

// OverlaySpriteByRealm implements assets.Store.
func (r *AssetRepository) OverlaySpriteByRealm(ctx context.Context, id assets.RealmID) (*assets.Frame, error) {
	sprites, err := r.querySprites(ctx, `s.kind = $1 AND s.realm_id = $2`, assets.KindOverlay.String(), int(id))
	if err != nil {
		return nil, err
	}
	if frames := flatten(sprites); len(frames) > 0 {
		return frames[0], nil
	}
	return nil, assets.ErrNotFound
}

// SpritesForRealm implements assets.Store.
func (r *AssetRepository) SpritesForRealm(ctx context.Context, id *assets.RealmID) ([]*assets.Sprite, error) {
	if id == nil {
		return r.querySprites(ctx, `s.kind <> $1 AND s.realm_id IS NULL`, assets.KindOverlay.String())
	}
	return r.querySprites(ctx, `s.kind <> $1 AND (s.realm_id IS NULL OR s.realm_id = $2)`,
		assets.KindOverlay.String(), int(*id))
}

// SpriteByID implements assets.Store.
func (r *AssetRepository) SpriteByID(ctx context.Context, id int64) (*assets.Sprite, error) {
	sprites, err := r.querySprites(ctx, `s.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(sprites) == 0 {
		return nil, assets.ErrNotFound
	}
	return sprites[0], nil
}

// CastleDecorationSprites implements assets.Store.
func (r *AssetRepository) CastleDecorationSprites(ctx context.Context) (map[int]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT d, sprite_id FROM castle_decorations`)
	if err != nil {
		return nil, fmt.Errorf("querying castle decorations: %w", err)
	}
	defer rows.Close()

	out := make(map[int]int64)
	for rows.Next() {
		var (
			d        int
			spriteID int64
		)
		if err := rows.Scan(&d, &spriteID); err != nil {
			return nil, fmt.Errorf("scanning castle decoration: %w", err)
		}
		out[d] = spriteID
	}
	return out, rows.Err()
}

// Import replaces the whole asset database with snap in one transaction.
//
// Postcondition: on success the repository serves exactly snap; on error
// the previous content is kept.
func (r *AssetRepository) Import(ctx context.Context, snap *assets.Snapshot) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`TRUNCATE sprite_hashes, castle_decorations, quests, sprite_frames, sprites, realms`); err != nil {
			return fmt.Errorf("clearing assets: %w", err)
		}

		batch := &pgx.Batch{}
		for _, realm := range snap.Realms {
			objs := realm.LogObjects
			if objs == nil {
				objs = []string{}
			}
			batch.Queue(`INSERT INTO realms (id, key, overlay_alpha, log_objects) VALUES ($1, $2, $3, $4)`,
				int(realm.ID), realm.Realm.Key(), realm.OverlayAlpha, objs)
		}
		for _, s := range snap.Sprites {
			batch.Queue(`INSERT INTO sprites (id, short_name, long_name, kind, realm_id) VALUES ($1, $2, $3, $4, $5)`,
				s.ID, s.ShortName, s.LongName, s.Kind.String(), realmParam(s.RealmID))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting realms and sprites: %w", err)
		}

		var frameRows [][]any
		for _, s := range snap.Sprites {
			for _, f := range s.Frames {
				data, err := f.PNG()
				if err != nil {
					return fmt.Errorf("sprite %q frame %d: %w", s.ShortName, f.Index, err)
				}
				frameRows = append(frameRows, []any{f.ID, s.ID, f.Index, data})
			}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"sprite_frames"},
			[]string{"id", "sprite_id", "frame_index", "png"}, pgx.CopyFromRows(frameRows)); err != nil {
			return fmt.Errorf("copying sprite frames: %w", err)
		}

		batch = &pgx.Batch{}
		for _, q := range snap.Quests {
			ids := q.SpriteIDs
			if ids == nil {
				ids = []int64{}
			}
			batch.Queue(`INSERT INTO quests (id, title, quest_type, realm_id, sprite_ids, description, supported)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				q.ID, q.Title, string(q.QuestType), realmParam(q.RealmID), ids, q.Description, q.Supported)
		}
		for d, spriteID := range snap.Decorations {
			batch.Queue(`INSERT INTO castle_decorations (d, sprite_id) VALUES ($1, $2)`, d, spriteID)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting quests and decorations: %w", err)
		}

		floorIDs := make([]int64, 0, len(snap.Hashes))
		for id := range snap.Hashes {
			floorIDs = append(floorIDs, id)
		}
		sort.Slice(floorIDs, func(i, j int) bool { return floorIDs[i] < floorIDs[j] })
		var hashRows [][]any
		for _, id := range floorIDs {
			for seq, e := range snap.Hashes[id] {
				hashRows = append(hashRows, []any{id, seq, int64(e.Hash), e.ShortName, e.LongName, e.Kind.String()})
			}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"sprite_hashes"},
			[]string{"floor_frame_id", "seq", "hash", "short_name", "long_name", "kind"},
			pgx.CopyFromRows(hashRows)); err != nil {
			return fmt.Errorf("copying sprite hashes: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.frames = make(map[int64]*assets.Frame)
	r.mu.Unlock()
	return nil
}

func realmParam(id *assets.RealmID) *int {
	if id == nil {
		return nil
	}
	v := int(*id)
	return &v
}
