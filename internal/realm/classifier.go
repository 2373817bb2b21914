// Package realm decides which realm (or the castle) the near-player frame
// shows by aligning known floor tiles, and keeps the sprite hash index in
// step with the active floor set.
package realm

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gurgalex/SiralimAccess-sub000/internal/assets"
	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
	"github.com/gurgalex/SiralimAccess-sub000/internal/grid"
	"github.com/gurgalex/SiralimAccess-sub000/internal/spritehash"
)

// Result is the outcome of one classification.
type Result struct {
	Realm   assets.Realm
	RealmID *assets.RealmID
	Grid    grid.Grid
	// Changed is true when Realm differs from the previously active realm.
	Changed bool
}

type candidate struct {
	info   *assets.RealmInfo // nil for the castle
	frames []*assets.Frame
}

// Classifier tracks the active realm and its floor set.
//
// Classify is not safe for concurrent use; it is driven by the single
// near-player stage.
type Classifier struct {
	store  assets.Store
	logger *zap.Logger

	mu         sync.RWMutex
	current    assets.Realm
	currentID  *assets.RealmID
	active     *assets.FloorSet
	candidates []candidate
}

// NewClassifier returns a Classifier with no active realm.
//
// Precondition: store and logger must be non-nil.
func NewClassifier(store assets.Store, logger *zap.Logger) *Classifier {
	return &Classifier{store: store, logger: logger}
}

// Current returns the active realm.
func (c *Classifier) Current() assets.Realm {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// ActiveFloorSet returns the floor set of the active realm, or nil.
func (c *Classifier) ActiveFloorSet() *assets.FloorSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Classify aligns floor tiles against gray. The fast path tries the active
// floor set; the slow path tries every realm's floors and then the generic
// castle floors, and the first that aligns selects the realm.
//
// Postcondition: returns false when nothing aligns; the caller then uses
// grid.Centered.
func (c *Classifier) Classify(ctx context.Context, gray *image.Gray) (Result, bool, error) {
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()

	c.mu.RLock()
	active, cur, curID := c.active, c.current, c.currentID
	c.mu.RUnlock()

	if active != nil {
		if r, ok := alignAny(gray, active.Floors); ok {
			return Result{Realm: cur, RealmID: curID, Grid: grid.FromMatch(r, w, h)}, true, nil
		}
	}

	if err := c.loadCandidates(ctx); err != nil {
		return Result{}, false, err
	}
	for _, cand := range c.candidates {
		r, ok := alignAny(gray, cand.frames)
		if !ok {
			continue
		}
		res := Result{Realm: assets.Castle, Grid: grid.FromMatch(r, w, h)}
		if cand.info != nil {
			id := cand.info.ID
			res.Realm, res.RealmID = cand.info.Realm, &id
		}
		if res.Realm != cur {
			fs, err := c.floorSet(ctx, cand)
			if err != nil {
				return Result{}, false, err
			}
			c.mu.Lock()
			c.current, c.currentID, c.active = res.Realm, res.RealmID, fs
			c.mu.Unlock()
			res.Changed = true
			c.logger.Info("realm changed",
				zap.Stringer("from", cur),
				zap.Stringer("to", res.Realm),
			)
		}
		return res, true, nil
	}
	return Result{}, false, nil
}

func alignAny(gray *image.Gray, frames []*assets.Frame) (geom.Rect, bool) {
	for _, f := range frames {
		fg, err := f.Gray()
		if err != nil {
			continue
		}
		if r, ok := grid.Align(gray, fg); ok {
			return r, true
		}
	}
	return geom.Rect{}, false
}

func (c *Classifier) loadCandidates(ctx context.Context) error {
	if c.candidates != nil {
		return nil
	}
	start := time.Now()
	realms, err := c.store.Realms(ctx)
	if err != nil {
		return fmt.Errorf("listing realms: %w", err)
	}
	var cands []candidate
	for i := range realms {
		info := realms[i]
		frames, err := c.store.FloorSpritesByRealm(ctx, info.ID)
		if err != nil {
			return fmt.Errorf("floors of realm %s: %w", info.Realm, err)
		}
		if len(frames) > 0 {
			cands = append(cands, candidate{info: &info, frames: frames})
		}
	}
	castle, err := c.store.FloorSpritesGenericCastle(ctx)
	if err != nil {
		return fmt.Errorf("castle floors: %w", err)
	}
	cands = append(cands, candidate{frames: castle})
	c.candidates = cands
	c.logger.Debug("floor candidates loaded",
		zap.Int("realms", len(cands)-1),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (c *Classifier) floorSet(ctx context.Context, cand candidate) (*assets.FloorSet, error) {
	fs := &assets.FloorSet{Realm: assets.Castle, Floors: cand.frames}
	if cand.info == nil {
		return fs, nil
	}
	fs.Realm = cand.info.Realm
	return attachOverlay(ctx, c.store, fs, *cand.info)
}

// FloorSetFor loads the floor set of info's realm with its overlay, or the
// castle floor set when info is nil.
func FloorSetFor(ctx context.Context, store assets.Store, info *assets.RealmInfo) (*assets.FloorSet, error) {
	if info == nil {
		frames, err := store.FloorSpritesGenericCastle(ctx)
		if err != nil {
			return nil, fmt.Errorf("castle floors: %w", err)
		}
		return &assets.FloorSet{Realm: assets.Castle, Floors: frames}, nil
	}
	frames, err := store.FloorSpritesByRealm(ctx, info.ID)
	if err != nil {
		return nil, fmt.Errorf("floors of realm %s: %w", info.Realm, err)
	}
	return attachOverlay(ctx, store, &assets.FloorSet{Realm: info.Realm, Floors: frames}, *info)
}

func attachOverlay(ctx context.Context, store assets.Store, fs *assets.FloorSet, info assets.RealmInfo) (*assets.FloorSet, error) {
	frame, err := store.OverlaySpriteByRealm(ctx, info.ID)
	switch {
	case errors.Is(err, assets.ErrNotFound):
		return fs, nil
	case err != nil:
		return nil, fmt.Errorf("overlay of realm %s: %w", info.Realm, err)
	}
	tile, err := frame.Color()
	if err != nil {
		return nil, fmt.Errorf("overlay of realm %s: %w", info.Realm, err)
	}
	fs.Overlay = &assets.Overlay{Alpha: info.OverlayAlpha, Tile: tile}
	return fs, nil
}

// CastleFloorSet returns the floor set of the castle, used to build the
// startup index before any frame has been classified.
func (c *Classifier) CastleFloorSet(ctx context.Context) (*assets.FloorSet, error) {
	fs, err := FloorSetFor(ctx, c.store, nil)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.current, c.currentID, c.active = assets.Castle, nil, fs
	c.mu.Unlock()
	return fs, nil
}

// RebuildIndex fills ix for fs. Precomputed hashes from the store are used
// when present; otherwise every sprite of the realm is composited and
// hashed.
func RebuildIndex(ctx context.Context, store assets.Store, ix *spritehash.Index, fs *assets.FloorSet, realmID *assets.RealmID) error {
	entries, err := store.HashesForFloorSet(ctx, fs.FrameIDs())
	if err != nil {
		return fmt.Errorf("precomputed hashes: %w", err)
	}
	if len(entries) > 0 {
		return ix.Load(fs, entries)
	}
	sprites, err := store.SpritesForRealm(ctx, realmID)
	if err != nil {
		return fmt.Errorf("sprites for realm: %w", err)
	}
	return ix.Rebuild(fs, sprites)
}
