// Package spritehash maps perceptual hashes of sprite-over-floor composites
// to sprite metadata, so a screenshot tile can be identified with one hash
// computation and a map lookup.
package spritehash

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/corona10/goimagehash"

	"github.com/gurgalex/SiralimAccess-sub000/internal/assets"
	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
	"github.com/gurgalex/SiralimAccess-sub000/internal/vision"
)

// FogName is the short name under which the fog-of-war tile is indexed.
const FogName = "black"

// HashKey is a 64-bit pHash. Only equality is meaningful.
type HashKey uint64

// ImageInfo is the metadata stored for each hash.
type ImageInfo struct {
	ShortName string
	LongName  string
	Kind      assets.SpriteKind
}

// Hash computes the pHash of img.
func Hash(img image.Image) (HashKey, error) {
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return 0, fmt.Errorf("perception hash: %w", err)
	}
	return HashKey(h.GetHash()), nil
}

// Index is the HashKey → ImageInfo map for one FloorSet.
//
// Invariant: every key was computed by Hash over composites built from the
// FloorSet returned by FloorSet. Readers never observe a partial rebuild.
type Index struct {
	mu       sync.RWMutex
	entries  map[HashKey]ImageInfo
	floorSet *assets.FloorSet
}

// NewIndex returns an empty Index with no active FloorSet.
func NewIndex() *Index {
	return &Index{entries: make(map[HashKey]ImageInfo)}
}

// FloorSet returns the FloorSet the index was built from, or nil.
func (ix *Index) FloorSet() *assets.FloorSet {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.floorSet
}

// Len returns the number of distinct hashes.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Keys returns a snapshot of the indexed hashes.
func (ix *Index) Keys() map[HashKey]struct{} {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make(map[HashKey]struct{}, len(ix.entries))
	for k := range ix.entries {
		out[k] = struct{}{}
	}
	return out
}

// Lookup returns the metadata stored for the hash of tile.
//
// Precondition: tile is a 32x32 grayscale image.
func (ix *Index) Lookup(tile *image.Gray) (ImageInfo, bool) {
	key, err := Hash(tile)
	if err != nil {
		return ImageInfo{}, false
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	info, ok := ix.entries[key]
	return info, ok
}

// Insert composites img onto every floor of the active FloorSet and stores
// each resulting hash. Later inserts win on collision.
//
// Precondition: the index has an active FloorSet (Rebuild or Load ran).
func (ix *Index) Insert(img image.Image, info ImageInfo) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.floorSet == nil {
		return fmt.Errorf("spritehash: insert %q without a floor set", info.ShortName)
	}
	keys, err := CompositeHashes(ix.floorSet, img)
	if err != nil {
		return fmt.Errorf("hashing %q: %w", info.ShortName, err)
	}
	for _, k := range keys {
		ix.entries[k] = info
	}
	return nil
}

// Rebuild replaces the index with hashes of every frame of sprites over fs.
// The new map is built without holding the lock and swapped in atomically.
//
// Postcondition: rebuilding twice from equal inputs yields identical keys.
func (ix *Index) Rebuild(fs *assets.FloorSet, sprites []*assets.Sprite) error {
	entries, err := ComputeEntries(fs, sprites)
	if err != nil {
		return err
	}
	return ix.Load(fs, entries)
}

// Load installs precomputed entries for fs, replacing the current map.
func (ix *Index) Load(fs *assets.FloorSet, entries []assets.HashEntry) error {
	m := make(map[HashKey]ImageInfo, len(entries)+1)
	for _, e := range entries {
		m[HashKey(e.Hash)] = ImageInfo{ShortName: e.ShortName, LongName: e.LongName, Kind: e.Kind}
	}
	fog, err := Hash(fogTile())
	if err != nil {
		return err
	}
	m[fog] = ImageInfo{ShortName: FogName, LongName: "Fog of War", Kind: assets.KindDecoration}

	ix.mu.Lock()
	ix.entries = m
	ix.floorSet = fs
	ix.mu.Unlock()
	return nil
}

// ComputeEntries hashes every frame of sprites composited over each floor of
// fs, in sprite then frame then floor order.
func ComputeEntries(fs *assets.FloorSet, sprites []*assets.Sprite) ([]assets.HashEntry, error) {
	var out []assets.HashEntry
	for _, s := range sprites {
		for _, f := range s.Frames {
			img, err := f.Color()
			if err != nil {
				return nil, fmt.Errorf("sprite %q frame %d: %w", s.ShortName, f.Index, err)
			}
			keys, err := CompositeHashes(fs, img)
			if err != nil {
				return nil, fmt.Errorf("sprite %q frame %d: %w", s.ShortName, f.Index, err)
			}
			for _, k := range keys {
				out = append(out, assets.HashEntry{
					Hash:      uint64(k),
					ShortName: s.ShortName,
					LongName:  s.LongName,
					Kind:      s.Kind,
				})
			}
		}
	}
	return out, nil
}

// CompositeHashes returns one hash per floor of fs for img drawn over it,
// with the overlay blended on top when present.
func CompositeHashes(fs *assets.FloorSet, img image.Image) ([]HashKey, error) {
	keys := make([]HashKey, 0, len(fs.Floors))
	for _, floor := range fs.Floors {
		fc, err := floor.Color()
		if err != nil {
			return nil, err
		}
		comp := vision.Composite(img, fc)
		if fs.Overlay != nil && fs.Overlay.Tile != nil {
			vision.Blend(comp, fs.Overlay.Tile, fs.Overlay.Alpha)
		}
		k, err := Hash(vision.ToGray(comp))
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func fogTile() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, geom.TileSize, geom.TileSize))
	for i := range g.Pix {
		g.Pix[i] = color.Black.Y
	}
	return g
}
