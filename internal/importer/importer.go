// Package importer loads a sprite catalog, precomputes the perceptual hash
// of every sprite over every floor tile, and writes the result to an asset
// database in one step.
package importer

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gurgalex/SiralimAccess-sub000/internal/assets"
	"github.com/gurgalex/SiralimAccess-sub000/internal/realm"
	"github.com/gurgalex/SiralimAccess-sub000/internal/spritehash"
)

// Sink receives a complete asset snapshot.
//
// Postcondition: on success the sink serves exactly the snapshot.
type Sink interface {
	Import(ctx context.Context, snap *assets.Snapshot) error
}

// Importer orchestrates asset import from a Catalog to a Sink.
type Importer struct {
	sink    Sink
	out     io.Writer
	workers int
}

// New constructs an Importer writing to sink and reporting progress to out.
//
// Precondition: sink and out must be non-nil.
// Postcondition: returns a non-nil Importer.
func New(sink Sink, out io.Writer) *Importer {
	return &Importer{sink: sink, out: out, workers: runtime.GOMAXPROCS(0)}
}

// Run builds a snapshot of cat, with hashes precomputed for the castle and
// every realm, and hands it to the sink.
//
// Postcondition: the sink holds cat's content, or an error is returned and
// nothing was written.
func (imp *Importer) Run(ctx context.Context, cat *assets.Catalog) error {
	overall := time.Now()

	snap, err := imp.Snapshot(ctx, cat)
	if err != nil {
		return err
	}

	t0 := time.Now()
	if err := imp.sink.Import(ctx, snap); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	fmt.Fprintf(imp.out, "write   %d sprite(s), %d quest(s) in %s\n",
		len(snap.Sprites), len(snap.Quests), time.Since(t0).Round(time.Millisecond))
	fmt.Fprintf(imp.out, "total   %s\n", time.Since(overall).Round(time.Millisecond))
	return nil
}

// Snapshot collects the content of cat and precomputes its hashes.
func (imp *Importer) Snapshot(ctx context.Context, cat *assets.Catalog) (*assets.Snapshot, error) {
	t0 := time.Now()
	realms, err := cat.Realms(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading realms: %w", err)
	}
	decorations, err := cat.CastleDecorationSprites(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading castle decorations: %w", err)
	}
	snap := &assets.Snapshot{
		Realms:      realms,
		Sprites:     cat.Sprites(),
		Quests:      cat.Quests(),
		Decorations: decorations,
		Hashes:      make(map[int64][]assets.HashEntry),
	}
	fmt.Fprintf(imp.out, "load    %d realm(s), %d sprite(s) in %s\n",
		len(realms), len(snap.Sprites), time.Since(t0).Round(time.Millisecond))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imp.workers)

	sets := make([]*assets.RealmInfo, 0, len(realms)+1)
	sets = append(sets, nil)
	for i := range realms {
		sets = append(sets, &realms[i])
	}
	for _, info := range sets {
		g.Go(func() error {
			t1 := time.Now()
			hashes, err := hashFloorSet(gctx, cat, info)
			if err != nil {
				return err
			}
			mu.Lock()
			n := 0
			for id, entries := range hashes {
				snap.Hashes[id] = entries
				n += len(entries)
			}
			mu.Unlock()
			fmt.Fprintf(imp.out, "hash    %-22s %6d hash(es) over %d floor(s) in %s\n",
				label(info), n, len(hashes), time.Since(t1).Round(time.Millisecond))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// hashFloorSet hashes the sprites visible in info's realm (the castle when
// info is nil) over each of its floors separately, keyed by floor frame id.
func hashFloorSet(ctx context.Context, store assets.Store, info *assets.RealmInfo) (map[int64][]assets.HashEntry, error) {
	fs, err := realm.FloorSetFor(ctx, store, info)
	if err != nil {
		return nil, err
	}
	var realmID *assets.RealmID
	if info != nil {
		realmID = &info.ID
	}
	sprites, err := store.SpritesForRealm(ctx, realmID)
	if err != nil {
		return nil, fmt.Errorf("sprites for %s: %w", label(info), err)
	}

	out := make(map[int64][]assets.HashEntry, len(fs.Floors))
	for _, floor := range fs.Floors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		single := &assets.FloorSet{Realm: fs.Realm, Floors: []*assets.Frame{floor}, Overlay: fs.Overlay}
		entries, err := spritehash.ComputeEntries(single, sprites)
		if err != nil {
			return nil, fmt.Errorf("hashing over floor %d of %s: %w", floor.ID, label(info), err)
		}
		out[floor.ID] = entries
	}
	return out, nil
}

func label(info *assets.RealmInfo) string {
	if info == nil {
		return assets.Castle.String()
	}
	return info.Realm.String()
}
