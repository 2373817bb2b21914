// Package quest keeps the active quest-sprite set in step with the quest
// banner shown in the top-right of the game window.
package quest

import (
	"context"
	"errors"
	"fmt"
	"image"
	"maps"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/gurgalex/SiralimAccess-sub000/internal/assets"
	"github.com/gurgalex/SiralimAccess-sub000/internal/ocr"
	"github.com/gurgalex/SiralimAccess-sub000/internal/scan"
	"github.com/gurgalex/SiralimAccess-sub000/internal/speech"
	"github.com/gurgalex/SiralimAccess-sub000/internal/vision"
)

const (
	// DefaultInterval is the minimum time between two banner reads.
	DefaultInterval = time.Second
	// BannerThreshold separates the white banner text from its dark
	// background.
	BannerThreshold = 180
)

// Watcher reads the quest banner and publishes the sprite names the active
// quests ask for.
//
// Watcher is driven by a single goroutine and is not safe for concurrent
// use; the published QuestSprites set is.
type Watcher struct {
	store    assets.Store
	engine   ocr.Engine
	voice    speech.Voice
	sprites  *scan.QuestSprites
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time

	last      time.Time
	active    map[int64]*assets.Quest
	announced map[int64]bool
}

// NewWatcher returns a Watcher publishing into sprites.
//
// Precondition: every argument must be non-nil.
func NewWatcher(store assets.Store, engine ocr.Engine, voice speech.Voice, sprites *scan.QuestSprites, logger *zap.Logger) *Watcher {
	return &Watcher{
		store:     store,
		engine:    engine,
		voice:     voice,
		sprites:   sprites,
		logger:    logger,
		interval:  DefaultInterval,
		now:       time.Now,
		active:    make(map[int64]*assets.Quest),
		announced: make(map[int64]bool),
	}
}

// Active returns the active quests ordered by id.
func (w *Watcher) Active() []*assets.Quest {
	ids := slices.Sorted(maps.Keys(w.active))
	out := make([]*assets.Quest, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.active[id])
	}
	return out
}

// ResetRateLimit makes the next Observe run regardless of the interval.
func (w *Watcher) ResetRateLimit() {
	w.last = time.Time{}
}

// Observe reads the banner from a whole-window grayscale frame at most
// once per interval.
//
// Postcondition: returns false without side effects when rate limited.
func (w *Watcher) Observe(ctx context.Context, gray *image.Gray) (bool, error) {
	now := w.now()
	if !w.last.IsZero() && now.Sub(w.last) < w.interval {
		return false, nil
	}
	w.last = now

	b := gray.Bounds()
	banner := vision.CropGray(gray, image.Rect(b.Min.X+b.Dx()/2, b.Min.Y, b.Max.X, b.Min.Y+b.Dy()/2))
	if banner.Bounds().Empty() {
		return true, nil
	}
	bw, err := vision.Threshold(banner, BannerThreshold, true)
	if err != nil {
		return true, fmt.Errorf("thresholding quest banner: %w", err)
	}
	lines, err := w.engine.Lines(ctx, bw)
	if err != nil {
		return true, fmt.Errorf("reading quest banner: %w", err)
	}
	texts := make([]string, 0, len(lines))
	for _, l := range lines {
		texts = append(texts, l.Text)
	}
	return true, w.Update(ctx, texts)
}

// Update resolves banner lines to quests and, when the resolved set
// differs from the active one, republishes the quest-sprite names.
//
// Postcondition: lines that resolve to no quest leave the set unchanged.
// Each unsupported quest is announced at most once.
func (w *Watcher) Update(ctx context.Context, lines []string) error {
	found := make(map[int64]*assets.Quest)
	for _, line := range lines {
		q, err := w.store.QuestByTitleFirstLine(ctx, assets.FirstLine(line))
		if errors.Is(err, assets.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("resolving quest title %q: %w", line, err)
		}
		found[q.ID] = q
	}
	if len(found) == 0 || sameKeys(found, w.active) {
		return nil
	}

	var names []string
	for _, id := range slices.Sorted(maps.Keys(found)) {
		q := found[id]
		if !Supported(q) {
			if !w.announced[q.ID] {
				w.announced[q.ID] = true
				w.voice.Speak("Unsupported quest: " + q.TitleFirstLine())
			}
			continue
		}
		n, err := w.expand(ctx, q)
		if err != nil {
			return err
		}
		names = append(names, n...)
	}
	sort.Strings(names)
	names = slices.Compact(names)
	w.active = found
	w.sprites.Replace(names)
	w.logger.Info("active quests changed",
		zap.Int("quests", len(found)),
		zap.Strings("sprites", names),
	)
	return nil
}

// Supported reports whether q has a sprite-resolution handler.
func Supported(q *assets.Quest) bool {
	if !q.Supported {
		return false
	}
	switch q.QuestType {
	case assets.QuestRescue, assets.QuestResourceNode, assets.QuestCursedChest,
		assets.QuestItem, assets.QuestNPC:
		return true
	default:
		return false
	}
}

// expand returns the sprite short names q directs the player to.
func (w *Watcher) expand(ctx context.Context, q *assets.Quest) ([]string, error) {
	var (
		sprites []*assets.Sprite
		err     error
	)
	switch q.QuestType {
	case assets.QuestRescue:
		sprites, err = w.store.NPCsAll(ctx)
	case assets.QuestResourceNode:
		sprites, err = w.store.ResourceNodesAll(ctx)
	case assets.QuestCursedChest:
		sprites, err = w.store.ChestsWithRealm(ctx)
	default:
		for _, id := range q.SpriteIDs {
			s, serr := w.store.SpriteByID(ctx, id)
			if serr != nil {
				return nil, fmt.Errorf("quest %d sprite %d: %w", q.ID, id, serr)
			}
			sprites = append(sprites, s)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("expanding %s quest %d: %w", q.QuestType, q.ID, err)
	}
	names := make([]string, 0, len(sprites))
	for _, s := range sprites {
		names = append(names, s.ShortName)
	}
	return names, nil
}

func sameKeys(a, b map[int64]*assets.Quest) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
