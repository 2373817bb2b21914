// Package assets defines the read-only sprite, realm and quest records the
// overlay consumes, and the Store through which it queries them.
package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	"sync"

	"github.com/gurgalex/SiralimAccess-sub000/internal/vision"
)

// SpriteKind is the coarse category of a sprite.
type SpriteKind int

const (
	KindFloor SpriteKind = iota
	KindWall
	KindDecoration
	KindNPC
	KindMasterNPC
	KindAltar
	KindProjectItem
	KindChest
	KindResourceNode
	KindOverlay
	KindCreature
	KindEnemy
	KindWardrobe
)

var kindNames = [...]string{
	KindFloor:        "floor",
	KindWall:         "wall",
	KindDecoration:   "decoration",
	KindNPC:          "npc",
	KindMasterNPC:    "master_npc",
	KindAltar:        "altar",
	KindProjectItem:  "project_item",
	KindChest:        "chest",
	KindResourceNode: "resource_node",
	KindOverlay:      "overlay",
	KindCreature:     "creature",
	KindEnemy:        "enemy",
	KindWardrobe:     "wardrobe",
}

func (k SpriteKind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("SpriteKind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseSpriteKind converts the lowercase snake name used in catalogs and
// the database back into a SpriteKind.
func ParseSpriteKind(s string) (SpriteKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range kindNames {
		if n == s {
			return SpriteKind(i), nil
		}
	}
	return 0, fmt.Errorf("assets: unknown sprite kind %q", s)
}

// Frame is one animation frame of a sprite. Images are decoded lazily on
// first use and cached for the lifetime of the process.
type Frame struct {
	ID       int64
	SpriteID int64
	Index    int
	Path     string

	data  []byte
	once  sync.Once
	color *image.NRGBA
	gray  *image.Gray
	err   error
}

// NewFrameFromImage builds a Frame whose image is already decoded. It is
// used for synthesized tiles and in tests.
func NewFrameFromImage(id, spriteID int64, img image.Image) *Frame {
	f := &Frame{ID: id, SpriteID: spriteID}
	f.once.Do(func() { f.setImage(img) })
	return f
}

// NewFrameFromPNG builds a Frame decoded lazily from PNG bytes, as stored
// in the database.
func NewFrameFromPNG(id, spriteID int64, index int, data []byte) *Frame {
	return &Frame{ID: id, SpriteID: spriteID, Index: index, data: data}
}

func (f *Frame) setImage(img image.Image) {
	b := img.Bounds()
	c := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	f.color = c
	f.gray = vision.ToGray(c)
}

func (f *Frame) load() {
	f.once.Do(func() {
		data, err := f.raw()
		if err != nil {
			f.err = err
			return
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			f.err = fmt.Errorf("decoding frame %d: %w", f.ID, err)
			return
		}
		f.setImage(img)
	})
}

func (f *Frame) raw() ([]byte, error) {
	if f.data != nil {
		return f.data, nil
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading frame %s: %w", f.Path, err)
	}
	return data, nil
}

// PNG returns the frame encoded as PNG, reading it from Path or the stored
// bytes when available.
func (f *Frame) PNG() ([]byte, error) {
	if f.data != nil || f.Path != "" {
		return f.raw()
	}
	c, err := f.Color()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, c); err != nil {
		return nil, fmt.Errorf("encoding frame %d: %w", f.ID, err)
	}
	return buf.Bytes(), nil
}

// Color returns the decoded (possibly transparent) color image.
func (f *Frame) Color() (*image.NRGBA, error) {
	f.load()
	return f.color, f.err
}

// Gray returns the grayscale view of the frame.
func (f *Frame) Gray() (*image.Gray, error) {
	f.load()
	return f.gray, f.err
}

// Sprite is an immutable sprite record.
type Sprite struct {
	ID        int64
	ShortName string
	LongName  string
	Kind      SpriteKind
	RealmID   *RealmID
	Frames    []*Frame
}

// Quest is an immutable quest record.
type Quest struct {
	ID          int64
	Title       string
	QuestType   QuestType
	RealmID     *RealmID
	SpriteIDs   []int64
	Description string
	Supported   bool
}

// TitleFirstLine returns the title up to its first line break.
func (q *Quest) TitleFirstLine() string {
	return FirstLine(q.Title)
}

// FirstLine returns s up to the first line break, trimmed of surrounding
// whitespace.
func FirstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// QuestType selects how a quest's target sprites are resolved.
type QuestType string

const (
	QuestRescue       QuestType = "rescue"
	QuestResourceNode QuestType = "resource_node"
	QuestCursedChest  QuestType = "cursed_chest"
	QuestItem         QuestType = "item"
	QuestEnemy        QuestType = "enemy"
	QuestNPC          QuestType = "npc"
)

// Overlay is a translucent tile blended over every composite in a realm.
//
// Invariant: Alpha in [0, 1].
type Overlay struct {
	Alpha float64
	Tile  *image.NRGBA
}

// FloorSet is the ordered list of floor tiles active in the current realm.
type FloorSet struct {
	Realm   Realm
	Floors  []*Frame
	Overlay *Overlay
}

// FrameIDs returns the ids of the floor frames in order.
func (fs *FloorSet) FrameIDs() []int64 {
	ids := make([]int64, 0, len(fs.Floors))
	for _, f := range fs.Floors {
		ids = append(ids, f.ID)
	}
	return ids
}

// HashEntry is one precomputed perceptual hash row.
type HashEntry struct {
	Hash      uint64
	ShortName string
	LongName  string
	Kind      SpriteKind
}
