package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlCatalogFile is the top-level YAML structure of an asset catalog.
type yamlCatalogFile struct {
	Realms            []yamlRealm      `yaml:"realms"`
	Sprites           []yamlSprite     `yaml:"sprites"`
	Quests            []yamlQuest      `yaml:"quests"`
	CastleDecorations []yamlDecoration `yaml:"castle_decorations"`
}

type yamlRealm struct {
	ID           int      `yaml:"id"`
	Key          string   `yaml:"key"`
	OverlayAlpha float64  `yaml:"overlay_alpha"`
	LogObjects   []string `yaml:"log_objects"`
}

type yamlSprite struct {
	ID        int64    `yaml:"id"`
	ShortName string   `yaml:"short_name"`
	LongName  string   `yaml:"long_name"`
	Kind      string   `yaml:"kind"`
	RealmID   *int     `yaml:"realm_id"`
	Frames    []string `yaml:"frames"`
}

type yamlQuest struct {
	ID          int64   `yaml:"id"`
	Title       string  `yaml:"title"`
	QuestType   string  `yaml:"quest_type"`
	RealmID     *int    `yaml:"realm_id"`
	Sprites     []int64 `yaml:"sprites"`
	Description string  `yaml:"description"`
	Supported   *bool   `yaml:"supported"`
}

type yamlDecoration struct {
	D        int   `yaml:"d"`
	SpriteID int64 `yaml:"sprite_id"`
}

// Catalog is an in-memory Store: an arena of records keyed by integer id.
// Relations are held as id lists and resolved at query time, so no record
// points at another.
//
// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	realms      map[RealmID]RealmInfo
	sprites     map[int64]*Sprite
	spriteOrder []int64
	quests      map[int64]*Quest
	byFirstLine map[string]int64
	decorations map[int]int64
}

// LoadCatalogFromFile reads a YAML catalog. Relative frame paths are
// resolved against the catalog's directory.
//
// Precondition: path must point to a readable YAML catalog.
// Postcondition: Returns a validated Catalog or a non-nil error.
func LoadCatalogFromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return LoadCatalogFromBytes(data, filepath.Dir(path))
}

// LoadCatalogFromBytes parses a YAML catalog.
//
// Postcondition: Returns a validated Catalog or a non-nil error.
func LoadCatalogFromBytes(data []byte, baseDir string) (*Catalog, error) {
	var file yamlCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog YAML: %w", err)
	}
	c := NewCatalog()
	for _, yr := range file.Realms {
		realm, err := RealmByKey(yr.Key)
		if err != nil {
			return nil, err
		}
		if err := c.AddRealm(RealmInfo{
			ID:           RealmID(yr.ID),
			Realm:        realm,
			OverlayAlpha: yr.OverlayAlpha,
			LogObjects:   yr.LogObjects,
		}); err != nil {
			return nil, err
		}
	}
	var frameID int64
	for _, ys := range file.Sprites {
		kind, err := ParseSpriteKind(ys.Kind)
		if err != nil {
			return nil, fmt.Errorf("sprite %d: %w", ys.ID, err)
		}
		s := &Sprite{ID: ys.ID, ShortName: ys.ShortName, LongName: ys.LongName, Kind: kind}
		if ys.RealmID != nil {
			id := RealmID(*ys.RealmID)
			s.RealmID = &id
		}
		for i, p := range ys.Frames {
			if !filepath.IsAbs(p) {
				p = filepath.Join(baseDir, p)
			}
			frameID++
			s.Frames = append(s.Frames, &Frame{ID: frameID, SpriteID: s.ID, Index: i, Path: p})
		}
		if err := c.AddSprite(s); err != nil {
			return nil, err
		}
	}
	for _, yq := range file.Quests {
		q := &Quest{
			ID:          yq.ID,
			Title:       yq.Title,
			QuestType:   QuestType(strings.ToLower(yq.QuestType)),
			SpriteIDs:   yq.Sprites,
			Description: yq.Description,
			Supported:   yq.Supported == nil || *yq.Supported,
		}
		if yq.RealmID != nil {
			id := RealmID(*yq.RealmID)
			q.RealmID = &id
		}
		if err := c.AddQuest(q); err != nil {
			return nil, err
		}
	}
	for _, yd := range file.CastleDecorations {
		if _, ok := c.sprites[yd.SpriteID]; !ok {
			return nil, fmt.Errorf("castle decoration %d references unknown sprite %d", yd.D, yd.SpriteID)
		}
		c.decorations[yd.D] = yd.SpriteID
	}
	return c, nil
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		realms:      make(map[RealmID]RealmInfo),
		sprites:     make(map[int64]*Sprite),
		quests:      make(map[int64]*Quest),
		byFirstLine: make(map[string]int64),
		decorations: make(map[int]int64),
	}
}

// AddRealm registers r. Returns an error if its id is taken.
func (c *Catalog) AddRealm(r RealmInfo) error {
	if _, ok := c.realms[r.ID]; ok {
		return fmt.Errorf("assets: realm id %d already registered", r.ID)
	}
	c.realms[r.ID] = r
	return nil
}

// AddSprite registers s. Returns an error if its id or long name is taken.
func (c *Catalog) AddSprite(s *Sprite) error {
	if _, ok := c.sprites[s.ID]; ok {
		return fmt.Errorf("assets: sprite id %d already registered", s.ID)
	}
	for _, other := range c.sprites {
		if other.LongName == s.LongName {
			return fmt.Errorf("assets: sprite long name %q already registered", s.LongName)
		}
	}
	if s.RealmID != nil {
		if _, ok := c.realms[*s.RealmID]; !ok {
			return fmt.Errorf("assets: sprite %q references unknown realm %d", s.ShortName, *s.RealmID)
		}
	}
	c.sprites[s.ID] = s
	c.spriteOrder = append(c.spriteOrder, s.ID)
	return nil
}

// AddQuest registers q. Returns an error if its id or title is taken.
func (c *Catalog) AddQuest(q *Quest) error {
	if _, ok := c.quests[q.ID]; ok {
		return fmt.Errorf("assets: quest id %d already registered", q.ID)
	}
	first := q.TitleFirstLine()
	if _, ok := c.byFirstLine[first]; ok {
		return fmt.Errorf("assets: quest title %q already registered", first)
	}
	c.quests[q.ID] = q
	c.byFirstLine[first] = q.ID
	return nil
}

// AddDecoration maps save-file decoration id d to spriteID.
func (c *Catalog) AddDecoration(d int, spriteID int64) {
	c.decorations[d] = spriteID
}

// Sprites returns every sprite in insertion order.
func (c *Catalog) Sprites() []*Sprite {
	return c.filter(func(*Sprite) bool { return true })
}

// Quests returns every quest ordered by id.
func (c *Catalog) Quests() []*Quest {
	out := make([]*Quest, 0, len(c.quests))
	for _, q := range c.quests {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) Realms(_ context.Context) ([]RealmInfo, error) {
	out := make([]RealmInfo, 0, len(c.realms))
	for _, r := range c.realms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Catalog) filter(keep func(*Sprite) bool) []*Sprite {
	var out []*Sprite
	for _, id := range c.spriteOrder {
		if s := c.sprites[id]; keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func frames(sprites []*Sprite) []*Frame {
	var out []*Frame
	for _, s := range sprites {
		out = append(out, s.Frames...)
	}
	return out
}

func (c *Catalog) FloorSpritesByRealm(_ context.Context, id RealmID) ([]*Frame, error) {
	return frames(c.filter(func(s *Sprite) bool {
		return s.Kind == KindFloor && s.RealmID != nil && *s.RealmID == id
	})), nil
}

func (c *Catalog) FloorSpritesGenericCastle(_ context.Context) ([]*Frame, error) {
	return frames(c.filter(func(s *Sprite) bool {
		return s.Kind == KindFloor && s.RealmID == nil
	})), nil
}

// HashesForFloorSet always reports no precomputed hashes; callers compute
// them from sprites.
func (c *Catalog) HashesForFloorSet(_ context.Context, _ []int64) ([]HashEntry, error) {
	return nil, nil
}

func (c *Catalog) QuestByTitleFirstLine(_ context.Context, s string) (*Quest, error) {
	id, ok := c.byFirstLine[strings.TrimSpace(s)]
	if !ok {
		return nil, ErrNotFound
	}
	return c.quests[id], nil
}

func (c *Catalog) NPCsAll(_ context.Context) ([]*Sprite, error) {
	return c.filter(func(s *Sprite) bool { return s.Kind == KindNPC }), nil
}

func (c *Catalog) ResourceNodesAll(_ context.Context) ([]*Sprite, error) {
	return c.filter(func(s *Sprite) bool { return s.Kind == KindResourceNode }), nil
}

func (c *Catalog) ChestsWithRealm(_ context.Context) ([]*Sprite, error) {
	return c.filter(func(s *Sprite) bool { return s.Kind == KindChest && s.RealmID != nil }), nil
}

func (c *Catalog) OverlaySpriteByRealm(_ context.Context, id RealmID) (*Frame, error) {
	for _, s := range c.filter(func(s *Sprite) bool {
		return s.Kind == KindOverlay && s.RealmID != nil && *s.RealmID == id
	}) {
		if len(s.Frames) > 0 {
			return s.Frames[0], nil
		}
	}
	return nil, ErrNotFound
}

func (c *Catalog) SpritesForRealm(_ context.Context, id *RealmID) ([]*Sprite, error) {
	return c.filter(func(s *Sprite) bool {
		if s.Kind == KindOverlay {
			return false
		}
		if s.RealmID == nil {
			return true
		}
		return id != nil && *s.RealmID == *id
	}), nil
}

func (c *Catalog) SpriteByID(_ context.Context, id int64) (*Sprite, error) {
	s, ok := c.sprites[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (c *Catalog) CastleDecorationSprites(_ context.Context) (map[int]int64, error) {
	out := make(map[int]int64, len(c.decorations))
	for d, id := range c.decorations {
		out[d] = id
	}
	return out, nil
}
