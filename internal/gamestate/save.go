package gamestate

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/gurgalex/SiralimAccess-sub000/internal/assets"
	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
	"github.com/gurgalex/SiralimAccess-sub000/internal/scan"
	"github.com/gurgalex/SiralimAccess-sub000/internal/spritehash"
)

// CastleDecorationsKey is the save entry holding the castle decoration
// records.
const CastleDecorationsKey = "Castle.decorations"

var (
	// ErrEmptyKey is returned when decoding with an empty key.
	ErrEmptyKey = errors.New("save key is empty")
	// ErrInvalidSave is returned for save text that is not valid UTF-8
	// or shifts outside the Unicode range.
	ErrInvalidSave = errors.New("save file is not valid UTF-8")
)

// DecodeSave reverses the save file's repeating-key shift: each code point
// of data is lowered by the code point of the key at the same position
// modulo the key length.
func DecodeSave(data []byte, key string) (string, error) {
	return shift(data, key, -1)
}

// EncodeSave applies the save file's repeating-key shift.
func EncodeSave(text, key string) ([]byte, error) {
	s, err := shift([]byte(text), key, 1)
	return []byte(s), err
}

func shift(data []byte, key string, sign rune) (string, error) {
	k := []rune(key)
	if len(k) == 0 {
		return "", ErrEmptyKey
	}
	if !utf8.Valid(data) {
		return "", ErrInvalidSave
	}
	var b strings.Builder
	b.Grow(len(data))
	i := 0
	for _, r := range string(data) {
		out := r + sign*k[i%len(k)]
		if !utf8.ValidRune(out) {
			return "", fmt.Errorf("%w: code point %d out of range at %d", ErrInvalidSave, out, i)
		}
		b.WriteRune(out)
		i++
	}
	return b.String(), nil
}

// Save is the decoded "section.key" → value view of a save file.
type Save map[string]string

// ParseSave reads INI-style text: "[Section]" headers and key="value"
// lines. Surrounding quotes are removed from values.
func ParseSave(text string) Save {
	out := make(Save)
	section := ""
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
			v = v[1 : len(v)-1]
		}
		out[section+"."+strings.TrimSpace(k)] = v
	}
	return out
}

// Decoration is one castle decoration with its position in tiles.
type Decoration struct {
	D   int
	Pos geom.Point
}

type decorationRecord struct {
	D int `json:"d"`
	X int `json:"x"`
	Y int `json:"y"`
}

// CastleDecorations parses the decoration records of s. A save without
// the entry has no decorations.
func CastleDecorations(s Save) ([]Decoration, error) {
	raw, ok := s[CastleDecorationsKey]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var recs []decorationRecord
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		return nil, fmt.Errorf("parsing castle decorations: %w", err)
	}
	out := make([]Decoration, 0, len(recs))
	for _, r := range recs {
		out = append(out, Decoration{D: r.D, Pos: geom.TileFromPixels(r.X, r.Y)})
	}
	return out, nil
}

// SaveFile is a CastleSource reading an encrypted save from disk and
// classifying its decorations through the asset store.
type SaveFile struct {
	Path  string
	Key   string
	Store assets.Store
}

// CastleObjects implements CastleSource.
func (f SaveFile) CastleObjects(ctx context.Context) (map[scan.FoundType][]geom.Point, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading save %s: %w", f.Path, err)
	}
	text, err := DecodeSave(data, f.Key)
	if err != nil {
		return nil, fmt.Errorf("decoding save %s: %w", f.Path, err)
	}
	decs, err := CastleDecorations(ParseSave(text))
	if err != nil {
		return nil, err
	}
	kinds, err := f.Store.CastleDecorationSprites(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading decoration table: %w", err)
	}
	return ClassifyDecorations(ctx, f.Store, kinds, decs)
}

// ClassifyDecorations maps each decoration through its sprite to a
// FoundType. Decorations with no known sprite are skipped.
func ClassifyDecorations(ctx context.Context, store assets.Store, kinds map[int]int64, decs []Decoration) (map[scan.FoundType][]geom.Point, error) {
	out := make(map[scan.FoundType][]geom.Point)
	for _, d := range decs {
		id, ok := kinds[d.D]
		if !ok {
			continue
		}
		s, err := store.SpriteByID(ctx, id)
		if errors.Is(err, assets.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("decoration %d sprite %d: %w", d.D, id, err)
		}
		info := spritehash.ImageInfo{ShortName: s.ShortName, LongName: s.LongName, Kind: s.Kind}
		kind := scan.Classify(info, nil)
		out[kind] = append(out[kind], d.Pos)
	}
	return out, nil
}
