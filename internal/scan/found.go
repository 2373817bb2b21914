// Package scan reads the aligned near-player grid tile by tile and reports
// where each kind of object is relative to the avatar.
package scan

import (
	"fmt"
	"sync"

	"github.com/gurgalex/SiralimAccess-sub000/internal/assets"
	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
	"github.com/gurgalex/SiralimAccess-sub000/internal/spritehash"
)

// FoundType is the semantic category the scanner assigns to a tile.
type FoundType int

const (
	FoundQuest FoundType = iota
	FoundTeleportationShrine
	FoundMasterNPC
	FoundAltar
	FoundProjectItem
	FoundNPC
	FoundWall
	FoundFloor
	FoundDecoration
	FoundBlack
)

// AllFoundTypes lists every FoundType in declaration order.
var AllFoundTypes = []FoundType{
	FoundQuest, FoundTeleportationShrine, FoundMasterNPC, FoundAltar,
	FoundProjectItem, FoundNPC, FoundWall, FoundFloor, FoundDecoration, FoundBlack,
}

var foundNames = [...]string{
	FoundQuest:               "quest",
	FoundTeleportationShrine: "teleportation_shrine",
	FoundMasterNPC:           "master_npc",
	FoundAltar:               "altar",
	FoundProjectItem:         "project_item",
	FoundNPC:                 "npc",
	FoundWall:                "wall",
	FoundFloor:               "floor",
	FoundDecoration:          "decoration",
	FoundBlack:               "black",
}

func (f FoundType) String() string {
	if int(f) < 0 || int(f) >= len(foundNames) {
		return fmt.Sprintf("FoundType(%d)", int(f))
	}
	return foundNames[f]
}

// TeleportationShrineNames are the sprite short names of the shrine that
// returns the player to the castle.
var TeleportationShrineNames = map[string]bool{
	"teleportation_shrine":       true,
	"teleportation_shrine_realm": true,
}

// Classify maps a hash hit to its FoundType. Quest membership wins over
// everything, then the shrine, then fog of war, then the sprite kind.
func Classify(info spritehash.ImageInfo, quests *QuestSprites) FoundType {
	switch {
	case quests != nil && quests.Contains(info.ShortName):
		return FoundQuest
	case TeleportationShrineNames[info.ShortName]:
		return FoundTeleportationShrine
	case info.ShortName == spritehash.FogName:
		return FoundBlack
	}
	switch info.Kind {
	case assets.KindMasterNPC:
		return FoundMasterNPC
	case assets.KindAltar:
		return FoundAltar
	case assets.KindProjectItem:
		return FoundProjectItem
	case assets.KindNPC:
		return FoundNPC
	case assets.KindWall:
		return FoundWall
	case assets.KindFloor:
		return FoundFloor
	default:
		return FoundDecoration
	}
}

// Found maps each kind to tile offsets relative to the avatar, in row-major
// scan order. Positive X is right of the player, positive Y below.
type Found map[FoundType][]geom.Point

// Add appends p under kind.
func (f Found) Add(kind FoundType, p geom.Point) {
	f[kind] = append(f[kind], p)
}

// First returns the first offset recorded for kind.
func (f Found) First(kind FoundType) (geom.Point, bool) {
	ps := f[kind]
	if len(ps) == 0 {
		return geom.Point{}, false
	}
	return ps[0], true
}

// Matches is the found-matches map shared between the scanner that writes
// it and the audio stage that reads it.
type Matches struct {
	mu    sync.RWMutex
	found Found
}

// NewMatches returns an empty shared map.
func NewMatches() *Matches {
	return &Matches{found: make(Found)}
}

// Publish replaces the current reading.
func (m *Matches) Publish(f Found) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.found = f
}

// Snapshot returns a copy of the current reading.
func (m *Matches) Snapshot() Found {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(Found, len(m.found))
	for k, v := range m.found {
		out[k] = append([]geom.Point(nil), v...)
	}
	return out
}

// Clear empties every list. Each frame is a fresh reading.
func (m *Matches) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.found {
		m.found[k] = m.found[k][:0]
	}
}

// QuestSprites is the set of sprite short names the active quests ask for.
// Written by the quest watcher, read by the scanner.
type QuestSprites struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

// NewQuestSprites returns an empty set.
func NewQuestSprites() *QuestSprites {
	return &QuestSprites{names: make(map[string]struct{})}
}

// Contains reports whether name is a quest sprite.
func (q *QuestSprites) Contains(name string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, ok := q.names[name]
	return ok
}

// Replace swaps in a new name set.
func (q *QuestSprites) Replace(names []string) {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	q.mu.Lock()
	q.names = m
	q.mu.Unlock()
}

// Names returns the set's members in no particular order.
func (q *QuestSprites) Names() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]string, 0, len(q.names))
	for n := range q.names {
		out = append(out, n)
	}
	return out
}
