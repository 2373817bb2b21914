// Package gamestate folds the game's text log and save file into a
// high-level picture of where the player is.
package gamestate

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
)

// EventKind identifies a log or synthesized event.
type EventKind int

const (
	EventGameStart EventKind = iota
	EventPlayerMoved
	EventObjPlaced
	EventQuestReceived
	EventSaveUpdated
	// EventTeleportToCastle and EventTeleportToRealm are synthesized by
	// the Tracker, never parsed.
	EventTeleportToCastle
	EventTeleportToRealm
)

func (k EventKind) String() string {
	switch k {
	case EventGameStart:
		return "GameStart"
	case EventPlayerMoved:
		return "PlayerMoved"
	case EventObjPlaced:
		return "ObjPlaced"
	case EventQuestReceived:
		return "QuestReceived"
	case EventSaveUpdated:
		return "SaveUpdated"
	case EventTeleportToCastle:
		return "TeleportToCastle"
	case EventTeleportToRealm:
		return "TeleportToRealm"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// PlayerObject is the placed-object name that marks the player arriving
// in a realm.
const PlayerObject = "obj_player"

// Event is one fact about the game. Pos is in tiles.
type Event struct {
	Kind   EventKind
	Pos    geom.Point
	Object string
	Text   string
}

// IsRealmEntry reports whether e places the player in a new realm.
func (e Event) IsRealmEntry() bool {
	return e.Kind == EventTeleportToRealm || (e.Kind == EventObjPlaced && e.Object == PlayerObject)
}

var (
	reGameStart = regexp.MustCompile(`Entering main loop`)
	rePlayerAt  = regexp.MustCompile(`Player is at (-?\d+), (-?\d+)`)
	rePlacing   = regexp.MustCompile(`placing (\S+)\s+(-?\d+),\s*(-?\d+)`)
	reQuest     = regexp.MustCompile(`Quest Received: (.*\S)`)
)

// ParseLine recognizes the four log anchors. Every other line reports
// false.
func ParseLine(line string) (Event, bool) {
	if reGameStart.MatchString(line) {
		return Event{Kind: EventGameStart}, true
	}
	if m := rePlayerAt.FindStringSubmatch(line); m != nil {
		return Event{Kind: EventPlayerMoved, Pos: tile(m[1], m[2])}, true
	}
	if m := rePlacing.FindStringSubmatch(line); m != nil {
		return Event{Kind: EventObjPlaced, Object: m[1], Pos: tile(m[2], m[3])}, true
	}
	if m := reQuest.FindStringSubmatch(line); m != nil {
		return Event{Kind: EventQuestReceived, Text: m[1]}, true
	}
	return Event{}, false
}

// tile converts matched pixel coordinates. The regexes guarantee the
// digits parse.
func tile(xs, ys string) geom.Point {
	x, _ := strconv.Atoi(xs)
	y, _ := strconv.Atoi(ys)
	return geom.TileFromPixels(x, y)
}

// ParseLines parses every recognized line in order.
func ParseLines(lines []string) []Event {
	var out []Event
	for _, l := range lines {
		if ev, ok := ParseLine(l); ok {
			out = append(out, ev)
		}
	}
	return out
}

// Rewind drops everything before the nearest resumable anchor: the last
// GameStart, or the last realm entry that was followed by a
// QuestReceived. Without an anchor the events are returned unchanged.
func Rewind(events []Event) []Event {
	questAfter := false
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		switch {
		case ev.Kind == EventGameStart:
			return events[i:]
		case ev.Kind == EventQuestReceived:
			questAfter = true
		case ev.IsRealmEntry() && questAfter:
			return events[i:]
		}
	}
	return events
}
