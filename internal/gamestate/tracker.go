package gamestate

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/gurgalex/SiralimAccess-sub000/internal/assets"
	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
	"github.com/gurgalex/SiralimAccess-sub000/internal/scan"
)

// Mode is the high-level game phase.
type Mode int

const (
	ModeUndetermined Mode = iota
	ModeCastle
	ModeRealmLoading
	ModeRealm
	// ModeBattle has no log anchor; nothing transitions into it yet.
	ModeBattle
)

func (m Mode) String() string {
	switch m {
	case ModeUndetermined:
		return "UNDETERMINED"
	case ModeCastle:
		return "CASTLE"
	case ModeRealmLoading:
		return "REALM_LOADING"
	case ModeRealm:
		return "REALM"
	case ModeBattle:
		return "BATTLE"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// PlacedObject is an object the log reported while the player was in a
// realm.
type PlacedObject struct {
	Name string
	Pos  geom.Point
}

// State is the folded game state.
type State struct {
	CurrentSave        string
	CastleObjects      map[scan.FoundType][]geom.Point
	CastleSpawn        geom.Point
	PrevPlayerPosition geom.Point
	PlayerPosition     geom.Point
	// Realm is set once the loading realm has been identified.
	Realm        *assets.Realm
	Mode         Mode
	RealmObjects []PlacedObject
}

// CastleSource loads the castle object map from the save file.
type CastleSource interface {
	CastleObjects(ctx context.Context) (map[scan.FoundType][]geom.Point, error)
}

// Tracker folds events into State.
//
// Invariant: PlayerPosition always reflects the last PlayerMoved event.
type Tracker struct {
	castle     CastleSource
	logObjects map[string]assets.Realm
	logger     *zap.Logger

	mu    sync.RWMutex
	state State
}

// NewTracker returns a Tracker in UNDETERMINED mode.
//
// Precondition: castle and logger must be non-nil. realms supplies the
// placed-object names that identify each realm while loading.
func NewTracker(castle CastleSource, spawn geom.Point, savePath string, realms []assets.RealmInfo, logger *zap.Logger) *Tracker {
	objs := make(map[string]assets.Realm)
	for _, r := range realms {
		for _, name := range r.LogObjects {
			objs[name] = r.Realm
		}
	}
	return &Tracker{
		castle:     castle,
		logObjects: objs,
		logger:     logger,
		state: State{
			CurrentSave:   savePath,
			CastleSpawn:   spawn,
			CastleObjects: make(map[scan.FoundType][]geom.Point),
		},
	}
}

// State returns a copy of the current state.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.state
	s.CastleObjects = copyObjects(t.state.CastleObjects)
	s.RealmObjects = append([]PlacedObject(nil), t.state.RealmObjects...)
	if t.state.Realm != nil {
		r := *t.state.Realm
		s.Realm = &r
	}
	return s
}

// Mode returns the current mode.
func (t *Tracker) Mode() Mode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.Mode
}

// PlayerPosition returns the player's last reported tile.
func (t *Tracker) PlayerPosition() geom.Point {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.PlayerPosition
}

// CastleObjects returns a snapshot of the castle object map.
func (t *Tracker) CastleObjects() map[scan.FoundType][]geom.Point {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return copyObjects(t.state.CastleObjects)
}

func copyObjects(in map[scan.FoundType][]geom.Point) map[scan.FoundType][]geom.Point {
	out := make(map[scan.FoundType][]geom.Point, len(in))
	for k, v := range in {
		out[k] = append([]geom.Point(nil), v...)
	}
	return out
}

// Apply folds ev into the state and returns the events it synthesized.
//
// Postcondition: a failure to reload castle objects is logged and leaves
// the previous map in place; the mode transition still happens.
func (t *Tracker) Apply(ctx context.Context, ev Event) []Event {
	var synthesized []Event
	reload := false

	t.mu.Lock()
	s := &t.state
	switch ev.Kind {
	case EventGameStart:
		s.Mode = ModeCastle
		s.Realm = nil
		s.RealmObjects = nil
		reload = true

	case EventPlayerMoved:
		s.PrevPlayerPosition = s.PlayerPosition
		s.PlayerPosition = ev.Pos
		switch {
		case s.Mode == ModeRealmLoading:
			s.Mode = ModeRealm
		case s.PrevPlayerPosition.TileDistance(ev.Pos) > 1 && ev.Pos == s.CastleSpawn:
			synthesized = append(synthesized, Event{Kind: EventTeleportToCastle, Pos: ev.Pos})
			s.Mode = ModeCastle
			s.Realm = nil
			s.RealmObjects = nil
			reload = true
		}

	case EventObjPlaced:
		if ev.Object == PlayerObject {
			synthesized = append(synthesized, Event{Kind: EventTeleportToRealm, Pos: ev.Pos})
			s.Mode = ModeRealmLoading
			s.Realm = nil
			s.RealmObjects = nil
			break
		}
		if s.Mode != ModeRealmLoading && s.Mode != ModeRealm {
			break
		}
		s.RealmObjects = append(s.RealmObjects, PlacedObject{Name: ev.Object, Pos: ev.Pos})
		if s.Mode == ModeRealmLoading && s.Realm == nil {
			if r, ok := t.logObjects[ev.Object]; ok {
				s.Realm = &r
			}
		}

	case EventSaveUpdated:
		reload = true
	}
	mode := s.Mode
	t.mu.Unlock()

	for _, syn := range synthesized {
		t.logger.Info("game state transition",
			zap.Stringer("event", syn.Kind),
			zap.Stringer("pos", syn.Pos),
			zap.Stringer("mode", mode),
		)
	}
	if reload {
		t.reloadCastle(ctx)
	}
	return synthesized
}

func (t *Tracker) reloadCastle(ctx context.Context) {
	objs, err := t.castle.CastleObjects(ctx)
	if err != nil {
		t.logger.Warn("reloading castle objects", zap.Error(err))
		return
	}
	t.mu.Lock()
	t.state.CastleObjects = objs
	t.mu.Unlock()
}
