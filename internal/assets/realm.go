package assets

import (
	"fmt"
	"strings"
)

// RealmID is the numeric identifier a realm carries in the asset store.
type RealmID int

// Realm identifies one of the game's realms. Castle is the sentinel for the
// player's hub, which is not a realm but is classified by floor the same way.
type Realm int

const (
	RealmUnknown Realm = iota
	Castle
	ArachnidNest
	ArcaneSanctum
	AzureDream
	BastionOfTheVoid
	BloodGrove
	CausticReactor
	CutthroatJungle
	DamaranthineDepths
	DeadShipyard
	EternitysEnd
	FarawayEnclave
	ForbiddenCatacombs
	FrostbiteCaverns
	GamblersHideout
	GreatPandemonium
	KingdomOfHeretics
	LabyrinthOfLies
	PathOfTheDamned
	RefugeOfTheMagi
	SanctumUmbra
	TempleOfLies
	TheBarrens
	TheSwamplands
	TortureChamber
	UnsulliedMeadows
)

type realmMeta struct {
	key  string
	name string
}

var realmTable = map[Realm]realmMeta{
	Castle:             {"castle", "Castle"},
	ArachnidNest:       {"arachnid_nest", "Arachnid Nest"},
	ArcaneSanctum:      {"arcane_sanctum", "Arcane Sanctum"},
	AzureDream:         {"azure_dream", "Azure Dream"},
	BastionOfTheVoid:   {"bastion_of_the_void", "Bastion of the Void"},
	BloodGrove:         {"blood_grove", "Blood Grove"},
	CausticReactor:     {"caustic_reactor", "Caustic Reactor"},
	CutthroatJungle:    {"cutthroat_jungle", "Cutthroat Jungle"},
	DamaranthineDepths: {"damaranthine_depths", "Damaranthine Depths"},
	DeadShipyard:       {"dead_shipyard", "Dead Shipyard"},
	EternitysEnd:       {"eternitys_end", "Eternity's End"},
	FarawayEnclave:     {"faraway_enclave", "Faraway Enclave"},
	ForbiddenCatacombs: {"forbidden_catacombs", "Forbidden Catacombs"},
	FrostbiteCaverns:   {"frostbite_caverns", "Frostbite Caverns"},
	GamblersHideout:    {"gamblers_hideout", "Gambler's Hideout"},
	GreatPandemonium:   {"great_pandemonium", "Great Pandemonium"},
	KingdomOfHeretics:  {"kingdom_of_heretics", "Kingdom of Heretics"},
	LabyrinthOfLies:    {"labyrinth_of_lies", "Labyrinth of Lies"},
	PathOfTheDamned:    {"path_of_the_damned", "Path of the Damned"},
	RefugeOfTheMagi:    {"refuge_of_the_magi", "Refuge of the Magi"},
	SanctumUmbra:       {"sanctum_umbra", "Sanctum Umbra"},
	TempleOfLies:       {"temple_of_lies", "Temple of Lies"},
	TheBarrens:         {"the_barrens", "The Barrens"},
	TheSwamplands:      {"the_swamplands", "The Swamplands"},
	TortureChamber:     {"torture_chamber", "Torture Chamber"},
	UnsulliedMeadows:   {"unsullied_meadows", "Unsullied Meadows"},
}

// Key returns the snake_case key used in catalogs.
func (r Realm) Key() string {
	if m, ok := realmTable[r]; ok {
		return m.key
	}
	return "unknown"
}

func (r Realm) String() string {
	if m, ok := realmTable[r]; ok {
		return m.name
	}
	return "Unknown"
}

// RealmByKey resolves a catalog key.
func RealmByKey(key string) (Realm, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	for r, m := range realmTable {
		if m.key == key {
			return r, nil
		}
	}
	return RealmUnknown, fmt.Errorf("assets: unknown realm key %q", key)
}

// RealmInfo is the store-side record of a realm.
type RealmInfo struct {
	ID    RealmID
	Realm Realm
	// OverlayAlpha is the blend factor of the realm overlay sprite, if any.
	OverlayAlpha float64
	// LogObjects are game object names whose placement in the log
	// identifies this realm while it is loading.
	LogObjects []string
}
