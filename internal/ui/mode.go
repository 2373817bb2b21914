package ui

import (
	"fmt"
	"strings"
)

// Screen is the kind of UI currently shown.
type Screen int

const (
	ScreenUnknown Screen = iota
	ScreenDialog
	ScreenAnointment
	ScreenCodex
	ScreenSpellCraft
	ScreenManageSpellGems
	ScreenRealmSelect
	ScreenSummoning
	ScreenInspect
	ScreenPerk
	ScreenFieldItem
	ScreenCreatureReorder
	ScreenGodforge
)

func (s Screen) String() string {
	switch s {
	case ScreenUnknown:
		return "unknown"
	case ScreenDialog:
		return "dialog"
	case ScreenAnointment:
		return "anointment"
	case ScreenCodex:
		return "codex"
	case ScreenSpellCraft:
		return "spell_craft"
	case ScreenManageSpellGems:
		return "manage_spell_gems"
	case ScreenRealmSelect:
		return "realm_select"
	case ScreenSummoning:
		return "summoning"
	case ScreenInspect:
		return "inspect"
	case ScreenPerk:
		return "perk"
	case ScreenFieldItem:
		return "field_item"
	case ScreenCreatureReorder:
		return "creature_reorder"
	case ScreenGodforge:
		return "godforge"
	default:
		return fmt.Sprintf("Screen(%d)", int(s))
	}
}

// SpellAction distinguishes the spell-gem screens that share one layout.
type SpellAction string

const (
	SpellCraft      SpellAction = "Craft"
	SpellEnchant    SpellAction = "Enchant"
	SpellDisenchant SpellAction = "Disenchant"
	SpellUpgrade    SpellAction = "Upgrade"
	SpellCast       SpellAction = "Cast"
)

// Mode is the tagged UI variant: the screen plus the data that selects
// its speaker.
type Mode struct {
	Screen Screen
	// Spell is set only for ScreenSpellCraft.
	Spell SpellAction
	// Title is the OCR'd screen title, possibly empty.
	Title string
}

type titleRule struct {
	keyword string
	screen  Screen
	spell   SpellAction
}

// titleRules are checked in order; the first keyword contained in the
// lowercased title wins. More specific titles come first.
var titleRules = []titleRule{
	{"manage spell gems", ScreenManageSpellGems, ""},
	{"disenchant", ScreenSpellCraft, SpellDisenchant},
	{"enchant", ScreenSpellCraft, SpellEnchant},
	{"craft spell", ScreenSpellCraft, SpellCraft},
	{"upgrade spell", ScreenSpellCraft, SpellUpgrade},
	{"cast spell", ScreenSpellCraft, SpellCast},
	{"anoint", ScreenAnointment, ""},
	{"godforge", ScreenGodforge, ""},
	{"choose a realm", ScreenRealmSelect, ""},
	{"realm selection", ScreenRealmSelect, ""},
	{"summon", ScreenSummoning, ""},
	{"perk", ScreenPerk, ""},
	{"field item", ScreenFieldItem, ""},
	{"reorder", ScreenCreatureReorder, ""},
	{"inspect", ScreenInspect, ""},
	{"creature stats", ScreenInspect, ""},
	{"codex", ScreenCodex, ""},
}

// Classify picks the screen from the detections and the OCR'd title.
// Detectors rank dialog, green menu highlight, title, creature strip. A
// dialog box outranks everything. A highlighted side menu is the
// Codex/Generic screen unless its title names a more specific one, and
// the creature strip is only consulted when neither a highlight nor a
// known title is present.
func Classify(title string, d Detections) Mode {
	if d.HasDialog {
		return Mode{Screen: ScreenDialog}
	}
	title = strings.TrimSpace(title)
	if m, ok := classifyTitle(title); ok {
		return m
	}
	switch {
	case d.HasHighlight:
		return Mode{Screen: ScreenCodex, Title: title}
	case d.HasStrip:
		return Mode{Screen: ScreenCreatureReorder, Title: title}
	default:
		return Mode{Screen: ScreenUnknown, Title: title}
	}
}

func classifyTitle(title string) (Mode, bool) {
	t := strings.ToLower(title)
	if t == "" {
		return Mode{}, false
	}
	for _, r := range titleRules {
		if strings.Contains(t, r.keyword) {
			return Mode{Screen: r.screen, Spell: r.spell, Title: title}, true
		}
	}
	return Mode{}, false
}
