// Package keys parses user hotkey bindings such as "ctrl+shift+s".
package keys

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidBinding is returned for a binding that cannot be parsed.
var ErrInvalidBinding = errors.New("invalid key binding")

// Modifier is a bit set of held modifier keys.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
	ModCtrl
	ModAlt
	ModSuper
)

var modifierNames = map[string]Modifier{
	"shift":   ModShift,
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"super":   ModSuper,
	"win":     ModSuper,
}

// Binding is one parsed hotkey.
type Binding struct {
	Mods Modifier
	// Key is the lowercase name of the non-modifier key, e.g. "s", "f5",
	// "space".
	Key string
}

func (b Binding) String() string {
	var parts []string
	for _, m := range []struct {
		mod  Modifier
		name string
	}{{ModCtrl, "ctrl"}, {ModShift, "shift"}, {ModAlt, "alt"}, {ModSuper, "super"}} {
		if b.Mods&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	return strings.Join(append(parts, b.Key), "+")
}

// Parse turns "ctrl+shift+s" into a Binding. Case and surrounding spaces
// are ignored.
//
// Postcondition: returns ErrInvalidBinding (wrapped) unless s names
// exactly one non-modifier key.
func Parse(s string) (Binding, error) {
	var b Binding
	for _, raw := range strings.Split(s, "+") {
		part := strings.ToLower(strings.TrimSpace(raw))
		if part == "" {
			return Binding{}, fmt.Errorf("%w: empty component in %q", ErrInvalidBinding, s)
		}
		if m, ok := modifierNames[part]; ok {
			b.Mods |= m
			continue
		}
		if b.Key != "" {
			return Binding{}, fmt.Errorf("%w: %q has more than one key", ErrInvalidBinding, s)
		}
		b.Key = part
	}
	if b.Key == "" {
		return Binding{}, fmt.Errorf("%w: %q has no key", ErrInvalidBinding, s)
	}
	return b, nil
}

// Action is a user command bound to a hotkey.
type Action int

const (
	ActionReadSecondary Action = iota
	ActionReadAllInfo
	ActionCopyAllInfo
	ActionScreenshot
	ActionForceOCR
)

func (a Action) String() string {
	switch a {
	case ActionReadSecondary:
		return "read_secondary"
	case ActionReadAllInfo:
		return "read_all_info"
	case ActionCopyAllInfo:
		return "copy_all_info"
	case ActionScreenshot:
		return "screenshot"
	case ActionForceOCR:
		return "force_ocr"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Bindings maps each action to its parsed hotkey.
type Bindings map[Action]Binding

// ParseAll parses the raw binding strings for every action and rejects
// two actions sharing one hotkey.
func ParseAll(raw map[Action]string) (Bindings, error) {
	out := make(Bindings, len(raw))
	seen := make(map[Binding]Action, len(raw))
	var errs []error
	for a, s := range raw {
		b, err := Parse(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a, err))
			continue
		}
		if other, dup := seen[b]; dup {
			errs = append(errs, fmt.Errorf("%w: %s and %s both bound to %s", ErrInvalidBinding, other, a, b))
			continue
		}
		seen[b] = a
		out[a] = b
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
