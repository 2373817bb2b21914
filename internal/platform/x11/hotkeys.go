package x11

import (
	"context"
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"go.uber.org/zap"

	"github.com/gurgalex/SiralimAccess-sub000/internal/keys"
)

type grabbed struct {
	code xproto.Keycode
	mods uint16
}

// Hotkeys grabs global key combinations on the root window and reports
// the bound actions.
type Hotkeys struct {
	conn    *xgb.Conn
	root    xproto.Window
	logger  *zap.Logger
	actions map[grabbed]keys.Action
}

// NewHotkeys opens a dedicated connection, since event delivery blocks.
func NewHotkeys(bindings keys.Bindings, logger *zap.Logger) (*Hotkeys, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connecting to X server: %w", err)
	}
	setup := xproto.Setup(conn)
	h := &Hotkeys{
		conn:    conn,
		root:    setup.DefaultScreen(conn).Root,
		logger:  logger,
		actions: make(map[grabbed]keys.Action, len(bindings)),
	}
	codes, err := keycodes(conn, setup)
	if err != nil {
		conn.Close()
		return nil, err
	}
	for action, b := range bindings {
		sym, ok := keysym(b.Key)
		if !ok {
			conn.Close()
			return nil, fmt.Errorf("%w: unsupported key %q", keys.ErrInvalidBinding, b.Key)
		}
		code, ok := codes[sym]
		if !ok {
			conn.Close()
			return nil, fmt.Errorf("%w: key %q not on keyboard", keys.ErrInvalidBinding, b.Key)
		}
		g := grabbed{code: code, mods: modMask(b.Mods)}
		// Grab with and without NumLock/CapsLock so the binding fires
		// regardless of lock state.
		for _, lock := range []uint16{0, xproto.ModMaskLock, xproto.ModMask2, xproto.ModMaskLock | xproto.ModMask2} {
			err := xproto.GrabKeyChecked(conn, true, h.root, g.mods|lock, code,
				xproto.GrabModeAsync, xproto.GrabModeAsync).Check()
			if err != nil {
				conn.Close()
				return nil, fmt.Errorf("grabbing %s: %w", b, err)
			}
		}
		h.actions[g] = action
	}
	return h, nil
}

// Run delivers actions to out until ctx is cancelled.
func (h *Hotkeys) Run(ctx context.Context, out chan<- keys.Action) error {
	go func() {
		<-ctx.Done()
		h.conn.Close()
	}()
	const lockMask = xproto.ModMaskLock | xproto.ModMask2
	for {
		ev, xerr := h.conn.WaitForEvent()
		if ev == nil && xerr == nil {
			return nil
		}
		if xerr != nil {
			h.logger.Debug("x11 event error", zap.String("error", xerr.Error()))
			continue
		}
		kp, ok := ev.(xproto.KeyPressEvent)
		if !ok {
			continue
		}
		action, ok := h.actions[grabbed{code: kp.Detail, mods: kp.State &^ lockMask}]
		if !ok {
			continue
		}
		select {
		case out <- action:
		case <-ctx.Done():
			return nil
		default:
			h.logger.Debug("dropping hotkey, consumer busy", zap.Stringer("action", action))
		}
	}
}

func modMask(m keys.Modifier) uint16 {
	var out uint16
	if m&keys.ModShift != 0 {
		out |= xproto.ModMaskShift
	}
	if m&keys.ModCtrl != 0 {
		out |= xproto.ModMaskControl
	}
	if m&keys.ModAlt != 0 {
		out |= xproto.ModMask1
	}
	if m&keys.ModSuper != 0 {
		out |= xproto.ModMask4
	}
	return out
}

// keycodes maps the first keysym of each keycode back to the keycode.
func keycodes(conn *xgb.Conn, setup *xproto.SetupInfo) (map[xproto.Keysym]xproto.Keycode, error) {
	first := setup.MinKeycode
	count := byte(setup.MaxKeycode - setup.MinKeycode + 1)
	reply, err := xproto.GetKeyboardMapping(conn, first, count).Reply()
	if err != nil {
		return nil, fmt.Errorf("reading keyboard mapping: %w", err)
	}
	per := int(reply.KeysymsPerKeycode)
	out := make(map[xproto.Keysym]xproto.Keycode)
	for i := 0; i < int(count); i++ {
		if per == 0 || i*per >= len(reply.Keysyms) {
			break
		}
		sym := reply.Keysyms[i*per]
		if sym == 0 {
			continue
		}
		if _, dup := out[sym]; !dup {
			out[sym] = xproto.Keycode(int(first) + i)
		}
	}
	return out, nil
}

var namedKeysyms = map[string]xproto.Keysym{
	"space":     0x0020,
	"tab":       0xff09,
	"return":    0xff0d,
	"enter":     0xff0d,
	"escape":    0xff1b,
	"backspace": 0xff08,
	"home":      0xff50,
	"end":       0xff57,
	"pageup":    0xff55,
	"pagedown":  0xff56,
	"insert":    0xff63,
	"delete":    0xffff,
	"left":      0xff51,
	"up":        0xff52,
	"right":     0xff53,
	"down":      0xff54,
	"grave":     0x0060,
	"minus":     0x002d,
	"equal":     0x003d,
}

// keysym resolves a lowercase key name to its X keysym.
func keysym(name string) (xproto.Keysym, bool) {
	if sym, ok := namedKeysyms[name]; ok {
		return sym, true
	}
	if len(name) == 1 {
		c := name[0]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			return xproto.Keysym(c), true
		}
	}
	var n int
	if _, err := fmt.Sscanf(name, "f%d", &n); err == nil && n >= 1 && n <= 24 {
		return xproto.Keysym(0xffbe + n - 1), true
	}
	return 0, false
}
