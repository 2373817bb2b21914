// Package x11 implements capture.Platform and global hotkeys on an X11
// display.
package x11

import (
	"bytes"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"github.com/gurgalex/SiralimAccess-sub000/internal/capture"
	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
)

// Display is a connection to the X server.
type Display struct {
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	setup  *xproto.SetupInfo

	mu     sync.Mutex
	window xproto.Window
}

// Open connects to the display named by $DISPLAY.
func Open() (*Display, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connecting to X server: %w", err)
	}
	setup := xproto.Setup(conn)
	return &Display{conn: conn, setup: setup, screen: setup.DefaultScreen(conn)}, nil
}

// Close releases the connection.
func (d *Display) Close() {
	d.conn.Close()
}

func (d *Display) displayRect() geom.Rect {
	return geom.Rect{W: int(d.screen.WidthInPixels), H: int(d.screen.HeightInPixels)}
}

// FindWindow searches the window tree for a window whose WM_CLASS contains
// class and whose WM_NAME contains title. A viewable window is preferred;
// failing that an unmapped or iconified one is returned, which describe
// reports with a zero-area client.
func (d *Display) FindWindow(class, title string) (capture.WindowInfo, error) {
	d.mu.Lock()
	cached := d.window
	d.mu.Unlock()
	if cached != 0 {
		if info, err := d.describe(cached); err == nil {
			return info, nil
		}
	}

	var found []candidate
	if _, err := d.search(d.screen.Root, class, title, &found); err != nil {
		return capture.WindowInfo{}, err
	}
	win, ok := pickWindow(found)
	if !ok {
		return capture.WindowInfo{}, capture.ErrGameNotOpen
	}
	d.mu.Lock()
	d.window = win
	d.mu.Unlock()
	return d.describe(win)
}

// candidate is a window whose class and title matched.
type candidate struct {
	window   xproto.Window
	mapState byte
}

// pickWindow returns the first viewable candidate, else the first one.
func pickWindow(cands []candidate) (xproto.Window, bool) {
	for _, c := range cands {
		if c.mapState == xproto.MapStateViewable {
			return c.window, true
		}
	}
	if len(cands) == 0 {
		return 0, false
	}
	return cands[0].window, true
}

// search appends matching windows below root in depth-first order. It
// reports true once a viewable match ends the walk.
func (d *Display) search(root xproto.Window, class, title string, found *[]candidate) (bool, error) {
	tree, err := xproto.QueryTree(d.conn, root).Reply()
	if err != nil {
		return false, fmt.Errorf("querying window tree: %w", err)
	}
	for _, w := range tree.Children {
		if state, ok := d.matches(w, class, title); ok {
			*found = append(*found, candidate{window: w, mapState: state})
			if state == xproto.MapStateViewable {
				return true, nil
			}
		}
		// Subtrees of vanished windows are skipped.
		if done, _ := d.search(w, class, title, found); done {
			return true, nil
		}
	}
	return false, nil
}

// matches reports whether w carries the class and title, and its map state.
func (d *Display) matches(w xproto.Window, class, title string) (byte, bool) {
	attrs, err := xproto.GetWindowAttributes(d.conn, w).Reply()
	if err != nil {
		return 0, false
	}
	wmClass, err := d.stringProperty(w, xproto.AtomWmClass)
	if err != nil || !classMatches(wmClass, class) {
		return 0, false
	}
	name, err := d.stringProperty(w, xproto.AtomWmName)
	if err != nil || !strings.Contains(name, title) {
		return 0, false
	}
	return attrs.MapState, true
}

// classMatches checks both NUL-separated halves of a WM_CLASS value.
func classMatches(wmClass []byte, class string) bool {
	for _, part := range bytes.Split(wmClass, []byte{0}) {
		if string(part) == class {
			return true
		}
	}
	return false
}

func (d *Display) stringProperty(w xproto.Window, atom xproto.Atom) ([]byte, error) {
	reply, err := xproto.GetProperty(d.conn, false, w, atom, xproto.GetPropertyTypeAny, 0, 1024).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func (d *Display) describe(w xproto.Window) (capture.WindowInfo, error) {
	geo, err := xproto.GetGeometry(d.conn, xproto.Drawable(w)).Reply()
	if err != nil {
		d.forget()
		return capture.WindowInfo{}, capture.ErrGameNotOpen
	}
	pos, err := xproto.TranslateCoordinates(d.conn, w, d.screen.Root, 0, 0).Reply()
	if err != nil {
		d.forget()
		return capture.WindowInfo{}, capture.ErrGameNotOpen
	}
	attrs, err := xproto.GetWindowAttributes(d.conn, w).Reply()
	if err != nil {
		d.forget()
		return capture.WindowInfo{}, capture.ErrGameNotOpen
	}
	client := geom.Rect{X: int(pos.DstX), Y: int(pos.DstY), W: int(geo.Width), H: int(geo.Height)}
	if attrs.MapState != xproto.MapStateViewable {
		// Minimized: keep the position so grabbers emit Minimized frames.
		client.W, client.H = 0, 0
	}
	outer, err := d.frameRect(w)
	if err != nil {
		outer = client
	}
	return capture.WindowInfo{Client: client, Outer: outer, Display: d.displayRect()}, nil
}

func (d *Display) forget() {
	d.mu.Lock()
	d.window = 0
	d.mu.Unlock()
}

// frameRect walks up to the top-level frame the window manager reparented
// the client into.
func (d *Display) frameRect(w xproto.Window) (geom.Rect, error) {
	top := w
	for {
		tree, err := xproto.QueryTree(d.conn, top).Reply()
		if err != nil {
			return geom.Rect{}, err
		}
		if tree.Parent == tree.Root || tree.Parent == 0 {
			break
		}
		top = tree.Parent
	}
	geo, err := xproto.GetGeometry(d.conn, xproto.Drawable(top)).Reply()
	if err != nil {
		return geom.Rect{}, err
	}
	return geom.Rect{X: int(geo.X), Y: int(geo.Y), W: int(geo.Width), H: int(geo.Height)}, nil
}

// Grab reads r from the root window in ZPixmap format.
func (d *Display) Grab(r geom.Rect) (*image.RGBA, error) {
	if r.Empty() {
		return image.NewRGBA(image.Rectangle{}), nil
	}
	reply, err := xproto.GetImage(d.conn, xproto.ImageFormatZPixmap, xproto.Drawable(d.screen.Root),
		int16(r.X), int16(r.Y), uint16(r.W), uint16(r.H), 0xffffffff).Reply()
	if err != nil {
		return nil, fmt.Errorf("grabbing %s: %w", r, err)
	}
	return bgraToRGBA(reply.Data, r.W, r.H)
}

// bgraToRGBA converts a 32-bit ZPixmap buffer to RGBA with opaque alpha.
func bgraToRGBA(data []byte, w, h int) (*image.RGBA, error) {
	if len(data) < w*h*4 {
		return nil, fmt.Errorf("short image buffer: got %d bytes for %dx%d", len(data), w, h)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		o := i * 4
		img.Pix[o] = data[o+2]
		img.Pix[o+1] = data[o+1]
		img.Pix[o+2] = data[o]
		img.Pix[o+3] = 0xff
	}
	return img, nil
}
