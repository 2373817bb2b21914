package keys_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/gurgalex/SiralimAccess-sub000/internal/keys"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want keys.Binding
	}{
		{"ctrl+shift+s", keys.Binding{Mods: keys.ModCtrl | keys.ModShift, Key: "s"}},
		{"F5", keys.Binding{Key: "f5"}},
		{" Alt + Space ", keys.Binding{Mods: keys.ModAlt, Key: "space"}},
		{"control+win+c", keys.Binding{Mods: keys.ModCtrl | keys.ModSuper, Key: "c"}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := keys.Parse(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "ctrl+", "ctrl+shift", "a+b", "ctrl++s"} {
		_, err := keys.Parse(in)
		assert.ErrorIs(t, err, keys.ErrInvalidBinding, in)
	}
}

func TestParseAll_RejectsDuplicates(t *testing.T) {
	_, err := keys.ParseAll(map[keys.Action]string{
		keys.ActionScreenshot: "ctrl+s",
		keys.ActionForceOCR:   "Ctrl+S",
	})
	assert.ErrorIs(t, err, keys.ErrInvalidBinding)
}

func TestParseAll(t *testing.T) {
	b, err := keys.ParseAll(map[keys.Action]string{
		keys.ActionReadSecondary: "ctrl+r",
		keys.ActionCopyAllInfo:   "ctrl+shift+c",
	})
	require.NoError(t, err)
	assert.Equal(t, "c", b[keys.ActionCopyAllInfo].Key)
}

func TestBinding_StringRoundTrips(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := keys.Binding{
			Mods: keys.Modifier(rapid.IntRange(0, 15).Draw(t, "mods")),
			Key:  rapid.SampledFrom([]string{"a", "z", "f1", "space", "9"}).Draw(t, "key"),
		}
		got, err := keys.Parse(b.String())
		if err != nil {
			t.Fatalf("parse %q: %v", b.String(), err)
		}
		if got != b {
			t.Fatalf("got %+v want %+v", got, b)
		}
	})
}
