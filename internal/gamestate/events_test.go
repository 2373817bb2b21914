package gamestate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurgalex/SiralimAccess-sub000/internal/gamestate"
	"github.com/gurgalex/SiralimAccess-sub000/internal/geom"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		line string
		want gamestate.Event
	}{
		{"12:00:01 Entering main loop.", gamestate.Event{Kind: gamestate.EventGameStart}},
		{"Player is at 864, 1056", gamestate.Event{Kind: gamestate.EventPlayerMoved, Pos: geom.Pt(27, 33)}},
		{"Player is at 880, 1070", gamestate.Event{Kind: gamestate.EventPlayerMoved, Pos: geom.Pt(27, 33)}},
		{"placing obj_player  320, 64", gamestate.Event{Kind: gamestate.EventObjPlaced, Object: "obj_player", Pos: geom.Pt(10, 2)}},
		{"placing obj_bg_tree  96,128", gamestate.Event{Kind: gamestate.EventObjPlaced, Object: "obj_bg_tree", Pos: geom.Pt(3, 4)}},
		{"Quest Received: Strange Spiders ", gamestate.Event{Kind: gamestate.EventQuestReceived, Text: "Strange Spiders"}},
	}
	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			got, ok := gamestate.ParseLine(tc.line)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseLine_IgnoresOtherLines(t *testing.T) {
	for _, line := range []string{"", "Saving game...", "Player is at somewhere", "Quest Received:"} {
		_, ok := gamestate.ParseLine(line)
		assert.False(t, ok, line)
	}
}

func TestRewind(t *testing.T) {
	start := gamestate.Event{Kind: gamestate.EventGameStart}
	move := gamestate.Event{Kind: gamestate.EventPlayerMoved, Pos: geom.Pt(1, 1)}
	entry := gamestate.Event{Kind: gamestate.EventObjPlaced, Object: gamestate.PlayerObject}
	quest := gamestate.Event{Kind: gamestate.EventQuestReceived, Text: "q"}

	t.Run("no anchor keeps everything", func(t *testing.T) {
		evs := []gamestate.Event{move, move}
		assert.Equal(t, evs, gamestate.Rewind(evs))
	})
	t.Run("last game start", func(t *testing.T) {
		evs := []gamestate.Event{start, move, start, move}
		assert.Equal(t, evs[2:], gamestate.Rewind(evs))
	})
	t.Run("realm entry followed by quest", func(t *testing.T) {
		evs := []gamestate.Event{start, move, entry, move, quest, move}
		assert.Equal(t, evs[2:], gamestate.Rewind(evs))
	})
	t.Run("realm entry without quest is not an anchor", func(t *testing.T) {
		evs := []gamestate.Event{start, move, entry, move}
		assert.Equal(t, evs, gamestate.Rewind(evs))
	})
	t.Run("quest before entry does not count", func(t *testing.T) {
		evs := []gamestate.Event{move, quest, entry, move}
		assert.Equal(t, evs, gamestate.Rewind(evs))
	})
}

func TestParseLines(t *testing.T) {
	evs := gamestate.ParseLines([]string{"noise", "Entering main loop", "Player is at 32, 32"})
	require.Len(t, evs, 2)
	assert.Equal(t, gamestate.EventGameStart, evs[0].Kind)
	assert.Equal(t, geom.Pt(1, 1), evs[1].Pos)
}
