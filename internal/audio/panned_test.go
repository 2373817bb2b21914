package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stereo(samples ...int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func TestPannedLoop_ScalesAndWraps(t *testing.T) {
	l := newPannedLoop(stereo(1000, 1000, -2000, 2000))
	l.setGains(0.5, 0)

	buf := make([]byte, 12)
	n, err := l.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 12, n)

	got := make([]int16, 6)
	for i := range got {
		got[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
	}
	assert.Equal(t, []int16{500, 0, -1000, 0, 500, 0}, got)
}

func TestPannedLoop_PartialFrameIgnored(t *testing.T) {
	l := newPannedLoop(stereo(1, 1))
	l.setGains(1, 1)
	n, err := l.Read(make([]byte, 6))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
