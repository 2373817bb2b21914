package ocr_test

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurgalex/SiralimAccess-sub000/internal/ocr"
)

func TestJoin_SkipsBlankLines(t *testing.T) {
	lines := []ocr.Line{{Text: " Strange Spiders "}, {Text: "  "}, {Text: "Collect 3 Web Sacs"}}
	assert.Equal(t, "Strange Spiders\nCollect 3 Web Sacs", ocr.Join(lines))
}

func TestEngineFunc(t *testing.T) {
	var e ocr.Engine = ocr.EngineFunc(func(_ context.Context, img image.Image) ([]ocr.Line, error) {
		return []ocr.Line{{Text: "hello", Box: img.Bounds()}}, nil
	})
	lines, err := e.Lines(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, image.Rect(0, 0, 4, 4), lines[0].Box)
}
