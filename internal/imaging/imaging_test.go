package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyboard-server/internal/models"
)

func TestFitDimensions(t *testing.T) {
	testCases := []struct {
		name                   string
		srcW, srcH, boxW, boxH int
		wantW, wantH           int
	}{
		{"vertical full frame into preview box", 1080, 1920, 468, 850, 468, 832},
		{"horizontal full frame into swapped box", 1920, 1080, 850, 468, 832, 468},
		{"smaller than box stays unchanged", 300, 200, 468, 850, 300, 200},
		{"exact fit", 468, 850, 468, 850, 468, 850},
		{"wide source limited by width", 4000, 100, 468, 850, 468, 11},
		{"zero source", 0, 0, 468, 850, 0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, h := FitDimensions(tc.srcW, tc.srcH, tc.boxW, tc.boxH)
			assert.Equal(t, tc.wantW, w)
			assert.Equal(t, tc.wantH, h)
		})
	}
}

func TestMakePreview(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1080, 1920))
	for y := 0; y < 1920; y += 100 {
		for x := 0; x < 1080; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, nil))

	preview, err := MakePreview(buf.Bytes(), models.PreviewShortSide, models.PreviewLongSide)
	require.NoError(t, err)

	decoded, format, err := image.Decode(bytes.NewReader(preview))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, models.PreviewShortSide, decoded.Bounds().Dx())
	assert.LessOrEqual(t, decoded.Bounds().Dy(), models.PreviewLongSide)
}

func TestMakePreviewRejectsGarbage(t *testing.T) {
	_, err := MakePreview([]byte("not an image"), 468, 850)
	assert.Error(t, err)
}
