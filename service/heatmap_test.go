package service

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGray(t *testing.T, path string, w, h int) []float32 {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	values := make([]float32, w*h)
	for y := range h {
		for x := range w {
			v := uint8((x*37 + y*91) % 256)
			img.SetGray(x, y, color.Gray{Y: v})
			values[y*w+x] = float32(v) / 255.0
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return values
}

func gradientPixels(h, w int) Pixels {
	px := NewPixels(h, w)
	for i := range px.Data {
		px.Data[i] = float32(i%97) / 96.0
	}
	return px
}

func TestHeatmapPath(t *testing.T) {
	assert.Equal(t, filepath.Join("grad-cams", "dermamnist", "class_3_heatmap.jpg"), HeatmapPath("grad-cams", "dermamnist", 3))
}

func TestOverlayAlphaZeroIsOriginal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heat.png")
	writeGray(t, path, 12, 8)
	orig := gradientPixels(8, 12)

	out, ok, err := Overlay(orig, path, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, orig, out)
}

func TestOverlayAlphaOneIsColoredHeatmap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heat.png")
	values := writeGray(t, path, 12, 8)
	orig := gradientPixels(8, 12)

	out, ok, err := Overlay(orig, path, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ColorizeJet(values), out.Data)
}

func TestOverlayBlendsAndClips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heat.png")
	values := writeGray(t, path, 4, 4)
	orig := gradientPixels(4, 4)
	colored := ColorizeJet(values)

	out, ok, err := Overlay(orig, path, DefaultAlpha)
	require.NoError(t, err)
	require.True(t, ok)
	for i, v := range out.Data {
		want := 0.6*float64(orig.Data[i]) + 0.4*float64(colored[i])
		assert.InDelta(t, want, float64(v), 1e-6)
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestOverlayResizesHeatmap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heat.png")
	writeGray(t, path, 50, 30)
	orig := gradientPixels(16, 20)

	out, ok, err := Overlay(orig, path, 0.5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 16, out.Height)
	assert.Equal(t, 20, out.Width)
	assert.Len(t, out.Data, 16*20*3)
}

func TestOverlayMissingHeatmap(t *testing.T) {
	_, ok, err := Overlay(gradientPixels(4, 4), filepath.Join(t.TempDir(), "none.jpg"), 0.4)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOverlayCorruptHeatmap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heat.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))
	_, ok, err := Overlay(gradientPixels(4, 4), path, 0.4)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestColorizeJetEndpoints(t *testing.T) {
	c := ColorizeJet([]float32{0, 0.5, 1, -3, 7})
	assert.Equal(t, []float32{0, 0, 0.5}, c[0:3])
	assert.Equal(t, float32(1), c[4])
	assert.Equal(t, []float32{0.5, 0, 0}, c[6:9])
	assert.Equal(t, c[0:3], c[9:12])
	assert.Equal(t, c[6:9], c[12:15])
}

func TestPixelsPNGDataURI(t *testing.T) {
	px := NewPixels(2, 3)
	px.Data[0] = 1
	img := px.Image()
	assert.Equal(t, uint8(255), img.Pix[0])
	assert.Equal(t, uint8(0), img.Pix[1])
	assert.Equal(t, uint8(255), img.Pix[3])

	uri, err := px.PNGDataURI()
	require.NoError(t, err)
	assert.Contains(t, uri, "data:image/png;base64,")
}
