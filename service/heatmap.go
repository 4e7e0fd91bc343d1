package service

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

func HeatmapPath(dir, model string, class int) string {
	return filepath.Join(dir, model, fmt.Sprintf("class_%d_heatmap.jpg", class))
}

// Overlay blends the grayscale heatmap at path onto original. It reports false
// without error when no heatmap exists for the class.
func Overlay(original Pixels, path string, alpha float64) (Pixels, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Pixels{}, false, nil
		}
		return Pixels{}, false, err
	}
	heat, err := loadHeatmap(path, original.Width, original.Height)
	if err != nil {
		return Pixels{}, false, err
	}
	return Blend(original, ColorizeJet(heat), alpha), true, nil
}

// loadHeatmap returns the heatmap as a width*height grid of values in [0, 1].
func loadHeatmap(path string, width, height int) ([]float32, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open heatmap: %w", err)
	}
	gray := imaging.Grayscale(img)
	var scaled image.Image = gray
	if b := gray.Bounds(); b.Dx() != width || b.Dy() != height {
		scaled = resize.Resize(uint(width), uint(height), gray, resize.Bilinear)
	}

	b := scaled.Bounds()
	out := make([]float32, width*height)
	for y := range height {
		for x := range width {
			g := color.GrayModel.Convert(scaled.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			out[y*width+x] = float32(g.Y) / 255.0
		}
	}
	return out, nil
}

// ColorizeJet maps scalar values in [0, 1] through the JET colormap. Values are
// quantized to 8 bits first, matching how heatmaps are stored.
func ColorizeJet(values []float32) []float32 {
	out := make([]float32, len(values)*3)
	for i, v := range values {
		q := math.Round(float64(clamp01(v)) * 255)
		r, g, b := jet(q / 255)
		out[i*3] = r
		out[i*3+1] = g
		out[i*3+2] = b
	}
	return out
}

func jet(v float64) (r, g, b float32) {
	channel := func(offset float64) float32 {
		return clamp01(float32(1.5 - math.Abs(4*v-offset)))
	}
	return channel(3), channel(2), channel(1)
}

// Blend computes (1-alpha)*original + alpha*colored, clipped to [0, 1].
// colored must be HWC with the same dimensions as original.
func Blend(original Pixels, colored []float32, alpha float64) Pixels {
	a := float32(math.Min(math.Max(alpha, 0), 1))
	out := NewPixels(original.Height, original.Width)
	for i, v := range original.Data {
		out.Data[i] = clamp01((1-a)*v + a*colored[i])
	}
	return out
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (p Pixels) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, p.Width, p.Height))
	for i := range p.Width * p.Height {
		img.Pix[i*4] = uint8(math.Round(float64(clamp01(p.Data[i*3])) * 255))
		img.Pix[i*4+1] = uint8(math.Round(float64(clamp01(p.Data[i*3+1])) * 255))
		img.Pix[i*4+2] = uint8(math.Round(float64(clamp01(p.Data[i*3+2])) * 255))
		img.Pix[i*4+3] = 255
	}
	return img
}

func (p Pixels) PNGDataURI() (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.Image()); err != nil {
		return "", fmt.Errorf("failed to encode overlay: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
