package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
)

// Decode accepts any registered format (JPEG, PNG, WebP, AVIF) and applies
// the EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return img, nil
}

// prepare image for model input
func Preprocess(img image.Image, size int) Tensor {
	if size <= 0 {
		size = DefaultImageSize
	}
	resized := imaging.Resize(img, size, size, imaging.Lanczos)

	plane := size * size
	out := make([]float32, 3*plane)
	rBase := 0
	gBase := plane
	bBase := 2 * plane

	for y := range size {
		row := resized.Pix[y*resized.Stride:]
		for x := range size {
			p := row[x*4 : x*4+3]
			out[rBase] = float32(p[0]) / 255.0
			out[gBase] = float32(p[1]) / 255.0
			out[bBase] = float32(p[2]) / 255.0

			rBase++
			gBase++
			bBase++
		}
	}
	return Tensor{
		Shape: []int64{1, 3, int64(size), int64(size)},
		Data:  out,
	}
}

// Pixels converts the first image of a [1,3,H,W] tensor to HWC layout.
func (t Tensor) Pixels() Pixels {
	if len(t.Shape) != 4 {
		return Pixels{}
	}
	h, w := int(t.Shape[2]), int(t.Shape[3])
	px := NewPixels(h, w)
	plane := h * w
	for i := range plane {
		px.Data[i*3] = t.Data[i]
		px.Data[i*3+1] = t.Data[plane+i]
		px.Data[i*3+2] = t.Data[2*plane+i]
	}
	return px
}
