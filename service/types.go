package service

import (
	"encoding/json"
	"errors"
)

const (
	DefaultImageSize = 224
	DefaultAlpha     = 0.4
)

var (
	ErrDecode    = errors.New("decode error")
	ErrInference = errors.New("inference error")
)

// Tensor is a dense float32 array; Shape is [1, 3, size, size] for model input.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Pixels is an HxWx3 RGB grid in row-major order with values in [0, 1].
type Pixels struct {
	Height int
	Width  int
	Data   []float32
}

func NewPixels(height, width int) Pixels {
	return Pixels{Height: height, Width: width, Data: make([]float32, height*width*3)}
}

type Prediction struct {
	Class         int
	Confidence    float64
	Probabilities []float64
}

type PredictRequest struct {
	Task    string
	Image   []byte
	Overlay bool
}

type PredictionResult struct {
	RequestID  string  `json:"request_id,omitempty"`
	Task       string  `json:"task"`
	Prediction int     `json:"prediction"`
	Confidence float64 `json:"confidence"`
	ClassName  string  `json:"class_name"`
	ClassDesc  string  `json:"class_desc"`
	Overlay    *Pixels `json:"-"`
}

func (r PredictionResult) MarshalJSON() ([]byte, error) {
	type plain PredictionResult
	out := struct {
		plain
		OverlayImage string `json:"overlay_image,omitempty"`
	}{plain: plain(r)}
	if r.Overlay != nil {
		uri, err := r.Overlay.PNGDataURI()
		if err != nil {
			return nil, err
		}
		out.OverlayImage = uri
	}
	return json.Marshal(out)
}
