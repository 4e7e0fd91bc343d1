package service

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
)

// Runner executes one forward pass and returns the raw class scores.
type Runner interface {
	Run(ctx context.Context, input Tensor) ([]float32, error)
}

// Classifier maps an input tensor to a class and a confidence percentage.
type Classifier interface {
	Classify(ctx context.Context, input Tensor) (Prediction, error)
}

func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxV := float64(logits[0])
	for _, v := range logits[1:] {
		maxV = max(maxV, float64(v))
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Argmax returns the first index of the largest value, or -1 for empty input.
func Argmax(p []float64) int {
	if len(p) == 0 {
		return -1
	}
	best := 0
	for i, v := range p {
		if v > p[best] {
			best = i
		}
	}
	return best
}

type ModelClassifier struct {
	Runner Runner
}

func (m ModelClassifier) Classify(ctx context.Context, input Tensor) (Prediction, error) {
	if m.Runner == nil {
		return Prediction{}, fmt.Errorf("%w: model not initialized", ErrInference)
	}
	logits, err := m.Runner.Run(ctx, input)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	for _, v := range logits {
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			return Prediction{}, fmt.Errorf("%w: model returned non-finite scores", ErrInference)
		}
	}
	probs := Softmax(logits)
	idx := Argmax(probs)
	if idx < 0 {
		return Prediction{}, fmt.Errorf("%w: model returned no scores", ErrInference)
	}
	return Prediction{
		Class:         idx,
		Confidence:    probs[idx] * 100,
		Probabilities: probs,
	}, nil
}

// RandomClassifier stands in for a real model: it ignores its input and picks
// a uniform class with a uniform confidence in [Min, Max].
type RandomClassifier struct {
	Classes int
	Min     float64
	Max     float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomClassifier(classes int, minConf, maxConf float64) *RandomClassifier {
	return &RandomClassifier{Classes: classes, Min: minConf, Max: maxConf}
}

// NewSeededRandomClassifier is deterministic for a given seed.
func NewSeededRandomClassifier(classes int, minConf, maxConf float64, seed uint64) *RandomClassifier {
	r := NewRandomClassifier(classes, minConf, maxConf)
	r.rng = rand.New(rand.NewPCG(seed, seed))
	return r
}

func (r *RandomClassifier) Classify(ctx context.Context, _ Tensor) (Prediction, error) {
	if r.Classes <= 0 {
		return Prediction{}, fmt.Errorf("%w: no classes to choose from", ErrInference)
	}
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	var class int
	var u float64
	if r.rng != nil {
		r.mu.Lock()
		class = r.rng.IntN(r.Classes)
		u = r.rng.Float64()
		r.mu.Unlock()
	} else {
		class = rand.IntN(r.Classes)
		u = rand.Float64()
	}
	return Prediction{
		Class:      class,
		Confidence: r.Min + u*(r.Max-r.Min),
	}, nil
}
