package onnx

import (
	"context"
	"errors"
	"fmt"

	"github.com/krau/medlens/service"
	ort "github.com/yalue/onnxruntime_go"
)

var ErrShapeMismatch = errors.New("input shape mismatch")

type ModelOptions struct {
	Path      string
	ImageSize int
	// Classes is used as the output length when the model declares a dynamic one.
	Classes  int
	Sessions int
}

type session struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (s *session) destroy() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}

// Model is a fixed pool of sessions over one model file. Each session is used
// by one request at a time, so a pool of one serializes access to the model.
type Model struct {
	path       string
	inputShape ort.Shape
	outputLen  int
	modelPool  chan *session
	sessions   []*session
}

var _ service.Runner = (*Model)(nil)

func NewModel(opts ModelOptions) (*Model, error) {
	if opts.Sessions <= 0 {
		opts.Sessions = 1
	}
	if opts.ImageSize <= 0 {
		opts.ImageSize = service.DefaultImageSize
	}

	inputs, outputs, err := ort.GetInputOutputInfo(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s declares no inputs or outputs", opts.Path)
	}
	inputShape := ort.NewShape(1, 3, int64(opts.ImageSize), int64(opts.ImageSize))
	if err := checkInputShape(inputs[0].Dimensions, inputShape); err != nil {
		return nil, err
	}
	outputLen := outputLength(outputs[0].Dimensions, opts.Classes)
	if outputLen <= 0 {
		return nil, fmt.Errorf("cannot determine output length of %s", opts.Path)
	}

	m := &Model{
		path:       opts.Path,
		inputShape: inputShape,
		outputLen:  outputLen,
		modelPool:  make(chan *session, opts.Sessions),
	}
	for range opts.Sessions {
		s, err := newSession(opts.Path, inputs[0].Name, outputs[0].Name, inputShape, outputLen)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.sessions = append(m.sessions, s)
		m.modelPool <- s
	}
	return m, nil
}

func newSession(path, inputName, outputName string, inputShape ort.Shape, outputLen int) (*session, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer opts.Destroy()

	s := &session{}
	s.input, err = ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	s.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(outputLen)))
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	s.session, err = ort.NewAdvancedSession(
		path,
		[]string{inputName},
		[]string{outputName},
		[]ort.Value{s.input},
		[]ort.Value{s.output},
		opts,
	)
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("failed to create ONNX Runtime session: %w", err)
	}
	return s, nil
}

// Run waits for a free session, honoring ctx; once the forward pass starts it
// runs to completion.
func (m *Model) Run(ctx context.Context, input service.Tensor) ([]float32, error) {
	if want := int(m.inputShape.FlattenedSize()); len(input.Data) != want {
		return nil, fmt.Errorf("%w: got %d values, model %s expects %v", ErrShapeMismatch, len(input.Data), m.path, m.inputShape)
	}

	var s *session
	select {
	case s = <-m.modelPool:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { m.modelPool <- s }()

	copy(s.input.GetData(), input.Data)
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", m.path, err)
	}

	logitsTensor := s.output.GetData()
	logits := make([]float32, len(logitsTensor))
	copy(logits, logitsTensor)
	return logits, nil
}

func (m *Model) Close() {
	for _, s := range m.sessions {
		s.destroy()
	}
	m.sessions = nil
}

// checkInputShape accepts dynamic (non-positive) dimensions in the declared shape.
func checkInputShape(declared, want ort.Shape) error {
	if len(declared) != len(want) {
		return fmt.Errorf("%w: model expects %v, pipeline produces %v", ErrShapeMismatch, declared, want)
	}
	for i, d := range declared {
		if d > 0 && d != want[i] {
			return fmt.Errorf("%w: model expects %v, pipeline produces %v", ErrShapeMismatch, declared, want)
		}
	}
	return nil
}

func outputLength(declared ort.Shape, classes int) int {
	n := 1
	for _, d := range declared {
		if d <= 0 {
			return classes
		}
		n *= int(d)
	}
	if len(declared) == 0 {
		return classes
	}
	return n
}
