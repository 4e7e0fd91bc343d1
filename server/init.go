package server

import (
	"fmt"
	"log/slog"

	"github.com/krau/medlens/catalog"
	"github.com/krau/medlens/config"
	"github.com/krau/medlens/onnx"
	"github.com/krau/medlens/service"
)

// ModelLoader opens the runner for one task.
type ModelLoader func(task catalog.TaskConfig) (service.Runner, func(), error)

// ONNXLoader loads task models through ONNX Runtime. The runtime environment
// must already be initialized.
func ONNXLoader(cfg config.Config) ModelLoader {
	return func(task catalog.TaskConfig) (service.Runner, func(), error) {
		m, err := onnx.NewModel(onnx.ModelOptions{
			Path:      task.ModelPath,
			ImageSize: cfg.ImageSize,
			Classes:   task.NumClasses(),
			Sessions:  cfg.Sessions,
		})
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	}
}

// NewPredictor builds the read-only pipeline for the configured mode. The
// returned cleanup releases loaded models.
func NewPredictor(cfg config.Config, load ModelLoader) (*service.Predictor, func(), error) {
	p := &service.Predictor{
		Classifiers: make(map[string]service.Classifier),
		ImageSize:   cfg.ImageSize,
		HeatmapDir:  cfg.HeatmapDir,
		Alpha:       cfg.OverlayAlpha,
	}

	if cfg.Mode == config.ModeMock {
		p.Enricher = service.DefaultEnricher()
		p.Catalog = p.Enricher.Catalog()
		for _, name := range p.Catalog.Names() {
			task, _ := p.Catalog.Task(name)
			p.Classifiers[name] = service.NewRandomClassifier(task.NumClasses(), cfg.MockMinConfidence, cfg.MockMaxConfidence)
		}
		slog.Info("Serving mock predictions", slog.Int("tasks", len(p.Classifiers)))
		return p, func() {}, nil
	}

	c, err := catalog.Load(cfg.ModelInfo)
	if err != nil {
		return nil, nil, err
	}
	p.Catalog = c

	var closers []func()
	cleanup := func() {
		for _, fn := range closers {
			fn()
		}
	}
	for _, name := range c.Names() {
		task, _ := c.Task(name)
		runner, closeFn, err := load(task)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to load model for task %s: %w", name, err)
		}
		closers = append(closers, closeFn)
		p.Classifiers[name] = service.ModelClassifier{Runner: runner}
		slog.Info("Loaded model", slog.String("task", name), slog.String("path", task.ModelPath))
	}
	return p, cleanup, nil
}
