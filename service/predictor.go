package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/krau/medlens/catalog"
)

// Predictor runs the per-request pipeline. It is built once at startup and
// never mutated, so a single value serves concurrent requests.
type Predictor struct {
	Catalog     *catalog.Catalog
	Classifiers map[string]Classifier
	// Enricher, when set, supplies labels and analysis instead of the catalog.
	Enricher   *Enricher
	ImageSize  int
	HeatmapDir string
	Alpha      float64
}

func (p *Predictor) Predict(ctx context.Context, req PredictRequest) (*PredictionResult, error) {
	task, err := p.Catalog.Task(req.Task)
	if err != nil {
		return nil, err
	}
	classifier, ok := p.Classifiers[task.Name]
	if !ok {
		return nil, fmt.Errorf("%w: no model loaded for task %s", ErrInference, task.Name)
	}

	img, err := Decode(req.Image)
	if err != nil {
		return nil, err
	}
	input := Preprocess(img, p.ImageSize)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pred, err := classifier.Classify(ctx, input)
	if err != nil {
		return nil, err
	}

	result := &PredictionResult{
		Task:       task.Name,
		Prediction: pred.Class,
		Confidence: pred.Confidence,
	}
	if p.Enricher != nil {
		name, analysis, err := p.Enricher.Explain(task.Name, pred.Class, pred.Confidence)
		if err != nil {
			slog.Warn("Falling back to generic label", slog.String("task", task.Name), slog.String("error", err.Error()))
		}
		result.ClassName, result.ClassDesc = name, analysis
	} else {
		result.ClassName, result.ClassDesc, err = p.Catalog.Resolve(task.Name, pred.Class)
		if err != nil {
			return nil, err
		}
	}

	if req.Overlay && p.HeatmapDir != "" {
		path := HeatmapPath(p.HeatmapDir, task.HeatmapName(), pred.Class)
		overlay, ok, err := Overlay(input.Pixels(), path, p.Alpha)
		switch {
		case err != nil:
			slog.Error("Failed to render heatmap overlay", slog.String("path", path), slog.String("error", err.Error()))
		case ok:
			result.Overlay = &overlay
		}
	}
	return result, nil
}
