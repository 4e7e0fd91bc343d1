package server

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/krau/medlens/catalog"
	"github.com/krau/medlens/config"
	"github.com/krau/medlens/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelInfo = `{
  "derma": {"model_path": "derma.onnx", "model_name": "dermamnist", "class_info": {"0": {"class": "Nevus", "desc": ""}, "1": {"class": "Melanoma", "desc": ""}}},
  "blood": {"model_path": "blood.onnx", "model_name": "bloodmnist", "class_info": {"0": {"class": "Basophil", "desc": ""}}}
}`

func writeModelInfo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model_info.json")
	require.NoError(t, os.WriteFile(path, []byte(modelInfo), 0o644))
	return path
}

func TestNewPredictorMock(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = config.ModeMock

	p, cleanup, err := NewPredictor(cfg, nil)
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, p.Enricher)
	assert.Equal(t, []string{"blood", "breast", "derma", "pneumonia", "retina"}, p.Catalog.Names())
	require.Contains(t, p.Classifiers, "derma")
	rc, ok := p.Classifiers["derma"].(*service.RandomClassifier)
	require.True(t, ok)
	assert.Equal(t, 5, rc.Classes)
	assert.InDelta(t, 70.0, rc.Min, 1e-9)
}

func TestNewPredictorONNX(t *testing.T) {
	cfg := config.Default()
	cfg.ModelInfo = writeModelInfo(t)

	var loaded, closed []string
	load := func(task catalog.TaskConfig) (service.Runner, func(), error) {
		loaded = append(loaded, task.ModelPath)
		return stubRunner{logits: []float32{0, 1}}, func() { closed = append(closed, task.Name) }, nil
	}

	p, cleanup, err := NewPredictor(cfg, load)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"derma.onnx", "blood.onnx"}, loaded)
	assert.Nil(t, p.Enricher)
	assert.Len(t, p.Classifiers, 2)

	cleanup()
	assert.ElementsMatch(t, []string{"derma", "blood"}, closed)
}

func TestNewPredictorLoadFailure(t *testing.T) {
	cfg := config.Default()
	cfg.ModelInfo = writeModelInfo(t)

	var closed int
	load := func(task catalog.TaskConfig) (service.Runner, func(), error) {
		if task.Name == "derma" {
			return nil, nil, errors.New("corrupt model")
		}
		return stubRunner{}, func() { closed++ }, nil
	}
	_, _, err := NewPredictor(cfg, load)
	assert.ErrorContains(t, err, "derma")
	// blood sorts before derma and is released again
	assert.Equal(t, 1, closed)
}

func TestNewPredictorBadCatalog(t *testing.T) {
	cfg := config.Default()
	cfg.ModelInfo = filepath.Join(t.TempDir(), "missing.json")
	_, _, err := NewPredictor(cfg, nil)
	assert.ErrorIs(t, err, catalog.ErrConfigLoad)
}
