package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelInfo = `{
  "derma": {
    "model_path": "models/dermamnist.onnx",
    "model_name": "dermamnist",
    "class_info": {
      "0": {"class": "Actinic Keratoses", "desc": "Rough, scaly patches caused by sun exposure."},
      "1": {"class": "Melanoma", "desc": "A serious form of skin cancer."},
      "2": {"class": "Benign Keratosis", "desc": "Non-cancerous skin growth."}
    }
  },
  "blood": {
    "model_path": "models/bloodmnist.onnx",
    "class_info": {
      "0": {"class": "Basophil", "desc": ""},
      "3": {"class": "Lymphocyte", "desc": "White blood cell."}
    }
  }
}`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model_info.json")
	require.NoError(t, os.WriteFile(path, []byte(modelInfo), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"blood", "derma"}, c.Names())

	task, err := c.Task("derma")
	require.NoError(t, err)
	assert.Equal(t, "derma", task.Name)
	assert.Equal(t, "models/dermamnist.onnx", task.ModelPath)
	assert.Equal(t, "dermamnist", task.HeatmapName())
	assert.Equal(t, 3, task.NumClasses())

	blood, err := c.Task("blood")
	require.NoError(t, err)
	assert.Equal(t, "blood", blood.HeatmapName())
	assert.Equal(t, 4, blood.NumClasses())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrConfigLoad)
}

func TestResolve(t *testing.T) {
	c, err := Parse([]byte(modelInfo))
	require.NoError(t, err)

	name, desc, err := c.Resolve("derma", 1)
	require.NoError(t, err)
	assert.Equal(t, "Melanoma", name)
	assert.Equal(t, "A serious form of skin cancer.", desc)

	_, _, err = c.Resolve("xyz", 0)
	assert.ErrorIs(t, err, ErrUnknownTask)

	_, _, err = c.Resolve("blood", 2)
	assert.ErrorIs(t, err, ErrUnknownClass)

	_, _, err = c.Resolve("blood", -1)
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"not json":        `{"derma": `,
		"empty":           `{}`,
		"no model path":   `{"derma": {"class_info": {"0": {"class": "a"}}}}`,
		"no classes":      `{"derma": {"model_path": "m.onnx", "class_info": {}}}`,
		"negative index":  `{"derma": {"model_path": "m.onnx", "class_info": {"-1": {"class": "a"}}}}`,
		"padded index":    `{"derma": {"model_path": "m.onnx", "class_info": {"01": {"class": "a"}}}}`,
		"word index":      `{"derma": {"model_path": "m.onnx", "class_info": {"one": {"class": "a"}}}}`,
		"empty classname": `{"derma": {"model_path": "m.onnx", "class_info": {"0": {"class": ""}}}}`,
		"wrong type":      `{"derma": {"model_path": 3, "class_info": {"0": {"class": "a"}}}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrConfigLoad)
		})
	}
}

func TestNewCopiesInput(t *testing.T) {
	tasks := map[string]TaskConfig{
		"derma": {ClassInfo: map[string]ClassInfo{"0": {Class: "Nevus"}}},
	}
	c := New(tasks)
	tasks["derma"].ClassInfo["0"] = ClassInfo{Class: "changed"}

	name, _, err := c.Resolve("derma", 0)
	require.NoError(t, err)
	assert.Equal(t, "Nevus", name)
}
