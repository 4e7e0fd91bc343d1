// Package catalog holds the static task table: which model serves a task and
// what each of its class indices means.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
)

var (
	ErrConfigLoad   = errors.New("config load error")
	ErrUnknownTask  = errors.New("unknown task")
	ErrUnknownClass = errors.New("unknown class")
)

type ClassInfo struct {
	Class string `json:"class"`
	Desc  string `json:"desc"`
}

type TaskConfig struct {
	Name      string               `json:"-"`
	ModelPath string               `json:"model_path"`
	ModelName string               `json:"model_name"`
	ClassInfo map[string]ClassInfo `json:"class_info"`
}

// NumClasses is one past the highest configured class index.
func (t TaskConfig) NumClasses() int {
	n := 0
	for k := range t.ClassInfo {
		if i, err := strconv.Atoi(k); err == nil && i+1 > n {
			n = i + 1
		}
	}
	return n
}

// HeatmapName is the directory name Grad-CAM assets are stored under.
func (t TaskConfig) HeatmapName() string {
	if t.ModelName != "" {
		return t.ModelName
	}
	return t.Name
}

// Catalog is immutable once built and safe for concurrent readers.
type Catalog struct {
	tasks map[string]TaskConfig
}

func New(tasks map[string]TaskConfig) *Catalog {
	c := &Catalog{tasks: make(map[string]TaskConfig, len(tasks))}
	for name, t := range tasks {
		t.Name = name
		info := make(map[string]ClassInfo, len(t.ClassInfo))
		for k, v := range t.ClassInfo {
			info[k] = v
		}
		t.ClassInfo = info
		c.tasks[name] = t
	}
	return c
}

// Load reads a model_info JSON document. Every failure wraps ErrConfigLoad.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", ErrConfigLoad, path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var tasks map[string]TaskConfig
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("%w: failed to parse model info: %w", ErrConfigLoad, err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: no tasks configured", ErrConfigLoad)
	}
	for name, t := range tasks {
		if err := validate(name, t); err != nil {
			return nil, fmt.Errorf("%w: task %q: %w", ErrConfigLoad, name, err)
		}
	}
	return New(tasks), nil
}

func validate(name string, t TaskConfig) error {
	if name == "" {
		return errors.New("empty task name")
	}
	if t.ModelPath == "" {
		return errors.New("model_path is required")
	}
	if len(t.ClassInfo) == 0 {
		return errors.New("class_info is empty")
	}
	for k, v := range t.ClassInfo {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || strconv.Itoa(i) != k {
			return fmt.Errorf("class index %q is not a non-negative integer", k)
		}
		if v.Class == "" {
			return fmt.Errorf("class %s has no name", k)
		}
	}
	return nil
}

func (c *Catalog) Task(name string) (TaskConfig, error) {
	t, ok := c.tasks[name]
	if !ok {
		return TaskConfig{}, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return t, nil
}

func (c *Catalog) Resolve(task string, class int) (name, desc string, err error) {
	t, err := c.Task(task)
	if err != nil {
		return "", "", err
	}
	info, ok := t.ClassInfo[strconv.Itoa(class)]
	if !ok {
		return "", "", fmt.Errorf("%w: %d for task %s", ErrUnknownClass, class, task)
	}
	return info.Class, info.Desc, nil
}

func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.tasks))
	for name := range c.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
