package service

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/krau/medlens/catalog"
)

const fallbackAnalysis = "Unable to generate detailed analysis."

// ExplanationTables holds the canned per-class text, keyed by task then class.
type ExplanationTables struct {
	Descriptions map[string]map[int]string
	Explanations map[string]map[int]string
	Treatments   map[string]map[int]string
}

// Enricher turns a class index into a display name and a long-form analysis.
type Enricher struct {
	tables ExplanationTables
}

func NewEnricher(tables ExplanationTables) *Enricher {
	return &Enricher{tables: tables}
}

// DefaultEnricher uses the built-in tables for blood, breast, derma,
// pneumonia and retina.
func DefaultEnricher() *Enricher {
	return NewEnricher(defaultTables)
}

func ConfidenceBand(confidence float64) string {
	switch {
	case confidence > 95:
		return "very high"
	case confidence > 85:
		return "high"
	case confidence > 70:
		return "moderate"
	default:
		return "low"
	}
}

func confidenceStatement(confidence float64) string {
	band := ConfidenceBand(confidence)
	if band == "low" {
		return "The model has low confidence in this diagnosis. Consider additional testing or expert consultation."
	}
	return "The model has " + band + " confidence in this diagnosis."
}

// Explain never fails the caller: on an unknown task or class it returns a
// generic label together with the lookup error.
func (e *Enricher) Explain(task string, class int, confidence float64) (name, analysis string, err error) {
	name, err = lookup(e.tables.Descriptions, task, class)
	if err != nil {
		return fallbackName(task, class), fallbackAnalysis, err
	}
	detail, err := lookup(e.tables.Explanations, task, class)
	if err != nil {
		return fallbackName(task, class), fallbackAnalysis, err
	}
	treatment, err := lookup(e.tables.Treatments, task, class)
	if err != nil {
		return fallbackName(task, class), fallbackAnalysis, err
	}
	analysis = detail + "\n\n" + confidenceStatement(confidence) + "\n\nRecommended approach: " + treatment
	return name, analysis, nil
}

// Catalog exposes the description table as a task catalog so the task list
// and class counts come from the same source as the labels.
func (e *Enricher) Catalog() *catalog.Catalog {
	tasks := make(map[string]catalog.TaskConfig, len(e.tables.Descriptions))
	for task, classes := range e.tables.Descriptions {
		info := make(map[string]catalog.ClassInfo, len(classes))
		for k, desc := range classes {
			info[strconv.Itoa(k)] = catalog.ClassInfo{Class: desc}
		}
		tasks[task] = catalog.TaskConfig{ModelName: task, ClassInfo: info}
	}
	return catalog.New(tasks)
}

func lookup(table map[string]map[int]string, task string, class int) (string, error) {
	classes, ok := table[task]
	if !ok {
		return "", fmt.Errorf("%w: %s", catalog.ErrUnknownTask, task)
	}
	s, ok := classes[class]
	if !ok {
		return "", fmt.Errorf("%w: %d for task %s", catalog.ErrUnknownClass, class, task)
	}
	return s, nil
}

func fallbackName(task string, class int) string {
	return fmt.Sprintf("%s Class %d", capitalize(task), class)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
