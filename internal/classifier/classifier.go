// Package classifier runs top-1 image classification.
package classifier

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrClassification wraps decode and inference failures.
var ErrClassification = errors.New("classification failure")

// Engine runs the model on an image file and returns one score per class.
type Engine interface {
	InputSize() image.Point
	Infer(imagePath string) ([]float32, error)
}

// Result is the top-1 classification of an image.
type Result struct {
	ClassID int     `json:"class_id"`
	Label   string  `json:"label"`
	Score   float64 `json:"score"`
}

// Classifier maps engine scores to a labelled top-1 result.
type Classifier struct {
	engine Engine
	labels *LabelTable
}

// New creates a classifier.
func New(engine Engine, labels *LabelTable) *Classifier {
	return &Classifier{engine: engine, labels: labels}
}

// Classify returns the highest scoring label for the image at path.
func (c *Classifier) Classify(path string) (Result, error) {
	scores, err := c.engine.Infer(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrClassification, err)
	}

	id, score, err := Top1(scores)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrClassification, err)
	}

	return Result{ClassID: id, Label: c.labels.LabelFor(id), Score: float64(score)}, nil
}

// Top1 returns the index and value of the highest score. Ties resolve to
// the lowest index; NaN scores are ignored.
func Top1(scores []float32) (int, float32, error) {
	best := -1
	var bestScore float32
	for i, s := range scores {
		if math.IsNaN(float64(s)) {
			continue
		}
		if best < 0 || s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return 0, 0, errors.New("model returned no usable scores")
	}
	return best, bestScore, nil
}
