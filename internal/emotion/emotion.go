// Package emotion defines the shared result vocabulary exchanged between the
// capture device and the ingestion service.
package emotion

import (
	"fmt"
	"math"
)

// Labels is the canonical emotion vocabulary produced by the classifier.
var Labels = []string{"angry", "disgust", "fear", "happy", "sad", "surprise", "neutral"}

// Reading is a classifier-native result for a single face: a label→score
// mapping plus the label the classifier considered dominant. Scores are
// probability-like and are not required to sum to 1.
type Reading struct {
	Dominant string             `json:"dominant_emotion"`
	Scores   map[string]float64 `json:"emotion"`
}

// Result is the canonical response shape returned to the device.
type Result struct {
	DominantEmotion string             `json:"dominant_emotion"`
	Emotions        map[string]float64 `json:"emotions"`
}

// Normalize coerces a classifier reading into the canonical result shape.
// Every score must be a finite float and the dominant label must be a key of
// the score map; violations are reported rather than passed through.
func Normalize(r Reading) (*Result, error) {
	if r.Dominant == "" {
		return nil, fmt.Errorf("reading has no dominant emotion")
	}
	if len(r.Scores) == 0 {
		return nil, fmt.Errorf("reading has no emotion scores")
	}

	emotions := make(map[string]float64, len(r.Scores))
	for label, score := range r.Scores {
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return nil, fmt.Errorf("score for %q is not a finite number", label)
		}
		emotions[label] = score
	}

	if _, ok := emotions[r.Dominant]; !ok {
		return nil, fmt.Errorf("dominant emotion %q missing from score map", r.Dominant)
	}

	return &Result{DominantEmotion: r.Dominant, Emotions: emotions}, nil
}

// Outcome is the classifier's single-or-many return shape. Classifiers that
// scan for multiple faces report one reading per face; the pipeline only ever
// consumes the first.
type Outcome struct {
	many bool
	rs   []Reading
}

// Single wraps one reading.
func Single(r Reading) Outcome {
	return Outcome{rs: []Reading{r}}
}

// Many wraps an ordered sequence of readings.
func Many(rs []Reading) Outcome {
	return Outcome{many: true, rs: rs}
}

// IsMany reports whether the outcome carried a sequence of readings.
func (o Outcome) IsMany() bool { return o.many }

// First resolves the outcome to its first reading.
func (o Outcome) First() (Reading, error) {
	if len(o.rs) == 0 {
		return Reading{}, fmt.Errorf("classifier returned no readings")
	}
	return o.rs[0], nil
}
