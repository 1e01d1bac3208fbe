// Package inference is the client side of the model server that hosts the
// fine-tuned interest and topic models and the morphological analyzer.
package inference

import (
	"context"
	"errors"
	"fmt"
)

// Output head names returned by the model server.
const (
	HeadLogits  = "logits"
	HeadScore   = "score"
	HeadAwkward = "awkward"
	HeadSubject = "subject"
)

var (
	ErrModelInference = errors.New("model inference failed")
	ErrEmptyOutput    = errors.New("model returned no output")
)

// ModelInferenceError wraps any failure of a model call. It aborts the
// date-group being processed and nothing else.
type ModelInferenceError struct {
	Model string
	Err   error
}

func (e *ModelInferenceError) Error() string {
	return fmt.Sprintf("%s: model %s: %v", ErrModelInference, e.Model, e.Err)
}

func (e *ModelInferenceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrModelInference) match any ModelInferenceError.
func (e *ModelInferenceError) Is(target error) bool { return target == ErrModelInference }

// PredictRequest carries a batch of texts. The server tokenizes, truncates
// to MaxLength and pads to the longest input of the batch.
type PredictRequest struct {
	Inputs    []string `json:"inputs"`
	MaxLength int      `json:"max_length"`
}

// PredictResponse maps each head name to one row per input.
type PredictResponse struct {
	Outputs map[string][][]float64 `json:"outputs"`
}

// Head returns the named head, checking it has one row per input.
func (r *PredictResponse) Head(name string, rows int) ([][]float64, error) {
	if r == nil {
		return nil, ErrEmptyOutput
	}
	head, ok := r.Outputs[name]
	if !ok {
		return nil, fmt.Errorf("%w: head %q missing", ErrEmptyOutput, name)
	}
	if len(head) != rows {
		return nil, fmt.Errorf("head %q: got %d rows, want %d", name, len(head), rows)
	}
	for i, row := range head {
		if len(row) == 0 {
			return nil, fmt.Errorf("%w: head %q row %d empty", ErrEmptyOutput, name, i)
		}
	}
	return head, nil
}

// Backend evaluates models without gradient state. Implementations must be
// safe for concurrent use.
type Backend interface {
	Predict(ctx context.Context, model string, req *PredictRequest) (*PredictResponse, error)
	Nouns(ctx context.Context, analyzer string, text string) ([]string, error)
	Healthy(ctx context.Context) error
}

// ArgMax returns the index of the largest value, first wins on ties.
func ArgMax(row []float64) int {
	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}
	return best
}
