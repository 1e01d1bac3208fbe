package classifier

import (
	"context"
	"fmt"

	"github.com/xaenox/gift-bot/internal/inference"
	"go.uber.org/zap"
)

// InterestClassifier labels each message as interested (1) or not (0).
type InterestClassifier struct {
	backend   inference.Backend
	model     string
	maxLength int
	logger    *zap.Logger
}

func NewInterestClassifier(backend inference.Backend, model string, maxLength int, logger *zap.Logger) *InterestClassifier {
	if model == "" {
		model = InterestModel
	}
	if maxLength <= 0 {
		maxLength = InterestMaxLength
	}
	return &InterestClassifier{
		backend:   backend,
		model:     model,
		maxLength: maxLength,
		logger:    logger,
	}
}

// ClassifyBatch sends all messages in one batch and returns one label per
// message, in input order.
func (c *InterestClassifier) ClassifyBatch(ctx context.Context, messages []string) ([]int, error) {
	if len(messages) == 0 {
		return []int{}, nil
	}

	resp, err := c.backend.Predict(ctx, c.model, &inference.PredictRequest{
		Inputs:    messages,
		MaxLength: c.maxLength,
	})
	if err != nil {
		c.logger.Error("Interest classification failed", zap.Error(err), zap.Int("messages", len(messages)))
		return nil, err
	}

	logits, err := resp.Head(inference.HeadLogits, len(messages))
	if err != nil {
		return nil, &inference.ModelInferenceError{Model: c.model, Err: err}
	}

	labels := make([]int, len(logits))
	for i, row := range logits {
		// argmax over logits equals argmax over softmax(logits)
		label := inference.ArgMax(row)
		if label > 1 {
			return nil, &inference.ModelInferenceError{Model: c.model, Err: fmt.Errorf("row %d: label %d out of range", i, label)}
		}
		labels[i] = label
	}
	return labels, nil
}
