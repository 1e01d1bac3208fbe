package classifier

import (
	"context"
	"strings"

	"github.com/xaenox/gift-bot/internal/inference"
	"go.uber.org/zap"
)

const (
	pairSeparator = " [SEP] "
	// sigmoid output is scaled by 8, unlike the topic score span.
	intimacyScale = 8.0
)

// IntimacyScorer averages the multitask score head over consecutive
// message pairs.
type IntimacyScorer struct {
	backend   inference.Backend
	model     string
	maxLength int
	batchSize int
	logger    *zap.Logger
}

func NewIntimacyScorer(backend inference.Backend, model string, maxLength, batchSize int, logger *zap.Logger) *IntimacyScorer {
	if model == "" {
		model = TopicModel
	}
	if maxLength <= 0 {
		maxLength = PairMaxLength
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &IntimacyScorer{
		backend:   backend,
		model:     model,
		maxLength: maxLength,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Pairs joins every message with its successor. n messages give n-1 pairs.
func Pairs(messages []string) []string {
	if len(messages) < 2 {
		return nil
	}
	pairs := make([]string, 0, len(messages)-1)
	for i := 0; i < len(messages)-1; i++ {
		pairs = append(pairs, strings.TrimSpace(messages[i])+pairSeparator+strings.TrimSpace(messages[i+1]))
	}
	return pairs
}

// Score returns the mean pair intimacy in [0, 8], rounded to two decimals.
// Fewer than two messages score 0 without a model call.
func (s *IntimacyScorer) Score(ctx context.Context, messages []string) (float64, error) {
	pairs := Pairs(messages)
	if len(pairs) == 0 {
		return 0.0, nil
	}

	var sum float64
	for _, batch := range chunks(pairs, s.batchSize) {
		resp, err := s.backend.Predict(ctx, s.model, &inference.PredictRequest{
			Inputs:    batch,
			MaxLength: s.maxLength,
		})
		if err != nil {
			s.logger.Error("Intimacy scoring failed", zap.Error(err), zap.Int("pairs", len(pairs)))
			return 0, err
		}
		scores, err := resp.Head(inference.HeadScore, len(batch))
		if err != nil {
			return 0, &inference.ModelInferenceError{Model: s.model, Err: err}
		}
		for _, row := range scores {
			sum += sigmoid(row[0]) * intimacyScale
		}
	}

	return Round2(sum / float64(len(pairs))), nil
}
