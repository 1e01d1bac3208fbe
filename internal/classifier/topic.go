package classifier

import (
	"context"
	"math"

	"github.com/xaenox/gift-bot/internal/inference"
	"github.com/xaenox/gift-bot/internal/models"
	"go.uber.org/zap"
)

// Score calibration of the topic regression head. The model was trained
// with targets in [-2, 2].
const (
	scoreClipMin   = -2.0
	scoreClipMax   = 2.0
	topicScoreSpan = 5.33
)

// TopicClassifier runs the multitask model over a whole conversation.
type TopicClassifier struct {
	backend   inference.Backend
	taxonomy  *Taxonomy
	model     string
	maxLength int
	logger    *zap.Logger
}

func NewTopicClassifier(backend inference.Backend, taxonomy *Taxonomy, model string, maxLength int, logger *zap.Logger) *TopicClassifier {
	if taxonomy == nil {
		taxonomy = DefaultTaxonomy()
	}
	if model == "" {
		model = TopicModel
	}
	if maxLength <= 0 {
		maxLength = TopicMaxLength
	}
	return &TopicClassifier{
		backend:   backend,
		taxonomy:  taxonomy,
		model:     model,
		maxLength: maxLength,
		logger:    logger,
	}
}

// Classify returns the subject and main category of text.
func (c *TopicClassifier) Classify(ctx context.Context, text string) (models.Subject, error) {
	_, subject, err := c.forward(ctx, text)
	if err != nil {
		return models.Subject{}, err
	}
	return subject, nil
}

// ClassifyWithScore is Classify plus the rescaled regression score.
func (c *TopicClassifier) ClassifyWithScore(ctx context.Context, text string) (models.Subject, error) {
	raw, subject, err := c.forward(ctx, text)
	if err != nil {
		return models.Subject{}, err
	}
	subject.Score = TopicScore(raw)
	return subject, nil
}

func (c *TopicClassifier) forward(ctx context.Context, text string) (float64, models.Subject, error) {
	resp, err := c.backend.Predict(ctx, c.model, &inference.PredictRequest{
		Inputs:    []string{text},
		MaxLength: c.maxLength,
	})
	if err != nil {
		c.logger.Error("Topic classification failed", zap.Error(err))
		return 0, models.Subject{}, err
	}

	score, err := resp.Head(inference.HeadScore, 1)
	if err != nil {
		return 0, models.Subject{}, &inference.ModelInferenceError{Model: c.model, Err: err}
	}
	subjects, err := resp.Head(inference.HeadSubject, 1)
	if err != nil {
		return 0, models.Subject{}, &inference.ModelInferenceError{Model: c.model, Err: err}
	}

	return score[0][0], c.taxonomy.Subject(inference.ArgMax(subjects[0])), nil
}

// TopicScore clips raw to [-2, 2], maps it linearly onto [0, 5.33] and
// rounds to two decimals.
func TopicScore(raw float64) float64 {
	if math.IsNaN(raw) {
		raw = 0
	}
	clipped := math.Max(math.Min(raw, scoreClipMax), scoreClipMin)
	return Round2((clipped - scoreClipMin) / (scoreClipMax - scoreClipMin) * topicScoreSpan)
}
