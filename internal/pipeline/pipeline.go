// Package pipeline runs the analysis and recommendation stages over every
// date-group of a chat export.
package pipeline

import (
	"context"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xaenox/gift-bot/internal/dialogue"
	"github.com/xaenox/gift-bot/internal/metrics"
	"github.com/xaenox/gift-bot/internal/models"
)

type TopicClassifier interface {
	Classify(ctx context.Context, text string) (models.Subject, error)
}

type IntimacyScorer interface {
	Score(ctx context.Context, messages []string) (float64, error)
}

type KeywordExtractor interface {
	Extract(ctx context.Context, messages []string) ([]models.Keyword, error)
}

type Recommender interface {
	Recommend(ctx context.Context, keywords []models.Keyword, category string, intimacy float64) ([]models.RankedProduct, error)
	Present(ctx context.Context, ranked []models.RankedProduct, category string) []models.GiftItem
}

// Pipeline holds the loaded models and the product cache. It is built once
// at startup and shared by every request.
type Pipeline struct {
	topic       TopicClassifier
	intimacy    IntimacyScorer
	keywords    KeywordExtractor
	recommender Recommender
	workers     int
	logger      *zap.Logger
}

func New(topic TopicClassifier, intimacy IntimacyScorer, keywords KeywordExtractor, recommender Recommender, workers int, logger *zap.Logger) *Pipeline {
	if workers <= 0 {
		workers = 1
	}
	return &Pipeline{
		topic:       topic,
		intimacy:    intimacy,
		keywords:    keywords,
		recommender: recommender,
		workers:     workers,
		logger:      logger,
	}
}

// Prepare parses an export and drops the messages that carry no Korean
// text or are links and payment notices.
func Prepare(r io.Reader) (*dialogue.Dialogue, error) {
	d, err := dialogue.Parse(r)
	if err != nil {
		return nil, err
	}
	return d.Filter(dialogue.IsValid), nil
}

// Analyze parses r and analyzes every date-group in date order. Only a
// parse failure is returned as an error; a failed date-group carries its
// error in GroupAnalysis.Err.
func (p *Pipeline) Analyze(ctx context.Context, r io.Reader) ([]models.GroupAnalysis, error) {
	d, err := Prepare(r)
	if err != nil {
		return nil, err
	}
	return p.AnalyzeDialogue(ctx, d)
}

// AnalyzeDialogue analyzes the date-groups of d, up to workers at a time.
func (p *Pipeline) AnalyzeDialogue(ctx context.Context, d *dialogue.Dialogue) ([]models.GroupAnalysis, error) {
	start := time.Now()
	defer func() { metrics.AnalysisDuration.Observe(time.Since(start).Seconds()) }()

	groups := d.Groups()
	results := make([]models.GroupAnalysis, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			results[i] = p.AnalyzeGroup(gctx, group)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// AnalyzeGroup classifies the topic of the joined messages, scores the
// intimacy of consecutive pairs and extracts weighted keywords.
func (p *Pipeline) AnalyzeGroup(ctx context.Context, group models.DateGroup) models.GroupAnalysis {
	res := models.GroupAnalysis{Date: group.Date}
	log := p.logger.With(zap.String("date", group.Date), zap.Int("messages", len(group.Messages)))

	fail := func(stage string, err error) models.GroupAnalysis {
		log.Error("Date-group analysis failed", zap.String("stage", stage), zap.Error(err))
		metrics.DateGroupsAnalyzed.WithLabelValues("error").Inc()
		res.Err = err
		return res
	}

	subject, err := p.topic.Classify(ctx, strings.Join(group.Messages, " "))
	if err != nil {
		return fail("topic", err)
	}
	res.Subject = subject.Name
	res.Category = subject.Category

	res.Intimacy, err = p.intimacy.Score(ctx, group.Messages)
	if err != nil {
		return fail("intimacy", err)
	}

	res.Keywords, err = p.keywords.Extract(ctx, group.Messages)
	if err != nil {
		return fail("keywords", err)
	}

	log.Info("Date-group analyzed",
		zap.String("subject", res.Subject),
		zap.String("category", res.Category),
		zap.Float64("intimacy", res.Intimacy),
		zap.Int("keywords", len(res.Keywords)))
	metrics.DateGroupsAnalyzed.WithLabelValues("success").Inc()
	return res
}

// Recommend analyzes r and attaches the top products to every date-group.
// Date-groups whose analysis failed get no products.
func (p *Pipeline) Recommend(ctx context.Context, r io.Reader) ([]models.GroupRecommendation, error) {
	analyses, err := p.Analyze(ctx, r)
	if err != nil {
		return nil, err
	}
	return p.RecommendFor(ctx, analyses), nil
}

// RecommendFor attaches products to analyses that already ran.
func (p *Pipeline) RecommendFor(ctx context.Context, analyses []models.GroupAnalysis) []models.GroupRecommendation {
	out := make([]models.GroupRecommendation, len(analyses))
	for i, a := range analyses {
		out[i] = models.GroupRecommendation{Analysis: a, Items: []models.GiftItem{}}
		if a.Err != nil {
			continue
		}

		ranked, err := p.recommender.Recommend(ctx, a.Keywords, a.Category, a.Intimacy)
		if err != nil {
			p.logger.Error("Recommendation failed", zap.String("date", a.Date), zap.Error(err))
			out[i].Analysis.Err = err
			continue
		}
		out[i].Items = p.recommender.Present(ctx, ranked, a.Category)
	}
	return out
}
