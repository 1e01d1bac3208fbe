package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/xaenox/gift-bot/internal/cache"
	"github.com/xaenox/gift-bot/internal/catalog"
	"github.com/xaenox/gift-bot/internal/classifier"
	"github.com/xaenox/gift-bot/internal/embedding"
	"github.com/xaenox/gift-bot/internal/inference"
	"github.com/xaenox/gift-bot/internal/keywords"
	"github.com/xaenox/gift-bot/internal/pipeline"
	"github.com/xaenox/gift-bot/internal/recommend"
	"github.com/xaenox/gift-bot/internal/storage"
	"github.com/xaenox/gift-bot/pkg/config"
)

// app holds the components built once at startup.
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	store       storage.Storage
	products    cache.Store
	backend     *inference.HTTPBackend
	embedder    *embedding.OpenAIEmbedder
	recommender *recommend.Recommender
	pipeline    *pipeline.Pipeline
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	// Initialize storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		a.store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		pg, err := storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.store = pg
	}

	products, err := a.openProductStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.products = products

	a.embedder = embedding.NewOpenAIEmbedder(
		cfg.Embedding.APIKey,
		cfg.Embedding.BaseURL,
		cfg.Embedding.Model,
		cfg.Embedding.BatchSize,
		logger,
	)

	a.backend, err = inference.NewHTTPBackend(cfg.Inference.URL, cfg.Inference.Timeout, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	stop, err := keywords.LoadStopwords(cfg.Keywords.Stopwords)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			a.Close()
			return nil, err
		}
		logger.Warn("Stopword file missing, extracting without stopwords",
			zap.String("path", cfg.Keywords.Stopwords))
		stop = keywords.Stopwords{}
	}

	inf := cfg.Inference
	topic := classifier.NewTopicClassifier(a.backend, classifier.DefaultTaxonomy(), inf.TopicModel, inf.TopicMaxLen, logger)
	intimacy := classifier.NewIntimacyScorer(a.backend, inf.IntimacyModel, inf.IntimacyMaxLen, inf.BatchSize, logger)
	interest := classifier.NewInterestClassifier(a.backend, inf.InterestModel, inf.InterestMaxLen, logger)

	extractor := keywords.NewExtractor(
		interest,
		keywords.NewBackendNouns(a.backend, inf.NounAnalyzer),
		keywords.NewKeyphraseExtractor(a.embedder),
		stop,
		logger,
	)

	a.recommender = recommend.NewRecommender(
		cache.NewLoader(a.products, logger),
		catalog.New(cfg.Catalog.Dir, logger),
		a.embedder,
		cfg.Recommend.TopK,
		logger,
	)

	a.pipeline = pipeline.New(topic, intimacy, extractor, a.recommender, cfg.Pipeline.Workers, logger)
	return a, nil
}

func (a *app) openProductStore(ctx context.Context) (cache.Store, error) {
	switch a.cfg.Cache.Backend {
	case "postgres":
		pg, ok := a.store.(*storage.PostgresStorage)
		if !ok {
			return nil, errors.New("cache.backend postgres needs PostgreSQL storage")
		}
		a.logger.Info("Using PostgreSQL embedding cache")
		return cache.NewPostgresStore(ctx, pg.DB())
	default:
		a.logger.Info("Using file embedding cache", zap.String("dir", a.cfg.Cache.Dir))
		return cache.NewFileStore(a.cfg.Cache.Dir)
	}
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close storage", zap.Error(err))
	}
}
