package cache

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/xaenox/gift-bot/internal/catalog"
	"github.com/xaenox/gift-bot/internal/metrics"
	"github.com/xaenox/gift-bot/internal/models"
)

// Loader resolves the artifact for a category and intimacy score and keeps
// every artifact it has read in memory.
type Loader struct {
	store  Store
	logger *zap.Logger

	mu     sync.RWMutex
	loaded map[string][]models.Product
}

func NewLoader(store Store, logger *zap.Logger) *Loader {
	return &Loader{
		store:  store,
		logger: logger,
		loaded: make(map[string][]models.Product),
	}
}

// LoadEmbeddings returns the products of the tier-specific artifact for
// category, falling back to the category's base artifact. It never fails:
// an unmapped category or a missing artifact yields an empty list.
func (l *Loader) LoadEmbeddings(ctx context.Context, category string, intimacy float64) []models.Product {
	base, err := catalog.Stem(category)
	if err != nil {
		l.logger.Debug("No catalog for category", zap.String("category", category))
		metrics.CacheLoads.WithLabelValues("miss").Inc()
		return nil
	}

	requested := base + Tier(intimacy)
	if products, ok := l.get(ctx, requested); ok {
		metrics.CacheLoads.WithLabelValues("hit").Inc()
		return products
	}

	if products, ok := l.get(ctx, base); ok {
		l.logger.Warn("Tier cache missing, using category cache",
			zap.String("requested", requested),
			zap.String("fallback", base),
			zap.String("resolved", base))
		metrics.CacheLoads.WithLabelValues("fallback").Inc()
		return products
	}

	l.logger.Warn("Embedding cache missing",
		zap.String("requested", requested),
		zap.String("fallback", base),
		zap.String("resolved", ""))
	metrics.CacheLoads.WithLabelValues("miss").Inc()
	return nil
}

func (l *Loader) get(ctx context.Context, key string) ([]models.Product, bool) {
	l.mu.RLock()
	products, ok := l.loaded[key]
	l.mu.RUnlock()
	if ok {
		return products, true
	}

	products, err := l.store.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false
	}
	if err != nil {
		l.logger.Error("Failed to load embedding cache", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	l.mu.Lock()
	l.loaded[key] = products
	l.mu.Unlock()
	return products, true
}

// Invalidate drops the in-memory copies so the next lookup reads the store.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.loaded = make(map[string][]models.Product)
	l.mu.Unlock()
}
