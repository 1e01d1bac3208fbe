package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xaenox/gift-bot/internal/catalog"
	"github.com/xaenox/gift-bot/internal/embedding"
	"github.com/xaenox/gift-bot/internal/models"
)

const DefaultBuildBatch = 256

// BuildResult lists the artifact keys handled by one Build run.
type BuildResult struct {
	Built   []string
	Skipped []string
	Failed  []string
}

// Builder embeds catalog CSV files into cache artifacts.
type Builder struct {
	store     Store
	embedder  embedding.Embedder
	batchSize int
	logger    *zap.Logger
}

func NewBuilder(store Store, embedder embedding.Embedder, batchSize int, logger *zap.Logger) *Builder {
	if batchSize <= 0 {
		batchSize = DefaultBuildBatch
	}
	return &Builder{
		store:     store,
		embedder:  embedder,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Build embeds every *.csv of dir in name order. The artifact key is the
// file stem, so "sport.csv" builds the category artifact and "sport_3.csv"
// the tier artifact. Existing artifacts are left alone. A file that fails
// is logged and skipped.
func (b *Builder) Build(ctx context.Context, dir string) (*BuildResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	result := &BuildResult{}
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		key := strings.TrimSuffix(name, filepath.Ext(name))
		exists, err := b.store.Exists(ctx, key)
		if err != nil {
			b.logger.Error("Failed to check cache artifact", zap.String("key", key), zap.Error(err))
			result.Failed = append(result.Failed, key)
			continue
		}
		if exists {
			b.logger.Info("Skipping cached catalog", zap.String("key", key))
			result.Skipped = append(result.Skipped, key)
			continue
		}

		n, err := b.BuildFile(ctx, filepath.Join(dir, name), key)
		if err != nil {
			b.logger.Error("Failed to build cache artifact",
				zap.String("file", name),
				zap.Error(err))
			result.Failed = append(result.Failed, key)
			continue
		}
		b.logger.Info("Saved cache artifact", zap.String("key", key), zap.Int("products", n))
		result.Built = append(result.Built, key)
	}
	return result, nil
}

// BuildFile embeds one catalog file into the artifact key, replacing any
// previous artifact, and returns the number of stored products.
func (b *Builder) BuildFile(ctx context.Context, path, key string) (int, error) {
	rows, err := catalog.ReadFile(path)
	if err != nil {
		return 0, err
	}

	products := make([]models.Product, 0, len(rows))
	for _, p := range rows {
		if p.Name == "" || p.Keywords == "" {
			continue
		}
		products = append(products, p)
	}

	for start := 0; start < len(products); start += b.batchSize {
		end := min(start+b.batchSize, len(products))
		texts := make([]string, 0, end-start)
		for _, p := range products[start:end] {
			texts = append(texts, p.Keywords)
		}

		vecs, err := b.embedder.Embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed products %d-%d: %w", start, end, err)
		}
		if len(vecs) != len(texts) {
			return 0, fmt.Errorf("embed products %d-%d: got %d vectors", start, end, len(vecs))
		}
		for i, v := range vecs {
			products[start+i].Embedding = v
		}
	}

	if err := b.store.Save(ctx, key, products); err != nil {
		return 0, err
	}
	return len(products), nil
}
