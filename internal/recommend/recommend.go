// Package recommend ranks cached products against a conversation's
// keywords and joins the winners to their catalog rows.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/gift-bot/internal/catalog"
	"github.com/xaenox/gift-bot/internal/embedding"
	"github.com/xaenox/gift-bot/internal/metrics"
	"github.com/xaenox/gift-bot/internal/models"
)

const (
	QueryKeywords = 5
	TopK          = 5
	PriceUnknown  = "정보 없음"
)

// ProductSource returns the cached products serving a category at an
// intimacy score.
type ProductSource interface {
	LoadEmbeddings(ctx context.Context, category string, intimacy float64) []models.Product
}

// CatalogIndex returns the catalog rows of a category.
type CatalogIndex interface {
	Index(category string) (*catalog.Index, error)
}

type Recommender struct {
	products ProductSource
	catalog  CatalogIndex
	embedder embedding.Embedder
	topK     int
	logger   *zap.Logger
}

func NewRecommender(products ProductSource, cat CatalogIndex, embedder embedding.Embedder, topK int, logger *zap.Logger) *Recommender {
	if topK <= 0 {
		topK = TopK
	}
	return &Recommender{
		products: products,
		catalog:  cat,
		embedder: embedder,
		topK:     topK,
		logger:   logger,
	}
}

// Query joins the names of the leading keywords with spaces.
func Query(keywords []models.Keyword) string {
	n := min(len(keywords), QueryKeywords)
	names := make([]string, 0, n)
	for _, k := range keywords[:n] {
		names = append(names, k.Name)
	}
	return strings.Join(names, " ")
}

// Recommend ranks the products cached for category and intimacy by cosine
// similarity to the keyword query and returns at most topK of them.
// An empty keyword list still ranks every cached product against the
// empty query. Without cached products the result is empty.
func (r *Recommender) Recommend(ctx context.Context, keywords []models.Keyword, category string, intimacy float64) ([]models.RankedProduct, error) {
	if _, err := catalog.FileFor(category); err != nil {
		r.logger.Info("Category has no catalog, nothing to recommend", zap.String("category", category))
		return nil, nil
	}

	products := r.products.LoadEmbeddings(ctx, category, intimacy)
	if len(products) == 0 {
		return nil, nil
	}

	q, err := embedding.EmbedOne(ctx, r.embedder, Query(keywords))
	if err != nil {
		return nil, fmt.Errorf("embed keyword query: %w", err)
	}

	ranked := make([]models.RankedProduct, 0, len(products))
	for _, p := range products {
		sim, err := embedding.Cosine(q, p.Embedding)
		if err != nil {
			if errors.Is(err, embedding.ErrDimensionMismatch) {
				r.logger.Warn("Skipping product with mismatched embedding",
					zap.String("product", p.Name),
					zap.Int("query_dim", len(q)),
					zap.Int("product_dim", len(p.Embedding)))
				continue
			}
			return nil, err
		}
		ranked = append(ranked, models.RankedProduct{Product: p, Similarity: sim})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Similarity > ranked[j].Similarity })
	if len(ranked) > r.topK {
		ranked = ranked[:r.topK]
	}
	metrics.Recommendations.Add(float64(len(ranked)))
	return ranked, nil
}

// Present turns ranked products into presentation rows, taking image,
// price and link from the first catalog row whose name contains the
// product name. Products without a catalog row keep only their name.
func (r *Recommender) Present(ctx context.Context, ranked []models.RankedProduct, category string) []models.GiftItem {
	var idx *catalog.Index
	if len(ranked) > 0 {
		var err error
		idx, err = r.catalog.Index(category)
		if err != nil {
			r.logger.Warn("Catalog unavailable, presenting names only",
				zap.String("category", category),
				zap.Error(err))
		}
	}

	items := make([]models.GiftItem, 0, len(ranked))
	for _, rp := range ranked {
		item := models.GiftItem{
			ID:       uuid.NewString(),
			Name:     rp.Product.Name,
			Category: category,
			Price:    PriceUnknown,
		}
		if idx != nil {
			if row, ok := idx.Lookup(rp.Product.Name); ok {
				item.ImageURL = &row.ImageURL
				item.Price = row.Price
				item.Description = &row.ProductURL
			}
		}
		items = append(items, item)
	}
	return items
}
