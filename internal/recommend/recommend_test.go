package recommend

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/gift-bot/internal/catalog"
	"github.com/xaenox/gift-bot/internal/classifier"
	"github.com/xaenox/gift-bot/internal/models"
	"github.com/xaenox/gift-bot/internal/testutil"
)

type staticProducts struct {
	products []models.Product
	calls    int
}

func (s *staticProducts) LoadEmbeddings(ctx context.Context, category string, intimacy float64) []models.Product {
	s.calls++
	return s.products
}

type staticCatalog struct {
	idx *catalog.Index
	err error
}

func (s staticCatalog) Index(category string) (*catalog.Index, error) {
	return s.idx, s.err
}

func product(name string, vec ...float32) models.Product {
	return models.Product{Name: name, Keywords: name, Embedding: vec}
}

func TestQuery(t *testing.T) {
	kws := []models.Keyword{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}, {Name: "e"}, {Name: "f"}}
	assert.Equal(t, "a b c d e", Query(kws))
	assert.Equal(t, "a", Query(kws[:1]))
	assert.Equal(t, "", Query(nil))
}

func TestRecommend_RanksByCosine(t *testing.T) {
	emb := testutil.NewFakeEmbedder(2)
	emb.Vectors["캠핑 텐트"] = []float32{1, 0}

	src := &staticProducts{products: []models.Product{
		product("먼 상품", 0, 1),
		product("가까운 상품", 1, 0),
		product("중간 상품", 1, 1),
		product("반대 상품", -1, 0),
	}}
	r := NewRecommender(src, staticCatalog{}, emb, 0, zap.NewNop())

	got, err := r.Recommend(context.Background(),
		[]models.Keyword{{Name: "캠핑", Score: 3}, {Name: "텐트", Score: 1}},
		classifier.CategoryLeisure, 3.2)
	require.NoError(t, err)
	require.Len(t, got, 4)

	names := []string{got[0].Product.Name, got[1].Product.Name, got[2].Product.Name, got[3].Product.Name}
	assert.Equal(t, []string{"가까운 상품", "중간 상품", "먼 상품", "반대 상품"}, names)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Similarity, got[i].Similarity)
	}
	assert.Equal(t, []string{"캠핑 텐트"}, emb.Texts)
}

func TestRecommend_CapsAtTopK(t *testing.T) {
	for _, n := range []int{0, 3, 5, 12} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			var products []models.Product
			for i := 0; i < n; i++ {
				products = append(products, product(fmt.Sprintf("p%d", i), 1, float32(i)))
			}
			r := NewRecommender(&staticProducts{products: products}, staticCatalog{}, testutil.NewFakeEmbedder(2), TopK, zap.NewNop())

			got, err := r.Recommend(context.Background(), []models.Keyword{{Name: "선물"}}, classifier.CategoryBeauty, 1)
			require.NoError(t, err)
			assert.Len(t, got, min(5, n))
		})
	}
}

func TestRecommend_TiesKeepCacheOrder(t *testing.T) {
	emb := testutil.NewFakeEmbedder(2)
	emb.Vectors["선물"] = []float32{1, 0}
	src := &staticProducts{products: []models.Product{
		product("첫째", 1, 0), product("둘째", 2, 0), product("셋째", 3, 0),
	}}

	got, err := NewRecommender(src, staticCatalog{}, emb, 2, zap.NewNop()).
		Recommend(context.Background(), []models.Keyword{{Name: "선물"}}, classifier.CategoryFood, 4)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "첫째", got[0].Product.Name)
	assert.Equal(t, "둘째", got[1].Product.Name)
}

func TestRecommend_EmptyCases(t *testing.T) {
	emb := testutil.NewFakeEmbedder(2)
	src := &staticProducts{products: []models.Product{product("a", 1, 0)}}
	r := NewRecommender(src, staticCatalog{}, emb, 5, zap.NewNop())
	ctx := context.Background()

	got, err := r.Recommend(ctx, []models.Keyword{{Name: "립밤"}}, classifier.UnknownCategory, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, src.calls)

	empty := NewRecommender(&staticProducts{}, staticCatalog{}, emb, 5, zap.NewNop())
	got, err = empty.Recommend(ctx, []models.Keyword{{Name: "립밤"}}, classifier.CategoryBeauty, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, emb.Calls)
}

func TestRecommend_WithoutKeywordsRanksWholeCache(t *testing.T) {
	emb := testutil.NewFakeEmbedder(2)
	emb.Vectors[""] = []float32{1, 0}
	src := &staticProducts{products: []models.Product{
		product("셋째", 0, 1), product("첫째", 1, 0), product("둘째", 1, 1),
	}}
	r := NewRecommender(src, staticCatalog{}, emb, 5, zap.NewNop())

	for _, kws := range [][]models.Keyword{nil, {}} {
		got, err := r.Recommend(context.Background(), kws, classifier.CategoryBeauty, 1)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "첫째", got[0].Product.Name)
		assert.Equal(t, "둘째", got[1].Product.Name)
		assert.Equal(t, "셋째", got[2].Product.Name)
	}
	assert.Equal(t, []string{"", ""}, emb.Texts)
}

func TestRecommend_SkipsMismatchedDimensions(t *testing.T) {
	src := &staticProducts{products: []models.Product{product("ok", 1, 0), product("bad", 1, 0, 0)}}
	got, err := NewRecommender(src, staticCatalog{}, testutil.NewFakeEmbedder(2), 5, zap.NewNop()).
		Recommend(context.Background(), []models.Keyword{{Name: "x"}}, classifier.CategoryBeauty, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Product.Name)
}

func TestRecommend_EmbedError(t *testing.T) {
	emb := testutil.NewFakeEmbedder(2)
	emb.Err = errors.New("timeout")
	src := &staticProducts{products: []models.Product{product("a", 1, 0)}}

	_, err := NewRecommender(src, staticCatalog{}, emb, 5, zap.NewNop()).
		Recommend(context.Background(), []models.Keyword{{Name: "x"}}, classifier.CategoryBeauty, 1)
	assert.Error(t, err)
}

func TestPresent(t *testing.T) {
	idx := catalog.NewIndex([]models.Product{
		{Name: "[특가] 원터치 텐트 4인용", Price: "120000", ImageURL: "https://img/t.jpg", ProductURL: "https://shop/t"},
		{Name: "원터치 텐트 2인용", Price: "80000", ImageURL: "https://img/t2.jpg", ProductURL: "https://shop/t2"},
	})
	r := NewRecommender(&staticProducts{}, staticCatalog{idx: idx}, testutil.NewFakeEmbedder(2), 5, zap.NewNop())

	items := r.Present(context.Background(), []models.RankedProduct{
		{Product: models.Product{Name: "원터치 텐트"}, Similarity: 0.9},
		{Product: models.Product{Name: "캠핑 의자"}, Similarity: 0.5},
	}, classifier.CategoryLeisure)
	require.Len(t, items, 2)

	found := items[0]
	assert.Equal(t, "원터치 텐트", found.Name)
	assert.Equal(t, classifier.CategoryLeisure, found.Category)
	require.NotNil(t, found.ImageURL)
	assert.Equal(t, "https://img/t.jpg", *found.ImageURL)
	assert.Equal(t, "120000", found.Price)
	require.NotNil(t, found.Description)
	assert.Equal(t, "https://shop/t", *found.Description)

	missing := items[1]
	assert.Nil(t, missing.ImageURL)
	assert.Nil(t, missing.Description)
	assert.Equal(t, PriceUnknown, missing.Price)

	assert.NotEmpty(t, found.ID)
	assert.NotEqual(t, found.ID, missing.ID)
}

func TestPresent_CatalogUnavailable(t *testing.T) {
	r := NewRecommender(&staticProducts{}, staticCatalog{err: errors.New("gone")}, testutil.NewFakeEmbedder(2), 5, zap.NewNop())
	items := r.Present(context.Background(), []models.RankedProduct{{Product: models.Product{Name: "립밤"}}}, classifier.CategoryBeauty)
	require.Len(t, items, 1)
	assert.Equal(t, PriceUnknown, items[0].Price)
	assert.Empty(t, r.Present(context.Background(), nil, classifier.CategoryBeauty))
}
