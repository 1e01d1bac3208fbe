package keywords

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/gift-bot/internal/inference"
	"github.com/xaenox/gift-bot/internal/models"
)

type fixedLabels struct {
	labels map[string]int
	err    error
}

func (f fixedLabels) ClassifyBatch(ctx context.Context, msgs []string) ([]int, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]int, len(msgs))
	for i, m := range msgs {
		out[i] = f.labels[m]
	}
	return out, nil
}

type fieldNouns map[string][]string

func (f fieldNouns) Nouns(ctx context.Context, text string) ([]string, error) {
	if n, ok := f[text]; ok {
		return n, nil
	}
	return strings.Fields(text), nil
}

type fixedPhrases map[string][]models.Keyword

func (f fixedPhrases) Extract(ctx context.Context, text string, topN int) ([]models.Keyword, error) {
	return f[text], nil
}

func scores(kws []models.Keyword) map[string]float64 {
	out := map[string]float64{}
	for _, k := range kws {
		out[k.Name] = k.Score
	}
	return out
}

func TestExtract_InterestWeighting(t *testing.T) {
	msgs := []string{"헐 완전 좋다", "ㅇㅇ 나도 그럴듯"}
	labels := fixedLabels{labels: map[string]int{msgs[0]: 1, msgs[1]: 0}}
	nouns := fieldNouns{
		msgs[0]: {"완전", "캠핑"},
		msgs[1]: {"나도", "캠핑"},
	}
	phrases := fixedPhrases{
		msgs[0]: {{Name: "완전", Score: 0.5}, {Name: "완전 캠핑", Score: 0.4}},
		msgs[1]: {{Name: "나도", Score: 0.5}},
	}

	e := NewExtractor(labels, nouns, phrases, nil, zap.NewNop())
	kws, err := e.Extract(context.Background(), msgs)
	require.NoError(t, err)

	got := scores(kws)
	assert.InDelta(t, 0.5*2.0+0.3, got["완전"], 1e-9)
	assert.InDelta(t, 0.4*2.5, got["완전 캠핑"], 1e-9)
	assert.InDelta(t, 0.5*2.0*0.5+0.1, got["나도"], 1e-9)
	assert.InDelta(t, 0.3+0.1, got["캠핑"], 1e-9)
}

func TestExtract_SortedDescending(t *testing.T) {
	msgs := []string{"a", "b"}
	e := NewExtractor(
		fixedLabels{labels: map[string]int{"a": 1, "b": 1}},
		fieldNouns{"a": {"선물", "케이크"}, "b": {"케이크"}},
		fixedPhrases{"a": {{Name: "선물", Score: 0.9}}},
		nil, zap.NewNop())

	kws, err := e.Extract(context.Background(), msgs)
	require.NoError(t, err)
	require.Len(t, kws, 2)
	assert.Equal(t, "선물", kws[0].Name)
	assert.Equal(t, "케이크", kws[1].Name)
	for i := 1; i < len(kws); i++ {
		assert.GreaterOrEqual(t, kws[i-1].Score, kws[i].Score)
	}
}

func TestExtract_NounFilters(t *testing.T) {
	msg := "m"
	e := NewExtractor(
		fixedLabels{labels: map[string]int{msg: 1}},
		fieldNouns{msg: {"것", "우리", "향수", "향수"}},
		fixedPhrases{msg: {{Name: "향수", Score: 0.7}, {Name: "향수 브랜드", Score: 0.8}, {Name: "우리", Score: 0.6}}},
		Stopwords{"우리": {}},
		zap.NewNop())

	kws, err := e.Extract(context.Background(), []string{msg})
	require.NoError(t, err)

	got := scores(kws)
	// single-rune noun and stopword dropped; phrase with a non-noun token dropped
	assert.NotContains(t, got, "것")
	assert.NotContains(t, got, "우리")
	assert.NotContains(t, got, "향수 브랜드")
	// duplicate nouns count once
	assert.InDelta(t, 0.7*2.0+0.3, got["향수"], 1e-9)
}

func TestExtract_DropsPredicateEndings(t *testing.T) {
	msg := "m"
	e := NewExtractor(
		fixedLabels{labels: map[string]int{msg: 1}},
		fieldNouns{msg: {"좋다", "먹어", "같지", "마음", "가방", "가방 좋다"}},
		fixedPhrases{},
		nil, zap.NewNop())

	kws, err := e.Extract(context.Background(), []string{msg})
	require.NoError(t, err)
	assert.Equal(t, []models.Keyword{{Name: "가방", Score: 0.3}}, kws)
}

func TestExtract_MonotoneInSupportingMessages(t *testing.T) {
	base := []string{"캠핑 가자", "텐트 사야지"}
	more := append(append([]string(nil), base...), "캠핑 의자도")

	labels := fixedLabels{labels: map[string]int{"캠핑 가자": 1, "캠핑 의자도": 0}}
	phrases := fixedPhrases{
		"캠핑 가자":  {{Name: "캠핑", Score: 0.6}},
		"캠핑 의자도": {{Name: "캠핑", Score: 0.2}, {Name: "의자도", Score: -0.1}},
	}
	nouns := fieldNouns{"캠핑 가자": {"캠핑"}, "텐트 사야지": {"텐트"}, "캠핑 의자도": {"캠핑", "의자"}}

	e := NewExtractor(labels, nouns, phrases, nil, zap.NewNop())
	before, err := e.Extract(context.Background(), base)
	require.NoError(t, err)
	after, err := e.Extract(context.Background(), more)
	require.NoError(t, err)

	b, a := scores(before), scores(after)
	for k, v := range b {
		assert.GreaterOrEqual(t, a[k], v, k)
	}
	assert.Greater(t, a["캠핑"], b["캠핑"])
}

func TestExtract_LabelerError(t *testing.T) {
	e := NewExtractor(
		fixedLabels{err: &inference.ModelInferenceError{Model: "interest", Err: errors.New("down")}},
		fieldNouns{}, fixedPhrases{}, nil, zap.NewNop())

	_, err := e.Extract(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, inference.ErrModelInference)
}

func TestPhraseWeight(t *testing.T) {
	assert.Equal(t, 2.0, PhraseWeight("캠핑", 1))
	assert.Equal(t, 2.5, PhraseWeight("캠핑 의자", 1))
	assert.Equal(t, 1.0, PhraseWeight("캠핑", 0))
	assert.Equal(t, 1.25, PhraseWeight("캠핑 의자", 0))
}

func TestReadStopwords(t *testing.T) {
	sw, err := ReadStopwords(strings.NewReader("우리\n\n  그리고 \n"))
	require.NoError(t, err)
	assert.Len(t, sw, 2)
	assert.True(t, sw.Contains("그리고"))
	assert.False(t, sw.Contains(""))
}
