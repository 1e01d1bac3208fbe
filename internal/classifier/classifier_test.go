package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/gift-bot/internal/inference"
	"github.com/xaenox/gift-bot/internal/testutil"
)

func TestInterestClassifier_ClassifyBatch(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.PredictFunc = func(model string, req *inference.PredictRequest) (*inference.PredictResponse, error) {
		rows := make([][]float64, len(req.Inputs))
		for i, in := range req.Inputs {
			if in == "좋다" {
				rows[i] = []float64{-1, 2}
			} else {
				rows[i] = []float64{3, 0}
			}
		}
		return &inference.PredictResponse{Outputs: map[string][][]float64{inference.HeadLogits: rows}}, nil
	}

	c := NewInterestClassifier(backend, "", 0, zap.NewNop())
	labels, err := c.ClassifyBatch(context.Background(), []string{"좋다", "그냥", "좋다"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 1}, labels)

	calls := backend.CallsFor(InterestModel)
	require.Len(t, calls, 1)
	assert.Equal(t, InterestMaxLength, calls[0].MaxLen)
}

func TestInterestClassifier_Empty(t *testing.T) {
	backend := testutil.NewFakeBackend()
	c := NewInterestClassifier(backend, "", 0, zap.NewNop())

	labels, err := c.ClassifyBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, labels)
	assert.Empty(t, backend.Calls)
}

func TestInterestClassifier_BackendError(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.PredictFunc = func(model string, req *inference.PredictRequest) (*inference.PredictResponse, error) {
		return nil, &inference.ModelInferenceError{Model: model, Err: errors.New("boom")}
	}

	c := NewInterestClassifier(backend, "", 0, zap.NewNop())
	_, err := c.ClassifyBatch(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, inference.ErrModelInference)
}

func TestInterestClassifier_ShortOutput(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.PredictFunc = func(model string, req *inference.PredictRequest) (*inference.PredictResponse, error) {
		return &inference.PredictResponse{Outputs: map[string][][]float64{inference.HeadLogits: testutil.Rows(1, 0, 1)}}, nil
	}

	c := NewInterestClassifier(backend, "", 0, zap.NewNop())
	_, err := c.ClassifyBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, inference.ErrModelInference)
}

func topicBackend(score float64, subject int) *testutil.FakeBackend {
	backend := testutil.NewFakeBackend()
	backend.PredictFunc = func(model string, req *inference.PredictRequest) (*inference.PredictResponse, error) {
		subj := make([]float64, 20)
		subj[subject] = 10
		return &inference.PredictResponse{Outputs: map[string][][]float64{
			inference.HeadScore:   testutil.Rows(len(req.Inputs), score),
			inference.HeadAwkward: testutil.Rows(len(req.Inputs), 0.3, 0.7),
			inference.HeadSubject: testutil.Rows(len(req.Inputs), subj...),
		}}, nil
	}
	return backend
}

func TestTopicClassifier_Classify(t *testing.T) {
	backend := topicBackend(0.5, 7)
	c := NewTopicClassifier(backend, nil, "", 0, zap.NewNop())

	s, err := c.Classify(context.Background(), "여행 가자 제주도")
	require.NoError(t, err)
	assert.Equal(t, 7, s.ID)
	assert.Equal(t, "여행", s.Name)
	assert.Equal(t, CategoryLeisure, s.Category)
	assert.Zero(t, s.Score)

	calls := backend.CallsFor(TopicModel)
	require.Len(t, calls, 1)
	assert.Equal(t, TopicMaxLength, calls[0].MaxLen)
}

func TestTopicClassifier_ClassifyWithScore(t *testing.T) {
	c := NewTopicClassifier(topicBackend(1, 18), nil, "", 0, zap.NewNop())

	s, err := c.ClassifyWithScore(context.Background(), "배고파 치킨 먹자")
	require.NoError(t, err)
	assert.Equal(t, "식음료", s.Name)
	assert.Equal(t, CategoryFood, s.Category)
	assert.Equal(t, 4.0, s.Score)
}

func TestTopicClassifier_UnknownSubject(t *testing.T) {
	for _, id := range []int{4, 19} {
		c := NewTopicClassifier(topicBackend(0, id), nil, "", 0, zap.NewNop())
		s, err := c.Classify(context.Background(), "...")
		require.NoError(t, err)
		assert.Equal(t, UnknownSubject, s.Name)
		assert.Equal(t, UnknownCategory, s.Category)
	}
}

func TestTopicScore_Clipping(t *testing.T) {
	assert.Equal(t, 0.0, TopicScore(-2))
	assert.Equal(t, 5.33, TopicScore(2))
	assert.Equal(t, 0.0, TopicScore(-1e6))
	assert.Equal(t, 5.33, TopicScore(1e6))
	assert.Equal(t, 1.33, TopicScore(-1))

	for _, raw := range []float64{-1e6, -3, -2, -0.7, 0, 0.4, 1.99, 2, 7, 1e6} {
		v := TopicScore(raw)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 5.33)
	}
}

func TestPairs_SlidingWindow(t *testing.T) {
	assert.Nil(t, Pairs(nil))
	assert.Nil(t, Pairs([]string{"a"}))
	assert.Equal(t, []string{"a [SEP] b", "b [SEP] c"}, Pairs([]string{" a ", "b", "c "}))

	msgs := make([]string, 10)
	for i := range msgs {
		msgs[i] = "m"
	}
	assert.Len(t, Pairs(msgs), 9)
}

func TestIntimacyScorer_Degenerate(t *testing.T) {
	backend := testutil.NewFakeBackend()
	s := NewIntimacyScorer(backend, "", 0, 0, zap.NewNop())

	v, err := s.Score(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, err = s.Score(context.Background(), []string{"혼자"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	assert.Empty(t, backend.Calls)
}

func TestIntimacyScorer_Score(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.PredictFunc = func(model string, req *inference.PredictRequest) (*inference.PredictResponse, error) {
		return &inference.PredictResponse{Outputs: map[string][][]float64{
			inference.HeadScore: testutil.Rows(len(req.Inputs), 0),
		}}, nil
	}

	s := NewIntimacyScorer(backend, "", 0, 2, zap.NewNop())
	v, err := s.Score(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	// sigmoid(0) * 8
	assert.Equal(t, 4.0, v)

	total := 0
	for _, c := range backend.CallsFor(TopicModel) {
		total += len(c.Inputs)
		assert.Equal(t, PairMaxLength, c.MaxLen)
	}
	assert.Equal(t, 4, total)
	assert.Len(t, backend.Calls, 2)
}

func TestIntimacyScorer_Mean(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.PredictFunc = func(model string, req *inference.PredictRequest) (*inference.PredictResponse, error) {
		rows := make([][]float64, len(req.Inputs))
		for i, in := range req.Inputs {
			if in == "a [SEP] b" {
				rows[i] = []float64{100}
			} else {
				rows[i] = []float64{-100}
			}
		}
		return &inference.PredictResponse{Outputs: map[string][][]float64{inference.HeadScore: rows}}, nil
	}

	s := NewIntimacyScorer(backend, "", 0, 0, zap.NewNop())
	v, err := s.Score(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)
}

func TestIntimacyScorer_Error(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.PredictFunc = func(model string, req *inference.PredictRequest) (*inference.PredictResponse, error) {
		return nil, &inference.ModelInferenceError{Model: model, Err: errors.New("down")}
	}

	s := NewIntimacyScorer(backend, "", 0, 0, zap.NewNop())
	_, err := s.Score(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, inference.ErrModelInference)
}

func TestTaxonomy(t *testing.T) {
	tax := DefaultTaxonomy()
	assert.Len(t, tax.Categories(), 7)

	cats := map[string]bool{}
	for id := 0; id < 19; id++ {
		s := tax.Subject(id)
		if id == 4 {
			assert.Equal(t, UnknownSubject, s.Name)
			continue
		}
		assert.NotEqual(t, UnknownSubject, s.Name, id)
		cats[s.Category] = true
	}
	assert.Len(t, cats, 7)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.23, Round2(1.234))
	assert.Equal(t, 1.0, Round2(0.999))
}
