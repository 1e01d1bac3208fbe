// Package testutil provides fakes of the model server and embedding
// endpoints for package tests.
package testutil

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/xaenox/gift-bot/internal/inference"
)

// PredictCall records one Predict invocation.
type PredictCall struct {
	Model  string
	Inputs []string
	MaxLen int
}

// FakeBackend implements inference.Backend with pluggable functions.
type FakeBackend struct {
	mu sync.Mutex

	PredictFunc func(model string, req *inference.PredictRequest) (*inference.PredictResponse, error)
	NounsFunc   func(text string) ([]string, error)

	Calls      []PredictCall
	NounsCalls int
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{}
}

func (f *FakeBackend) Predict(ctx context.Context, model string, req *inference.PredictRequest) (*inference.PredictResponse, error) {
	f.mu.Lock()
	inputs := append([]string(nil), req.Inputs...)
	f.Calls = append(f.Calls, PredictCall{Model: model, Inputs: inputs, MaxLen: req.MaxLength})
	fn := f.PredictFunc
	f.mu.Unlock()

	if fn == nil {
		return &inference.PredictResponse{Outputs: map[string][][]float64{}}, nil
	}
	return fn(model, req)
}

func (f *FakeBackend) Nouns(ctx context.Context, analyzer string, text string) ([]string, error) {
	f.mu.Lock()
	f.NounsCalls++
	fn := f.NounsFunc
	f.mu.Unlock()

	if fn == nil {
		return strings.Fields(text), nil
	}
	return fn(text)
}

func (f *FakeBackend) Healthy(ctx context.Context) error { return nil }

// CallsFor returns the recorded calls to model.
func (f *FakeBackend) CallsFor(model string) []PredictCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []PredictCall
	for _, c := range f.Calls {
		if c.Model == model {
			out = append(out, c)
		}
	}
	return out
}

// Rows builds a head with the same row for every input.
func Rows(n int, row ...float64) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// FakeEmbedder returns fixed vectors for known texts and a hashed
// bag-of-tokens vector for everything else.
type FakeEmbedder struct {
	mu      sync.Mutex
	Vectors map[string][]float32
	Dim     int
	Err     error
	Calls   int
	Texts   []string
}

func NewFakeEmbedder(dim int) *FakeEmbedder {
	return &FakeEmbedder{Vectors: map[string][]float32{}, Dim: dim}
}

func (f *FakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls++
	f.Texts = append(f.Texts, texts...)
	if f.Err != nil {
		return nil, f.Err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.Vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = f.hashed(t)
	}
	return out, nil
}

func (f *FakeEmbedder) hashed(text string) []float32 {
	v := make([]float32, f.Dim)
	for _, tok := range strings.Fields(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		v[int(h.Sum32())%f.Dim]++
	}
	return v
}
