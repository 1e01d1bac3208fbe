package keywords

import (
	"context"

	"github.com/xaenox/gift-bot/internal/inference"
)

// DefaultAnalyzer is the morphological analyzer hosted by the model server.
const DefaultAnalyzer = "okt"

// NounExtractor returns the nouns of a sentence in order of appearance.
type NounExtractor interface {
	Nouns(ctx context.Context, text string) ([]string, error)
}

// BackendNouns asks the model server's morphological analyzer for nouns.
type BackendNouns struct {
	backend  inference.Backend
	analyzer string
}

func NewBackendNouns(backend inference.Backend, analyzer string) *BackendNouns {
	if analyzer == "" {
		analyzer = DefaultAnalyzer
	}
	return &BackendNouns{backend: backend, analyzer: analyzer}
}

func (n *BackendNouns) Nouns(ctx context.Context, text string) ([]string, error) {
	return n.backend.Nouns(ctx, n.analyzer, text)
}
