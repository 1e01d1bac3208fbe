package keywords

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/xaenox/gift-bot/internal/embedding"
	"github.com/xaenox/gift-bot/internal/models"
)

// PhraseExtractor ranks candidate keyphrases of a single text.
type PhraseExtractor interface {
	Extract(ctx context.Context, text string, topN int) ([]models.Keyword, error)
}

// tokens of two or more word characters, as a count vectorizer would split
var tokenRe = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]{2,}`)

// KeyphraseExtractor scores unigram and bigram candidates by the cosine
// similarity of their embedding to the embedding of the whole text.
type KeyphraseExtractor struct {
	embedder embedding.Embedder
	minN     int
	maxN     int
}

func NewKeyphraseExtractor(embedder embedding.Embedder) *KeyphraseExtractor {
	return &KeyphraseExtractor{embedder: embedder, minN: 1, maxN: 2}
}

// Candidates returns the distinct n-grams of text in lexical order.
func (k *KeyphraseExtractor) Candidates(text string) []string {
	tokens := tokenRe.FindAllString(strings.ToLower(text), -1)

	seen := make(map[string]struct{})
	for n := k.minN; n <= k.maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			seen[strings.Join(tokens[i:i+n], " ")] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Extract returns at most topN candidates, best first, with scores
// rounded to four decimals. A text without candidates yields nothing.
func (k *KeyphraseExtractor) Extract(ctx context.Context, text string, topN int) ([]models.Keyword, error) {
	candidates := k.Candidates(text)
	if len(candidates) == 0 || topN <= 0 {
		return nil, nil
	}

	vecs, err := k.embedder.Embed(ctx, append([]string{text}, candidates...))
	if err != nil {
		return nil, fmt.Errorf("embed keyphrase candidates: %w", err)
	}
	if len(vecs) != len(candidates)+1 {
		return nil, fmt.Errorf("embed keyphrase candidates: got %d vectors, want %d", len(vecs), len(candidates)+1)
	}

	doc := vecs[0]
	scored := make([]models.Keyword, 0, len(candidates))
	for i, c := range candidates {
		sim, err := embedding.Cosine(doc, vecs[i+1])
		if err != nil {
			return nil, err
		}
		scored = append(scored, models.Keyword{Name: c, Score: math.Round(sim*10000) / 10000})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > topN {
		scored = scored[:topN]
	}
	return scored, nil
}
