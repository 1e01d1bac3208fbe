// Package keywords extracts interest-weighted keywords from the messages of
// one date-group.
package keywords

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/xaenox/gift-bot/internal/classifier"
	"github.com/xaenox/gift-bot/internal/models"
	"go.uber.org/zap"
)

// Weights applied while accumulating keyword scores.
const (
	PhraseTopN         = 5
	MultiWordWeight    = 2.5
	SingleWordWeight   = 2.0
	UninterestedFactor = 0.5
	InterestedNounBump = 0.3
	OtherNounBump      = 0.1
)

// tokens ending like a verb or adjective are leftovers of the analyzer
var predicateEndingRe = regexp.MustCompile(`(다|어|지|음)$`)

// Extractor accumulates keyword scores over a conversation.
type Extractor struct {
	labeler   classifier.InterestLabeler
	nouns     NounExtractor
	phrases   PhraseExtractor
	stopwords Stopwords
	logger    *zap.Logger
}

func NewExtractor(labeler classifier.InterestLabeler, nouns NounExtractor, phrases PhraseExtractor, stopwords Stopwords, logger *zap.Logger) *Extractor {
	if stopwords == nil {
		stopwords = Stopwords{}
	}
	return &Extractor{
		labeler:   labeler,
		nouns:     nouns,
		phrases:   phrases,
		stopwords: stopwords,
		logger:    logger,
	}
}

// scoreTable keeps first-insertion order so equal scores sort the same way
// on every run.
type scoreTable struct {
	order  []string
	scores map[string]float64
}

func newScoreTable() *scoreTable {
	return &scoreTable{scores: make(map[string]float64)}
}

func (t *scoreTable) add(k string, v float64) {
	if _, ok := t.scores[k]; !ok {
		t.order = append(t.order, k)
	}
	t.scores[k] += v
}

// Extract labels every message for interest, then for each message adds
// the weighted scores of its noun-only keyphrases and a flat bump for each
// noun. The result is sorted by score, highest first.
func (e *Extractor) Extract(ctx context.Context, messages []string) ([]models.Keyword, error) {
	labels, err := e.labeler.ClassifyBatch(ctx, messages)
	if err != nil {
		return nil, err
	}
	if len(labels) != len(messages) {
		return nil, fmt.Errorf("interest labels: got %d, want %d", len(labels), len(messages))
	}

	table := newScoreTable()
	for i, msg := range messages {
		if err := e.accumulate(ctx, table, msg, labels[i]); err != nil {
			return nil, err
		}
	}

	out := make([]models.Keyword, 0, len(table.order))
	for _, k := range table.order {
		if hasPredicateEnding(k) {
			continue
		}
		out = append(out, models.Keyword{Name: k, Score: table.scores[k]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (e *Extractor) accumulate(ctx context.Context, table *scoreTable, msg string, label int) error {
	nouns, err := e.nounSet(ctx, msg)
	if err != nil {
		return err
	}

	phrases, err := e.phrases.Extract(ctx, msg, PhraseTopN)
	if err != nil {
		return err
	}
	for _, p := range phrases {
		// a negative similarity would lower an existing keyword
		if p.Score <= 0 || !allNouns(p.Name, nouns.set) {
			continue
		}
		table.add(p.Name, p.Score*PhraseWeight(p.Name, label))
	}

	bump := OtherNounBump
	if label == 1 {
		bump = InterestedNounBump
	}
	for _, n := range nouns.order {
		table.add(n, bump)
	}
	return nil
}

type nounSet struct {
	order []string
	set   map[string]struct{}
}

func (e *Extractor) nounSet(ctx context.Context, msg string) (nounSet, error) {
	raw, err := e.nouns.Nouns(ctx, msg)
	if err != nil {
		e.logger.Error("Noun extraction failed", zap.Error(err))
		return nounSet{}, err
	}

	ns := nounSet{set: make(map[string]struct{}, len(raw))}
	for _, n := range raw {
		if utf8.RuneCountInString(n) < 2 || e.stopwords.Contains(n) {
			continue
		}
		if _, dup := ns.set[n]; dup {
			continue
		}
		ns.set[n] = struct{}{}
		ns.order = append(ns.order, n)
	}
	return ns, nil
}

// PhraseWeight is the multiplier for a keyphrase found in a message with
// the given interest label.
func PhraseWeight(phrase string, label int) float64 {
	w := SingleWordWeight
	if strings.Contains(phrase, " ") {
		w = MultiWordWeight
	}
	if label != 1 {
		w *= UninterestedFactor
	}
	return w
}

func allNouns(phrase string, nouns map[string]struct{}) bool {
	for _, tok := range strings.Fields(phrase) {
		if _, ok := nouns[tok]; !ok {
			return false
		}
	}
	return true
}

func hasPredicateEnding(keyword string) bool {
	for _, tok := range strings.Fields(keyword) {
		if predicateEndingRe.MatchString(tok) {
			return true
		}
	}
	return false
}
