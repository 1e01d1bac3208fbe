// Package classifier wraps the fine-tuned conversation models: the binary
// interest classifier, the multitask topic model and the pairwise intimacy
// scorer built on the same multitask model.
package classifier

import (
	"context"
	"math"
)

// Default model names and token limits.
const (
	InterestModel = "interest"
	TopicModel    = "topic"

	InterestMaxLength = 128
	TopicMaxLength    = 512
	PairMaxLength     = 128

	DefaultBatchSize = 32
)

// InterestLabeler labels messages 1 (interested) or 0.
type InterestLabeler interface {
	ClassifyBatch(ctx context.Context, messages []string) ([]int, error)
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func chunks(items []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]string
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
