package keywords

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Stopwords is a read-only set of words excluded from noun extraction.
type Stopwords map[string]struct{}

// Contains reports whether w is a stopword.
func (s Stopwords) Contains(w string) bool {
	_, ok := s[w]
	return ok
}

// ReadStopwords reads one word per line, ignoring blank lines.
func ReadStopwords(r io.Reader) (Stopwords, error) {
	set := make(Stopwords)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if w := strings.TrimSpace(scanner.Text()); w != "" {
			set[w] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stopwords: %w", err)
	}
	return set, nil
}

// LoadStopwords reads the stopword file at path.
func LoadStopwords(path string) (Stopwords, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stopwords: %w", err)
	}
	defer f.Close()
	return ReadStopwords(f)
}
