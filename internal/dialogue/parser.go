// Package dialogue turns KakaoTalk-style chat exports into per-date message
// groups and filters out messages that carry no conversation.
package dialogue

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xaenox/gift-bot/internal/models"
)

// Lines longer than this are skipped.
const maxLineSize = 1 << 20

var (
	dateHeaderRe = regexp.MustCompile(`(\d{4})년 (\d{1,2})월 (\d{1,2})일`)
	messageRe    = regexp.MustCompile(`[오전|오후]+\s*\d{1,2}:\d{2},\s*[^:]+:`)
	prefixRe     = regexp.MustCompile(`^\d{4}\. \d{1,2}\. \d{1,2}\. [오전|오후]+\s*\d{1,2}:\d{2},\s*[^:]+:\s*`)
)

// ParseError reports an export that could not be read at all.
// Malformed lines never produce it; they are skipped.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Dialogue maps ISO dates to the messages sent on that date.
type Dialogue struct {
	groups map[string][]string
}

// Parse reads a chat export. A date header line moves the date cursor, a
// timestamped line contributes its text to the current date. Messages seen
// before the first date header are dropped.
func Parse(r io.Reader) (*Dialogue, error) {
	d := &Dialogue{groups: make(map[string][]string)}

	br := bufio.NewReader(r)
	current := ""
	first := true
	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, &ParseError{Source: "chat export", Err: err}
		}
		if line != "" && len(line) <= maxLineSize {
			line = strings.TrimRight(line, "\r\n")
			if first {
				line = strings.TrimPrefix(line, "\ufeff")
			}
			current = d.add(current, line)
		}
		first = false
		if err == io.EOF {
			break
		}
	}
	return d, nil
}

// add applies one export line and returns the new date cursor.
func (d *Dialogue) add(current, line string) string {
	if m := dateHeaderRe.FindStringSubmatch(line); m != nil {
		return formatDate(m[1], m[2], m[3])
	}
	if !messageRe.MatchString(line) {
		return current
	}
	msg := strings.TrimSpace(prefixRe.ReplaceAllString(line, ""))
	if msg != "" && current != "" {
		d.groups[current] = append(d.groups[current], msg)
	}
	return current
}

// ParseFile parses the export stored at path.
func ParseFile(path string) (*Dialogue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}
	defer f.Close()

	d, err := Parse(f)
	if pe, ok := err.(*ParseError); ok {
		pe.Source = path
		return nil, pe
	}
	return d, err
}

func formatDate(y, m, d string) string {
	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(m)
	day, _ := strconv.Atoi(d)
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// Groups returns the date-groups sorted by date.
func (d *Dialogue) Groups() []models.DateGroup {
	dates := make([]string, 0, len(d.groups))
	for date := range d.groups {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	groups := make([]models.DateGroup, 0, len(dates))
	for _, date := range dates {
		msgs := make([]string, len(d.groups[date]))
		copy(msgs, d.groups[date])
		groups = append(groups, models.DateGroup{Date: date, Messages: msgs})
	}
	return groups
}

// Messages returns the messages of one date, or nil.
func (d *Dialogue) Messages(date string) []string {
	return d.groups[date]
}

// Len returns the number of dates.
func (d *Dialogue) Len() int {
	return len(d.groups)
}

// Filter keeps only the messages accepted by keep. Dates left without
// messages are removed.
func (d *Dialogue) Filter(keep func(string) bool) *Dialogue {
	out := &Dialogue{groups: make(map[string][]string, len(d.groups))}
	for date, msgs := range d.groups {
		var kept []string
		for _, m := range msgs {
			if keep(m) {
				kept = append(kept, m)
			}
		}
		if len(kept) > 0 {
			out.groups[date] = kept
		}
	}
	return out
}
