// ABOUTME: Monthly report computation, caching and the gift counter
// ABOUTME: Recomputing a month replaces its cached report but keeps giftUnlocked

package journal

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/2389/tatasbox/internal/kv"
)

const topN = 3

// CurrentMonth returns the current UTC month as YYYY-MM.
func (s *Store) CurrentMonth() string {
	return s.today().Format(monthLayout)
}

// ComputeMonthlyReport aggregates month (YYYY-MM, empty for the current
// month) and caches the result in place of any earlier report for it.
func (s *Store) ComputeMonthlyReport(month string) (MonthlyReport, *kv.Write, error) {
	if month == "" {
		month = s.CurrentMonth()
	}
	if _, err := time.Parse(monthLayout, month); err != nil {
		return MonthlyReport{}, nil, fmt.Errorf("%w: month %q", ErrInvalidInput, month)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := MonthlyReport{
		Month:              month,
		Highlights:         []string{},
		MoodTrend:          []int{},
		ExperimentsSummary: []string{},
	}

	for _, c := range s.checkIns {
		if strings.HasPrefix(c.Date, month) {
			r.MoodTrend = append(r.MoodTrend, c.Mood)
		}
	}

	values := newTally()
	strengths := newTally()
	for _, sess := range s.sessions {
		if sess.Status != SessionDone || sess.StartedAt.UTC().Format(monthLayout) != month {
			continue
		}
		for _, step := range sess.Steps {
			if step.AnswerText == "" {
				continue
			}
			for _, tag := range s.classifier.Classify(step.AnswerText) {
				switch tag.Kind {
				case TagValue:
					values.add(tag.Word)
				case TagStrength:
					strengths.add(tag.Word)
				}
			}
		}
	}
	var valueOrder, strengthOrder []string
	if o, ok := s.classifier.(Ordering); ok {
		valueOrder = o.Order(TagValue)
		strengthOrder = o.Order(TagStrength)
	}
	r.TopValues = values.top(topN, valueOrder)
	r.TopStrengths = strengths.top(topN, strengthOrder)

	for _, e := range s.experiments {
		if strings.HasPrefix(e.StartDate, month) {
			r.ExperimentsSummary = append(r.ExperimentsSummary,
				fmt.Sprintf("%s: %d/%d", e.Title, e.DoneCount(), len(e.Ticks)))
		}
	}

	next := make([]MonthlyReport, 0, len(s.reports)+1)
	for _, existing := range s.reports {
		if existing.Month == month {
			r.GiftUnlocked = existing.GiftUnlocked
			continue
		}
		next = append(next, existing)
	}
	s.reports = append(next, r)

	return r.clone(), s.persistLocked(), nil
}

// UnlockGift increments the gift counter of a cached report. An empty month
// means the current one.
func (s *Store) UnlockGift(month string) (MonthlyReport, *kv.Write, error) {
	if month == "" {
		month = s.CurrentMonth()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.reportIndexLocked(month)
	if i < 0 {
		return MonthlyReport{}, nil, ErrReportNotFound
	}

	next := s.reports[i].clone()
	next.GiftUnlocked++
	s.reports[i] = next

	return next.clone(), s.persistLocked(), nil
}

// Report returns the cached report for month.
func (s *Store) Report(month string) (MonthlyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.reportIndexLocked(month)
	if i < 0 {
		return MonthlyReport{}, ErrReportNotFound
	}
	return s.reports[i].clone(), nil
}

// Reports returns every cached report in stored order.
func (s *Store) Reports() []MonthlyReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]MonthlyReport, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r.clone())
	}
	return out
}

func (s *Store) reportIndexLocked(month string) int {
	for i := range s.reports {
		if s.reports[i].Month == month {
			return i
		}
	}
	return -1
}

// tally counts words and remembers the order they were first seen.
type tally struct {
	counts map[string]int
	seen   []string
}

func newTally() *tally {
	return &tally{counts: map[string]int{}}
}

func (t *tally) add(word string) {
	if _, ok := t.counts[word]; !ok {
		t.seen = append(t.seen, word)
	}
	t.counts[word]++
}

// top returns up to n words by descending count. Ties follow order when the
// word appears in it, otherwise first-seen order.
func (t *tally) top(n int, order []string) []string {
	rank := make(map[string]int, len(order))
	for i, w := range order {
		rank[w] = i
	}
	position := func(w string) int {
		if r, ok := rank[w]; ok {
			return r
		}
		return len(order)
	}

	words := append([]string{}, t.seen...)
	sort.SliceStable(words, func(i, j int) bool {
		ci, cj := t.counts[words[i]], t.counts[words[j]]
		if ci != cj {
			return ci > cj
		}
		return position(words[i]) < position(words[j])
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}
