// ABOUTME: Tests for monthly report aggregation, tie-breaking and the gift counter
// ABOUTME: Seeds journal state directly so sessions can start in other months

package journal

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tatasbox/internal/kv"
)

func seed(t *testing.T, st State) *kv.MemoryStore {
	t.Helper()
	mem := kv.NewMemoryStore()
	data, err := json.Marshal(envelope{Version: 1, State: st})
	require.NoError(t, err)
	require.NoError(t, mem.Set(context.Background(), "dev", Key, string(data)))
	return mem
}

func doneSession(id string, started time.Time, answers ...string) Session {
	steps := make([]DialogueStep, len(answers))
	for i, a := range answers {
		steps[i] = DialogueStep{QID: "q", Question: "?", AnswerText: a, CreatedAt: started}
	}
	return Session{ID: id, Path: PathValues, Steps: steps, Status: SessionDone, StartedAt: started, Privacy: PrivacySave}
}

func marchState() State {
	march := time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 20, 9, 0, 0, 0, time.UTC)

	ongoing := doneSession("ongoing", march, "freedom")
	ongoing.Status = SessionOngoing

	return State{
		CheckIns: []CheckIn{
			{ID: "1", Date: "2024-02-28", Mood: 1, Focus: FocusWork},
			{ID: "2", Date: "2024-03-01", Mood: 2, Focus: FocusWork},
			{ID: "3", Date: "2024-03-05", Mood: 4, Focus: FocusHealth},
		},
		Sessions: []Session{
			doneSession("s1", march, "Growth and IMPACT", "growth matters, also writing"),
			ongoing,
			doneSession("feb", feb, "stability", "leadership"),
		},
		Experiments: []Experiment{
			{ID: "e1", Title: "Read", StartDate: "2024-03-10", Days: 3, Status: ExperimentActive, Ticks: []ExperimentTick{
				{Date: "2024-03-10", Done: true}, {Date: "2024-03-11"}, {Date: "2024-03-12"},
			}},
			{ID: "e2", Title: "Old", StartDate: "2024-02-01", Days: 1, Status: ExperimentDone, Ticks: []ExperimentTick{
				{Date: "2024-02-01", Done: true},
			}},
		},
	}
}

func TestComputeMonthlyReport_Aggregates(t *testing.T) {
	s := openTestStore(t, seed(t, marchState()))

	r, w, err := s.ComputeMonthlyReport("2024-03")
	require.NoError(t, err)
	wait(t, w)

	assert.Equal(t, "2024-03", r.Month)
	assert.Equal(t, []int{2, 4}, r.MoodTrend)
	assert.Equal(t, []string{"growth", "impact"}, r.TopValues)
	assert.Equal(t, []string{"writing"}, r.TopStrengths)
	assert.Equal(t, []string{"Read: 1/3"}, r.ExperimentsSummary)
	assert.Empty(t, r.Highlights)
	assert.Equal(t, 0, r.GiftUnlocked)

	cached, err := s.Report("2024-03")
	require.NoError(t, err)
	assert.Equal(t, r, cached)
}

func TestComputeMonthlyReport_DefaultsToCurrentMonth(t *testing.T) {
	s := openTestStore(t, nil)

	r, _, err := s.ComputeMonthlyReport("")
	require.NoError(t, err)
	assert.Equal(t, "2024-03", r.Month)
	assert.Empty(t, r.MoodTrend)
	assert.Empty(t, r.TopValues)
}

func TestComputeMonthlyReport_InvalidMonth(t *testing.T) {
	s := openTestStore(t, nil)

	for _, m := range []string{"2024-13", "March", "2024-3-01"} {
		_, _, err := s.ComputeMonthlyReport(m)
		assert.ErrorIs(t, err, ErrInvalidInput, m)
	}
}

func TestComputeMonthlyReport_TopThree(t *testing.T) {
	march := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	s := openTestStore(t, seed(t, State{Sessions: []Session{
		doneSession("s", march, "stability impact freedom integrity growth", "stability and impact", "stability"),
	}}))

	r, _, err := s.ComputeMonthlyReport("2024-03")
	require.NoError(t, err)
	// stability=3, impact=2, then a three-way tie broken by vocabulary order.
	assert.Equal(t, []string{"stability", "impact", "growth"}, r.TopValues)
}

func TestComputeMonthlyReport_TiesFollowVocabulary(t *testing.T) {
	march := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	s := openTestStore(t, seed(t, State{Sessions: []Session{
		doneSession("s", march, "impact", "growth"),
	}}))

	r, _, err := s.ComputeMonthlyReport("2024-03")
	require.NoError(t, err)
	assert.Equal(t, []string{"growth", "impact"}, r.TopValues)
}

// wordClassifier tags every word as a value; it has no fixed vocabulary.
type wordClassifier struct{}

func (wordClassifier) Classify(text string) []Tag {
	var tags []Tag
	for _, w := range strings.Fields(text) {
		tags = append(tags, Tag{Kind: TagValue, Word: w})
	}
	return tags
}

func TestComputeMonthlyReport_InjectedClassifier(t *testing.T) {
	march := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	mem := seed(t, State{Sessions: []Session{
		doneSession("s", march, "courage", "kindness courage", "zeal"),
	}})
	s, err := Open(context.Background(), kv.NewBucket(mem, "dev"), Options{
		Now:        clock(fixedNow),
		Classifier: wordClassifier{},
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	r, _, err := s.ComputeMonthlyReport("2024-03")
	require.NoError(t, err)
	// Without a vocabulary, ties keep first-seen order.
	assert.Equal(t, []string{"courage", "kindness", "zeal"}, r.TopValues)
	assert.Empty(t, r.TopStrengths)
}

func TestGiftCounter_SurvivesRecompute(t *testing.T) {
	mem := seed(t, marchState())
	s := openTestStore(t, mem)

	_, _, err := s.UnlockGift("2024-03")
	assert.ErrorIs(t, err, ErrReportNotFound)

	_, _, err = s.ComputeMonthlyReport("2024-03")
	require.NoError(t, err)
	_, _, err = s.UnlockGift("2024-03")
	require.NoError(t, err)
	r, _, err := s.UnlockGift("2024-03")
	require.NoError(t, err)
	assert.Equal(t, 2, r.GiftUnlocked)

	r, w, err := s.ComputeMonthlyReport("2024-03")
	require.NoError(t, err)
	wait(t, w)
	assert.Equal(t, 2, r.GiftUnlocked)

	env := persistedEnvelope(t, mem)
	require.Len(t, env.State.Reports, 1)
	assert.Equal(t, 2, env.State.Reports[0].GiftUnlocked)
}

func TestUnlockGift_DefaultsToCurrentMonth(t *testing.T) {
	s := openTestStore(t, seed(t, marchState()))

	_, _, err := s.ComputeMonthlyReport("")
	require.NoError(t, err)

	r, w, err := s.UnlockGift("")
	require.NoError(t, err)
	wait(t, w)
	assert.Equal(t, "2024-03", r.Month)
	assert.Equal(t, 1, r.GiftUnlocked)

	cached, err := s.Report("2024-03")
	require.NoError(t, err)
	assert.Equal(t, 1, cached.GiftUnlocked)
}

func TestComputeMonthlyReport_ReplacesAndMovesToEnd(t *testing.T) {
	s := openTestStore(t, seed(t, marchState()))

	_, _, err := s.ComputeMonthlyReport("2024-02")
	require.NoError(t, err)
	_, _, err = s.ComputeMonthlyReport("2024-03")
	require.NoError(t, err)
	feb, _, err := s.ComputeMonthlyReport("2024-02")
	require.NoError(t, err)

	reports := s.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, "2024-03", reports[0].Month)
	assert.Equal(t, "2024-02", reports[1].Month)

	assert.Equal(t, []int{1}, feb.MoodTrend)
	assert.Equal(t, []string{"stability"}, feb.TopValues)
	assert.Equal(t, []string{"leadership"}, feb.TopStrengths)
	assert.Equal(t, []string{"Old: 1/1"}, feb.ExperimentsSummary)
}

func TestReport_NotFound(t *testing.T) {
	s := openTestStore(t, nil)
	_, err := s.Report("2023-01")
	assert.ErrorIs(t, err, ErrReportNotFound)
}
