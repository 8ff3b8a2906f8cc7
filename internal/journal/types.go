// ABOUTME: Journal domain types: check-ins, dialogue sessions, experiments, reports
// ABOUTME: JSON names match the persisted self-explore snapshot

package journal

import (
	"errors"
	"time"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrExperimentNotFound = errors.New("experiment not found")
	ErrTickNotFound       = errors.New("no tick for that date")
	ErrReportNotFound     = errors.New("no report cached for that month")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidInput       = errors.New("invalid input")
)

// FocusArea tags what a check-in is about.
type FocusArea string

const (
	FocusWork         FocusArea = "work"
	FocusStudy        FocusArea = "study"
	FocusHealth       FocusArea = "health"
	FocusRelationship FocusArea = "relationship"
	FocusOther        FocusArea = "other"
)

// CheckIn is a daily mood entry. At most one exists per date.
type CheckIn struct {
	ID    string    `json:"id"`
	Date  string    `json:"date"`
	Mood  int       `json:"mood"`
	Focus FocusArea `json:"focus"`
	Note  string    `json:"note,omitempty"`
}

// DialoguePath is one of the guided reflection flows.
type DialoguePath string

const (
	PathValues         DialoguePath = "values"
	PathStrengths      DialoguePath = "strengths"
	PathBlockers       DialoguePath = "blockers"
	PathLifeLine       DialoguePath = "lifeLine"
	PathMirrorDecision DialoguePath = "mirrorDecision"
)

func (p DialoguePath) Valid() bool {
	switch p {
	case PathValues, PathStrengths, PathBlockers, PathLifeLine, PathMirrorDecision:
		return true
	}
	return false
}

// PrivacyLevel controls whether a session is persisted.
type PrivacyLevel string

const (
	PrivacySave      PrivacyLevel = "save"
	PrivacyLocal     PrivacyLevel = "local"
	PrivacyEphemeral PrivacyLevel = "ephemeral"
)

func (p PrivacyLevel) Valid() bool {
	switch p {
	case PrivacySave, PrivacyLocal, PrivacyEphemeral:
		return true
	}
	return false
}

// SessionStatus is ongoing until the session is ended.
type SessionStatus string

const (
	SessionOngoing SessionStatus = "ongoing"
	SessionDone    SessionStatus = "done"
)

// DialogueStep is one question and its answer.
type DialogueStep struct {
	QID        string    `json:"qid"`
	Question   string    `json:"question"`
	AnswerText string    `json:"answerText,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Session is a guided reflection dialogue. Steps are append-only.
type Session struct {
	ID         string         `json:"id"`
	Path       DialoguePath   `json:"path"`
	Steps      []DialogueStep `json:"steps"`
	Status     SessionStatus  `json:"status"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
	Privacy    PrivacyLevel   `json:"privacy"`
}

func (s Session) clone() Session {
	c := s
	c.Steps = append([]DialogueStep{}, s.Steps...)
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	return c
}

// ExperimentStatus moves from active to exactly one terminal state.
type ExperimentStatus string

const (
	ExperimentActive    ExperimentStatus = "active"
	ExperimentDone      ExperimentStatus = "done"
	ExperimentAbandoned ExperimentStatus = "abandoned"
)

// ExperimentTick records one day of an experiment.
type ExperimentTick struct {
	Date string `json:"date"`
	Done bool   `json:"done"`
	Note string `json:"note,omitempty"`
}

// Experiment is a time-boxed behavior trial with one tick per day.
type Experiment struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Hypothesis string           `json:"hypothesis"`
	Metric     string           `json:"metric"`
	StartDate  string           `json:"startDate"`
	EndDate    string           `json:"endDate"`
	Days       int              `json:"days"`
	Ticks      []ExperimentTick `json:"ticks"`
	Status     ExperimentStatus `json:"status"`
}

func (e Experiment) clone() Experiment {
	c := e
	c.Ticks = append([]ExperimentTick{}, e.Ticks...)
	return c
}

// DoneCount returns how many ticks are marked done.
func (e Experiment) DoneCount() int {
	n := 0
	for _, t := range e.Ticks {
		if t.Done {
			n++
		}
	}
	return n
}

// MonthlyReport is the cached aggregate for one YYYY-MM month.
type MonthlyReport struct {
	Month              string   `json:"month"`
	Highlights         []string `json:"highlights"`
	TopValues          []string `json:"topValues"`
	TopStrengths       []string `json:"topStrengths"`
	MoodTrend          []int    `json:"moodTrend"`
	ExperimentsSummary []string `json:"experimentsSummary"`
	GiftUnlocked       int      `json:"giftUnlocked"`
}

func (r MonthlyReport) clone() MonthlyReport {
	c := r
	c.Highlights = append([]string{}, r.Highlights...)
	c.TopValues = append([]string{}, r.TopValues...)
	c.TopStrengths = append([]string{}, r.TopStrengths...)
	c.MoodTrend = append([]int{}, r.MoodTrend...)
	c.ExperimentsSummary = append([]string{}, r.ExperimentsSummary...)
	return c
}

// Settings are the journal's user preferences.
type Settings struct {
	Language       string       `json:"language"`
	PrivacyDefault PrivacyLevel `json:"privacyDefault"`
}

// DefaultSettings returns zh with sessions saved by default.
func DefaultSettings() Settings {
	return Settings{Language: "zh", PrivacyDefault: PrivacySave}
}
