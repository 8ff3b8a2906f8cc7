// ABOUTME: Daily story request and response types with defaults and limits
// ABOUTME: Field lengths are capped in runes so multi-byte text is never split

package story

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultLanguage = "zh"
	DefaultTopic    = "坚持到底"
	DefaultWords    = 220

	// FallbackTitle is used when the model gives no title.
	FallbackTitle = "每日励志故事"

	MinWords = 40
	MaxWords = 2000

	maxTitleRunes   = 80
	maxContentRunes = 1500
	maxMoralRunes   = 120
	maxTopicRunes   = 200
)

// ErrInvalidRequest is returned for out-of-range request fields.
var ErrInvalidRequest = errors.New("invalid story request")

// Request asks for one story. Zero values take the defaults.
type Request struct {
	Language string `json:"language,omitempty"`
	Topic    string `json:"topic,omitempty"`
	Words    int    `json:"words,omitempty"`
}

// Normalize fills defaults and checks ranges.
func (r Request) Normalize() (Request, error) {
	r.Language = strings.TrimSpace(r.Language)
	r.Topic = strings.TrimSpace(r.Topic)
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	if r.Topic == "" {
		r.Topic = DefaultTopic
	}
	if r.Words == 0 {
		r.Words = DefaultWords
	}

	if r.Words < MinWords || r.Words > MaxWords {
		return r, fmt.Errorf("%w: words must be between %d and %d", ErrInvalidRequest, MinWords, MaxWords)
	}
	if len(r.Language) > 16 {
		return r, fmt.Errorf("%w: language code too long", ErrInvalidRequest)
	}
	if len([]rune(r.Topic)) > maxTopicRunes {
		return r, fmt.Errorf("%w: topic longer than %d characters", ErrInvalidRequest, maxTopicRunes)
	}
	return r, nil
}

// Story is a generated story as returned to clients.
type Story struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Moral     string `json:"moral,omitempty"`
	Model     string `json:"model"`
	RequestID string `json:"request_id"`
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
