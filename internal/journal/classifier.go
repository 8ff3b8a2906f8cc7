// ABOUTME: Classifier turns free-text answers into value and strength tags
// ABOUTME: KeywordClassifier matches a fixed vocabulary case-insensitively

package journal

import "strings"

// TagKind is the category of a Tag.
type TagKind string

const (
	TagValue    TagKind = "value"
	TagStrength TagKind = "strength"
)

// Tag is one classified word.
type Tag struct {
	Kind TagKind `json:"kind"`
	Word string  `json:"word"`
}

// Classifier extracts tags from an answer.
type Classifier interface {
	Classify(text string) []Tag
}

// Ordering is implemented by classifiers with a fixed vocabulary. Report
// rankings break count ties by it; for other classifiers ties follow the
// order words were first seen.
type Ordering interface {
	Order(kind TagKind) []string
}

// KeywordClassifier tags text containing any vocabulary word, ignoring case.
// Each word is tagged at most once per text.
type KeywordClassifier struct {
	Values    []string
	Strengths []string
}

// DefaultClassifier returns the built-in English vocabulary.
func DefaultClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		Values:    []string{"growth", "integrity", "freedom", "impact", "stability"},
		Strengths: []string{"writing", "analysis", "design", "leadership", "learning"},
	}
}

func (k *KeywordClassifier) Classify(text string) []Tag {
	lower := strings.ToLower(text)
	var tags []Tag
	for _, w := range k.Values {
		if strings.Contains(lower, strings.ToLower(w)) {
			tags = append(tags, Tag{Kind: TagValue, Word: w})
		}
	}
	for _, w := range k.Strengths {
		if strings.Contains(lower, strings.ToLower(w)) {
			tags = append(tags, Tag{Kind: TagStrength, Word: w})
		}
	}
	return tags
}

func (k *KeywordClassifier) Order(kind TagKind) []string {
	switch kind {
	case TagValue:
		return k.Values
	case TagStrength:
		return k.Strengths
	}
	return nil
}
