package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordClassifier(t *testing.T) {
	c := DefaultClassifier()

	tags := c.Classify("My GROWTH came from writing, more writing, and Design work")
	assert.Equal(t, []Tag{
		{Kind: TagValue, Word: "growth"},
		{Kind: TagStrength, Word: "writing"},
		{Kind: TagStrength, Word: "design"},
	}, tags)

	assert.Empty(t, c.Classify("nothing to see here"))
	assert.Empty(t, c.Classify(""))
}

func TestKeywordClassifier_Order(t *testing.T) {
	c := DefaultClassifier()
	assert.Equal(t, []string{"growth", "integrity", "freedom", "impact", "stability"}, c.Order(TagValue))
	assert.Nil(t, c.Order("mood"))
}
