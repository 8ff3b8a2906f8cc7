// ABOUTME: Tests for Responses payload extraction and story parsing fallbacks

package story

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "top-level output_text wins",
			body: `{"output_text":" hi ","output":[{"content":[{"type":"output_text","text":"ignored"}]}]}`,
			want: "hi",
		},
		{
			name: "concatenates output parts",
			body: `{"output":[
				{"type":"reasoning","content":[{"type":"reasoning_text","text":"thinking"}]},
				{"type":"message","content":[{"type":"output_text","text":"{\"title\":"},{"type":"output_text","text":"\"A\"}"}]}
			]}`,
			want: `{"title":"A"}`,
		},
		{name: "nothing", body: `{"output":[]}`, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outputText([]byte(tt.body)); got != tt.want {
				t.Errorf("outputText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseStory(t *testing.T) {
	tests := []struct {
		name                string
		text                string
		title, content, mor string
	}{
		{
			name:    "strict json",
			text:    `{"title":"Small steps","content":"She kept going.","moral":"Persist."}`,
			title:   "Small steps",
			content: "She kept going.",
			mor:     "Persist.",
		},
		{
			name:    "json inside prose",
			text:    "Sure! Here it is:\n```json\n{\"title\":\"T\",\"content\":\"C\"}\n```",
			title:   "T",
			content: "C",
		},
		{
			name:    "missing title",
			text:    `{"content":"C"}`,
			title:   FallbackTitle,
			content: "C",
		},
		{
			name:    "plain text",
			text:    "Once upon a time.",
			title:   FallbackTitle,
			content: "Once upon a time.",
		},
		{
			name:    "broken braces",
			text:    "a {not json} b",
			title:   FallbackTitle,
			content: "a {not json} b",
		},
		{
			name:    "non-string fields",
			text:    `{"title":2024,"content":"C","moral":null}`,
			title:   "2024",
			content: "C",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, content, moral := parseStory(tt.text)
			assert.Equal(t, tt.title, title)
			assert.Equal(t, tt.content, content)
			assert.Equal(t, tt.mor, moral)
		})
	}
}

func TestParseStory_Truncates(t *testing.T) {
	long := strings.Repeat("字", 2000)
	text := `{"title":"` + long + `","content":"` + long + `","moral":"` + long + `"}`

	title, content, moral := parseStory(text)
	assert.Len(t, []rune(title), 80)
	assert.Len(t, []rune(content), 1500)
	assert.Len(t, []rune(moral), 120)
}
