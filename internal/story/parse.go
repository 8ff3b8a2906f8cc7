// ABOUTME: Extracts the story from a Responses API payload
// ABOUTME: Tolerates prose around the JSON and falls back to the raw text

package story

import (
	"strings"

	"github.com/tidwall/gjson"
)

// outputText returns the model's text: the top-level output_text when
// present, otherwise every output_text part of every output item, joined.
func outputText(body []byte) string {
	if ot := gjson.GetBytes(body, "output_text"); ot.Type == gjson.String {
		return strings.TrimSpace(ot.String())
	}

	var b strings.Builder
	gjson.GetBytes(body, "output").ForEach(func(_, item gjson.Result) bool {
		item.Get("content").ForEach(func(_, part gjson.Result) bool {
			if part.Get("type").String() == "output_text" {
				b.WriteString(part.Get("text").String())
			}
			return true
		})
		return true
	})
	return strings.TrimSpace(b.String())
}

// parseStory reads title, content and moral out of text. It tries the whole
// text as JSON, then the span from the first '{' to the last '}', and
// otherwise treats the text as the story body.
func parseStory(text string) (title, content, moral string) {
	obj, ok := jsonObject(text)
	if !ok {
		return FallbackTitle, truncate(text, maxContentRunes), ""
	}

	title = stringField(obj, "title")
	if title == "" {
		title = FallbackTitle
	}
	return truncate(title, maxTitleRunes),
		truncate(stringField(obj, "content"), maxContentRunes),
		truncate(stringField(obj, "moral"), maxMoralRunes)
}

func jsonObject(text string) (gjson.Result, bool) {
	if gjson.Valid(text) {
		if r := gjson.Parse(text); r.IsObject() {
			return r, true
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return gjson.Result{}, false
	}
	span := text[start : end+1]
	if !gjson.Valid(span) {
		return gjson.Result{}, false
	}
	return gjson.Parse(span), true
}

// stringField renders scalar fields as text; missing, null and false are empty.
func stringField(obj gjson.Result, key string) string {
	v := obj.Get(key)
	switch v.Type {
	case gjson.String, gjson.Number:
		return v.String()
	case gjson.True:
		return "true"
	case gjson.JSON:
		return v.Raw
	}
	return ""
}
