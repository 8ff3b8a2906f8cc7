// ABOUTME: Prompt text for the daily story: system instructions and the JSON-shaped input
// ABOUTME: Fixed wording per language, with the topic and word budget filled in

package story

import (
	"fmt"
	"strings"
)

// Instructions is the system-level guidance for one language.
func Instructions(language string) string {
	return strings.Join([]string{
		"You are an inspirational story writer for a mobile app.",
		fmt.Sprintf("Write in language code: %s.", language),
		"Keep it uplifting, grounded in everyday life, and non-political.",
		"Avoid real person names and claims needing citations.",
		"No sensitive/graphic content; suitable for general audiences.",
	}, " ")
}

// Input describes the expected JSON shape; the topic line is always last.
func Input(topic string, words int) string {
	return strings.Join([]string{
		"Return ONLY a compact JSON object with keys:",
		`- "title": <= 12 words`,
		fmt.Sprintf(`- "content": ~%d to %d words, single paragraph`, max(160, words-40), words+80),
		`- "moral": <= 16 words (short takeaway)`,
		"Do not include markdown fences or extra text.",
		"Story theme/topic: " + topic,
	}, "\n")
}
