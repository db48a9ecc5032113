package llm

import "regexp"

// Models often wrap their answer in a markdown code fence or pad it with
// prose despite instructions not to. These patterns pull the JSON object
// out of either shape.
var (
	jsonBlockPattern  = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	jsonObjectPattern = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
)

// extractJSON returns the JSON object embedded in an LLM response, or ""
// when none is found. Fenced blocks win over a bare-object scan.
func extractJSON(content string) string {
	if matches := jsonBlockPattern.FindStringSubmatch(content); len(matches) > 1 {
		return matches[1]
	}
	return jsonObjectPattern.FindString(content)
}
