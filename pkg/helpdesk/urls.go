package helpdesk

import "strings"

// ExtractConversationID resolves a linked-conversation entry to a
// conversation id. URL-shaped entries
// (https://app.<helpdesk>.io/a/apps/{APP}/conversations/{ID}) yield their
// last path segment; anything else is used verbatim.
func ExtractConversationID(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "/") {
		return s
	}
	trimmed := strings.TrimRight(s, "/")
	idx := strings.LastIndex(trimmed, "/")
	return trimmed[idx+1:]
}
