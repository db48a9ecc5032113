// Package match resolves helpdesk operators to chat-service users so the
// pipeline can invite the right humans into a channel.
package match

import (
	"strings"

	"github.com/jumpdesk/deskbridge/pkg/models"
)

// Users maps operators to chat user ids. An operator matches a chat user
// when their emails are equal case-insensitively; on a miss, a match on the
// normalised full name is attempted. Operators with no match are silently
// dropped. The returned ids are deduplicated preserving first-seen order,
// so the result is stable across re-invocation.
func Users(operators []models.Operator, chatUsers []models.ChatUser) []string {
	byEmail := make(map[string]string, len(chatUsers))
	byName := make(map[string]string, len(chatUsers))
	for _, u := range chatUsers {
		if e := strings.ToLower(strings.TrimSpace(u.Email)); e != "" {
			if _, ok := byEmail[e]; !ok {
				byEmail[e] = u.ID
			}
		}
		if n := normalizeName(u.Name); n != "" {
			if _, ok := byName[n]; !ok {
				byName[n] = u.ID
			}
		}
	}

	var ids []string
	seen := make(map[string]bool)
	for _, op := range operators {
		id, ok := byEmail[strings.ToLower(strings.TrimSpace(op.Email))]
		if !ok {
			id, ok = byName[normalizeName(op.Name)]
		}
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// normalizeName lowercases and collapses internal whitespace so
// "Ada  Lovelace " and "ada lovelace" compare equal.
func normalizeName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) == 0 {
		return ""
	}
	return strings.Join(fields, " ")
}
