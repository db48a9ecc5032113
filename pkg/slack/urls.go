package slack

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/jumpdesk/deskbridge/pkg/models"
)

// rawChannelID matches a bare Slack channel id, e.g. "C0AB12CD3".
var rawChannelID = regexp.MustCompile(`^[A-Z0-9]+$`)

// ExtractChannelID resolves a stored chat_channel value to a channel id.
// Accepts either a raw uppercase-alphanumeric id (round-trips to itself) or
// a channel URL of the form https://app.x.com/.../archives/{ID}/...; the id
// is the path segment immediately following "archives". Anything else is an
// invalid_channel_url input error.
func ExtractChannelID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if rawChannelID.MatchString(s) {
		return s, nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Path == "" {
		return "", models.NewInvalidInput("chat_channel", "invalid_channel_url")
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg == "archives" && i+1 < len(segments) && segments[i+1] != "" {
			return segments[i+1], nil
		}
	}
	return "", models.NewInvalidInput("chat_channel", "invalid_channel_url")
}

// ChannelURL builds the archive URL for a channel id.
func ChannelURL(workspaceURL, channelID string) string {
	return strings.TrimRight(workspaceURL, "/") + "/archives/" + channelID
}
