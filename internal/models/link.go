package models

import (
	"net/url"
	"strconv"
	"strings"
)

// ScreenSuffix marks a stream as a screen-share publication by naming
// convention. The vendor carries it verbatim in the stream name.
const ScreenSuffix = " (Screen)"

func ScreenName(name string) string {
	return name + ScreenSuffix
}

// DisplayName strips the screen-share suffix for roster display.
func DisplayName(streamName string) string {
	return strings.ReplaceAll(streamName, ScreenSuffix, "")
}

// ExtractSessionID pulls the session id out of a meeting link.
// "https://host/meeting/abc123" -> "abc123". Query parameters are not part
// of the id. Returns "" when the link has no /meeting/ segment.
func ExtractSessionID(link string) string {
	idx := strings.Index(link, "/meeting/")
	if idx == -1 {
		return ""
	}
	id := link[idx+len("/meeting/"):]
	if q := strings.IndexAny(id, "?#"); q != -1 {
		id = id[:q]
	}
	return id
}

// MeetingURL builds a shareable link for a session.
func MeetingURL(base, sessionID string) string {
	return strings.TrimRight(base, "/") + "/meeting/" + sessionID
}

// HostJoinURL builds a link that lets the recipient join without a token
// round-trip. Embedding credentials in a URL exposes them to anyone who
// sees the link, so the token and API key are only included when
// includeCredentials is set.
func HostJoinURL(base, sessionID string, creds Credentials, userName string, isHost, includeCredentials bool) string {
	q := url.Values{}
	q.Set("user", userName)
	q.Set("host", strconv.FormatBool(isHost))
	if includeCredentials {
		q.Set("token", creds.Token)
		q.Set("apiKey", creds.APIKey)
	}
	return MeetingURL(base, sessionID) + "?" + q.Encode()
}

// JoinParams is what a pasted meeting link resolves to.
type JoinParams struct {
	SessionID string
	Token     string
	APIKey    string
	UserName  string
	IsHost    bool
}

// ParseMeetingLink resolves a full meeting URL, including any
// query-embedded credentials, into join parameters.
func ParseMeetingLink(link string) (JoinParams, bool) {
	sessionID := ExtractSessionID(link)
	if sessionID == "" {
		return JoinParams{}, false
	}
	p := JoinParams{SessionID: sessionID}
	if u, err := url.Parse(link); err == nil {
		q := u.Query()
		p.Token = q.Get("token")
		p.APIKey = q.Get("apiKey")
		p.UserName = q.Get("user")
		p.IsHost = q.Get("host") == "true"
	}
	return p, true
}
