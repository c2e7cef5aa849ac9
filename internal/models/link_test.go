package models

import (
	"strings"
	"testing"
)

func TestExtractSessionID(t *testing.T) {
	cases := []struct {
		link string
		want string
	}{
		{"https://example.com/meeting/abc123", "abc123"},
		{"https://example.com/meeting/abc123?token=tok&user=Grace", "abc123"},
		{"https://example.com/meeting/abc123#section", "abc123"},
		{"/meeting/abc123", "abc123"},
		{"https://example.com/", ""},
		{"https://example.com/rooms/abc123", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := ExtractSessionID(c.link); got != c.want {
			t.Errorf("ExtractSessionID(%q) = %q, want %q", c.link, got, c.want)
		}
	}
}

func TestMeetingURLTrimsTrailingSlash(t *testing.T) {
	if got := MeetingURL("https://example.com/", "abc"); got != "https://example.com/meeting/abc" {
		t.Fatalf("got %q", got)
	}
}

func TestHostJoinURLCredentialGating(t *testing.T) {
	creds := Credentials{APIKey: "key", SessionID: "abc", Token: "tok"}

	plain := HostJoinURL("https://example.com", "abc", creds, "Grace", true, false)
	if strings.Contains(plain, "token=") || strings.Contains(plain, "apiKey=") {
		t.Fatalf("credentials must stay out by default: %q", plain)
	}
	if !strings.Contains(plain, "user=Grace") || !strings.Contains(plain, "host=true") {
		t.Fatalf("user and host flags missing: %q", plain)
	}

	full := HostJoinURL("https://example.com", "abc", creds, "Grace", false, true)
	if !strings.Contains(full, "token=tok") || !strings.Contains(full, "apiKey=key") {
		t.Fatalf("expected embedded credentials: %q", full)
	}
}

func TestParseMeetingLinkRoundTrip(t *testing.T) {
	creds := Credentials{APIKey: "key", SessionID: "abc", Token: "tok"}
	link := HostJoinURL("https://example.com", "abc", creds, "Grace", true, true)

	p, ok := ParseMeetingLink(link)
	if !ok {
		t.Fatalf("ParseMeetingLink(%q) rejected", link)
	}
	if p.SessionID != "abc" || p.Token != "tok" || p.APIKey != "key" || p.UserName != "Grace" || !p.IsHost {
		t.Fatalf("unexpected params %+v", p)
	}
}

func TestScreenNameRoundTrip(t *testing.T) {
	if got := ScreenName("Grace"); got != "Grace (Screen)" {
		t.Fatalf("got %q", got)
	}
	if got := DisplayName("Grace (Screen)"); got != "Grace" {
		t.Fatalf("got %q", got)
	}
	if got := DisplayName("Grace"); got != "Grace" {
		t.Fatalf("plain names pass through, got %q", got)
	}
}
