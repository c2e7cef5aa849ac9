package coordinator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/virek/vroom/internal/models"
)

type stubNavigator struct {
	locations []string
}

func (n *stubNavigator) ReplaceLocation(path string) {
	n.locations = append(n.locations, path)
}

func TestHandleLocationRootShowsLanding(t *testing.T) {
	f := newFixture(t, nil)
	f.c.HandleLocation("https://example.com/")
	if v := f.c.Snapshot().View; v != ViewLanding {
		t.Fatalf("expected landing, got %s", v)
	}
}

func TestHandleLocationMeetingPathShowsPrejoin(t *testing.T) {
	f := newFixture(t, nil)
	f.c.HandleLocation("https://example.com/meeting/abc123")

	s := f.c.Snapshot()
	if s.View != ViewPrejoin {
		t.Fatalf("expected prejoin, got %s", s.View)
	}
	if s.Credentials.SessionID != "abc123" {
		t.Fatalf("session id not extracted, got %q", s.Credentials.SessionID)
	}
}

func TestHandleLocationCredentialLinkGoesStraightIn(t *testing.T) {
	f := newFixture(t, nil)
	f.c.HandleLocation("https://example.com/meeting/abc123?token=tok&user=Grace&apiKey=key")

	s := f.c.Snapshot()
	if s.View != ViewMeeting {
		t.Fatalf("credential link should land in the meeting view, got %s", s.View)
	}
	if s.UserName != "Grace" || s.Credentials.Token != "tok" || s.Credentials.APIKey != "key" {
		t.Fatalf("link parameters not applied: %+v", s)
	}
}

func TestHandleLocationMalformedMeetingPathFallsBack(t *testing.T) {
	nav := &stubNavigator{}
	f := newFixture(t, func(cfg *Config) { cfg.Navigator = nav })
	f.c.HandleLocation("https://example.com/meeting/")

	if v := f.c.Snapshot().View; v != ViewLanding {
		t.Fatalf("expected landing fallback, got %s", v)
	}
	if len(nav.locations) == 0 || nav.locations[len(nav.locations)-1] != "/" {
		t.Fatalf("location should reset to root, got %v", nav.locations)
	}
}

func TestHandleLocationBackToRootTearsDownMeeting(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t)

	f.c.HandleLocation("https://example.com/")
	if v := f.c.Snapshot().View; v != ViewLanding {
		t.Fatalf("expected landing, got %s", v)
	}
	if n := f.factory.LiveSessions(); n != 0 {
		t.Fatalf("history navigation must release the session, got %d live", n)
	}
}

func TestCreateMeetingMovesToPrejoinAsHost(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.c.CreateMeeting(context.Background()); err != nil {
		t.Fatalf("create: %v", err)
	}

	s := f.c.Snapshot()
	if s.View != ViewPrejoin {
		t.Fatalf("expected prejoin, got %s", s.View)
	}
	if !s.IsHost {
		t.Fatal("meeting creator should be host")
	}
	if s.Credentials.SessionID != "sess-1" {
		t.Fatalf("session id not recorded, got %q", s.Credentials.SessionID)
	}
	if s.MeetingLink != "https://example.com/meeting/sess-1" {
		t.Fatalf("meeting link not recorded, got %q", s.MeetingLink)
	}
}

func TestCreateMeetingFailureShowsBanner(t *testing.T) {
	f := newFixture(t, nil)
	f.tokens.CreateErr = errors.New("upstream down")

	if err := f.c.CreateMeeting(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	s := f.c.Snapshot()
	if s.ConnectionError == "" {
		t.Fatal("failure should surface a banner")
	}
	if s.View != ViewLanding {
		t.Fatalf("failed create must stay on landing, got %s", s.View)
	}
}

func TestJoinByLinkRejectsGarbage(t *testing.T) {
	f := newFixture(t, nil)
	if f.c.JoinByLink("not a link at all") {
		t.Fatal("garbage link should be rejected")
	}
	if v := f.c.Snapshot().View; v != ViewLanding {
		t.Fatalf("rejected link must not navigate, got %s", v)
	}
}

func TestInitDevicesPicksDefaults(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.c.InitDevices(context.Background()); err != nil {
		t.Fatalf("init devices: %v", err)
	}

	s := f.c.Snapshot()
	if s.SelectedDevices.Camera != "cam-1" || s.SelectedDevices.Microphone != "mic-1" {
		t.Fatalf("defaults not selected: %+v", s.SelectedDevices)
	}
	if !s.PreviewVideo || !s.PreviewAudio {
		t.Fatalf("preview should default on with both devices: %+v", s)
	}
}

func TestInitDevicesWithNoHardware(t *testing.T) {
	f := newFixture(t, nil)
	f.devices.Set = models.DeviceSet{}

	if err := f.c.InitDevices(context.Background()); err != nil {
		t.Fatalf("missing hardware is not fatal: %v", err)
	}
	s := f.c.Snapshot()
	if !strings.Contains(s.ConnectionError, "No camera or microphone detected") {
		t.Fatalf("expected device warning, got %q", s.ConnectionError)
	}
	if s.PreviewVideo || s.PreviewAudio {
		t.Fatal("preview toggles must stay off without hardware")
	}
}

func TestMeetingLinkBuiltFromBaseURL(t *testing.T) {
	f := newFixture(t, nil)
	f.c.HandleLocation("https://example.com/meeting/abc123")

	want := "https://example.com/meeting/abc123"
	if got := f.c.MeetingLink(); got != want {
		t.Fatalf("meeting link = %q, want %q", got, want)
	}
}

func TestHostInviteLinkOmitsCredentialsByDefault(t *testing.T) {
	f := newFixture(t, nil)
	f.c.HandleLocation("https://example.com/meeting/abc123?token=tok&user=Grace&apiKey=key")

	link := f.c.HostInviteLink()
	if link == "" {
		t.Fatal("expected an invite link")
	}
	if strings.Contains(link, "token=") || strings.Contains(link, "apiKey=") {
		t.Fatalf("credentials leaked into the link: %q", link)
	}
}

func TestHostInviteLinkCarriesCredentialsWhenEnabled(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.IncludeCredentialsInLinks = true })
	f.c.HandleLocation("https://example.com/meeting/abc123?token=tok&user=Grace&apiKey=key")

	link := f.c.HostInviteLink()
	if !strings.Contains(link, "token=tok") || !strings.Contains(link, "apiKey=key") {
		t.Fatalf("expected embedded credentials, got %q", link)
	}
}
