package coordinator

import (
	"context"
	"strings"

	"github.com/virek/vroom/internal/models"
)

// HandleLocation re-derives the current view from a location string. It
// runs on mount and on history navigation so a reload or back/forward
// lands on the right screen instead of trusting in-memory state.
func (c *Coordinator) HandleLocation(location string) {
	c.do(func() {
		path := location
		if i := strings.Index(path, "://"); i != -1 {
			path = path[i+3:]
			if j := strings.Index(path, "/"); j != -1 {
				path = path[j:]
			} else {
				path = "/"
			}
		}

		if !strings.Contains(path, "/meeting/") {
			// Back at the root: drop any live meeting.
			c.teardownSession()
			c.view = ViewLanding
			return
		}

		params, ok := models.ParseMeetingLink(location)
		if !ok || params.SessionID == "" {
			c.navigate("/")
			c.view = ViewLanding
			return
		}

		c.creds.SessionID = params.SessionID
		if params.Token != "" && params.UserName != "" {
			// Credential-bearing link: recipient can go straight in.
			c.creds.Token = params.Token
			if params.APIKey != "" {
				c.creds.APIKey = params.APIKey
			}
			c.userName = params.UserName
			c.isHost = params.IsHost
			c.view = ViewMeeting
			return
		}

		c.meetingLink = location
		c.view = ViewPrejoin
	})
}

// CreateMeeting allocates a new session through the companion server and
// moves to the pre-join screen as host.
func (c *Coordinator) CreateMeeting(ctx context.Context) error {
	var userName string
	c.do(func() { userName = c.userName })

	sessionID, meetingURL, err := c.cfg.Tokens.CreateMeeting(ctx, models.UserData{Name: userName, Role: "host"})
	if err != nil {
		c.do(func() { c.connError = "Failed to create meeting. Please try again." })
		return err
	}

	c.do(func() {
		c.creds = models.Credentials{SessionID: sessionID}
		c.meetingLink = meetingURL
		c.isHost = true
		c.connError = ""
		c.view = ViewPrejoin
	})
	return nil
}

// JoinByLink parses a pasted meeting link and moves to the pre-join
// screen. Returns false when the link carries no session id.
func (c *Coordinator) JoinByLink(link string) bool {
	params, ok := models.ParseMeetingLink(link)
	if !ok {
		return false
	}
	c.do(func() {
		c.creds = models.Credentials{
			SessionID: params.SessionID,
			Token:     params.Token,
			APIKey:    params.APIKey,
		}
		if params.UserName != "" {
			c.userName = params.UserName
		}
		c.isHost = params.IsHost
		c.meetingLink = link
		c.connError = ""
		c.view = ViewPrejoin
	})
	return true
}

// SetUserName records the display name typed on the pre-join screen.
func (c *Coordinator) SetUserName(name string) {
	c.do(func() { c.userName = strings.TrimSpace(name) })
}

func (c *Coordinator) SetSelectedDevices(sel models.SelectedDevices) {
	c.do(func() { c.selected = sel })
}

func (c *Coordinator) SetPreview(video, audio bool) {
	c.do(func() {
		c.preview.video = video && c.devices.HasCamera()
		c.preview.audio = audio && c.devices.HasMicrophone()
		c.preview.set = true
	})
}

// InitDevices enumerates capture hardware for the pre-join screen and
// picks defaults. Missing hardware degrades the preview toggles; having
// no devices at all is an error but never fatal to the widget.
func (c *Coordinator) InitDevices(ctx context.Context) error {
	set, err := c.cfg.Devices.ListDevices(ctx)
	if err != nil {
		c.do(func() { c.connError = "Failed to detect audio/video devices" })
		return err
	}

	c.do(func() {
		c.devices = set
		if set.Empty() {
			c.connError = "No camera or microphone detected. Please connect at least one device."
			return
		}
		if set.HasCamera() {
			c.selected.Camera = set.Cameras[0].ID
		}
		if set.HasMicrophone() {
			c.selected.Microphone = set.Microphones[0].ID
		}
		c.preview.video = set.HasCamera()
		c.preview.audio = set.HasMicrophone()
		c.preview.set = true
		c.connError = ""
	})
	return nil
}

// MeetingLink returns the shareable link for the current session,
// building one from the base URL when none was handed in.
func (c *Coordinator) MeetingLink() string {
	var link string
	c.do(func() {
		link = c.meetingLink
		if link == "" && c.creds.SessionID != "" {
			link = models.MeetingURL(c.cfg.BaseURL, c.creds.SessionID)
		}
	})
	return link
}

// HostInviteLink builds a link a recipient can join from directly.
// Credentials are embedded only when the widget was configured to allow
// it; see Config.IncludeCredentialsInLinks.
func (c *Coordinator) HostInviteLink() string {
	var link string
	c.do(func() {
		if c.creds.SessionID == "" {
			return
		}
		link = models.HostJoinURL(c.cfg.BaseURL, c.creds.SessionID, c.creds, c.userName, false, c.cfg.IncludeCredentialsInLinks)
	})
	return link
}

func (c *Coordinator) navigate(path string) {
	if c.cfg.Navigator != nil {
		c.cfg.Navigator.ReplaceLocation(path)
	}
}
