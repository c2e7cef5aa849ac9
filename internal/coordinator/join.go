package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/virek/vroom/internal/models"
	"github.com/virek/vroom/internal/session"
)

var (
	ErrNoUserName = errors.New("user name is required")
	ErrNoSession  = errors.New("missing session id")
	ErrNoDevices  = errors.New("no capture devices available")
	ErrJoining    = errors.New("join already in progress")
)

// Join runs the full prejoin -> meeting transition: obtain credentials if
// absent, check devices, connect the vendor session and publish local
// media. Only after publish succeeds does the view flip to the meeting
// room. Any failure tears down everything created so far and returns to
// the pre-join screen with a message; no half-initialized vendor state
// survives.
func (c *Coordinator) Join(ctx context.Context) error {
	var (
		p     joinParams
		begun bool
	)
	c.do(func() {
		if c.isConnecting {
			return
		}
		// A re-entrant join must never stack vendor resources.
		c.teardownSession()
		c.epoch++
		c.isConnecting = true
		c.connError = ""
		p = joinParams{
			epoch:    c.epoch,
			userName: c.userName,
			isHost:   c.isHost,
			creds:    c.creds,
			selected: c.selected,
			preview:  c.preview,
		}
		begun = true
	})
	if !begun {
		return ErrJoining
	}

	err := c.doJoin(ctx, p)
	if err != nil {
		c.post(func() {
			if c.epoch != p.epoch {
				return
			}
			c.isConnecting = false
			c.teardownSession()
			if c.view != ViewPrejoin {
				c.view = ViewPrejoin
			}
			c.connError = joinErrorMessage(err)
		})
	}
	return err
}

type joinParams struct {
	epoch    int
	userName string
	isHost   bool
	creds    models.Credentials
	selected models.SelectedDevices
	preview  previewState
}

func (c *Coordinator) doJoin(ctx context.Context, p joinParams) error {
	if p.userName == "" {
		return ErrNoUserName
	}
	if p.creds.SessionID == "" {
		return ErrNoSession
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.JoinTimeout)
	defer cancel()

	// Credentials: fetch from the companion server when not handed in.
	creds := p.creds
	if creds.Token == "" || creds.APIKey == "" {
		role := "participant"
		if p.isHost {
			role = "host"
		}
		fetched, err := c.cfg.Tokens.GenerateToken(ctx, creds.SessionID, models.UserData{Name: p.userName, Role: role}, models.RolePublisher)
		if err != nil {
			return fmt.Errorf("obtain token: %w", err)
		}
		creds.Token = fetched.Token
		creds.APIKey = fetched.APIKey
		c.post(func() {
			if c.epoch == p.epoch {
				c.creds = creds
			}
		})
	}

	// Device check happens before any vendor resource is created.
	devices, err := c.cfg.Devices.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("device check: %w", err)
	}
	if devices.Empty() {
		return ErrNoDevices
	}
	if !p.preview.set {
		// Pre-join preview was never touched; publish whatever hardware
		// exists, like the pre-join defaults would.
		p.preview = previewState{video: devices.HasCamera(), audio: devices.HasMicrophone(), set: true}
	}
	c.post(func() {
		if c.epoch == p.epoch {
			c.devices = devices
			c.preview = p.preview
		}
	})

	sess, err := c.cfg.Sessions.NewSession(creds)
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}

	if err := sess.Connect(ctx, creds.Token); err != nil {
		sess.Disconnect()
		if ctx.Err() != nil {
			return session.ErrConnectTimeout
		}
		return err
	}

	// From here on the session is live: install it and start pumping its
	// events so roster updates interleave with the rest of the join.
	c.do(func() {
		if c.epoch != p.epoch {
			sess.Disconnect()
			return
		}
		c.sess = sess
		go c.pumpEvents(sess)
	})

	publishVideo := p.preview.video && devices.HasCamera()
	publishAudio := p.preview.audio && devices.HasMicrophone()

	surface := c.cfg.Surfaces.SurfaceFor("local")
	pub, err := sess.Publish(ctx, surface, session.PublisherOptions{
		Name:         p.userName,
		PublishVideo: publishVideo,
		PublishAudio: publishAudio,
		VideoSource:  p.selected.Camera,
		AudioSource:  p.selected.Microphone,
	})
	if err != nil {
		sess.Disconnect()
		if ctx.Err() != nil {
			return session.ErrConnectTimeout
		}
		return fmt.Errorf("%w: %s", session.ErrPublishFailed, err)
	}

	c.do(func() {
		if c.epoch != p.epoch {
			// A newer attempt owns the state now; drop our resources.
			pub.Destroy()
			sess.Disconnect()
			return
		}
		c.pub = pub
		c.isConnecting = false
		c.panels.Video = publishVideo
		c.panels.Audio = publishAudio
		c.view = ViewMeeting
		c.upsertLocalParticipant(sess.ConnectionID(), p.userName, publishVideo, publishAudio)
	})
	return nil
}

// upsertLocalParticipant keeps the invariant of at most one roster entry
// marked local.
func (c *Coordinator) upsertLocalParticipant(connectionID, name string, video, audio bool) {
	if i := c.localParticipant(); i != -1 {
		c.participants[i].Name = name
		c.participants[i].Video = video
		c.participants[i].Audio = audio
		return
	}
	c.participants = append(c.participants, models.Participant{
		ID:           connectionID,
		ConnectionID: connectionID,
		Name:         name,
		IsLocal:      true,
		Video:        video,
		Audio:        audio,
		IsHost:       c.isHost,
		Media:        c.pub,
	})
}

// teardownSession releases every live vendor resource and per-meeting
// state. Safe to call repeatedly.
func (c *Coordinator) teardownSession() {
	for id, timer := range c.pendingSubs {
		timer.Stop()
		delete(c.pendingSubs, id)
	}
	for id, sub := range c.subs {
		sub.Unsubscribe()
		delete(c.subs, id)
	}
	if c.screenStop != nil {
		close(c.screenStop)
		c.screenStop = nil
	}
	if c.pub != nil {
		c.pub.Destroy()
		c.pub = nil
	}
	if c.sess != nil {
		c.sess.Disconnect()
		c.sess = nil
	}
	c.epoch++
}

// resetMeetingState clears everything accumulated during a meeting.
func (c *Coordinator) resetMeetingState() {
	c.participants = nil
	c.chat = nil
	c.chatInput = ""
	c.attachments = nil
	c.reactions = nil
	c.screen = models.ScreenShare{}
	c.panels = models.PanelState{Video: true, Audio: true}
	c.connError = ""
	c.isConnecting = false
	c.meetingLink = ""
	c.creds = models.Credentials{}
	c.isHost = false
	c.showLeave = false
}

// joinErrorMessage maps known vendor failure codes to friendly strings,
// falling back to the raw message.
func joinErrorMessage(err error) string {
	const prefix = "Failed to join meeting. "
	switch {
	case errors.Is(err, ErrNoUserName):
		return "Please enter your name"
	case errors.Is(err, ErrNoSession):
		return "Missing session ID"
	case errors.Is(err, ErrNoDevices):
		return "Cannot join meeting: No camera or microphone detected. Please connect at least one device and try again."
	case errors.Is(err, session.ErrConnectTimeout), errors.Is(err, context.DeadlineExceeded):
		return prefix + "Connection timeout - please check your network connection and try again."
	case errors.Is(err, session.ErrInvalidCreds):
		return prefix + "Invalid session credentials. Please check your API key, session ID, and token."
	case errors.Is(err, session.ErrConnectFailed):
		return prefix + "Session connection failed. Please try again."
	default:
		return prefix + err.Error() + ". Please try again."
	}
}

// disconnectBannerDelay is how long the unexpected-disconnect banner stays
// up before the widget returns to the landing screen.
const disconnectBannerDelay = 2 * time.Second
