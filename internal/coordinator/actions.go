package coordinator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/virek/vroom/internal/models"
	"github.com/virek/vroom/internal/session"
)

// ToggleVideo flips the camera. When no camera exists the toggle is a
// no-op: UI state and publisher state never diverge.
func (c *Coordinator) ToggleVideo() {
	c.do(func() {
		if !c.devices.HasCamera() {
			return
		}
		c.panels.Video = !c.panels.Video
		enabled := c.panels.Video
		if c.pub != nil {
			if err := c.pub.SetVideo(enabled); err != nil {
				c.logger.Warn("publisher video toggle failed", "error", err)
			}
		}
		if i := c.localParticipant(); i != -1 {
			c.participants[i].Video = enabled
		}
	})
}

// ToggleAudio flips the microphone, with the same no-device policy as
// ToggleVideo.
func (c *Coordinator) ToggleAudio() {
	c.do(func() {
		if !c.devices.HasMicrophone() {
			return
		}
		c.panels.Audio = !c.panels.Audio
		enabled := c.panels.Audio
		if c.pub != nil {
			if err := c.pub.SetAudio(enabled); err != nil {
				c.logger.Warn("publisher audio toggle failed", "error", err)
			}
		}
		if i := c.localParticipant(); i != -1 {
			c.participants[i].Audio = enabled
		}
	})
}

// ToggleChat opens or closes the chat panel; the participants panel
// closes either way.
func (c *Coordinator) ToggleChat() {
	c.do(func() {
		c.panels.Chat = !c.panels.Chat
		c.panels.Participants = false
	})
}

func (c *Coordinator) ToggleParticipants() {
	c.do(func() {
		c.panels.Participants = !c.panels.Participants
		c.panels.Chat = false
	})
}

func (c *Coordinator) SetChatInput(text string) {
	c.do(func() { c.chatInput = text })
}

func (c *Coordinator) ShowLeaveModal(show bool) {
	c.do(func() { c.showLeave = show })
}

// SendChatMessage broadcasts the current chat input together with any
// staged attachments. Empty input with no attachments is a no-op. The
// message is appended optimistically and rolled back if the broadcast
// fails.
func (c *Coordinator) SendChatMessage(ctx context.Context) {
	var (
		msg  models.ChatMessage
		sess session.Session
		send bool
	)
	c.do(func() {
		body := strings.TrimSpace(c.chatInput)
		if body == "" && len(c.attachments) == 0 {
			return
		}

		msg = models.ChatMessage{
			ID:     uuid.NewString(),
			Sender: c.userName,
			SentAt: time.Now(),
			Kind:   models.MessageText,
		}

		if len(c.attachments) > 0 {
			msg.Kind = models.MessageScreenshot
			msg.Screenshots = append([]models.Attachment(nil), c.attachments...)
			body = stripAttachmentPlaceholders(body)
			if body == "" {
				body = models.FallbackBody(len(msg.Screenshots))
			}
		}
		msg.Body = body

		c.chat = append(c.chat, msg)
		c.chatInput = ""
		c.attachments = nil
		sess = c.sess
		send = true
	})

	if !send || sess == nil {
		return
	}

	sig, err := session.NewChatSignal(msg)
	if err != nil {
		c.logger.Warn("encode chat signal failed", "error", err)
		return
	}
	go func() {
		if err := sess.Signal(ctx, sig); err != nil {
			c.logger.Warn("chat broadcast failed", "error", err)
			c.post(func() {
				kept := c.chat[:0]
				for _, m := range c.chat {
					if m.ID != msg.ID {
						kept = append(kept, m)
					}
				}
				c.chat = kept
			})
		}
	}()
}

// stripAttachmentPlaceholders removes the pre-filled screenshot lines the
// input was seeded with so they don't ship as message text.
func stripAttachmentPlaceholders(body string) string {
	lines := strings.Split(body, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "\U0001F4F8 Screenshot attached:") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Anchor is the bounding geometry of the control that triggered a
// reaction, as percentages of the video container.
type Anchor struct {
	X float64
	Y float64
}

// Fallback placement when the picker geometry is unavailable.
var defaultAnchor = Anchor{X: 50, Y: 80}

// SendReaction appends the reaction locally, broadcasts it, and schedules
// its removal after the display window.
func (c *Coordinator) SendReaction(ctx context.Context, emoji, name string, anchor *Anchor) {
	at := defaultAnchor
	if anchor != nil {
		at = *anchor
	}
	var (
		r    models.Reaction
		sess session.Session
	)
	c.do(func() {
		r = models.Reaction{
			ID:     uuid.NewString(),
			Emoji:  emoji,
			Name:   name,
			Sender: c.userName,
			SentAt: time.Now(),
			X:      at.X,
			Y:      at.Y,
		}
		c.reactions = append(c.reactions, r)
		c.scheduleReactionRemoval(r.ID)
		sess = c.sess
	})

	if sess == nil {
		return
	}
	sig, err := session.NewReactionSignal(r)
	if err != nil {
		c.logger.Warn("encode reaction signal failed", "error", err)
		return
	}
	go func() {
		if err := sess.Signal(ctx, sig); err != nil {
			c.logger.Warn("reaction broadcast failed", "error", err)
		}
	}()
}

// TakeScreenshot captures the video container. Depending on
// configuration the image is staged as a chat attachment (opening the
// chat panel and pre-filling the input) or handed to the saver.
func (c *Coordinator) TakeScreenshot(ctx context.Context) error {
	if c.cfg.Screenshots == nil {
		return nil
	}
	att, err := c.cfg.Screenshots.Capture(ctx)
	if err != nil {
		c.logger.Warn("screenshot capture failed", "error", err)
		return err
	}

	if !c.cfg.ScreenshotToChat {
		if c.cfg.Saver != nil {
			return c.cfg.Saver.Save(att)
		}
		return nil
	}

	c.do(func() {
		c.attachments = append(c.attachments, att)
		placeholder := models.AttachmentPlaceholder(att.Filename)
		if c.chatInput != "" {
			c.chatInput += "\n"
		}
		c.chatInput += placeholder
		c.panels.Chat = true
		c.panels.Participants = false
	})
	return nil
}

// ToggleScreenShare starts or stops sharing. Starting publishes a
// display-capture stream in place of the camera; stopping republishes the
// camera. The browser's native stop affordance triggers the same revert.
func (c *Coordinator) ToggleScreenShare(ctx context.Context) {
	var (
		sharing bool
		sess    session.Session
	)
	c.do(func() {
		sess = c.sess
		sharing = c.screen.Sharing
	})
	if sess == nil {
		return
	}
	if sharing {
		c.stopScreenShare(ctx)
		return
	}
	c.startScreenShare(ctx, sess)
}

func (c *Coordinator) startScreenShare(ctx context.Context, sess session.Session) {
	if c.cfg.Display == nil {
		c.logger.Warn("display capture unavailable")
		return
	}
	trackID, stop, err := c.cfg.Display.CaptureDisplay(ctx)
	if err != nil {
		c.logger.Warn("display capture request failed", "error", err)
		return
	}

	var p joinScreenParams
	c.do(func() {
		p = joinScreenParams{
			userName: c.userName,
			audio:    c.panels.Audio,
			mic:      c.selected.Microphone,
		}
	})

	surface := c.cfg.Surfaces.SurfaceFor("local")
	screenPub, err := sess.Publish(ctx, surface, session.PublisherOptions{
		Name:         models.ScreenName(p.userName),
		PublishVideo: true,
		PublishAudio: p.audio,
		VideoSource:  trackID,
		AudioSource:  p.mic,
		ScreenShare:  true,
	})
	if err != nil {
		c.logger.Warn("screen share publish failed", "error", err)
		return
	}

	c.do(func() {
		if c.sess != sess {
			screenPub.Destroy()
			return
		}
		// The screen publisher replaces the camera one.
		if c.pub != nil {
			sess.Unpublish(c.pub)
			c.pub.Destroy()
		}
		c.pub = screenPub
		c.screen.Sharing = true
		c.screen.SharedBy = p.userName
		c.panels.ScreenShare = true

		stopCh := make(chan struct{})
		c.screenStop = stopCh
		go func() {
			select {
			case <-stop:
				c.post(func() {
					if c.screenStop == stopCh {
						c.screenStop = nil
						c.revertToCamera(context.Background())
					}
				})
			case <-stopCh:
			}
		}()
	})
}

type joinScreenParams struct {
	userName string
	audio    bool
	mic      string
}

func (c *Coordinator) stopScreenShare(ctx context.Context) {
	c.do(func() {
		if c.screenStop != nil {
			close(c.screenStop)
			c.screenStop = nil
		}
		c.revertToCamera(ctx)
	})
}

// revertToCamera unpublishes the screen stream and republishes the
// camera. Runs on the dispatch goroutine.
func (c *Coordinator) revertToCamera(ctx context.Context) {
	sess := c.sess
	if sess == nil {
		return
	}
	if c.pub != nil {
		sess.Unpublish(c.pub)
		c.pub.Destroy()
		c.pub = nil
	}
	c.screen = models.ScreenShare{}
	c.panels.ScreenShare = false

	opts := session.PublisherOptions{
		Name:         c.userName,
		PublishVideo: c.panels.Video,
		PublishAudio: c.panels.Audio,
		VideoSource:  c.selected.Camera,
		AudioSource:  c.selected.Microphone,
	}
	surface := c.cfg.Surfaces.SurfaceFor("local")
	go func() {
		pub, err := sess.Publish(ctx, surface, opts)
		if err != nil {
			c.logger.Warn("camera republish failed", "error", err)
			return
		}
		c.post(func() {
			if c.sess != sess {
				pub.Destroy()
				return
			}
			c.pub = pub
			if i := c.localParticipant(); i != -1 {
				c.participants[i].Media = pub
			}
		})
	}()
}

// TransferHost hands the host role to another participant without
// leaving. Only meaningful for the current host.
func (c *Coordinator) TransferHost(ctx context.Context, newHostID string) error {
	var (
		sess session.Session
		sig  session.Signal
		send bool
		err  error
	)
	c.do(func() {
		sess = c.sess
		if sess == nil || !c.isHost {
			return
		}
		sig, err = session.NewHostTransferSignal(session.HostTransfer{
			NewHostID:    c.resolveConnectionID(newHostID),
			NewHostName:  c.participantName(newHostID),
			PreviousHost: c.userName,
		})
		send = err == nil
	})
	if !send {
		return err
	}
	if err := sess.Signal(ctx, sig); err != nil {
		return err
	}
	c.do(func() {
		c.isHost = false
		if i := c.localParticipant(); i != -1 {
			c.participants[i].IsHost = false
		}
	})
	return nil
}

// Leave tears down the meeting and returns to the landing screen. A host
// leaving with other participants present should pass the successor's
// participant id; the transfer signal goes out before teardown. The
// coordinator itself does not block a host leaving without a successor:
// that rule lives in the leave-confirmation dialog.
func (c *Coordinator) Leave(ctx context.Context, newHostID string) {
	var (
		sess session.Session
		sig  session.Signal
		send bool
	)
	c.do(func() {
		c.showLeave = false
		sess = c.sess
		if sess == nil || !c.isHost || newHostID == "" {
			return
		}
		var err error
		sig, err = session.NewHostTransferSignal(session.HostTransfer{
			NewHostID:    c.resolveConnectionID(newHostID),
			NewHostName:  c.participantName(newHostID),
			PreviousHost: c.userName,
		})
		if err != nil {
			c.logger.Warn("encode host transfer failed", "error", err)
			return
		}
		send = true
	})

	if send {
		if err := sess.Signal(ctx, sig); err != nil {
			c.logger.Warn("host transfer on leave failed", "error", err)
		}
	}

	c.do(func() {
		c.teardownSession()
		c.resetMeetingState()
		c.navigate("/")
		c.view = ViewLanding
	})
}

// resolveConnectionID maps a roster id (stream or connection) to the
// underlying connection id the transfer signal must carry.
func (c *Coordinator) resolveConnectionID(participantID string) string {
	if i := c.participantByID(participantID); i != -1 && c.participants[i].ConnectionID != "" {
		return c.participants[i].ConnectionID
	}
	return participantID
}

func (c *Coordinator) participantName(participantID string) string {
	if i := c.participantByID(participantID); i != -1 {
		return c.participants[i].Name
	}
	return "Unknown"
}
