package coordinator

import (
	"context"
	"encoding/json"

	"github.com/virek/vroom/internal/models"
	"github.com/virek/vroom/internal/session"
)

const remoteUserName = "Remote User"

// pumpEvents forwards vendor events onto the dispatch queue, preserving
// vendor delivery order. It exits when the session closes its event
// channel or a newer join attempt took over.
func (c *Coordinator) pumpEvents(sess session.Session) {
	for ev := range sess.Events() {
		ev := ev
		c.post(func() {
			if c.sess != sess {
				return
			}
			c.handleEvent(ev)
		})
	}
}

func (c *Coordinator) handleEvent(ev session.Event) {
	switch e := ev.(type) {
	case session.StreamCreated:
		c.onStreamCreated(e.Stream)
	case session.StreamDestroyed:
		c.onStreamDestroyed(e.Stream)
	case session.ConnectionCreated:
		c.onConnectionCreated(e.Connection)
	case session.ConnectionDestroyed:
		c.onConnectionDestroyed(e.Connection)
	case session.StreamPropertyChanged:
		c.onStreamPropertyChanged(e)
	case session.Disconnected:
		c.onDisconnected(e.Reason)
	case session.Reconnecting:
		c.connError = "Reconnecting to session..."
	case session.Reconnected:
		c.connError = ""
	case session.SignalReceived:
		c.onSignal(e.Signal)
	case session.SessionError:
		if e.Message != "" {
			c.connError = "Session error: " + e.Message
		} else {
			c.connError = "Session error: Unknown error"
		}
	}
}

func (c *Coordinator) onStreamCreated(stream session.Stream) {
	if stream.ID == "" || stream.Destroyed {
		return
	}
	// Own stream comes back as an event too; the local entry already
	// exists.
	if c.sess != nil && stream.ConnectionID == c.sess.ConnectionID() {
		return
	}
	if _, ok := c.subs[subKey(stream)]; ok {
		return
	}
	if _, ok := c.pendingSubs[stream.ID]; ok {
		return
	}

	if stream.IsScreenShare() {
		c.subscribeScreenShare(stream)
		return
	}

	// Delay the subscribe: the vendor can destroy a stream right after
	// announcing it, and subscribing into that window errors out.
	timer := c.after(c.cfg.SubscribeDelay, func() {
		if _, ok := c.pendingSubs[stream.ID]; !ok {
			return // destroyed during the delay
		}
		delete(c.pendingSubs, stream.ID)
		c.subscribeCamera(stream)
	})
	c.pendingSubs[stream.ID] = timer
}

func (c *Coordinator) subscribeCamera(stream session.Stream) {
	sess := c.sess
	if sess == nil {
		return
	}
	surface := c.cfg.Surfaces.SurfaceFor(stream.ID)
	go func() {
		sub, err := sess.Subscribe(context.Background(), stream, surface)
		if err != nil {
			c.logger.Warn("subscribe failed", "stream_id", stream.ID, "error", err)
			return
		}
		c.post(func() {
			if c.sess != sess {
				sub.Unsubscribe()
				return
			}
			c.subs[stream.ID] = sub
			c.mergeParticipant(stream, sub)
		})
	}()
}

// mergeParticipant folds a subscribed stream into the roster: update an
// entry with the same stream id, upgrade a connection-only placeholder,
// or append.
func (c *Coordinator) mergeParticipant(stream session.Stream, sub session.Subscriber) {
	if i := c.participantByID(stream.ID); i != -1 {
		c.participants[i].Video = stream.HasVideo
		c.participants[i].Audio = stream.HasAudio
		c.participants[i].Media = sub
		return
	}
	for i := range c.participants {
		p := &c.participants[i]
		if !p.IsLocal && p.ID == stream.ConnectionID {
			p.ID = stream.ID
			if stream.Name != "" {
				p.Name = stream.Name
			}
			p.Video = stream.HasVideo
			p.Audio = stream.HasAudio
			p.Media = sub
			return
		}
	}
	name := stream.Name
	if name == "" {
		name = remoteUserName
	}
	c.participants = append(c.participants, models.Participant{
		ID:           stream.ID,
		ConnectionID: stream.ConnectionID,
		Name:         name,
		Video:        stream.HasVideo,
		Audio:        stream.HasAudio,
		Media:        sub,
	})
}

func (c *Coordinator) subscribeScreenShare(stream session.Stream) {
	sess := c.sess
	if sess == nil {
		return
	}
	surface := c.cfg.Surfaces.SurfaceFor("screen-share-" + stream.ID)
	go func() {
		sub, err := sess.Subscribe(context.Background(), stream, surface)
		if err != nil {
			c.logger.Warn("screen share subscribe failed", "stream_id", stream.ID, "error", err)
			return
		}
		c.post(func() {
			if c.sess != sess {
				sub.Unsubscribe()
				return
			}
			c.subs[subKey(stream)] = sub
			sharedBy := models.DisplayName(stream.Name)
			if sharedBy == "" {
				sharedBy = remoteUserName
			}
			c.screen.Receiving = true
			c.screen.SharedBy = sharedBy
			c.screen.Stream = sub
			if c.participantByID(stream.ID) == -1 {
				c.participants = append(c.participants, models.Participant{
					ID:            stream.ID,
					ConnectionID:  stream.ConnectionID,
					Name:          sharedBy,
					Video:         true,
					Audio:         stream.HasAudio,
					IsScreenShare: true,
					Media:         sub,
				})
			}
		})
	}()
}

func (c *Coordinator) onStreamDestroyed(stream session.Stream) {
	if timer, ok := c.pendingSubs[stream.ID]; ok {
		timer.Stop()
		delete(c.pendingSubs, stream.ID)
	}

	if stream.IsScreenShare() {
		if sub, ok := c.subs[subKey(stream)]; ok {
			sub.Unsubscribe()
			delete(c.subs, subKey(stream))
		}
		c.screen = models.ScreenShare{}
		kept := c.participants[:0]
		for _, p := range c.participants {
			if !p.IsScreenShare {
				kept = append(kept, p)
			}
		}
		c.participants = kept
		return
	}

	if sub, ok := c.subs[stream.ID]; ok {
		sub.Unsubscribe()
		delete(c.subs, stream.ID)
	}
	if i := c.participantByID(stream.ID); i != -1 {
		c.participants = append(c.participants[:i], c.participants[i+1:]...)
	}
}

func (c *Coordinator) onConnectionCreated(conn session.Connection) {
	if conn.ID == "" {
		return
	}
	if i := c.participantByID(conn.ID); i != -1 {
		return
	}
	isLocal := c.sess != nil && conn.ID == c.sess.ConnectionID()
	if isLocal && c.localParticipant() != -1 {
		return
	}
	name := remoteUserName
	if conn.Data != "" {
		var ud models.UserData
		if err := json.Unmarshal([]byte(conn.Data), &ud); err == nil && ud.Name != "" {
			name = ud.Name
		} else if err != nil {
			c.logger.Debug("could not parse connection data", "connection_id", conn.ID)
		}
	}
	c.participants = append(c.participants, models.Participant{
		ID:           conn.ID,
		ConnectionID: conn.ID,
		Name:         name,
		IsLocal:      isLocal,
		Video:        true,
		Audio:        true,
	})
}

func (c *Coordinator) onConnectionDestroyed(conn session.Connection) {
	if conn.ID == "" {
		return
	}
	kept := c.participants[:0]
	for _, p := range c.participants {
		if !p.IsLocal && p.ConnectionID == conn.ID {
			if _, ok := c.subs[p.ID]; ok {
				c.subs[p.ID].Unsubscribe()
				delete(c.subs, p.ID)
			}
			continue
		}
		kept = append(kept, p)
	}
	c.participants = kept
}

func (c *Coordinator) onStreamPropertyChanged(e session.StreamPropertyChanged) {
	i := c.participantByID(e.StreamID)
	if i == -1 {
		return
	}
	if e.Video != nil {
		c.participants[i].Video = *e.Video
	}
	if e.Audio != nil {
		c.participants[i].Audio = *e.Audio
	}
}

func (c *Coordinator) onDisconnected(reason string) {
	// A clean self-initiated disconnect is silent.
	if reason == session.ReasonClientDisconnected {
		return
	}
	c.connError = "Session was disconnected unexpectedly"
	for id, sub := range c.subs {
		sub.Unsubscribe()
		delete(c.subs, id)
	}
	c.after(disconnectBannerDelay, func() {
		c.teardownSession()
		c.resetMeetingState()
		c.navigate("/")
		c.view = ViewLanding
	})
}

func (c *Coordinator) onSignal(sig session.Signal) {
	switch sig.Type {
	case session.SignalChat:
		msg, err := session.DecodeChat(sig)
		if err != nil {
			c.logger.Debug("dropping malformed chat signal", "error", err)
			return
		}
		// The vendor echoes broadcasts back to the sender; the optimistic
		// local append already holds that id.
		for _, existing := range c.chat {
			if existing.ID == msg.ID {
				return
			}
		}
		c.chat = append(c.chat, msg)
	case session.SignalReaction:
		r, err := session.DecodeReaction(sig)
		if err != nil {
			c.logger.Debug("dropping malformed reaction signal", "error", err)
			return
		}
		// Own reactions were already rendered optimistically.
		if r.Sender == c.userName {
			return
		}
		c.reactions = append(c.reactions, r)
		c.scheduleReactionRemoval(r.ID)
	case session.SignalHostTransfer:
		t, err := session.DecodeHostTransfer(sig)
		if err != nil {
			c.logger.Debug("dropping malformed host transfer signal", "error", err)
			return
		}
		c.applyHostTransfer(t)
	default:
		c.logger.Debug("ignoring unknown signal", "type", string(sig.Type))
	}
}

func (c *Coordinator) applyHostTransfer(t session.HostTransfer) {
	localConnID := ""
	if c.sess != nil {
		localConnID = c.sess.ConnectionID()
	}
	becameHost := localConnID != "" && localConnID == t.NewHostID
	c.isHost = becameHost
	if becameHost {
		c.showLeave = false
	}
	for i := range c.participants {
		c.participants[i].IsHost = c.participants[i].ConnectionID == t.NewHostID
	}
}

func (c *Coordinator) scheduleReactionRemoval(id string) {
	c.after(c.cfg.ReactionTTL, func() {
		kept := c.reactions[:0]
		for _, r := range c.reactions {
			if r.ID != id {
				kept = append(kept, r)
			}
		}
		c.reactions = kept
	})
}

// subKey namespaces screen-share subscriptions away from camera ones.
func subKey(stream session.Stream) string {
	if stream.IsScreenShare() {
		return "screenshare-" + stream.ID
	}
	return stream.ID
}
