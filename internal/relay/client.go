package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/virek/vroom/internal/models"
	"github.com/virek/vroom/internal/session"
)

// Factory opens relay-backed sessions. It implements session.Factory, so
// the coordinator can run against a self-hosted relay instead of the
// hosted platform.
type Factory struct {
	// URL is the relay websocket endpoint, e.g. "ws://localhost:8080/ws".
	URL string
	// UserData is the JSON identity blob announced to the room.
	UserData string
}

func (f Factory) NewSession(creds models.Credentials) (session.Session, error) {
	if creds.SessionID == "" {
		return nil, session.ErrInvalidCreds
	}
	return &clientSession{
		endpoint: f.URL,
		roomID:   creds.SessionID,
		userData: f.UserData,
		events:   make(chan session.Event, 64),
	}, nil
}

type clientSession struct {
	endpoint string
	roomID   string
	userData string

	mu      sync.Mutex
	conn    *websocket.Conn
	connID  string
	closing bool

	writeMu sync.Mutex
	events  chan session.Event
	evOnce  sync.Once
}

// Connect dials the relay and waits for the room snapshot. The token is
// not verified: the relay is a development transport, not an auth layer.
func (s *clientSession) Connect(ctx context.Context, token string) error {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return fmt.Errorf("%w: %s", session.ErrConnectFailed, err)
	}
	q := u.Query()
	q.Set("session_id", s.roomID)
	if s.userData != "" {
		q.Set("data", s.userData)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if ctx.Err() != nil {
			return session.ErrConnectTimeout
		}
		return fmt.Errorf("%w: %s", session.ErrConnectFailed, err)
	}

	// The first frame is always the welcome snapshot.
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil || env.Type != MsgWelcome {
		_ = conn.Close()
		return session.ErrConnectFailed
	}
	var welcome welcomeData
	if err := json.Unmarshal(env.Data, &welcome); err != nil {
		_ = conn.Close()
		return session.ErrConnectFailed
	}

	s.mu.Lock()
	s.conn = conn
	s.connID = welcome.ConnectionID
	s.mu.Unlock()

	// Replay the room snapshot as events; the channel buffer absorbs them
	// until the coordinator starts draining.
	for _, p := range welcome.Peers {
		s.emit(session.ConnectionCreated{Connection: session.Connection{ID: p.ID, Data: p.Data}})
	}
	for _, st := range welcome.Streams {
		s.emit(session.StreamCreated{Stream: st.toSession()})
	}

	go s.readLoop(conn)
	return nil
}

func (s *clientSession) readLoop(conn *websocket.Conn) {
	defer func() {
		s.mu.Lock()
		closing := s.closing
		s.mu.Unlock()

		reason := "networkDisconnected"
		if closing {
			reason = session.ReasonClientDisconnected
		}
		s.emit(session.Disconnected{Reason: reason})
		s.evOnce.Do(func() { close(s.events) })
	}()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}

		switch env.Type {
		case MsgConnectionCreated:
			var p PeerInfo
			if err := json.Unmarshal(env.Data, &p); err != nil {
				continue
			}
			s.emit(session.ConnectionCreated{Connection: session.Connection{ID: p.ID, Data: p.Data}})
		case MsgConnectionDestroyed:
			var p PeerInfo
			if err := json.Unmarshal(env.Data, &p); err != nil {
				continue
			}
			s.emit(session.ConnectionDestroyed{Connection: session.Connection{ID: p.ID}})
		case MsgStreamCreated:
			var st StreamInfo
			if err := json.Unmarshal(env.Data, &st); err != nil {
				continue
			}
			s.emit(session.StreamCreated{Stream: st.toSession()})
		case MsgStreamDestroyed:
			var st StreamInfo
			if err := json.Unmarshal(env.Data, &st); err != nil {
				continue
			}
			stream := st.toSession()
			stream.Destroyed = true
			s.emit(session.StreamDestroyed{Stream: stream})
		case MsgSignal:
			var sig session.Signal
			if err := json.Unmarshal(env.Data, &sig); err != nil {
				continue
			}
			sig.From = env.From
			s.emit(session.SignalReceived{Signal: sig})
		}
	}
}

func (s *clientSession) emit(ev session.Event) {
	// Drop rather than block: a stalled consumer must not wedge the read
	// loop.
	select {
	case s.events <- ev:
	default:
	}
}

func (s *clientSession) Disconnect() {
	s.mu.Lock()
	conn := s.conn
	s.closing = true
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
		return
	}
	// Never connected: release the channel so event pumps can exit.
	s.evOnce.Do(func() { close(s.events) })
}

func (s *clientSession) ConnectionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connID
}

func (s *clientSession) send(env []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return session.ErrNotConnected
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, env)
}

func (s *clientSession) Publish(ctx context.Context, surface session.Surface, opts session.PublisherOptions) (session.Publisher, error) {
	id, err := gonanoid.New(16)
	if err != nil {
		return nil, err
	}
	videoType := "camera"
	if opts.ScreenShare {
		videoType = "screen"
	}
	st := StreamInfo{
		ID:        id,
		Name:      opts.Name,
		VideoType: videoType,
		HasVideo:  opts.PublishVideo,
		HasAudio:  opts.PublishAudio,
	}
	env, err := marshalEnvelope(MsgStreamCreated, "", "", st)
	if err != nil {
		return nil, err
	}
	if err := s.send(env); err != nil {
		return nil, fmt.Errorf("%w: %s", session.ErrPublishFailed, err)
	}
	return &clientPublisher{sess: s, stream: st}, nil
}

func (s *clientSession) Unpublish(p session.Publisher) {
	if pub, ok := p.(*clientPublisher); ok {
		pub.Destroy()
	}
}

func (s *clientSession) Subscribe(ctx context.Context, st session.Stream, surface session.Surface) (session.Subscriber, error) {
	// The relay only carries signaling; binding media to the surface is
	// the embedding environment's job.
	return &clientSubscriber{stream: st}, nil
}

func (s *clientSession) Signal(ctx context.Context, sig session.Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	env, err := json.Marshal(Envelope{Type: MsgSignal, Data: payload})
	if err != nil {
		return err
	}
	return s.send(env)
}

func (s *clientSession) Events() <-chan session.Event { return s.events }

type clientPublisher struct {
	sess   *clientSession
	stream StreamInfo

	mu        sync.Mutex
	destroyed bool
}

func (p *clientPublisher) HandleID() string { return p.stream.ID }

// SetVideo and SetAudio only track local state; the relay protocol does
// not carry stream property updates.
func (p *clientPublisher) SetVideo(enabled bool) error {
	p.mu.Lock()
	p.stream.HasVideo = enabled
	p.mu.Unlock()
	return nil
}

func (p *clientPublisher) SetAudio(enabled bool) error {
	p.mu.Lock()
	p.stream.HasAudio = enabled
	p.mu.Unlock()
	return nil
}

func (p *clientPublisher) Destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	st := p.stream
	p.mu.Unlock()

	env, err := marshalEnvelope(MsgStreamDestroyed, "", "", st)
	if err != nil {
		return
	}
	_ = p.sess.send(env)
}

type clientSubscriber struct {
	stream session.Stream
}

func (s *clientSubscriber) HandleID() string       { return "sub-" + s.stream.ID }
func (s *clientSubscriber) Stream() session.Stream { return s.stream }
func (s *clientSubscriber) Unsubscribe()           {}
