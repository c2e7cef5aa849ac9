// Package sessiontest provides an in-memory session implementation for
// exercising the coordinator without a vendor backend.
package sessiontest

import (
	"context"
	"sync"

	"github.com/virek/vroom/internal/models"
	"github.com/virek/vroom/internal/session"
)

// Factory hands out fake sessions and remembers every one it created so
// tests can assert on resource cleanup.
type Factory struct {
	mu       sync.Mutex
	sessions []*Session

	// ConnectErr, when set, fails every Connect call.
	ConnectErr error
	// PublishErr, when set, fails every Publish call.
	PublishErr error
	// SubscribeErr, when set, fails every Subscribe call.
	SubscribeErr error
}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) NewSession(creds models.Credentials) (session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &Session{
		factory: f,
		creds:   creds,
		connID:  "local-conn",
		events:  make(chan session.Event, 64),
	}
	f.sessions = append(f.sessions, s)
	return s, nil
}

// Sessions returns every session the factory created, in order.
func (f *Factory) Sessions() []*Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Session(nil), f.sessions...)
}

// LiveSessions counts sessions that are connected and not disconnected.
func (f *Factory) LiveSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sessions {
		if s.Connected() {
			n++
		}
	}
	return n
}

// LivePublishers counts publisher handles not yet destroyed, across all
// sessions.
func (f *Factory) LivePublishers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sessions {
		n += s.livePublishers()
	}
	return n
}

type Session struct {
	factory *Factory
	creds   models.Credentials
	connID  string

	mu         sync.Mutex
	connected  bool
	closed     bool
	events     chan session.Event
	publishers []*Publisher
	subs       []*Subscriber
	signals    []session.Signal

	// SignalErr fails the next Signal call, then clears.
	SignalErr error
}

func (s *Session) Connect(ctx context.Context, token string) error {
	if err := s.factory.ConnectErr; err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

func (s *Session) ConnectionID() string { return s.connID }

func (s *Session) Publish(ctx context.Context, surface session.Surface, opts session.PublisherOptions) (session.Publisher, error) {
	if err := s.factory.PublishErr; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := &Publisher{id: "pub-" + opts.Name, opts: opts}
	s.mu.Lock()
	s.publishers = append(s.publishers, p)
	s.mu.Unlock()
	return p, nil
}

func (s *Session) Unpublish(p session.Publisher) {}

func (s *Session) Subscribe(ctx context.Context, st session.Stream, surface session.Surface) (session.Subscriber, error) {
	if err := s.factory.SubscribeErr; err != nil {
		return nil, err
	}
	sub := &Subscriber{stream: st}
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
	return sub, nil
}

func (s *Session) Signal(ctx context.Context, sig session.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.SignalErr; err != nil {
		s.SignalErr = nil
		return err
	}
	s.signals = append(s.signals, sig)
	return nil
}

func (s *Session) Events() <-chan session.Event { return s.events }

// Emit delivers a vendor event to the coordinator.
func (s *Session) Emit(ev session.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- ev
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// SentSignals returns every signal broadcast through this session.
func (s *Session) SentSignals() []session.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]session.Signal(nil), s.signals...)
}

// LivePublishersList returns the publishers created on this session that
// have not been destroyed yet.
func (s *Session) LivePublishersList() []*Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	var live []*Publisher
	for _, p := range s.publishers {
		if !p.Destroyed() {
			live = append(live, p)
		}
	}
	return live
}

func (s *Session) livePublishers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.publishers {
		if !p.Destroyed() {
			n++
		}
	}
	return n
}

type Publisher struct {
	id   string
	opts session.PublisherOptions

	mu        sync.Mutex
	destroyed bool
	video     *bool
	audio     *bool
}

func (p *Publisher) HandleID() string { return p.id }

func (p *Publisher) SetVideo(enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.video = &enabled
	return nil
}

func (p *Publisher) SetAudio(enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audio = &enabled
	return nil
}

func (p *Publisher) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroyed = true
}

func (p *Publisher) Destroyed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyed
}

// VideoState reports the last SetVideo value, or nil when never called.
func (p *Publisher) VideoState() *bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.video
}

func (p *Publisher) Options() session.PublisherOptions { return p.opts }

type Subscriber struct {
	stream session.Stream

	mu           sync.Mutex
	unsubscribed bool
}

func (s *Subscriber) HandleID() string       { return "sub-" + s.stream.ID }
func (s *Subscriber) Stream() session.Stream { return s.stream }

func (s *Subscriber) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribed = true
}

// Devices is a configurable device lister.
type Devices struct {
	Set models.DeviceSet
	Err error
}

func (d *Devices) ListDevices(ctx context.Context) (models.DeviceSet, error) {
	return d.Set, d.Err
}

// BothDevices is a device set with one camera and one microphone.
func BothDevices() models.DeviceSet {
	return models.DeviceSet{
		Cameras:     []models.Device{{ID: "cam-1", Label: "FaceTime HD", Kind: models.DeviceCamera}},
		Microphones: []models.Device{{ID: "mic-1", Label: "Built-in Mic", Kind: models.DeviceMicrophone}},
	}
}

// Tokens is a canned TokenSource.
type Tokens struct {
	SessionID  string
	MeetingURL string
	Creds      models.Credentials
	CreateErr  error
	TokenErr   error
}

func (t *Tokens) CreateMeeting(ctx context.Context, userData models.UserData) (string, string, error) {
	if t.CreateErr != nil {
		return "", "", t.CreateErr
	}
	return t.SessionID, t.MeetingURL, nil
}

func (t *Tokens) GenerateToken(ctx context.Context, sessionID string, userData models.UserData, role models.Role) (models.Credentials, error) {
	if t.TokenErr != nil {
		return models.Credentials{}, t.TokenErr
	}
	creds := t.Creds
	if creds.SessionID == "" {
		creds.SessionID = sessionID
	}
	return creds, nil
}

// Surfaces hands out trivial surfaces keyed by id.
type Surfaces struct{}

type surface string

func (s surface) SurfaceID() string { return string(s) }

func (Surfaces) SurfaceFor(id string) session.Surface { return surface(id) }

// Display is a scripted display-capture source.
type Display struct {
	TrackID string
	Err     error
	stopCh  chan struct{}
	mu      sync.Mutex
}

func (d *Display) CaptureDisplay(ctx context.Context) (string, <-chan struct{}, error) {
	if d.Err != nil {
		return "", nil, d.Err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopCh = make(chan struct{})
	return d.TrackID, d.stopCh, nil
}

// EndCapture simulates the environment's native "stop sharing" control.
func (d *Display) EndCapture() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopCh != nil {
		close(d.stopCh)
		d.stopCh = nil
	}
}
