// Package coordinator owns all meeting state: the screen being shown, the
// participant roster, chat, reactions, screen-share and device selection.
// It drives the vendor session lifecycle in response to vendor events and
// user intents.
//
// All state lives on a single dispatch goroutine. User intents and vendor
// events are posted onto one queue and processed sequentially; blocking
// vendor calls (token fetch, connect, publish, subscribe) run off-loop and
// post their completions back onto the queue.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/virek/vroom/internal/models"
	"github.com/virek/vroom/internal/session"
)

// View is the screen currently shown by the widget.
type View string

const (
	ViewLanding View = "landing"
	ViewPrejoin View = "prejoin"
	ViewMeeting View = "meeting"
)

// TokenSource obtains sessions and credentials from the companion server.
type TokenSource interface {
	CreateMeeting(ctx context.Context, userData models.UserData) (sessionID, meetingURL string, err error)
	GenerateToken(ctx context.Context, sessionID string, userData models.UserData, role models.Role) (models.Credentials, error)
}

// SurfaceProvider hands out display surfaces for participant ids. The
// embedding environment decides what a surface actually is.
type SurfaceProvider interface {
	SurfaceFor(id string) session.Surface
}

// ScreenshotCapturer renders the current video container into an image.
type ScreenshotCapturer interface {
	Capture(ctx context.Context) (models.Attachment, error)
}

// ScreenshotSaver receives screenshots that are not staged into chat.
type ScreenshotSaver interface {
	Save(att models.Attachment) error
}

// Navigator reflects coordinator state into the embedder's location bar.
type Navigator interface {
	ReplaceLocation(path string)
}

type Config struct {
	Logger   *slog.Logger
	Sessions session.Factory
	Devices  session.Devices
	Tokens   TokenSource
	Surfaces SurfaceProvider

	// Optional collaborators.
	Display     session.DisplayCapture
	Screenshots ScreenshotCapturer
	Saver       ScreenshotSaver
	Navigator   Navigator

	UserName string
	IsHost   bool
	Creds    models.Credentials
	BaseURL  string

	// ScreenshotToChat stages screenshots as chat attachments instead of
	// saving them directly.
	ScreenshotToChat bool
	// IncludeCredentialsInLinks embeds the access token and API key into
	// shareable host links. Off by default: such links leak credentials to
	// anyone who sees them.
	IncludeCredentialsInLinks bool

	JoinTimeout    time.Duration
	SubscribeDelay time.Duration
	ReactionTTL    time.Duration
}

const (
	defaultJoinTimeout    = 15 * time.Second
	defaultSubscribeDelay = 500 * time.Millisecond
)

type Coordinator struct {
	cfg    Config
	logger *slog.Logger

	dispatch chan func()
	done     chan struct{}
	stopOnce sync.Once

	// Everything below is owned by the dispatch goroutine.
	view          View
	userName      string
	isHost        bool
	creds         models.Credentials
	meetingLink   string
	devices       models.DeviceSet
	selected      models.SelectedDevices
	preview       previewState
	panels        models.PanelState
	participants  []models.Participant
	chat          []models.ChatMessage
	chatInput     string
	attachments   []models.Attachment
	reactions     []models.Reaction
	screen        models.ScreenShare
	isConnecting  bool
	connError     string
	showLeave     bool
	sess          session.Session
	pub           session.Publisher
	subs          map[string]session.Subscriber
	pendingSubs   map[string]*time.Timer
	screenStop    chan struct{}
	epoch         int
}

type previewState struct {
	video bool
	audio bool
	set   bool
}

func New(cfg Config) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = defaultJoinTimeout
	}
	if cfg.SubscribeDelay <= 0 {
		cfg.SubscribeDelay = defaultSubscribeDelay
	}
	if cfg.ReactionTTL <= 0 {
		cfg.ReactionTTL = models.ReactionTTL
	}

	c := &Coordinator{
		cfg:         cfg,
		logger:      cfg.Logger.With("component", "coordinator"),
		dispatch:    make(chan func(), 64),
		done:        make(chan struct{}),
		view:        ViewLanding,
		userName:    cfg.UserName,
		isHost:      cfg.IsHost,
		creds:       cfg.Creds,
		panels:      models.PanelState{Video: true, Audio: true},
		subs:        make(map[string]session.Subscriber),
		pendingSubs: make(map[string]*time.Timer),
	}
	go c.run()
	return c
}

func (c *Coordinator) run() {
	for {
		select {
		case fn := <-c.dispatch:
			fn()
		case <-c.done:
			return
		}
	}
}

// Close stops the dispatch loop and tears down any live vendor resources.
func (c *Coordinator) Close() {
	c.do(func() { c.teardownSession() })
	c.stopOnce.Do(func() { close(c.done) })
}

// do posts fn onto the dispatch queue and returns once it ran.
func (c *Coordinator) do(fn func()) {
	doneCh := make(chan struct{})
	select {
	case c.dispatch <- func() { fn(); close(doneCh) }:
	case <-c.done:
		return
	}
	select {
	case <-doneCh:
	case <-c.done:
	}
}

// post queues fn without waiting for it.
func (c *Coordinator) post(fn func()) {
	select {
	case c.dispatch <- fn:
	case <-c.done:
	}
}

// after schedules fn onto the queue once d elapsed.
func (c *Coordinator) after(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() { c.post(fn) })
}

// localParticipant returns the index of the local roster entry, or -1.
func (c *Coordinator) localParticipant() int {
	for i := range c.participants {
		if c.participants[i].IsLocal {
			return i
		}
	}
	return -1
}

func (c *Coordinator) participantByID(id string) int {
	for i := range c.participants {
		if c.participants[i].ID == id {
			return i
		}
	}
	return -1
}
