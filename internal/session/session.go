// Package session abstracts the hosted real-time video platform. The
// coordinator drives everything through these interfaces; concrete
// implementations bind either the hosted vendor or the self-hosted relay.
package session

import (
	"context"
	"errors"
	"strings"

	"github.com/virek/vroom/internal/models"
)

var (
	ErrSDKUnavailable  = errors.New("video SDK unavailable")
	ErrNotConnected    = errors.New("session not connected")
	ErrInvalidCreds    = errors.New("invalid session credentials")
	ErrConnectFailed   = errors.New("session connection failed")
	ErrConnectTimeout  = errors.New("connection timeout")
	ErrPublishFailed   = errors.New("publish failed")
	ErrSubscribeFailed = errors.New("subscribe failed")
)

// Stream is a remote media publication as announced by the vendor.
type Stream struct {
	ID           string
	ConnectionID string
	Name         string
	VideoType    string // "camera" or "screen"
	HasVideo     bool
	HasAudio     bool
	Destroyed    bool
}

// IsScreenShare classifies a stream as a screen-share publication using
// the naming convention and the vendor content-type hint.
func (s Stream) IsScreenShare() bool {
	return s.VideoType == "screen" || strings.Contains(s.Name, models.ScreenSuffix)
}

// Connection is a remote client attached to the session, with or without
// a published stream.
type Connection struct {
	ID   string
	Data string // JSON-encoded models.UserData, may be empty
}

// Surface is a display target the embedder provides. The vendor renders
// media into it; the coordinator only binds and releases.
type Surface interface {
	SurfaceID() string
}

// PublisherOptions mirrors the knobs the widget sets when publishing.
type PublisherOptions struct {
	Name         string
	PublishVideo bool
	PublishAudio bool
	VideoSource  string // device id, or screen-capture track id
	AudioSource  string
	ScreenShare  bool
}

// Publisher is the local media publication handle. Owned exclusively by
// the coordinator.
type Publisher interface {
	models.MediaHandle
	SetVideo(enabled bool) error
	SetAudio(enabled bool) error
	Destroy()
}

// Subscriber is a bound remote stream. Owned exclusively by the
// coordinator; views receive it only as a models.MediaHandle.
type Subscriber interface {
	models.MediaHandle
	Stream() Stream
	Unsubscribe()
}

// Session is one vendor session. All methods may block; cancellation and
// deadlines travel through ctx. Events are delivered on the channel
// returned by Events, in vendor order, until Disconnect.
type Session interface {
	Connect(ctx context.Context, token string) error
	Disconnect()
	ConnectionID() string
	Publish(ctx context.Context, surface Surface, opts PublisherOptions) (Publisher, error)
	Unpublish(p Publisher)
	Subscribe(ctx context.Context, s Stream, surface Surface) (Subscriber, error)
	Signal(ctx context.Context, sig Signal) error
	Events() <-chan Event
}

// Factory opens a session for a set of credentials.
type Factory interface {
	NewSession(creds models.Credentials) (Session, error)
}

// Devices enumerates local capture hardware.
type Devices interface {
	ListDevices(ctx context.Context) (models.DeviceSet, error)
}

// DisplayCapture requests a screen-capture source from the embedder.
// Stop fires when the environment ends the capture (the browser's native
// "stop sharing" affordance).
type DisplayCapture interface {
	CaptureDisplay(ctx context.Context) (trackID string, stop <-chan struct{}, err error)
}
