package handlers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/virek/vroom/internal/config"
	"github.com/virek/vroom/internal/opentok"
	"github.com/virek/vroom/internal/registry"
	"github.com/virek/vroom/internal/turn"
)

// Vendor is the slice of the platform API the token service needs.
type Vendor interface {
	APIKey() string
	CreateSession(ctx context.Context, opts opentok.SessionOptions) (string, error)
	GenerateToken(sessionID string, opts opentok.TokenOptions) (string, error)
}

// Recorder persists created meetings for creator lookups.
type Recorder interface {
	Record(m registry.Meeting) error
}

// Notifier fans meeting announcements out to subscribed browsers.
type Notifier interface {
	PublicKey() string
	Subscribe(sub registry.PushSubscription) error
	Unsubscribe(endpoint string) error
	Broadcast(title, body string, data map[string]any)
}

type Handlers struct {
	config     *config.Config
	vendor     Vendor
	meetings   Recorder
	turnServer *turn.TURNServer
	notifier   Notifier // nil disables push endpoints
	logger     *slog.Logger
	nowFn      func() time.Time

	// Process-lifetime session backing the simple GET token variant.
	simpleMu        sync.Mutex
	simpleSessionID string
}

func New(cfg *config.Config, vendor Vendor, meetings Recorder, turnServer *turn.TURNServer, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		config:     cfg,
		vendor:     vendor,
		meetings:   meetings,
		turnServer: turnServer,
		logger:     logger.With("component", "handlers"),
		nowFn:      time.Now,
	}
}

// SetNotifier enables the push endpoints and meeting announcements.
func (h *Handlers) SetNotifier(n Notifier) { h.notifier = n }

// RegisterRoutes mounts the API onto a gin router.
func (h *Handlers) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	api.POST("/create-meeting", h.CreateMeeting)
	api.POST("/token", h.IssueToken)
	api.GET("/token", h.SimpleToken)
	api.GET("/turn-config", h.GetTURNConfig)
	api.GET("/push/public-key", h.GetPushPublicKey)
	api.POST("/push/subscribe", h.SubscribePush)
	api.POST("/push/unsubscribe", h.UnsubscribePush)
}
