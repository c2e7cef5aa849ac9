// Package push delivers web push notifications to subscribed browsers,
// currently just "a meeting started" nudges. VAPID keys are generated on
// first run and persisted next to the binary.
package push

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/virek/vroom/internal/registry"
)

// Notifier broadcasts push messages to every registered subscription.
type Notifier struct {
	registry   *registry.Registry
	publicKey  string
	privateKey string
	subject    string
	logger     *slog.Logger
}

// NewNotifier loads or generates the VAPID key pair and returns a ready
// notifier. subject is the contact URI push services may use, usually a
// mailto: address.
func NewNotifier(reg *registry.Registry, subject string, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	priv, pub, err := loadOrGenerateVAPIDKeys(logger)
	if err != nil {
		return nil, err
	}
	return &Notifier{
		registry:   reg,
		publicKey:  pub,
		privateKey: priv,
		subject:    subject,
		logger:     logger.With("component", "push"),
	}, nil
}

// PublicKey is the VAPID public key browsers subscribe with.
func (n *Notifier) PublicKey() string { return n.publicKey }

// Subscribe registers a browser push endpoint.
func (n *Notifier) Subscribe(sub registry.PushSubscription) error {
	return n.registry.SaveSubscription(sub)
}

// Unsubscribe drops an endpoint.
func (n *Notifier) Unsubscribe(endpoint string) error {
	return n.registry.DropSubscription(endpoint)
}

// Broadcast sends a notification to every subscription. Endpoints the
// push service reports gone are pruned. Failures are logged, not
// returned: notifications are best effort.
func (n *Notifier) Broadcast(title, body string, data map[string]any) {
	subs, err := n.registry.Subscriptions()
	if err != nil {
		n.logger.Warn("push subscription lookup failed", "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"title": title,
		"body":  body,
		"data":  data,
	})
	if err != nil {
		n.logger.Warn("push payload encode failed", "error", err)
		return
	}

	for _, sub := range subs {
		if sub.P256DH == "" || sub.Auth == "" {
			_ = n.registry.DropSubscription(sub.Endpoint)
			continue
		}
		n.send(sub, payload)
	}
}

func (n *Notifier) send(sub registry.PushSubscription, payload []byte) {
	resp, err := webpush.SendNotification(payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: strings.TrimSpace(sub.P256DH),
			Auth:   strings.TrimSpace(sub.Auth),
		},
	}, &webpush.Options{
		Subscriber:      n.subject,
		VAPIDPublicKey:  n.publicKey,
		VAPIDPrivateKey: n.privateKey,
		TTL:             60,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		n.logger.Warn("push send failed", "endpoint", sub.Endpoint, "error", err)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		// The browser unregistered this endpoint.
		_ = n.registry.DropSubscription(sub.Endpoint)
	case http.StatusCreated, http.StatusOK, http.StatusAccepted:
	default:
		n.logger.Warn("push service rejected notification", "endpoint", sub.Endpoint, "status", resp.StatusCode)
	}
}

func loadOrGenerateVAPIDKeys(logger *slog.Logger) (priv, pub string, err error) {
	keysDir := keysDirectory()
	privFile := filepath.Join(keysDir, "vapid-private.key")
	pubFile := filepath.Join(keysDir, "vapid-public.key")

	if privData, err := os.ReadFile(privFile); err == nil {
		if pubData, err := os.ReadFile(pubFile); err == nil {
			return string(privData), string(pubData), nil
		}
	}

	priv, pub, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(keysDir, 0700); err == nil {
		os.WriteFile(privFile, []byte(priv), 0600)
		os.WriteFile(pubFile, []byte(pub), 0600)
		logger.Info("vapid keys saved", "dir", keysDir)
	}
	return priv, pub, nil
}

func keysDirectory() string {
	execPath, err := os.Executable()
	if err != nil {
		return "keys"
	}
	return filepath.Join(filepath.Dir(execPath), "keys")
}
