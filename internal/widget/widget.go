// Package widget is the embedding surface: a bag of element-style
// attributes plus a Mount call that wires a coordinator to the host
// environment's session factory and display surfaces.
package widget

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/virek/vroom/internal/coordinator"
	"github.com/virek/vroom/internal/models"
	"github.com/virek/vroom/internal/session"
)

// Theme selects the widget's color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Attributes mirrors the custom element's attribute set. Zero values mean
// "not provided"; the coordinator applies its own defaults.
type Attributes struct {
	APIKey             string
	SessionID          string
	Token              string
	UserName           string
	IsHost             bool
	MeetingURL         string
	Theme              Theme
	Icons              map[string]string
	ScreenshotWithChat bool
}

var ErrUnknownAttribute = errors.New("unknown attribute")

// Set applies one kebab-case attribute, the way the element receives them
// from markup.
func (a *Attributes) Set(name, value string) error {
	switch strings.ToLower(name) {
	case "api-key":
		a.APIKey = value
	case "session-id":
		a.SessionID = value
	case "token":
		a.Token = value
	case "username":
		a.UserName = value
	case "is-host":
		a.IsHost = parseBool(value)
	case "meeting-url":
		a.MeetingURL = value
	case "theme":
		switch Theme(value) {
		case ThemeLight, ThemeDark:
			a.Theme = Theme(value)
		default:
			return fmt.Errorf("theme %q: want light or dark", value)
		}
	case "icons":
		var icons map[string]string
		if err := json.Unmarshal([]byte(value), &icons); err != nil {
			return fmt.Errorf("icons attribute: %w", err)
		}
		a.Icons = icons
	case "screenshot-with-chat":
		a.ScreenshotWithChat = parseBool(value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	return nil
}

// parseBool follows element attribute semantics: presence alone ("")
// means true, as do the usual truthy spellings.
func parseBool(value string) bool {
	if value == "" {
		return true
	}
	b, err := strconv.ParseBool(value)
	return err == nil && b
}

// ParseAttributes builds an attribute bag from a kebab-case map, for
// programmatic construction. Unknown keys are an error so typos surface
// instead of silently doing nothing.
func ParseAttributes(attrs map[string]string) (Attributes, error) {
	var a Attributes
	a.Theme = ThemeLight
	for name, value := range attrs {
		if err := a.Set(name, value); err != nil {
			return Attributes{}, err
		}
	}
	return a, nil
}

// Provider is everything the embedding environment supplies: how to open
// vendor sessions, enumerate devices, obtain tokens, and render media.
type Provider struct {
	Logger      *slog.Logger
	Sessions    session.Factory
	Devices     session.Devices
	Tokens      coordinator.TokenSource
	Surfaces    coordinator.SurfaceProvider
	Display     session.DisplayCapture
	Screenshots coordinator.ScreenshotCapturer
	Saver       coordinator.ScreenshotSaver
	Navigator   coordinator.Navigator
	BaseURL     string
}

// Widget is one mounted element instance.
type Widget struct {
	attrs Attributes
	coord *coordinator.Coordinator
}

var (
	ErrNoSessionFactory = errors.New("widget: session factory is required")
	ErrNoTokenSource    = errors.New("widget: token source is required")
	ErrNoSurfaces       = errors.New("widget: surface provider is required")
	ErrNoDeviceLister   = errors.New("widget: device lister is required")
)

// Mount wires a coordinator to the provider and brings the widget to the
// screen matching its attributes: a meeting-url lands on pre-join (or
// straight in, when the url carries credentials), otherwise the landing
// screen.
func Mount(attrs Attributes, p Provider) (*Widget, error) {
	if p.Sessions == nil {
		return nil, ErrNoSessionFactory
	}
	if p.Tokens == nil {
		return nil, ErrNoTokenSource
	}
	if p.Surfaces == nil {
		return nil, ErrNoSurfaces
	}
	if p.Devices == nil {
		return nil, ErrNoDeviceLister
	}

	coord := coordinator.New(coordinator.Config{
		Logger:      p.Logger,
		Sessions:    p.Sessions,
		Devices:     p.Devices,
		Tokens:      p.Tokens,
		Surfaces:    p.Surfaces,
		Display:     p.Display,
		Screenshots: p.Screenshots,
		Saver:       p.Saver,
		Navigator:   p.Navigator,
		UserName:    attrs.UserName,
		IsHost:      attrs.IsHost,
		Creds: models.Credentials{
			APIKey:    attrs.APIKey,
			SessionID: attrs.SessionID,
			Token:     attrs.Token,
		},
		BaseURL:          p.BaseURL,
		ScreenshotToChat: attrs.ScreenshotWithChat,
	})

	if attrs.MeetingURL != "" {
		coord.HandleLocation(attrs.MeetingURL)
	}
	return &Widget{attrs: attrs, coord: coord}, nil
}

// Coordinator exposes the underlying state machine for rendering and
// actions.
func (w *Widget) Coordinator() *coordinator.Coordinator { return w.coord }

// Attributes returns the bag the widget was mounted with.
func (w *Widget) Attributes() Attributes { return w.attrs }

// Icon returns the configured icon for a control, or "" for the default.
func (w *Widget) Icon(control string) string { return w.attrs.Icons[control] }

// Unmount releases the coordinator and every vendor resource it holds.
func (w *Widget) Unmount() { w.coord.Close() }
