// Package opentok is a minimal client for the hosted video platform API:
// session allocation and access-token minting. It covers exactly what the
// companion server needs, nothing more.
package opentok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultAPIURL = "https://api.opentok.com"

var ErrNoSession = errors.New("vendor returned no session")

// MediaMode controls where media flows. Routed sessions pass through the
// vendor's media servers, which the widget requires for screen-share and
// multi-party layouts.
type MediaMode string

const (
	MediaModeRouted  MediaMode = "routed"
	MediaModeRelayed MediaMode = "relayed"
)

type SessionOptions struct {
	MediaMode   MediaMode
	ArchiveMode string // "manual" or "always"
}

type Client struct {
	apiKey     string
	apiSecret  string
	apiURL     string
	httpClient *http.Client
	nowFn      func() time.Time
}

func NewClient(apiKey, apiSecret string) *Client {
	return &Client{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		apiURL:     defaultAPIURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		nowFn:      time.Now,
	}
}

func (c *Client) APIKey() string { return c.apiKey }

// CreateSession allocates a new session. Infrastructure failures are
// returned as-is; the caller decides whether to retry.
func (c *Client) CreateSession(ctx context.Context, opts SessionOptions) (string, error) {
	form := url.Values{}
	if opts.ArchiveMode != "" {
		form.Set("archiveMode", opts.ArchiveMode)
	}
	if opts.MediaMode == MediaModeRelayed {
		form.Set("p2p.preference", "enabled")
	} else {
		form.Set("p2p.preference", "disabled")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/session/create", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	auth, err := c.projectJWT()
	if err != nil {
		return "", err
	}
	req.Header.Set("X-OPENTOK-AUTH", auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("create session: vendor returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sessions []struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return "", fmt.Errorf("create session: decode response: %w", err)
	}
	if len(sessions) == 0 || sessions[0].SessionID == "" {
		return "", ErrNoSession
	}
	return sessions[0].SessionID, nil
}

// projectJWT builds the short-lived API auth token the REST surface wants.
func (c *Client) projectJWT() (string, error) {
	now := c.nowFn()
	claims := jwt.MapClaims{
		"iss": c.apiKey,
		"ist": "project",
		"iat": now.Unix(),
		"exp": now.Add(3 * time.Minute).Unix(),
		"jti": uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.apiSecret))
}
