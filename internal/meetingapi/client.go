// Package meetingapi is the widget-side client for the companion token
// service. It implements the coordinator's TokenSource against the
// /api/create-meeting and /api/token endpoints.
package meetingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/virek/vroom/internal/models"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type createMeetingRequest struct {
	UserData models.UserData `json:"userData"`
}

type createMeetingResponse struct {
	Success    bool   `json:"success"`
	SessionID  string `json:"sessionId"`
	MeetingURL string `json:"meetingUrl"`
	Message    string `json:"message"`
}

type tokenRequest struct {
	SessionID string          `json:"sessionId"`
	UserType  string          `json:"userType"`
	UserData  models.UserData `json:"userData"`
}

type tokenResponse struct {
	Success   bool   `json:"success"`
	APIKey    string `json:"apiKey"`
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
	Message   string `json:"message"`
}

// CreateMeeting allocates a new session on the companion server.
func (c *Client) CreateMeeting(ctx context.Context, userData models.UserData) (string, string, error) {
	var resp createMeetingResponse
	if err := c.post(ctx, "/api/create-meeting", createMeetingRequest{UserData: userData}, &resp); err != nil {
		return "", "", err
	}
	if !resp.Success || resp.SessionID == "" {
		return "", "", fmt.Errorf("create meeting: %s", orUnknown(resp.Message))
	}
	return resp.SessionID, resp.MeetingURL, nil
}

// GenerateToken mints credentials for joining an existing session.
func (c *Client) GenerateToken(ctx context.Context, sessionID string, userData models.UserData, role models.Role) (models.Credentials, error) {
	req := tokenRequest{
		SessionID: sessionID,
		UserType:  string(role),
		UserData:  userData,
	}
	var resp tokenResponse
	if err := c.post(ctx, "/api/token", req, &resp); err != nil {
		return models.Credentials{}, err
	}
	if !resp.Success || resp.Token == "" {
		return models.Credentials{}, fmt.Errorf("generate token: %s", orUnknown(resp.Message))
	}
	return models.Credentials{
		APIKey:    resp.APIKey,
		SessionID: resp.SessionID,
		Token:     resp.Token,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	// Error statuses still carry a JSON body with a message; decode it so
	// the caller sees the server's explanation, not just a status code.
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response (status %d): %w", path, resp.StatusCode, err)
	}
	return nil
}

func orUnknown(msg string) string {
	if msg == "" {
		return "unknown server error"
	}
	return msg
}
