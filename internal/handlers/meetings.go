package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/virek/vroom/internal/models"
	"github.com/virek/vroom/internal/opentok"
	"github.com/virek/vroom/internal/registry"
)

type createMeetingRequest struct {
	UserData models.UserData `json:"userData"`
}

type createMeetingResponse struct {
	Success    bool   `json:"success"`
	SessionID  string `json:"sessionId"`
	MeetingURL string `json:"meetingUrl"`
}

type tokenRequest struct {
	SessionID string          `json:"sessionId" binding:"required"`
	UserType  string          `json:"userType"`
	UserData  models.UserData `json:"userData"`
}

type tokenResponse struct {
	Success   bool   `json:"success"`
	APIKey    string `json:"apiKey"`
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

// CreateMeeting allocates a routed vendor session and returns a shareable
// meeting link.
func (h *Handlers) CreateMeeting(c *gin.Context) {
	var req createMeetingRequest
	// Body is optional; older clients post without one.
	_ = c.ShouldBindJSON(&req)

	sessionID, err := h.vendor.CreateSession(c.Request.Context(), opentok.SessionOptions{
		MediaMode:   opentok.MediaModeRouted,
		ArchiveMode: "manual",
	})
	if err != nil {
		h.logger.Error("create session failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to create meeting",
			"error":   err.Error(),
		})
		return
	}

	meetingURL := fmt.Sprintf("%s/meeting/%s", strings.TrimRight(h.config.ClientURL, "/"), sessionID)

	if h.meetings != nil {
		rec := registry.Meeting{
			SessionID: sessionID,
			Creator:   req.UserData.Name,
			URL:       meetingURL,
			CreatedAt: h.nowFn(),
		}
		if err := h.meetings.Record(rec); err != nil {
			// The meeting is usable either way; only creator lookups degrade.
			h.logger.Warn("record meeting failed", "session_id", sessionID, "error", err)
		}
	}

	if h.notifier != nil {
		title := "Meeting started"
		body := "A new meeting is ready to join"
		if req.UserData.Name != "" {
			body = req.UserData.Name + " started a meeting"
		}
		go h.notifier.Broadcast(title, body, map[string]any{"meetingUrl": meetingURL})
	}

	h.logger.Info("meeting created", "session_id", sessionID, "creator", req.UserData.Name)
	c.JSON(http.StatusCreated, createMeetingResponse{
		Success:    true,
		SessionID:  sessionID,
		MeetingURL: meetingURL,
	})
}

// IssueToken mints an access token for an existing session. The user data
// blob rides inside the token so remote clients can display names.
func (h *Handlers) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Session ID is required",
		})
		return
	}

	role := models.RolePublisher
	switch models.Role(req.UserType) {
	case models.RoleSubscriber:
		role = models.RoleSubscriber
	case models.RoleModerator:
		role = models.RoleModerator
	}

	data, err := json.Marshal(req.UserData)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to generate token",
			"error":   err.Error(),
		})
		return
	}

	token, err := h.vendor.GenerateToken(req.SessionID, opentok.TokenOptions{
		Role:     role,
		ExpireIn: h.config.TokenTTL,
		Data:     string(data),
	})
	if err != nil {
		h.logger.Error("generate token failed", "session_id", req.SessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to generate token",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		Success:   true,
		APIKey:    h.vendor.APIKey(),
		SessionID: req.SessionID,
		Token:     token,
	})
}

// EnsureSimpleSession creates the process-lifetime session the GET token
// variant hands tokens for. Called once at startup; until it succeeds the
// GET endpoint answers 503.
func (h *Handlers) EnsureSimpleSession(ctx context.Context) error {
	sessionID, err := h.vendor.CreateSession(ctx, opentok.SessionOptions{
		MediaMode: opentok.MediaModeRouted,
	})
	if err != nil {
		return fmt.Errorf("create shared session: %w", err)
	}
	h.simpleMu.Lock()
	h.simpleSessionID = sessionID
	h.simpleMu.Unlock()
	h.logger.Info("shared session ready", "session_id", sessionID)
	return nil
}

// SimpleToken is the zero-setup variant: every caller lands in the same
// shared session.
func (h *Handlers) SimpleToken(c *gin.Context) {
	h.simpleMu.Lock()
	sessionID := h.simpleSessionID
	h.simpleMu.Unlock()

	if sessionID == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "Shared session is not ready yet",
		})
		return
	}

	userName := c.Query("user")
	data, _ := json.Marshal(models.UserData{Name: userName})
	token, err := h.vendor.GenerateToken(sessionID, opentok.TokenOptions{
		Role:     models.RolePublisher,
		ExpireIn: h.config.TokenTTL,
		Data:     string(data),
	})
	if err != nil {
		h.logger.Error("generate token failed", "session_id", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to generate token",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		Success:   true,
		APIKey:    h.vendor.APIKey(),
		SessionID: sessionID,
		Token:     token,
	})
}
