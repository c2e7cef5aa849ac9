package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/virek/vroom/internal/registry"
)

type pushSubscribeKeys struct {
	P256DH string `json:"p256dh" binding:"required"`
	Auth   string `json:"auth" binding:"required"`
}

type pushSubscribeRequest struct {
	Endpoint string            `json:"endpoint" binding:"required"`
	Keys     pushSubscribeKeys `json:"keys" binding:"required"`
}

type pushUnsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// GetPushPublicKey returns the VAPID public key clients subscribe with.
func (h *Handlers) GetPushPublicKey(c *gin.Context) {
	if h.notifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Push notifications are not enabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": h.notifier.PublicKey()})
}

// SubscribePush registers a browser push endpoint.
func (h *Handlers) SubscribePush(c *gin.Context) {
	if h.notifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Push notifications are not enabled"})
		return
	}

	var req pushSubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub := registry.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.Keys.P256DH,
		Auth:     req.Keys.Auth,
	}
	if err := h.notifier.Subscribe(sub); err != nil {
		h.logger.Error("push subscribe failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store subscription"})
		return
	}

	h.logger.Info("push subscription registered")
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// UnsubscribePush drops a browser push endpoint.
func (h *Handlers) UnsubscribePush(c *gin.Context) {
	if h.notifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Push notifications are not enabled"})
		return
	}

	var req pushUnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.notifier.Unsubscribe(req.Endpoint); err != nil {
		h.logger.Error("push unsubscribe failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove subscription"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
