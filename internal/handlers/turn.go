package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type iceServer struct {
	URLs       string `json:"urls"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

type turnConfigResponse struct {
	ICEServers []iceServer `json:"iceServers"`
}

// GetTURNConfig returns ICE server entries for relay-mode media. The TURN
// server is UDP-only, so the URL scheme is "turn:", not "turns:"; media
// encryption is handled by DTLS-SRTP regardless.
func (h *Handlers) GetTURNConfig(c *gin.Context) {
	if h.turnServer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "relay is not enabled"})
		return
	}

	host := c.Request.Host
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}

	creds := h.turnServer.GetCredentials()

	// TURN servers answer STUN too, so one port covers both.
	resp := turnConfigResponse{
		ICEServers: []iceServer{
			{URLs: fmt.Sprintf("stun:%s:%d", host, h.config.TURNPort)},
			{
				URLs:       fmt.Sprintf("turn:%s:%d", host, h.config.TURNPort),
				Username:   creds.Username,
				Credential: creds.Password,
			},
		},
	}

	h.logger.Debug("turn config requested", "host", host, "ice_servers", len(resp.ICEServers))
	c.JSON(http.StatusOK, resp)
}
