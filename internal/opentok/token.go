package opentok

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/virek/vroom/internal/models"
)

// tokenSentinel prefixes every classic access token.
const tokenSentinel = "T1=="

var ErrMissingSession = errors.New("session id is required")

type TokenOptions struct {
	Role models.Role
	// ExpireIn is how long the token stays valid. Zero means 24h.
	ExpireIn time.Duration
	// Data is embedded verbatim and surfaced to every participant via the
	// connection. Keep it to display name and role.
	Data string
}

const DefaultTokenTTL = 24 * time.Hour

// GenerateToken mints a signed access token for sessionID. The signature
// is an HMAC-SHA1 over the token fields keyed with the API secret, per
// the platform's classic token format.
func (c *Client) GenerateToken(sessionID string, opts TokenOptions) (string, error) {
	if sessionID == "" {
		return "", ErrMissingSession
	}
	role := opts.Role
	if role == "" {
		role = models.RolePublisher
	}
	ttl := opts.ExpireIn
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := c.nowFn()
	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	data := url.Values{}
	data.Set("session_id", sessionID)
	data.Set("create_time", strconv.FormatInt(now.Unix(), 10))
	data.Set("expire_time", strconv.FormatInt(now.Add(ttl).Unix(), 10))
	data.Set("nonce", hex.EncodeToString(nonce))
	data.Set("role", string(role))
	if opts.Data != "" {
		data.Set("connection_data", opts.Data)
	}
	dataString := data.Encode()

	mac := hmac.New(sha1.New, []byte(c.apiSecret))
	mac.Write([]byte(dataString))
	sig := hex.EncodeToString(mac.Sum(nil))

	inner := fmt.Sprintf("partner_id=%s&sig=%s:%s", c.apiKey, sig, dataString)
	return tokenSentinel + base64.StdEncoding.EncodeToString([]byte(inner)), nil
}
