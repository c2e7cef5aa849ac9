package opentok

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/virek/vroom/internal/models"
)

func testClient() *Client {
	c := NewClient("47000001", "super-secret")
	c.nowFn = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return c
}

func decodeToken(t *testing.T, token string) (sig string, data url.Values) {
	t.Helper()
	if !strings.HasPrefix(token, tokenSentinel) {
		t.Fatalf("token missing sentinel prefix: %q", token)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(token, tokenSentinel))
	if err != nil {
		t.Fatalf("token is not base64: %v", err)
	}
	head, dataString, ok := strings.Cut(string(raw), ":")
	if !ok {
		t.Fatalf("token has no data section: %q", raw)
	}
	headVals, err := url.ParseQuery(head)
	if err != nil {
		t.Fatalf("parse token head: %v", err)
	}
	data, err = url.ParseQuery(dataString)
	if err != nil {
		t.Fatalf("parse token data: %v", err)
	}
	if got := headVals.Get("partner_id"); got != "47000001" {
		t.Fatalf("expected partner_id 47000001, got %q", got)
	}
	return headVals.Get("sig"), data
}

func TestGenerateTokenSignature(t *testing.T) {
	c := testClient()

	token, err := c.GenerateToken("2_MX40", TokenOptions{
		Role: models.RoleModerator,
		Data: `{"name":"Ada"}`,
	})
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}

	sig, data := decodeToken(t, token)

	if got := data.Get("session_id"); got != "2_MX40" {
		t.Fatalf("expected session_id 2_MX40, got %q", got)
	}
	if got := data.Get("role"); got != "moderator" {
		t.Fatalf("expected role moderator, got %q", got)
	}
	if got := data.Get("connection_data"); got != `{"name":"Ada"}` {
		t.Fatalf("connection data not embedded, got %q", got)
	}

	created, _ := strconv.ParseInt(data.Get("create_time"), 10, 64)
	expires, _ := strconv.ParseInt(data.Get("expire_time"), 10, 64)
	if expires-created != int64(DefaultTokenTTL/time.Second) {
		t.Fatalf("expected default 24h expiry, got %d seconds", expires-created)
	}

	// Recompute the signature over the encoded data section.
	encoded := data.Encode()
	mac := hmac.New(sha1.New, []byte("super-secret"))
	mac.Write([]byte(encoded))
	if want := hex.EncodeToString(mac.Sum(nil)); sig != want {
		t.Fatalf("signature mismatch: got %s want %s", sig, want)
	}
}

func TestGenerateTokenDefaultsToPublisher(t *testing.T) {
	c := testClient()
	token, err := c.GenerateToken("sess", TokenOptions{})
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}
	_, data := decodeToken(t, token)
	if got := data.Get("role"); got != "publisher" {
		t.Fatalf("expected publisher role by default, got %q", got)
	}
}

func TestGenerateTokenCustomTTL(t *testing.T) {
	c := testClient()
	token, err := c.GenerateToken("sess", TokenOptions{ExpireIn: 7 * 24 * time.Hour})
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}
	_, data := decodeToken(t, token)
	created, _ := strconv.ParseInt(data.Get("create_time"), 10, 64)
	expires, _ := strconv.ParseInt(data.Get("expire_time"), 10, 64)
	if expires-created != 7*24*60*60 {
		t.Fatalf("expected 7 day expiry, got %d seconds", expires-created)
	}
}

func TestGenerateTokenRequiresSession(t *testing.T) {
	c := testClient()
	if _, err := c.GenerateToken("", TokenOptions{}); !errors.Is(err, ErrMissingSession) {
		t.Fatalf("expected ErrMissingSession, got %v", err)
	}
}
