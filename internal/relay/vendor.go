package relay

import (
	"context"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/virek/vroom/internal/opentok"
)

// SessionSource mints session ids and tokens for relay-backed rooms. It
// stands in for the hosted platform client when no project credentials
// are configured: the relay does not verify tokens, so opaque ids are
// enough.
type SessionSource struct{}

func (SessionSource) APIKey() string { return "relay" }

func (SessionSource) CreateSession(ctx context.Context, opts opentok.SessionOptions) (string, error) {
	id, err := gonanoid.New(16)
	if err != nil {
		return "", fmt.Errorf("relay session id: %w", err)
	}
	return id, nil
}

func (SessionSource) GenerateToken(sessionID string, opts opentok.TokenOptions) (string, error) {
	if sessionID == "" {
		return "", opentok.ErrMissingSession
	}
	id, err := gonanoid.New(24)
	if err != nil {
		return "", fmt.Errorf("relay token: %w", err)
	}
	return "relay-" + id, nil
}
