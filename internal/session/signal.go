package session

import (
	"encoding/json"
	"fmt"

	"github.com/virek/vroom/internal/models"
)

// SignalType names the widget-level broadcasts riding on the vendor
// signaling channel. Keep values stable: remote clients match on them.
type SignalType string

const (
	SignalChat         SignalType = "chat"
	SignalReaction     SignalType = "reaction"
	SignalHostTransfer SignalType = "hostTransfer"
)

// Signal is one broadcast envelope. Data is the JSON payload for Type.
type Signal struct {
	Type SignalType      `json:"type"`
	From string          `json:"from,omitempty"` // sender connection id, set on receipt
	Data json.RawMessage `json:"data"`
}

// HostTransfer announces the new meeting host by connection id.
type HostTransfer struct {
	NewHostID    string `json:"newHostId"`
	NewHostName  string `json:"newHostName"`
	PreviousHost string `json:"previousHost"`
}

func NewChatSignal(msg models.ChatMessage) (Signal, error) {
	return marshalSignal(SignalChat, msg)
}

func NewReactionSignal(r models.Reaction) (Signal, error) {
	return marshalSignal(SignalReaction, r)
}

func NewHostTransferSignal(t HostTransfer) (Signal, error) {
	return marshalSignal(SignalHostTransfer, t)
}

func marshalSignal(t SignalType, v any) (Signal, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Signal{}, fmt.Errorf("encode %s signal: %w", t, err)
	}
	return Signal{Type: t, Data: data}, nil
}

// DecodeChat parses a chat signal payload. Malformed payloads are the
// caller's cue to log and drop.
func DecodeChat(sig Signal) (models.ChatMessage, error) {
	if sig.Type != SignalChat {
		return models.ChatMessage{}, fmt.Errorf("decode chat signal: got type %q", sig.Type)
	}
	var msg models.ChatMessage
	if err := json.Unmarshal(sig.Data, &msg); err != nil {
		return models.ChatMessage{}, fmt.Errorf("decode chat signal: %w", err)
	}
	return msg, nil
}

func DecodeReaction(sig Signal) (models.Reaction, error) {
	if sig.Type != SignalReaction {
		return models.Reaction{}, fmt.Errorf("decode reaction signal: got type %q", sig.Type)
	}
	var r models.Reaction
	if err := json.Unmarshal(sig.Data, &r); err != nil {
		return models.Reaction{}, fmt.Errorf("decode reaction signal: %w", err)
	}
	return r, nil
}

func DecodeHostTransfer(sig Signal) (HostTransfer, error) {
	if sig.Type != SignalHostTransfer {
		return HostTransfer{}, fmt.Errorf("decode host transfer signal: got type %q", sig.Type)
	}
	var t HostTransfer
	if err := json.Unmarshal(sig.Data, &t); err != nil {
		return HostTransfer{}, fmt.Errorf("decode host transfer signal: %w", err)
	}
	return t, nil
}
