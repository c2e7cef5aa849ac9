package session

import (
	"testing"
	"time"

	"github.com/virek/vroom/internal/models"
)

func TestChatSignalRoundTrip(t *testing.T) {
	msg := models.ChatMessage{
		ID:     "m-1",
		Sender: "Grace",
		Body:   "hello",
		SentAt: time.Unix(1700000000, 0).UTC(),
		Kind:   models.MessageText,
	}
	sig, err := NewChatSignal(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if sig.Type != SignalChat {
		t.Fatalf("type = %q", sig.Type)
	}
	got, err := DecodeChat(sig)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != msg.ID || got.Sender != msg.Sender || got.Body != msg.Body {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestDecodeChatRejectsWrongType(t *testing.T) {
	sig, err := NewReactionSignal(models.Reaction{ID: "r-1", Emoji: "👍"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeChat(sig); err == nil {
		t.Fatal("a reaction signal must not decode as chat")
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	sig := Signal{Type: SignalReaction, Data: []byte("{nope")}
	if _, err := DecodeReaction(sig); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestHostTransferRoundTrip(t *testing.T) {
	in := HostTransfer{NewHostID: "conn-2", NewHostName: "Linus", PreviousHost: "Grace"}
	sig, err := NewHostTransferSignal(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeHostTransfer(sig)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != in {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestStreamIsScreenShare(t *testing.T) {
	cases := []struct {
		stream Stream
		want   bool
	}{
		{Stream{VideoType: "screen"}, true},
		{Stream{Name: "Grace (Screen)"}, true},
		{Stream{VideoType: "camera", Name: "Grace"}, false},
		{Stream{}, false},
	}
	for _, c := range cases {
		if got := c.stream.IsScreenShare(); got != c.want {
			t.Errorf("IsScreenShare(%+v) = %v, want %v", c.stream, got, c.want)
		}
	}
}
