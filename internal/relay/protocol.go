// Package relay is a self-hosted, room-scoped signaling relay: enough of
// the hosted platform's session semantics (connection announce/leave,
// stream announce, signal broadcast) to run the widget without vendor
// credentials. Media itself flows peer to peer, through TURN when needed.
package relay

import (
	"encoding/json"

	"github.com/virek/vroom/internal/session"
)

// Envelope is one relay frame. Data is the JSON payload for Type.
type Envelope struct {
	Type string          `json:"type"`
	From string          `json:"from,omitempty"`
	To   string          `json:"to,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	// Server to client on connect.
	MsgWelcome = "welcome"

	// Room membership.
	MsgConnectionCreated   = "connection-created"
	MsgConnectionDestroyed = "connection-destroyed"

	// Stream lifecycle. Clients announce their own publications; the
	// relay rebroadcasts to everyone else in the room.
	MsgStreamCreated   = "stream-created"
	MsgStreamDestroyed = "stream-destroyed"

	// Application broadcast (chat, reactions, host transfer).
	MsgSignal = "signal"
)

// PeerInfo is a room member as carried on the wire.
type PeerInfo struct {
	ID   string `json:"id"`
	Data string `json:"data,omitempty"`
}

// StreamInfo is a stream announcement as carried on the wire.
type StreamInfo struct {
	ID           string `json:"id"`
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name"`
	VideoType    string `json:"videoType,omitempty"`
	HasVideo     bool   `json:"hasVideo"`
	HasAudio     bool   `json:"hasAudio"`
}

func (s StreamInfo) toSession() session.Stream {
	return session.Stream{
		ID:           s.ID,
		ConnectionID: s.ConnectionID,
		Name:         s.Name,
		VideoType:    s.VideoType,
		HasVideo:     s.HasVideo,
		HasAudio:     s.HasAudio,
	}
}

func streamInfo(st session.Stream) StreamInfo {
	return StreamInfo{
		ID:           st.ID,
		ConnectionID: st.ConnectionID,
		Name:         st.Name,
		VideoType:    st.VideoType,
		HasVideo:     st.HasVideo,
		HasAudio:     st.HasAudio,
	}
}

// welcomeData is the initial room snapshot sent to a joining client.
type welcomeData struct {
	ConnectionID string       `json:"connectionId"`
	Peers        []PeerInfo   `json:"peers"`
	Streams      []StreamInfo `json:"streams"`
}

func marshalEnvelope(typ, from, to string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, From: from, To: to, Data: payload})
}
