package session

// Event is the discriminated union of vendor callbacks. A single
// dispatcher switches on the concrete type, which gets exhaustiveness
// checking the string-keyed emitter never had.
type Event interface {
	isEvent()
}

type StreamCreated struct {
	Stream Stream
}

type StreamDestroyed struct {
	Stream Stream
}

type ConnectionCreated struct {
	Connection Connection
}

type ConnectionDestroyed struct {
	Connection Connection
}

// Disconnected reports session loss. Reason "clientDisconnected" marks a
// clean self-initiated disconnect; anything else is unexpected.
type Disconnected struct {
	Reason string
}

const ReasonClientDisconnected = "clientDisconnected"

type Reconnecting struct{}

type Reconnected struct{}

// StreamPropertyChanged reports remote video/audio toggles.
type StreamPropertyChanged struct {
	StreamID string
	Video    *bool
	Audio    *bool
}

// SignalReceived carries a widget-level broadcast (chat, reaction,
// host transfer).
type SignalReceived struct {
	Signal Signal
}

// SessionError is a non-fatal vendor exception surfaced to the user.
type SessionError struct {
	Code    int
	Message string
}

func (StreamCreated) isEvent()         {}
func (StreamDestroyed) isEvent()       {}
func (ConnectionCreated) isEvent()     {}
func (ConnectionDestroyed) isEvent()   {}
func (Disconnected) isEvent()          {}
func (Reconnecting) isEvent()          {}
func (Reconnected) isEvent()           {}
func (StreamPropertyChanged) isEvent() {}
func (SignalReceived) isEvent()        {}
func (SessionError) isEvent()          {}
