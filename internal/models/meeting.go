package models

import "time"

// Role is the capability level embedded in a vendor access token.
// Keep values stable because they are part of the public API.
type Role string

const (
	RolePublisher  Role = "publisher"
	RoleSubscriber Role = "subscriber"
	RoleModerator  Role = "moderator"
)

// Credentials is everything a client needs to open a vendor session.
// Set once per meeting attempt, cleared on leave.
type Credentials struct {
	APIKey    string `json:"apiKey"`
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

func (c Credentials) Complete() bool {
	return c.APIKey != "" && c.SessionID != "" && c.Token != ""
}

// UserData is the identity blob embedded into a token and announced on
// the vendor connection.
type UserData struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// MediaHandle is an opaque reference to vendor-rendered media. Views only
// forward it to a display surface, never mutate it.
type MediaHandle interface {
	HandleID() string
}

// Participant is one roster entry. ID is the stream id once media exists,
// or the connection id for a connection-only placeholder.
type Participant struct {
	ID            string
	ConnectionID  string
	Name          string
	IsLocal       bool
	Video         bool
	Audio         bool
	IsScreenShare bool
	IsHost        bool
	Media         MediaHandle
}

// PanelState is the bundle of boolean UI toggles for the meeting room.
// Chat and Participants are mutually exclusive: opening one closes the other.
type PanelState struct {
	Video        bool
	Audio        bool
	ScreenShare  bool
	Chat         bool
	Participants bool
}

// ScreenShare tracks who, if anyone, is sharing. For the local user at most
// one of Sharing/Receiving is meaningfully true at a time.
type ScreenShare struct {
	Sharing   bool
	Receiving bool
	SharedBy  string
	Stream    MediaHandle
}

// DeviceKind mirrors the vendor device enumeration kinds.
type DeviceKind string

const (
	DeviceCamera     DeviceKind = "videoInput"
	DeviceMicrophone DeviceKind = "audioInput"
)

type Device struct {
	ID    string     `json:"deviceId"`
	Label string     `json:"label"`
	Kind  DeviceKind `json:"kind"`
}

// DeviceSet is the result of device enumeration on the pre-join screen.
type DeviceSet struct {
	Cameras     []Device
	Microphones []Device
}

func (d DeviceSet) HasCamera() bool     { return len(d.Cameras) > 0 }
func (d DeviceSet) HasMicrophone() bool { return len(d.Microphones) > 0 }
func (d DeviceSet) Empty() bool         { return !d.HasCamera() && !d.HasMicrophone() }

// SelectedDevices is the user's device choice carried from pre-join into
// the meeting.
type SelectedDevices struct {
	Camera     string
	Microphone string
}

// Initials returns up to two uppercase initials for avatar placeholders.
func Initials(name string) string {
	var out []rune
	word := false
	for _, r := range name {
		if r == ' ' || r == '\t' {
			word = false
			continue
		}
		if !word {
			if len(out) == 2 {
				break
			}
			out = append(out, upper(r))
		}
		word = true
	}
	return string(out)
}

func upper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - 'a' + 'A'
	}
	return r
}

// Reaction is a transient emoji overlay. X/Y are percentages relative to
// the video container; entries self-expire after ReactionTTL.
type Reaction struct {
	ID     string    `json:"id"`
	Emoji  string    `json:"emoji"`
	Name   string    `json:"name"`
	Sender string    `json:"sender"`
	SentAt time.Time `json:"timestamp"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
}

// ReactionTTL is how long a reaction stays in the active set.
const ReactionTTL = 3 * time.Second

// Emoji is one entry of the reaction picker.
type Emoji struct {
	Emoji string `json:"emoji"`
	Name  string `json:"name"`
}

// AvailableEmojis is the fixed reaction picker palette.
var AvailableEmojis = []Emoji{
	{Emoji: "\U0001F44D", Name: "thumbs-up"},
	{Emoji: "\U0001F44F", Name: "clap"},
	{Emoji: "\U0001F602", Name: "laugh"},
	{Emoji: "❤️", Name: "heart"},
	{Emoji: "\U0001F62E", Name: "wow"},
	{Emoji: "\U0001F44B", Name: "wave"},
	{Emoji: "\U0001F525", Name: "fire"},
	{Emoji: "\U0001F4AF", Name: "hundred"},
}
