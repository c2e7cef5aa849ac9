// Package view builds the presentational models for the widget's three
// screens. Builders are pure functions of a coordinator snapshot; they
// hold no state and make no decisions beyond formatting and enabling or
// disabling controls.
package view

import (
	"fmt"

	"github.com/virek/vroom/internal/coordinator"
	"github.com/virek/vroom/internal/models"
)

// Landing is the entry screen: create a meeting or paste a link.
type Landing struct {
	Error       string
	CreateLabel string
	JoinLabel   string
}

func BuildLanding(s coordinator.Snapshot) Landing {
	return Landing{
		Error:       s.ConnectionError,
		CreateLabel: "Create Meeting",
		JoinLabel:   "Join Meeting",
	}
}

// DeviceOption is one entry of a device picker.
type DeviceOption struct {
	ID       string
	Label    string
	Selected bool
}

// Prejoin is the device-check screen shown before entering a meeting.
type Prejoin struct {
	UserName     string
	Cameras      []DeviceOption
	Microphones  []DeviceOption
	PreviewVideo bool
	PreviewAudio bool
	VideoBlocked bool
	AudioBlocked bool
	MeetingLink  string
	Joining      bool
	JoinEnabled  bool
	Error        string
}

func BuildPrejoin(s coordinator.Snapshot) Prejoin {
	p := Prejoin{
		UserName:     s.UserName,
		PreviewVideo: s.PreviewVideo,
		PreviewAudio: s.PreviewAudio,
		VideoBlocked: !s.Devices.HasCamera(),
		AudioBlocked: !s.Devices.HasMicrophone(),
		MeetingLink:  s.MeetingLink,
		Joining:      s.IsConnecting,
		Error:        s.ConnectionError,
	}
	for _, d := range s.Devices.Cameras {
		p.Cameras = append(p.Cameras, DeviceOption{
			ID:       d.ID,
			Label:    deviceLabel(d, len(p.Cameras)+1, "Camera"),
			Selected: d.ID == s.SelectedDevices.Camera,
		})
	}
	for _, d := range s.Devices.Microphones {
		p.Microphones = append(p.Microphones, DeviceOption{
			ID:       d.ID,
			Label:    deviceLabel(d, len(p.Microphones)+1, "Microphone"),
			Selected: d.ID == s.SelectedDevices.Microphone,
		})
	}
	p.JoinEnabled = s.UserName != "" && !s.IsConnecting && !s.Devices.Empty()
	return p
}

func deviceLabel(d models.Device, n int, kind string) string {
	if d.Label != "" {
		return d.Label
	}
	return fmt.Sprintf("%s %d", kind, n)
}

// Tile is one video cell of the meeting grid.
type Tile struct {
	ParticipantID string
	Name          string
	Initials      string
	IsLocal       bool
	IsHost        bool
	IsScreenShare bool
	VideoOn       bool
	AudioOn       bool
	Media         models.MediaHandle
}

// Controls is the toolbar state along the bottom of the meeting room.
type Controls struct {
	VideoOn            bool
	AudioOn            bool
	VideoDisabled      bool
	AudioDisabled      bool
	Sharing            bool
	ShareDisabled      bool
	ChatOpen           bool
	ParticipantsOpen   bool
	UnreadBadgeVisible bool
}

// MeetingRoom is the in-meeting screen model.
type MeetingRoom struct {
	Tiles            []Tile
	ScreenShareTile  *Tile
	ShareBanner      string
	Controls         Controls
	ParticipantCount int
	Chat             ChatPanel
	Participants     []ParticipantRow
	Reactions        []models.Reaction
	Banner           string
	MeetingLink      string
}

// ChatPanel is the chat sidebar model.
type ChatPanel struct {
	Open        bool
	Messages    []models.ChatMessage
	Input       string
	Attachments []models.Attachment
	SendEnabled bool
	Emojis      []models.Emoji
}

// ParticipantRow is one entry of the participants sidebar.
type ParticipantRow struct {
	ID       string
	Name     string
	Initials string
	IsLocal  bool
	IsHost   bool
	VideoOn  bool
	AudioOn  bool
}

func BuildMeetingRoom(s coordinator.Snapshot) MeetingRoom {
	m := MeetingRoom{
		Controls: Controls{
			VideoOn:          s.Panels.Video,
			AudioOn:          s.Panels.Audio,
			VideoDisabled:    !s.Devices.HasCamera(),
			AudioDisabled:    !s.Devices.HasMicrophone(),
			Sharing:          s.ScreenShare.Sharing,
			ShareDisabled:    s.ScreenShare.Receiving,
			ChatOpen:         s.Panels.Chat,
			ParticipantsOpen: s.Panels.Participants,
		},
		Reactions:   s.Reactions,
		Banner:      s.ConnectionError,
		MeetingLink: s.MeetingLink,
	}

	for _, p := range s.Participants {
		t := Tile{
			ParticipantID: p.ID,
			Name:          tileName(p),
			Initials:      models.Initials(p.Name),
			IsLocal:       p.IsLocal,
			IsHost:        p.IsHost,
			IsScreenShare: p.IsScreenShare,
			VideoOn:       p.Video,
			AudioOn:       p.Audio,
			Media:         p.Media,
		}
		if p.IsScreenShare {
			st := t
			m.ScreenShareTile = &st
			continue
		}
		m.Tiles = append(m.Tiles, t)
		m.Participants = append(m.Participants, ParticipantRow{
			ID:       p.ID,
			Name:     tileName(p),
			Initials: models.Initials(p.Name),
			IsLocal:  p.IsLocal,
			IsHost:   p.IsHost,
			VideoOn:  p.Video,
			AudioOn:  p.Audio,
		})
	}
	m.ParticipantCount = len(m.Participants)

	if s.ScreenShare.Sharing {
		m.ShareBanner = "You are sharing your screen"
	} else if s.ScreenShare.Receiving {
		m.ShareBanner = s.ScreenShare.SharedBy + " is sharing their screen"
	}

	m.Chat = ChatPanel{
		Open:        s.Panels.Chat,
		Messages:    s.ChatMessages,
		Input:       s.ChatInput,
		Attachments: s.ChatAttachments,
		SendEnabled: s.ChatInput != "" || len(s.ChatAttachments) > 0,
		Emojis:      models.AvailableEmojis,
	}
	return m
}

func tileName(p models.Participant) string {
	if p.IsLocal {
		return p.Name + " (You)"
	}
	return p.Name
}
