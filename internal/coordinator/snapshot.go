package coordinator

import "github.com/virek/vroom/internal/models"

// Snapshot is a read-only copy of the coordinator state handed to views.
// Views never mutate shared state; they render a snapshot and call back
// through the coordinator's action methods.
type Snapshot struct {
	View            View
	UserName        string
	IsHost          bool
	Credentials     models.Credentials
	MeetingLink     string
	Devices         models.DeviceSet
	SelectedDevices models.SelectedDevices
	PreviewVideo    bool
	PreviewAudio    bool
	Panels          models.PanelState
	Participants    []models.Participant
	ChatMessages    []models.ChatMessage
	ChatInput       string
	ChatAttachments []models.Attachment
	Reactions       []models.Reaction
	ScreenShare     models.ScreenShare
	IsConnecting    bool
	ConnectionError string
	ShowLeaveModal  bool
}

func (c *Coordinator) Snapshot() Snapshot {
	var s Snapshot
	c.do(func() { s = c.buildSnapshot() })
	return s
}

func (c *Coordinator) buildSnapshot() Snapshot {
	s := Snapshot{
		View:            c.view,
		UserName:        c.userName,
		IsHost:          c.isHost,
		Credentials:     c.creds,
		MeetingLink:     c.meetingLink,
		Devices:         c.devices,
		SelectedDevices: c.selected,
		PreviewVideo:    c.preview.video,
		PreviewAudio:    c.preview.audio,
		Panels:          c.panels,
		ChatInput:       c.chatInput,
		ScreenShare:     c.screen,
		IsConnecting:    c.isConnecting,
		ConnectionError: c.connError,
		ShowLeaveModal:  c.showLeave,
	}
	s.Participants = append([]models.Participant(nil), c.participants...)
	s.ChatMessages = append([]models.ChatMessage(nil), c.chat...)
	s.ChatAttachments = append([]models.Attachment(nil), c.attachments...)
	s.Reactions = append([]models.Reaction(nil), c.reactions...)
	return s
}
