package models

import (
	"fmt"
	"time"
)

// MessageKind distinguishes plain text from screenshot-bearing messages.
type MessageKind string

const (
	MessageText       MessageKind = "text"
	MessageScreenshot MessageKind = "screenshot"
)

// Attachment describes one staged screenshot. URL is a content locator
// (object URL, file path) meaningful only to the embedding environment.
type Attachment struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"timestamp"`
}

// ChatMessage is one entry of the append-only chat log. ID is used only as
// a list-rendering key, never for ordering.
type ChatMessage struct {
	ID          string       `json:"id"`
	Sender      string       `json:"sender"`
	Body        string       `json:"message"`
	SentAt      time.Time    `json:"timestamp"`
	Kind        MessageKind  `json:"type"`
	Screenshots []Attachment `json:"screenshots,omitempty"`
}

// FallbackBody is the generated body for a message that carries
// screenshots but no text.
func FallbackBody(n int) string {
	if n == 1 {
		return "Shared 1 screenshot"
	}
	return fmt.Sprintf("Shared %d screenshots", n)
}

// AttachmentPlaceholder is the line pre-filled into the chat input when a
// screenshot is staged as an attachment.
func AttachmentPlaceholder(filename string) string {
	return "\U0001F4F8 Screenshot attached: " + filename
}
