// internal/notify/notify.go
package notify

import (
	"context"
	"time"
)

const (
	ColorGreen  = 0x00FF00
	ColorBlue   = 0x3498DB
	ColorRed    = 0xFF0000
	ColorOrange = 0xFFA500
)

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Message is a structured notification.
type Message struct {
	Title       string
	Description string
	Fields      []Field
	Color       int
	Timestamp   time.Time
	Footer      string
}

// Attachment is a raw file sent alongside or instead of a message.
type Attachment struct {
	Name string
	Data []byte
}

// Payload carries exactly one of Message or Attachment.
type Payload struct {
	Message    *Message
	Attachment *Attachment
}

func MessagePayload(m *Message) Payload       { return Payload{Message: m} }
func AttachmentPayload(a *Attachment) Payload { return Payload{Attachment: a} }

// Notifier delivers payloads. A nil error means the channel accepted it;
// nothing stronger is assumed.
type Notifier interface {
	Notify(ctx context.Context, p Payload) error
}

// Discard drops every payload; used when notifications are disabled.
type Discard struct{}

func (Discard) Notify(context.Context, Payload) error { return nil }
