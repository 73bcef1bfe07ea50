// Package channel provides the platform-neutral event, attachment, and
// outbound unit types shared by chat platform adapters and the dispatcher.
package channel

import (
	"strings"
	"time"
)

// ChannelType identifies a messaging platform (e.g., "telegram").
type ChannelType string

// String returns the channel type as a plain string.
func (c ChannelType) String() string {
	return string(c)
}

// Identity represents a sender's identity on a channel.
type Identity struct {
	SubjectID   string
	DisplayName string
	FirstName   string
	Username    string
}

// Conversation types reported by platforms.
const (
	ConversationPrivate    = "private"
	ConversationGroup      = "group"
	ConversationSupergroup = "supergroup"
	ConversationChannel    = "channel"
)

// Conversation holds metadata about the chat or group context.
type Conversation struct {
	ID   string
	Type string
	Name string
}

// IsGroup reports whether the conversation is shared by several users.
func (c Conversation) IsGroup() bool {
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case ConversationGroup, ConversationSupergroup:
		return true
	default:
		return false
	}
}

// EventKind classifies an inbound platform event.
type EventKind string

const (
	EventCommand    EventKind = "command"
	EventMessage    EventKind = "message"
	EventMediaGroup EventKind = "media_group"
)

// AttachmentKind is the closed set of attachment kinds the relay understands.
// Everything the platform delivers that is not one of the supported kinds is
// reported as AttachmentUnsupported with a Detail naming the platform kind.
type AttachmentKind string

const (
	AttachmentText        AttachmentKind = "text"
	AttachmentPhoto       AttachmentKind = "photo"
	AttachmentSticker     AttachmentKind = "sticker"
	AttachmentVoice       AttachmentKind = "voice"
	AttachmentAudioFile   AttachmentKind = "audio_file"
	AttachmentUnsupported AttachmentKind = "unsupported"
)

// Unsupported attachment details.
const (
	DetailVideo           = "video"
	DetailVideoNote       = "video_note"
	DetailAnimation       = "animation"
	DetailAnimatedSticker = "animated_sticker"
	DetailDocument        = "document"
	DetailOther           = "other"
)

// Attachment describes one platform attachment. PlatformKey is the byte
// reference an AttachmentResolver can fetch.
type Attachment struct {
	Kind        AttachmentKind
	PlatformKey string
	// UniqueKey identifies the underlying file across deliveries.
	UniqueKey  string
	Name       string
	Mime       string
	Size       int64
	Width      int
	Height     int
	DurationMs int64
	Caption    string
	Text       string
	Detail     string
}

// IsVideo reports whether the attachment is an unsupported video-like item.
func (a Attachment) IsVideo() bool {
	if a.Kind != AttachmentUnsupported {
		return false
	}
	switch a.Detail {
	case DetailVideo, DetailVideoNote, DetailAnimation, DetailAnimatedSticker:
		return true
	default:
		return false
	}
}

// InboundEvent is a classified event received from an external channel.
type InboundEvent struct {
	Channel      ChannelType
	Kind         EventKind
	MessageID    string
	Conversation Conversation
	Sender       Identity
	Text         string
	Command      string
	CommandArgs  string
	Attachments  []Attachment
	MediaGroupID string
	ReceivedAt   time.Time
}

// ChatID returns the conversation identifier the event belongs to.
func (e InboundEvent) ChatID() string {
	return strings.TrimSpace(e.Conversation.ID)
}

// Caption returns the first non-empty attachment caption.
func (e InboundEvent) Caption() string {
	for _, att := range e.Attachments {
		if caption := strings.TrimSpace(att.Caption); caption != "" {
			return caption
		}
	}
	return ""
}

// RenderKind is the kind of one outgoing platform action.
type RenderKind string

const (
	RenderText  RenderKind = "text"
	RenderImage RenderKind = "image"
	RenderFile  RenderKind = "file"
)

// RenderUnit is one outgoing platform action. Text units carry the source
// text and, when conversion succeeded, the platform markup for it.
type RenderUnit struct {
	Kind   RenderKind
	Text   string
	Markup string
	Data   []byte
	Mime   string
	Name   string
}

// HasMarkup reports whether the unit should be sent formatted.
func (u RenderUnit) HasMarkup() bool {
	return u.Kind == RenderText && strings.TrimSpace(u.Markup) != ""
}

// PlainText builds an unformatted text unit.
func PlainText(text string) RenderUnit {
	return RenderUnit{Kind: RenderText, Text: text}
}
