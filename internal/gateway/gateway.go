// Package gateway moves chat messages between messaging transports and the
// assistant: inbound normalization, quotas, media handling and delivery.
package gateway

import (
	"context"
	"time"
)

// Channel names a messaging transport.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTelegram Channel = "telegram"
)

// MessageType classifies an inbound message.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeAudio    MessageType = "audio"
	TypeVoice    MessageType = "voice"
	TypeImage    MessageType = "image"
	TypeVideo    MessageType = "video"
	TypeDocument MessageType = "document"
	TypeSticker  MessageType = "sticker"
	TypeLocation MessageType = "location"
	TypeUnknown  MessageType = "unknown"
)

// IsAudio reports whether the message carries speech that can be transcribed.
func (t MessageType) IsAudio() bool {
	return t == TypeAudio || t == TypeVoice
}

// Media references an attachment held by the transport.
type Media struct {
	ID       string `json:"id"`
	MIMEType string `json:"mime_type,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// InboundMessage is a transport message normalized for processing.
type InboundMessage struct {
	Channel   Channel     `json:"channel"`
	ChatID    string      `json:"chat_id"`
	UserID    string      `json:"user_id"`
	MessageID string      `json:"message_id"`
	Type      MessageType `json:"type"`
	Text      string      `json:"text"`
	Media     *Media      `json:"media,omitempty"`
	SentAt    time.Time   `json:"sent_at"`
}

// Deliverer sends replies back over one transport.
type Deliverer interface {
	Channel() Channel
	SendText(ctx context.Context, chatID, text string) error
}

// MediaFetcher downloads an attachment by its transport id.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, media Media) (data []byte, mimeType string, err error)
}

// Transport is a full two-way channel.
type Transport interface {
	Deliverer
	MediaFetcher
}
