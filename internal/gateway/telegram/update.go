// Package telegram talks to the Telegram Bot API over plain HTTPS: long
// polling, webhook updates, replies and file downloads.
package telegram

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/expense-bot/internal/gateway"
)

type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
}

type Message struct {
	MessageID int64       `json:"message_id"`
	Date      int64       `json:"date"`
	Chat      *Chat       `json:"chat,omitempty"`
	From      *User       `json:"from,omitempty"`
	Text      string      `json:"text,omitempty"`
	Caption   string      `json:"caption,omitempty"`
	Voice     *FileRef    `json:"voice,omitempty"`
	Audio     *FileRef    `json:"audio,omitempty"`
	Video     *FileRef    `json:"video,omitempty"`
	Document  *FileRef    `json:"document,omitempty"`
	Sticker   *FileRef    `json:"sticker,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
	Location  *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"` // private|group|supergroup|channel
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// FileRef covers voice, audio, video, document and sticker attachments.
type FileRef struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// ParseUpdate decodes a webhook body.
func ParseUpdate(body []byte) (Update, error) {
	var u Update
	if err := json.Unmarshal(body, &u); err != nil {
		return Update{}, fmt.Errorf("ParseUpdate: %w", err)
	}
	return u, nil
}

// ToInbound normalizes an update. It returns false for updates without a
// user message (edits, channel posts, bot senders, commands).
func ToInbound(u Update) (gateway.InboundMessage, bool) {
	m := u.Message
	if m == nil || m.Chat == nil || m.From == nil || m.From.IsBot {
		return gateway.InboundMessage{}, false
	}
	if strings.HasPrefix(m.Text, "/") {
		return gateway.InboundMessage{}, false
	}

	msg := gateway.InboundMessage{
		Channel:   gateway.ChannelTelegram,
		ChatID:    strconv.FormatInt(m.Chat.ID, 10),
		UserID:    strconv.FormatInt(m.From.ID, 10),
		MessageID: strconv.FormatInt(m.MessageID, 10),
		Type:      gateway.TypeText,
		Text:      strings.TrimSpace(m.Text),
		SentAt:    time.Unix(m.Date, 0).UTC(),
	}
	if m.Date == 0 {
		msg.SentAt = time.Now().UTC()
	}

	attach := func(t gateway.MessageType, ref *FileRef, defaultMIME string) {
		msg.Type = t
		msg.Text = strings.TrimSpace(m.Caption)
		mimeType := ref.MimeType
		if mimeType == "" {
			mimeType = defaultMIME
		}
		msg.Media = &gateway.Media{ID: ref.FileID, MIMEType: mimeType, Filename: ref.FileName}
	}

	switch {
	case m.Voice != nil:
		attach(gateway.TypeVoice, m.Voice, "audio/ogg")
	case m.Audio != nil:
		attach(gateway.TypeAudio, m.Audio, "audio/mpeg")
	case len(m.Photo) > 0:
		// Telegram lists sizes ascending; the last one is the largest.
		largest := m.Photo[len(m.Photo)-1]
		attach(gateway.TypeImage, &FileRef{FileID: largest.FileID, FileSize: largest.FileSize}, "image/jpeg")
	case m.Video != nil:
		attach(gateway.TypeVideo, m.Video, "video/mp4")
	case m.Document != nil:
		attach(gateway.TypeDocument, m.Document, "application/octet-stream")
	case m.Sticker != nil:
		attach(gateway.TypeSticker, m.Sticker, "image/webp")
	case m.Location != nil:
		msg.Type = gateway.TypeLocation
	}
	return msg, true
}
