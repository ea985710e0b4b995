// Package whatsapp talks to the WhatsApp Cloud API: webhook verification,
// inbound payload parsing, outbound text and media download.
package whatsapp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/expense-bot/internal/gateway"
)

// WebhookPayload is the subset of the Cloud API notification we read.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type Message struct {
	From      string     `json:"from"`
	ID        string     `json:"id"`
	Timestamp string     `json:"timestamp"`
	Type      string     `json:"type"`
	Text      *TextBody  `json:"text,omitempty"`
	Audio     *MediaBody `json:"audio,omitempty"`
	Voice     *MediaBody `json:"voice,omitempty"`
	Image     *MediaBody `json:"image,omitempty"`
	Video     *MediaBody `json:"video,omitempty"`
	Document  *MediaBody `json:"document,omitempty"`
	Sticker   *MediaBody `json:"sticker,omitempty"`
	Location  *Location  `json:"location,omitempty"`
}

type TextBody struct {
	Body string `json:"body"`
}

type MediaBody struct {
	ID       string `json:"id"`
	MIMEType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
}

// Verify answers the subscription handshake. It returns the challenge and
// true only for mode "subscribe" with a matching token.
func Verify(mode, token, challenge, verifyToken string) (string, bool) {
	if mode == "subscribe" && token != "" && token == verifyToken {
		return challenge, true
	}
	return "", false
}

// ParseWebhook extracts inbound messages in payload order. A body that is
// valid JSON but carries no messages yields an empty slice.
func ParseWebhook(body []byte) ([]gateway.InboundMessage, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("ParseWebhook: decode payload: %w", err)
	}

	var out []gateway.InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				if m.From == "" {
					continue
				}
				out = append(out, toInbound(m))
			}
		}
	}
	return out, nil
}

func toInbound(m Message) gateway.InboundMessage {
	msg := gateway.InboundMessage{
		Channel:   gateway.ChannelWhatsApp,
		ChatID:    m.From,
		UserID:    m.From,
		MessageID: m.ID,
		Type:      gateway.TypeUnknown,
		SentAt:    parseTimestamp(m.Timestamp),
	}

	attach := func(t gateway.MessageType, body *MediaBody) {
		msg.Type = t
		msg.Text = strings.TrimSpace(body.Caption)
		msg.Media = &gateway.Media{ID: body.ID, MIMEType: body.MIMEType, Filename: body.Filename}
	}

	switch {
	case m.Text != nil:
		msg.Type = gateway.TypeText
		msg.Text = strings.TrimSpace(m.Text.Body)
	case m.Voice != nil:
		attach(gateway.TypeVoice, m.Voice)
	case m.Audio != nil:
		attach(gateway.TypeAudio, m.Audio)
	case m.Image != nil:
		attach(gateway.TypeImage, m.Image)
	case m.Video != nil:
		attach(gateway.TypeVideo, m.Video)
	case m.Document != nil:
		attach(gateway.TypeDocument, m.Document)
	case m.Sticker != nil:
		attach(gateway.TypeSticker, m.Sticker)
	case m.Location != nil:
		msg.Type = gateway.TypeLocation
		msg.Text = strings.TrimSpace(m.Location.Name)
	}
	return msg
}

func parseTimestamp(s string) time.Time {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}
