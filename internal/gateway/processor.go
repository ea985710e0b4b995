package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-bot/internal/assistant"
	"github.com/dvloznov/expense-bot/internal/llm"
	"github.com/dvloznov/expense-bot/internal/logger"
	"github.com/dvloznov/expense-bot/internal/media"
	"github.com/dvloznov/expense-bot/internal/metrics"
)

const (
	QuotaExceededReply  = "You have reached the message limit for now. Please try again later."
	AudioFailedReply    = "Sorry, I couldn't understand that voice message. Please try again or send text."
	maxTranscriptLength = 2000
)

// Replier produces exactly one reply per message.
type Replier interface {
	Reply(ctx context.Context, msg assistant.Message) string
}

var _ Replier = (*assistant.Assistant)(nil)

// TypingNotifier is implemented by transports that can show a typing indicator.
type TypingNotifier interface {
	SendTyping(ctx context.Context, chatID string) error
}

// AudioDeliverer is implemented by transports that can send audio replies.
type AudioDeliverer interface {
	SendAudio(ctx context.Context, chatID string, audio llm.Audio, caption string) error
}

// Placeholder describes a non-text message when it has no caption.
func Placeholder(t MessageType) string {
	switch t {
	case TypeImage:
		return "User sent an image"
	case TypeVideo:
		return "User sent a video"
	case TypeDocument:
		return "User sent a document"
	case TypeSticker:
		return "User sent a sticker"
	case TypeLocation:
		return "User sent a location"
	case TypeAudio, TypeVoice:
		return "User sent a voice message"
	}
	return ""
}

// Processor runs each inbound message through quota, media handling, the
// assistant and delivery.
type Processor struct {
	replier     Replier
	transports  map[Channel]Transport
	transcriber llm.Transcriber
	archive     media.Store
	quota       *Quota
	metrics     metrics.Collector
	log         zerolog.Logger
}

type ProcessorOption func(*Processor)

func WithTranscriber(t llm.Transcriber) ProcessorOption {
	return func(p *Processor) { p.transcriber = t }
}

func WithArchive(s media.Store) ProcessorOption {
	return func(p *Processor) { p.archive = s }
}

func WithQuota(q *Quota) ProcessorOption {
	return func(p *Processor) { p.quota = q }
}

func WithMetrics(c metrics.Collector) ProcessorOption {
	return func(p *Processor) { p.metrics = c }
}

// NewProcessor registers transports by their channel.
func NewProcessor(replier Replier, log zerolog.Logger, transports []Transport, opts ...ProcessorOption) *Processor {
	p := &Processor{
		replier:    replier,
		transports: make(map[Channel]Transport, len(transports)),
		metrics:    metrics.NoOpCollector{},
		log:        log,
	}
	for _, t := range transports {
		p.transports[t.Channel()] = t
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessBatch handles msgs in order. One failing message does not stop the rest.
func (p *Processor) ProcessBatch(ctx context.Context, msgs []InboundMessage) error {
	var errs []error
	for _, msg := range msgs {
		if err := p.Process(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Process handles one message and delivers exactly one reply.
func (p *Processor) Process(ctx context.Context, msg InboundMessage) error {
	log := logger.ForMessage(p.log, string(msg.Channel), msg.ChatID, msg.UserID, msg.MessageID)

	transport, ok := p.transports[msg.Channel]
	if !ok {
		return fmt.Errorf("Process: no transport for channel %q", msg.Channel)
	}

	allowed, err := p.quota.Allow(ctx, msg.Channel, msg.ChatID)
	if err != nil {
		log.Warn().Err(err).Msg("Quota check failed, allowing message")
		allowed = true
	}
	if !allowed {
		log.Info().Msg("Chat over message quota")
		return p.deliver(ctx, transport, msg.ChatID, QuotaExceededReply, log)
	}

	if typing, ok := transport.(TypingNotifier); ok {
		if err := typing.SendTyping(ctx, msg.ChatID); err != nil {
			log.Debug().Err(err).Msg("Failed to send typing indicator")
		}
	}

	text, err := p.messageText(ctx, transport, msg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read message content")
		return p.deliver(ctx, transport, msg.ChatID, AudioFailedReply, log)
	}

	reply := p.replier.Reply(ctx, assistant.Message{
		Text:   text,
		UserID: msg.UserID,
		ID:     msg.MessageID,
	})
	return p.deliver(ctx, transport, msg.ChatID, reply, log)
}

// messageText returns what the assistant should read for msg, transcribing
// voice notes and archiving media on the way.
func (p *Processor) messageText(ctx context.Context, fetcher MediaFetcher, msg InboundMessage, log zerolog.Logger) (string, error) {
	text := strings.TrimSpace(msg.Text)
	if msg.Media == nil || msg.Type == TypeText {
		return text, nil
	}

	needAudio := msg.Type.IsAudio() && p.transcriber != nil
	if !needAudio && p.archive == nil {
		if text == "" {
			text = Placeholder(msg.Type)
		}
		return text, nil
	}

	data, mimeType, err := fetcher.FetchMedia(ctx, *msg.Media)
	if err != nil {
		if needAudio {
			return "", fmt.Errorf("messageText: fetch media: %w", err)
		}
		log.Warn().Err(err).Msg("Failed to fetch media for archive")
		return orPlaceholder(text, msg.Type), nil
	}

	if p.archive != nil {
		name := media.ObjectName(string(msg.Channel), msg.ChatID, msg.MessageID, mimeType, msg.SentAt)
		if uri, err := p.archive.Put(ctx, name, data, mimeType); err != nil {
			log.Warn().Err(err).Msg("Failed to archive media")
		} else {
			log.Debug().Str("uri", uri).Msg("Archived media")
		}
	}

	if !needAudio {
		return orPlaceholder(text, msg.Type), nil
	}

	transcript, err := p.transcriber.Transcribe(ctx, data, mimeType)
	if err != nil {
		return "", fmt.Errorf("messageText: transcribe: %w", err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", fmt.Errorf("messageText: empty transcript")
	}
	if r := []rune(transcript); len(r) > maxTranscriptLength {
		transcript = string(r[:maxTranscriptLength])
	}
	log.Info().Int("transcript_length", len(transcript)).Msg("Transcribed voice message")
	return transcript, nil
}

func orPlaceholder(text string, t MessageType) string {
	if text != "" {
		return text
	}
	return Placeholder(t)
}

func (p *Processor) deliver(ctx context.Context, d Deliverer, chatID, text string, log zerolog.Logger) error {
	err := d.SendText(ctx, chatID, text)
	p.metrics.RecordDelivery(string(d.Channel()), err == nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to deliver reply")
		return fmt.Errorf("deliver: send to %s: %w", chatID, err)
	}
	log.Info().Int("reply_length", len(text)).Msg("Reply delivered")
	return nil
}
