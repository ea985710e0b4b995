package chatbot

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-bot/internal/gateway"
	"github.com/dvloznov/expense-bot/internal/kv"
	"github.com/dvloznov/expense-bot/internal/llm"
	"github.com/dvloznov/expense-bot/internal/logger"
	"github.com/dvloznov/expense-bot/internal/metrics"
)

var handoffPattern = regexp.MustCompile(`(?i)^(human|person|help|stop)$`)

// assignedTTL bounds how long a chat stays with a human before the bot
// answers again.
const assignedTTL = 7 * 24 * time.Hour

// Bot answers chat messages for one persona.
type Bot struct {
	persona     Persona
	gen         Generator
	functions   *FunctionSet
	history     *History
	store       kv.Store
	quota       *gateway.Quota
	transports  map[gateway.Channel]gateway.Transport
	transcriber llm.Transcriber
	synthesizer llm.Synthesizer
	metrics     metrics.Collector
	log         zerolog.Logger
}

type Option func(*Bot)

func WithFunctions(fs *FunctionSet) Option {
	return func(b *Bot) { b.functions = fs }
}

func WithTranscriber(t llm.Transcriber) Option {
	return func(b *Bot) { b.transcriber = t }
}

func WithSynthesizer(s llm.Synthesizer) Option {
	return func(b *Bot) { b.synthesizer = s }
}

func WithMetrics(c metrics.Collector) Option {
	return func(b *Bot) { b.metrics = c }
}

// New builds a bot whose history, quota counters and handoff flags live in store.
func New(persona Persona, gen Generator, store kv.Store, transports []gateway.Transport, log zerolog.Logger, opts ...Option) *Bot {
	b := &Bot{
		persona:    persona,
		gen:        gen,
		history:    NewHistory(store, persona.Limits.ChatHistoryLimit, persona.Limits.CacheTTL),
		store:      store,
		quota:      gateway.NewQuota(store, persona.Limits.MaxMessagesPerChat, persona.Limits.QuotaWindow),
		transports: make(map[gateway.Channel]gateway.Transport, len(transports)),
		metrics:    metrics.NoOpCollector{},
		log:        log,
	}
	for _, t := range transports {
		b.transports[t.Channel()] = t
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func assignedKey(chatID string) string {
	return "chatbot:assigned:" + chatID
}

// HandleBatch processes msgs in order.
func (b *Bot) HandleBatch(ctx context.Context, msgs []gateway.InboundMessage) {
	for _, msg := range msgs {
		if err := b.Handle(ctx, msg); err != nil {
			b.log.Error().Err(err).Str("chat_id", msg.ChatID).Msg("Failed to handle message")
		}
	}
}

// Handle processes one inbound message. Chats handed off to a human get no reply.
func (b *Bot) Handle(ctx context.Context, msg gateway.InboundMessage) error {
	log := logger.ForMessage(b.log, string(msg.Channel), msg.ChatID, msg.UserID, msg.MessageID)

	transport, ok := b.transports[msg.Channel]
	if !ok {
		return fmt.Errorf("Handle: no transport for channel %q", msg.Channel)
	}

	if _, err := b.store.Get(ctx, assignedKey(msg.ChatID)); err == nil {
		log.Debug().Msg("Chat assigned to a human, skipping")
		return nil
	} else if !kv.IsNotFound(err) {
		log.Warn().Err(err).Msg("Failed to read assignment flag")
	}

	allowed, err := b.quota.Allow(ctx, msg.Channel, msg.ChatID)
	if err != nil {
		log.Warn().Err(err).Msg("Quota check failed, allowing message")
		allowed = true
	}
	if !allowed {
		log.Info().Msg("Chat quota exceeded")
		return b.send(ctx, transport, msg.ChatID, b.persona.QuotaExceededMessage)
	}

	body := b.messageBody(ctx, transport, msg, log)
	log.Info().Str("type", string(msg.Type)).Int("body_length", len(body)).Msg("Processing inbound message")

	if typing, ok := transport.(gateway.TypingNotifier); ok {
		_ = typing.SendTyping(ctx, msg.ChatID)
	}

	if handoffPattern.MatchString(strings.TrimSpace(body)) {
		if err := b.store.Set(ctx, assignedKey(msg.ChatID), []byte(time.Now().UTC().Format(time.RFC3339)), assignedTTL); err != nil {
			log.Error().Err(err).Msg("Failed to flag chat as assigned")
		}
		log.Info().Msg("Chat handed off to a human")
		return b.send(ctx, transport, msg.ChatID, b.persona.ChatAssignedMessage)
	}

	reply, err := b.respond(ctx, msg.ChatID, body, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate response")
		if isRateLimited(err) {
			return b.send(ctx, transport, msg.ChatID, b.persona.RateLimitedMessage)
		}
		return b.send(ctx, transport, msg.ChatID, b.persona.UnknownCommandMessage)
	}

	if msg.Type.IsAudio() && b.persona.Features.AudioOutput && b.synthesizer != nil {
		if audioOut, ok := transport.(gateway.AudioDeliverer); ok {
			clip, err := b.synthesizer.Synthesize(ctx, reply)
			if err == nil {
				err = audioOut.SendAudio(ctx, msg.ChatID, clip, "")
			}
			b.metrics.RecordDelivery(string(transport.Channel()), err == nil)
			if err == nil {
				return nil
			}
			log.Warn().Err(err).Msg("Audio reply failed, sending text")
		}
	}
	return b.send(ctx, transport, msg.ChatID, reply)
}

// messageBody returns the text the model should read, truncated to the
// persona's input limit.
func (b *Bot) messageBody(ctx context.Context, fetcher gateway.MediaFetcher, msg gateway.InboundMessage, log zerolog.Logger) string {
	body := strings.TrimSpace(msg.Text)

	if msg.Type.IsAudio() && msg.Media != nil {
		if b.persona.Features.AudioInput && b.transcriber != nil {
			body = b.transcribe(ctx, fetcher, *msg.Media, log)
		} else {
			body = b.persona.NoAudioMessage
		}
	}
	if body == "" {
		body = gateway.Placeholder(msg.Type)
	}
	if body == "" {
		body = "User sent a message"
	}

	if limit := b.persona.Limits.MaxInputCharacters; limit > 0 {
		if r := []rune(body); len(r) > limit {
			body = string(r[:limit])
		}
	}
	return strings.TrimSpace(body)
}

func (b *Bot) transcribe(ctx context.Context, fetcher gateway.MediaFetcher, media gateway.Media, log zerolog.Logger) string {
	data, mimeType, err := fetcher.FetchMedia(ctx, media)
	if err != nil {
		log.Error().Err(err).Msg("Failed to download audio")
		return ""
	}
	text, err := b.transcriber.Transcribe(ctx, data, mimeType)
	if err != nil {
		log.Error().Err(err).Msg("Failed to transcribe audio")
		return ""
	}
	return strings.TrimSpace(text)
}

// respond runs the function-calling loop and records both turns in history.
func (b *Bot) respond(ctx context.Context, chatID, body string, log zerolog.Logger) (string, error) {
	past, err := b.history.Load(ctx, chatID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load history")
	}

	messages := make([]Message, 0, len(past)+1)
	for _, t := range past {
		if t.Content != "" {
			messages = append(messages, Message{Role: t.Role, Text: t.Content})
		}
	}
	messages = append(messages, Message{Role: RoleUser, Text: body})

	req := GenerateRequest{
		Model:       b.persona.Model,
		System:      b.persona.Instructions,
		Temperature: b.persona.Temperature,
		Messages:    messages,
		Functions:   b.functions.Specs(),
	}

	reply := ""
	maxCalls := b.persona.Limits.MaxFunctionCalls
	if maxCalls <= 0 {
		maxCalls = 5
	}
	for i := 0; i < maxCalls; i++ {
		out, err := b.gen.Generate(ctx, req)
		if err != nil {
			return "", err
		}
		if len(out.Calls) == 0 {
			reply = strings.TrimSpace(out.Text)
			break
		}

		results := make([]FunctionResult, 0, len(out.Calls))
		for _, call := range out.Calls {
			output := b.functions.Execute(ctx, call.Name, call.Args)
			log.Debug().Str("function", call.Name).Int("result_length", len(output)).Msg("Executed function")
			results = append(results, FunctionResult{ID: call.ID, Name: call.Name, Output: output})
		}
		req.Messages = append(req.Messages,
			Message{Role: RoleAssistant, Calls: out.Calls},
			Message{Role: RoleUser, Results: results},
		)
	}
	if reply == "" {
		reply = b.persona.UnknownCommandMessage
	}

	now := time.Now().UTC()
	if err := b.history.Append(ctx, chatID,
		Turn{Role: RoleUser, Content: body, At: now},
		Turn{Role: RoleAssistant, Content: reply, At: now},
	); err != nil {
		log.Warn().Err(err).Msg("Failed to store history")
	}
	return reply, nil
}

func (b *Bot) send(ctx context.Context, d gateway.Deliverer, chatID, text string) error {
	err := d.SendText(ctx, chatID, text)
	b.metrics.RecordDelivery(string(d.Channel()), err == nil)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

func isRateLimited(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "Too Many Requests") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
