package gateway

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/expense-bot/internal/assistant"
	"github.com/dvloznov/expense-bot/internal/kv"
	"github.com/dvloznov/expense-bot/internal/media"
)

type fakeReplier struct {
	mu   sync.Mutex
	seen []assistant.Message
}

func (f *fakeReplier) Reply(ctx context.Context, msg assistant.Message) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, msg)
	return "reply to: " + msg.Text
}

type sent struct {
	chatID string
	text   string
}

type fakeTransport struct {
	channel  Channel
	sent     []sent
	typing   int
	sendErr  error
	media    []byte
	mediaErr error
}

func (f *fakeTransport) Channel() Channel { return f.channel }

func (f *fakeTransport) SendText(ctx context.Context, chatID, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sent{chatID: chatID, text: text})
	return nil
}

func (f *fakeTransport) SendTyping(ctx context.Context, chatID string) error {
	f.typing++
	return nil
}

func (f *fakeTransport) FetchMedia(ctx context.Context, m Media) ([]byte, string, error) {
	if f.mediaErr != nil {
		return nil, "", f.mediaErr
	}
	return f.media, m.MIMEType, nil
}

type fakeTranscriber struct {
	text string
	err  error
	got  []byte
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	f.got = audio
	return f.text, f.err
}

func textMessage(id, text string) InboundMessage {
	return InboundMessage{
		Channel:   ChannelTelegram,
		ChatID:    "100",
		UserID:    "7",
		MessageID: id,
		Type:      TypeText,
		Text:      text,
		SentAt:    time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC),
	}
}

func TestProcessor_Text(t *testing.T) {
	replier := &fakeReplier{}
	tr := &fakeTransport{channel: ChannelTelegram}
	p := NewProcessor(replier, zerolog.Nop(), []Transport{tr})

	require.NoError(t, p.Process(context.Background(), textMessage("1", "what is my balance?")))

	require.Len(t, replier.seen, 1)
	assert.Equal(t, assistant.Message{Text: "what is my balance?", UserID: "7", ID: "1"}, replier.seen[0])
	assert.Equal(t, []sent{{chatID: "100", text: "reply to: what is my balance?"}}, tr.sent)
	assert.Equal(t, 1, tr.typing)
}

func TestProcessor_UnknownChannel(t *testing.T) {
	p := NewProcessor(&fakeReplier{}, zerolog.Nop(), nil)
	err := p.Process(context.Background(), textMessage("1", "hi"))
	assert.Error(t, err)
}

func TestProcessor_Quota(t *testing.T) {
	store := kv.NewMemoryStore(0)
	defer store.Close()

	replier := &fakeReplier{}
	tr := &fakeTransport{channel: ChannelTelegram}
	p := NewProcessor(replier, zerolog.Nop(), []Transport{tr}, WithQuota(NewQuota(store, 2, time.Hour)))

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Process(context.Background(), textMessage("m", "hi")))
	}

	assert.Len(t, replier.seen, 2)
	require.Len(t, tr.sent, 3)
	assert.Equal(t, QuotaExceededReply, tr.sent[2].text)
}

func TestProcessor_VoiceTranscription(t *testing.T) {
	dir := t.TempDir()
	archive, err := media.NewLocalStore(dir)
	require.NoError(t, err)

	replier := &fakeReplier{}
	tr := &fakeTransport{channel: ChannelTelegram, media: []byte("OggS")}
	transcriber := &fakeTranscriber{text: " I spent 12 dollars on coffee "}
	p := NewProcessor(replier, zerolog.Nop(), []Transport{tr}, WithTranscriber(transcriber), WithArchive(archive))

	msg := textMessage("2", "")
	msg.Type = TypeVoice
	msg.Media = &Media{ID: "v1", MIMEType: "audio/ogg"}
	require.NoError(t, p.Process(context.Background(), msg))

	assert.Equal(t, []byte("OggS"), transcriber.got)
	require.Len(t, replier.seen, 1)
	assert.Equal(t, "I spent 12 dollars on coffee", replier.seen[0].Text)

	data, err := os.ReadFile(filepath.Join(dir, "telegram", "100", "2025-03-12", "2.ogg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("OggS"), data)
}

func TestProcessor_VoiceFailures(t *testing.T) {
	tests := []struct {
		name        string
		transport   *fakeTransport
		transcriber *fakeTranscriber
	}{
		{"fetch fails", &fakeTransport{channel: ChannelTelegram, mediaErr: errors.New("404")}, &fakeTranscriber{text: "x"}},
		{"transcription fails", &fakeTransport{channel: ChannelTelegram}, &fakeTranscriber{err: errors.New("model down")}},
		{"empty transcript", &fakeTransport{channel: ChannelTelegram}, &fakeTranscriber{text: "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replier := &fakeReplier{}
			p := NewProcessor(replier, zerolog.Nop(), []Transport{tt.transport}, WithTranscriber(tt.transcriber))

			msg := textMessage("3", "")
			msg.Type = TypeVoice
			msg.Media = &Media{ID: "v1", MIMEType: "audio/ogg"}
			require.NoError(t, p.Process(context.Background(), msg))

			assert.Empty(t, replier.seen)
			require.Len(t, tt.transport.sent, 1)
			assert.Equal(t, AudioFailedReply, tt.transport.sent[0].text)
		})
	}
}

func TestProcessor_ImagePlaceholder(t *testing.T) {
	replier := &fakeReplier{}
	tr := &fakeTransport{channel: ChannelWhatsApp}
	p := NewProcessor(replier, zerolog.Nop(), []Transport{tr})

	msg := textMessage("4", "")
	msg.Channel = ChannelWhatsApp
	msg.Type = TypeImage
	msg.Media = &Media{ID: "img"}
	require.NoError(t, p.Process(context.Background(), msg))

	require.Len(t, replier.seen, 1)
	assert.Equal(t, "User sent an image", replier.seen[0].Text)
}

func TestProcessor_BatchKeepsOrderAndContinues(t *testing.T) {
	replier := &fakeReplier{}
	tr := &fakeTransport{channel: ChannelTelegram}
	p := NewProcessor(replier, zerolog.Nop(), []Transport{tr})

	bad := textMessage("x", "lost")
	bad.Channel = "sms"
	err := p.ProcessBatch(context.Background(), []InboundMessage{
		textMessage("1", "first"),
		bad,
		textMessage("2", "second"),
	})
	assert.Error(t, err)
	require.Len(t, tr.sent, 2)
	assert.Equal(t, "reply to: first", tr.sent[0].text)
	assert.Equal(t, "reply to: second", tr.sent[1].text)
}

func TestProcessor_DeliveryError(t *testing.T) {
	tr := &fakeTransport{channel: ChannelTelegram, sendErr: errors.New("network")}
	p := NewProcessor(&fakeReplier{}, zerolog.Nop(), []Transport{tr})
	assert.Error(t, p.Process(context.Background(), textMessage("1", "hi")))
}

func TestQuota_Disabled(t *testing.T) {
	var q *Quota
	ok, err := q.Allow(context.Background(), ChannelTelegram, "1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewQuota(nil, 0, 0).Allow(context.Background(), ChannelTelegram, "1")
	require.NoError(t, err)
	assert.True(t, ok)
}
