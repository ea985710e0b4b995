package llm

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const transcribePrompt = "Transcribe this voice message verbatim. " +
	"Return only the spoken words, with no commentary. " +
	"If nothing intelligible is said, return an empty string."

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Synthesizer turns a reply into speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}

// Audio is a synthesized clip ready to upload.
type Audio struct {
	Data     []byte
	MIMEType string
	Filename string
}

// GeminiTranscriber sends audio inline to a multimodal model.
type GeminiTranscriber struct {
	client *genai.Client
	model  string
}

func NewGeminiTranscriber(client *genai.Client, model string) *GeminiTranscriber {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiTranscriber{client: client, model: model}
}

var _ Transcriber = (*GeminiTranscriber)(nil)

func (g *GeminiTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("Transcribe: empty audio")
	}
	if mimeType == "" {
		mimeType = "audio/ogg"
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: transcribePrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: baseMIMEType(mimeType),
						Data:     audio,
					},
				},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Transcribe: generate content: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// GeminiSynthesizer uses a TTS model and wraps its PCM output in a WAV container.
type GeminiSynthesizer struct {
	client *genai.Client
	model  string
	voice  string
}

func NewGeminiSynthesizer(client *genai.Client, model, voice string) *GeminiSynthesizer {
	if model == "" {
		model = "gemini-2.5-flash-preview-tts"
	}
	if voice == "" {
		voice = "Kore"
	}
	return &GeminiSynthesizer{client: client, model: model, voice: voice}
}

var _ Synthesizer = (*GeminiSynthesizer)(nil)

func (g *GeminiSynthesizer) Synthesize(ctx context.Context, text string) (Audio, error) {
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.voice},
			},
		},
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: text}}}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return Audio{}, fmt.Errorf("Synthesize: generate content: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return Audio{
					Data:     WAV(part.InlineData.Data, 24000, 1),
					MIMEType: "audio/wav",
					Filename: "reply.wav",
				}, nil
			}
		}
	}
	return Audio{}, fmt.Errorf("Synthesize: model returned no audio")
}

// WAV wraps 16-bit little-endian PCM samples in a RIFF header.
func WAV(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// baseMIMEType drops parameters such as "; codecs=opus".
func baseMIMEType(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i != -1 {
		return strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}
