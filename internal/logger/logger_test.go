package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("Expected info level, got %v", log.GetLevel())
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", buf.String())
	}
}

func TestNewWithOptions(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantLevel zerolog.Level
		wantJSON  bool
	}{
		{name: "defaults", opts: Options{}, wantLevel: zerolog.InfoLevel},
		{name: "json debug", opts: Options{Level: "DEBUG", Format: "json"}, wantLevel: zerolog.DebugLevel, wantJSON: true},
		{name: "bad level", opts: Options{Level: "loud", Format: "json"}, wantLevel: zerolog.InfoLevel, wantJSON: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			log := NewWithOptions(buf, tt.opts)
			if log.GetLevel() != tt.wantLevel {
				t.Errorf("level = %v, want %v", log.GetLevel(), tt.wantLevel)
			}
			log.Warn().Msg("hello")
			isJSON := strings.HasPrefix(buf.String(), "{")
			if isJSON != tt.wantJSON {
				t.Errorf("json output = %v, want %v: %s", isJSON, tt.wantJSON, buf.String())
			}
		})
	}
}

func TestNewWithOptions_Service(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithOptions(buf, Options{Format: "json", Service: "api"})
	log.Info().Msg("up")

	if !strings.Contains(buf.String(), `"service":"api"`) {
		t.Errorf("Expected service field, got: %s", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	log := FromContext(ctx)
	log.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"user_id": "123",
		"action":  "test",
	})
	log.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, `"user_id":"123"`) || !strings.Contains(output, `"action":"test"`) {
		t.Errorf("Expected fields in output, got: %s", output)
	}
}

func TestForMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	log := ForMessage(NewWithWriter(buf), "telegram", "42", "u-1", "")
	log.Info().Msg("inbound")

	output := buf.String()
	for _, want := range []string{`"channel":"telegram"`, `"chat_id":"42"`, `"user_id":"u-1"`} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %s in output, got: %s", want, output)
		}
	}
	if strings.Contains(output, "message_id") {
		t.Errorf("Expected no message_id for empty id, got: %s", output)
	}
}
