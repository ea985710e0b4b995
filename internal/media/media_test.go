package media

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectName(t *testing.T) {
	at := time.Date(2025, 3, 12, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		name        string
		chatID      string
		messageID   string
		contentType string
		want        string
	}{
		{"voice note", "42", "wamid.1", "audio/ogg; codecs=opus", "telegram/42/2025-03-12/wamid.1.ogg"},
		{"jpeg", "42", "7", "image/jpeg", "telegram/42/2025-03-12/7.jpg"},
		{"unknown type", "42", "7", "application/x-nothing", "telegram/42/2025-03-12/7.bin"},
		{"unsafe ids", "../x", "a/b", "audio/mpeg", "telegram/.._x/2025-03-12/a_b.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ObjectName("telegram", tt.chatID, tt.messageID, tt.contentType, at))
		})
	}
}

func TestParseGCSURI(t *testing.T) {
	bucket, object, err := ParseGCSURI("gs://media-bucket/telegram/42/a.ogg")
	require.NoError(t, err)
	assert.Equal(t, "media-bucket", bucket)
	assert.Equal(t, "telegram/42/a.ogg", object)

	for _, bad := range []string{"https://x/y", "gs://bucket", "gs:///obj"} {
		_, _, err := ParseGCSURI(bad)
		assert.Error(t, err, bad)
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "a.ogg", Filename("gs://bucket/telegram/42/a.ogg"))
	assert.Equal(t, "b.jpg", Filename("file:///tmp/media/b.jpg"))
}

func TestLocalStore(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	uri, err := store.Put(ctx, "whatsapp/1/2025-03-12/m1.ogg", []byte("voice"), "audio/ogg")
	require.NoError(t, err)
	assert.Equal(t, "m1.ogg", Filename(uri))

	data, err := store.Get(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, []byte("voice"), data)

	_, err = store.Put(ctx, "../outside.ogg", []byte("x"), "audio/ogg")
	assert.Error(t, err)

	_, err = store.Get(ctx, "gs://bucket/x")
	assert.Error(t, err)
}
