// Package media archives inbound voice notes and attachments.
package media

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"
)

// Store persists media blobs and reads them back by URI.
type Store interface {
	// Put stores data under objectName and returns its URI.
	Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, uri string) ([]byte, error)
	Close() error
}

// ObjectName builds a stable object path for one inbound attachment:
// <channel>/<chat>/<yyyy-mm-dd>/<message><ext>.
func ObjectName(channel, chatID, messageID, contentType string, at time.Time) string {
	return path.Join(
		sanitize(channel),
		sanitize(chatID),
		at.UTC().Format("2006-01-02"),
		sanitize(messageID)+extensionFor(contentType),
	)
}

func extensionFor(contentType string) string {
	base := contentType
	if i := strings.Index(base, ";"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSpace(base)
	switch base {
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "image/jpeg":
		return ".jpg"
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, s)
}

// ParseGCSURI splits gs://bucket/object into its parts.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Filename returns the last path element of a storage URI.
func Filename(uri string) string {
	return path.Base(strings.TrimPrefix(strings.TrimPrefix(uri, "gs://"), "file://"))
}
