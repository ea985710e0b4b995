package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-bot/internal/gateway"
)

const maxMediaBytes = 16 << 20

// Config holds Cloud API credentials.
type Config struct {
	BaseURL       string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
	// Mock logs outbound messages instead of sending them.
	Mock    bool
	Timeout time.Duration
}

// Client sends messages and downloads media through the Graph API.
type Client struct {
	http *http.Client
	cfg  Config
	log  zerolog.Logger
}

var _ gateway.Transport = (*Client)(nil)

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v21.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		http: &http.Client{Timeout: cfg.Timeout},
		cfg:  cfg,
		log:  log,
	}
}

func (c *Client) Channel() gateway.Channel {
	return gateway.ChannelWhatsApp
}

type sendTextRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             TextBody `json:"text"`
}

// SendText posts a text message to chatID (the sender's phone number).
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	if c.cfg.Mock {
		c.log.Info().Str("to", chatID).Str("text", text).Msg("[MOCK] Would send WhatsApp message")
		return nil
	}

	body, err := json.Marshal(sendTextRequest{
		MessagingProduct: "whatsapp",
		To:               chatID,
		Type:             "text",
		Text:             TextBody{Body: text},
	})
	if err != nil {
		return fmt.Errorf("SendText: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.cfg.BaseURL, c.cfg.APIVersion, c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("SendText: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("SendText: %w", err)
	}
	return nil
}

type mediaInfo struct {
	URL      string `json:"url"`
	MIMEType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
	ID       string `json:"id"`
}

// FetchMedia resolves the media id to a download URL and fetches the bytes.
func (c *Client) FetchMedia(ctx context.Context, media gateway.Media) ([]byte, string, error) {
	if c.cfg.Mock {
		return nil, "", fmt.Errorf("FetchMedia: media download unavailable in mock mode")
	}

	url := fmt.Sprintf("%s/%s/%s", c.cfg.BaseURL, c.cfg.APIVersion, media.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("FetchMedia: build request: %w", err)
	}
	raw, err := c.do(req)
	if err != nil {
		return nil, "", fmt.Errorf("FetchMedia: lookup %s: %w", media.ID, err)
	}
	var info mediaInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, "", fmt.Errorf("FetchMedia: decode media info: %w", err)
	}
	if info.URL == "" {
		return nil, "", fmt.Errorf("FetchMedia: media %s has no url", media.ID)
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("FetchMedia: build download request: %w", err)
	}
	data, err := c.do(req)
	if err != nil {
		return nil, "", fmt.Errorf("FetchMedia: download %s: %w", media.ID, err)
	}

	mimeType := info.MIMEType
	if mimeType == "" {
		mimeType = media.MIMEType
	}
	return data, mimeType, nil
}

// do sends req with the bearer token and returns the body of a 2xx response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxMediaBytes {
		return nil, fmt.Errorf("response too large (>%d bytes)", maxMediaBytes)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("whatsapp http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
