// Package notify delivers alert notifications to a Discord webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultUsername  = "IoT Garden Bot"
	DefaultAvatarURL = "https://cdn-icons-png.flaticon.com/512/3093/3093173.png"
	footerText       = "IoT Garden Alert System"

	// maxErrorBody caps how much of a failed response we keep for the log.
	maxErrorBody = 2048
)

// Message is the webhook request body.
type Message struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Embeds    []Embed `json:"embeds"`
}

// Embed is one rich card in a message.
type Embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color"`
	Fields      []Field `json:"fields,omitempty"`
	Footer      *Footer `json:"footer,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

// Field is a labelled value inside an embed.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type Footer struct {
	Text string `json:"text"`
}

// DeliveryError is returned when the webhook answers with anything but 204.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook returned status %d: %s", e.StatusCode, e.Body)
}

// Client posts messages to a single webhook URL. It is safe for concurrent
// use, but the services call it from the MQTT handler only.
type Client struct {
	url        string
	username   string
	avatarURL  string
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithIdentity overrides the bot name and avatar shown in the channel.
func WithIdentity(username, avatarURL string) Option {
	return func(c *Client) {
		c.username = username
		c.avatarURL = avatarURL
	}
}

// NewClient builds a webhook client. A zero timeout leaves the request
// unbounded.
func NewClient(url string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		url:        url,
		username:   DefaultUsername,
		avatarURL:  DefaultAvatarURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts one notification. It makes a single attempt; a non-204
// answer is returned as *DeliveryError.
func (c *Client) Send(ctx context.Context, n Notification) error {
	msg := Message{
		Username:  c.username,
		AvatarURL: c.avatarURL,
		Embeds:    []Embed{n.Embed},
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &DeliveryError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
