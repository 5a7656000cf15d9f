package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultDiscordBaseURL = "https://discord.com/api/v10"

// DiscordDelivery sends messages through the Discord REST API.
type DiscordDelivery struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewDiscordDelivery creates a delivery using a bot token.
func NewDiscordDelivery(token string) (*DiscordDelivery, error) {
	if token == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	return &DiscordDelivery{
		token:      token,
		baseURL:    defaultDiscordBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Send posts content to a channel.
func (d *DiscordDelivery) Send(ctx context.Context, channelID, content string) error {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("discord: marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/channels/%s/messages", d.baseURL, channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+d.token)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord: send to channel %s: status %d", channelID, resp.StatusCode)
	}
	return nil
}

var _ Delivery = (*DiscordDelivery)(nil)
