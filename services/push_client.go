package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// PushClient talks to the push-gateway service that owns the actual
// APNs/FCM credentials. Nil when PUSH_GATEWAY_URL is unset.
type PushClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewPushClientFromEnv returns nil when the push gateway is not configured.
func NewPushClientFromEnv() *PushClient {
	baseURL := os.Getenv("PUSH_GATEWAY_URL")
	if baseURL == "" {
		return nil
	}
	return &PushClient{
		BaseURL: baseURL,
		Token:   os.Getenv("PUSH_GATEWAY_TOKEN"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type pushRequest struct {
	DeviceToken string            `json:"device_token"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
}

// SendPush posts one push message to the gateway.
func (p *PushClient) SendPush(ctx context.Context, deviceToken, title, body string, data map[string]string) error {
	payload, _ := json.Marshal(pushRequest{
		DeviceToken: deviceToken,
		Title:       title,
		Body:        body,
		Data:        data,
	})

	req, err := http.NewRequestWithContext(ctx, "POST", p.BaseURL+"/api/v1/push", bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", p.Token)

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("push gateway call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("push gateway returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
