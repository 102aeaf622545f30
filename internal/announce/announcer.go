package announce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"
)

// Provider renders a counter announcement. Fire-and-forget: callers log
// failures and move on.
type Provider interface {
	Announce(ctx context.Context, message string) error
}

func NewProvider(kind, webhookURL, webhookToken string) Provider {
	switch kind {
	case "", "stub", "log":
		return LogProvider{}
	case "noop":
		return NoopProvider{}
	case "fail":
		return FailProvider{}
	case "webhook":
		if webhookURL == "" {
			return LogProvider{}
		}
		return WebhookProvider{URL: webhookURL, Token: webhookToken}
	default:
		if strings.HasPrefix(kind, "http://") || strings.HasPrefix(kind, "https://") {
			return WebhookProvider{URL: kind, Token: webhookToken}
		}
		return LogProvider{}
	}
}

type LogProvider struct{}

func (LogProvider) Announce(ctx context.Context, message string) error {
	log.Printf("announce: %s", message)
	return nil
}

type NoopProvider struct{}

func (NoopProvider) Announce(ctx context.Context, message string) error {
	return nil
}

type FailProvider struct{}

func (FailProvider) Announce(ctx context.Context, message string) error {
	return errors.New("provider failure")
}

type WebhookProvider struct {
	URL   string
	Token string
}

func (p WebhookProvider) Announce(ctx context.Context, message string) error {
	payload := map[string]string{"message": message}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("provider rejected request")
	}
	return nil
}
