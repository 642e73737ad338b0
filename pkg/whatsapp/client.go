// Package whatsapp sends conversation replies through the WhatsApp Cloud API.
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

	"github.com/google/uuid"
	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/logger"
)

const defaultBaseURL = "https://graph.facebook.com/v19.0"

// Config identifies the sending business number.
type Config struct {
	PhoneNumberID string
	AccessToken   string
	BaseURL       string
}

// Client sends text messages. Without an access token it only logs.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        logger.Logger
}

// NewClient creates a Cloud API client.
func NewClient(cfg Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.AccessToken == "" {
		log.Warn("whatsapp client in console-only mode, set WHATSAPP_ACCESS_TOKEN for production")
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

type textMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// SendText delivers body to the E.164 number `to` and returns the provider message id.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	to = strings.TrimPrefix(to, "+")
	if to == "" {
		return "", domain.NewValidationError("recipient phone is required")
	}
	if strings.TrimSpace(body) == "" {
		return "", domain.NewValidationError("reply text is required")
	}
	if c.cfg.AccessToken == "" {
		id := "console-" + uuid.NewString()
		c.log.Info("whatsapp message not sent (development mode)", "message_id", id)
		return id, nil
	}

	msg := textMessage{MessagingProduct: "whatsapp", To: to, Type: "text"}
	msg.Text.Body = body
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.cfg.BaseURL, c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.NewDeliveryError("whatsapp", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", domain.NewDeliveryError("whatsapp", err)
	}
	var out sendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", domain.NewDeliveryError("whatsapp", fmt.Errorf("unexpected response (status %d): %w", resp.StatusCode, err))
	}
	if resp.StatusCode >= 400 || out.Error != nil {
		reason := fmt.Sprintf("status %d", resp.StatusCode)
		if out.Error != nil {
			reason = fmt.Sprintf("%s (code %d)", out.Error.Message, out.Error.Code)
		}
		return "", domain.NewDeliveryError("whatsapp", fmt.Errorf("cloud api rejected message: %s", reason))
	}
	if len(out.Messages) == 0 {
		return "", domain.NewDeliveryError("whatsapp", fmt.Errorf("cloud api returned no message id"))
	}
	return out.Messages[0].ID, nil
}
