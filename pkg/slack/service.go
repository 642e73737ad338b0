// Package slack posts SLA escalation and routing alerts to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/models"
)

var (
	// ErrSlackSendFailed is returned when Slack API fails
	ErrSlackSendFailed = errors.New("failed to send Slack notification")
)

// Message represents a Slack message
type Message struct {
	Text string `json:"text"`
}

// SlackClient is an interface for sending Slack notifications
type SlackClient interface {
	SendMessage(ctx context.Context, msg Message) error
}

// WebhookClient implements SlackClient using Slack webhooks
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a new Slack webhook client
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SendMessage sends a message to Slack via webhook
func (c *WebhookClient) SendMessage(ctx context.Context, msg Message) error {
	if c.webhookURL == "" {
		return fmt.Errorf("slack webhook URL not configured")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSlackSendFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrSlackSendFailed, resp.StatusCode)
	}
	return nil
}

// Service formats engine alerts as Slack messages. A nil client disables it.
type Service struct {
	client     SlackClient
	consoleURL string
}

// NewService creates a new Slack service. consoleURL, when set, is used to
// link conversations in alerts.
func NewService(client SlackClient, consoleURL string) *Service {
	return &Service{
		client:     client,
		consoleURL: strings.TrimRight(consoleURL, "/"),
	}
}

// IsEnabled returns true if Slack notifications are enabled
func (s *Service) IsEnabled() bool {
	return s != nil && s.client != nil
}

func (s *Service) send(ctx context.Context, text string) error {
	if !s.IsEnabled() {
		return nil
	}
	return s.client.SendMessage(ctx, Message{Text: text})
}

func (s *Service) link(convID string) string {
	if s.consoleURL == "" {
		return convID
	}
	return fmt.Sprintf("<%s/conversations/%s|%s>", s.consoleURL, convID, convID)
}

// SLAEscalated reports a tracker that moved up an escalation level.
func (s *Service) SLAEscalated(ctx context.Context, t *models.SLATracker) error {
	icon := "⏰"
	if t.EscalationLevel >= 3 {
		icon = "🚨"
	}
	text := fmt.Sprintf("%s *SLA escalation level %d*\n"+
		"• Project: %s\n"+
		"• Lead: %s\n"+
		"• Conversation: %s\n"+
		"• Deadline: %s",
		icon, t.EscalationLevel, t.ProjectID, t.LeadID, s.link(t.ConversationID),
		t.FirstResponseDeadline.UTC().Format(time.RFC3339))
	return s.send(ctx, text)
}

// SLAConfigInvalid reports a project whose business hours cannot be evaluated.
func (s *Service) SLAConfigInvalid(ctx context.Context, projectID string, cause error) error {
	text := fmt.Sprintf("⚠️ *Invalid SLA configuration*\n"+
		"• Project: %s\n"+
		"• Error: %v\n"+
		"Deadlines fall back to wall-clock time until the configuration is fixed.",
		projectID, cause)
	return s.send(ctx, text)
}

// AssignmentUnresolved reports a lead no rule could route.
func (s *Service) AssignmentUnresolved(ctx context.Context, lead *models.Lead, reason string) error {
	text := fmt.Sprintf("🙋 *Unassigned lead*\n"+
		"• Project: %s\n"+
		"• Lead: %s (%s)\n"+
		"• Reason: %s",
		lead.ProjectID, lead.ID, lead.Source, reason)
	return s.send(ctx, text)
}
