// Package email sends conversation replies through SendGrid.
package email

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/logger"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Reply is one outbound email on a conversation.
type Reply struct {
	ConversationID string
	ToEmail        string
	ToName         string
	Subject        string
	Text           string
	HTML           string
}

// Config configures the sender identity and the SendGrid account.
type Config struct {
	FromEmail string
	FromName  string
	APIKey    string
	// Host overrides the SendGrid API host.
	Host string
}

// Service handles email sending
type Service struct {
	cfg         Config
	useSendGrid bool
	log         logger.Logger
}

// NewService creates a new email service
// If cfg.APIKey is provided, emails will be sent via SendGrid
// Otherwise, emails will be logged (development mode)
func NewService(cfg Config, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	useSendGrid := cfg.APIKey != ""
	if useSendGrid {
		log.Info("email service initialized with SendGrid")
	} else {
		log.Warn("email service in console-only mode, set SENDGRID_API_KEY for production")
	}
	return &Service{cfg: cfg, useSendGrid: useSendGrid, log: log}
}

// SendReply delivers r and returns the provider message id.
func (s *Service) SendReply(ctx context.Context, r Reply) (string, error) {
	if r.ToEmail == "" {
		return "", domain.NewValidationError("recipient email is required")
	}
	if r.Text == "" && r.HTML == "" {
		return "", domain.NewValidationError("reply body is required")
	}
	if !s.useSendGrid {
		return s.logEmail(r), nil
	}
	return s.sendViaSendGrid(ctx, r)
}

func (s *Service) message(r Reply) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(s.cfg.FromName, s.cfg.FromEmail))
	m.Subject = r.Subject
	if m.Subject == "" {
		m.Subject = "Re: your request"
	}

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(r.ToName, r.ToEmail))
	m.AddPersonalizations(p)

	if r.Text != "" {
		m.AddContent(mail.NewContent("text/plain", r.Text))
	}
	if r.HTML != "" {
		m.AddContent(mail.NewContent("text/html", r.HTML))
	}
	if r.ConversationID != "" {
		m.SetCustomArg("conversation_id", r.ConversationID)
	}
	return m
}

func (s *Service) sendViaSendGrid(ctx context.Context, r Reply) (string, error) {
	req := sendgrid.GetRequest(s.cfg.APIKey, "/v3/mail/send", s.cfg.Host)
	req.Method = http.MethodPost
	req.Body = mail.GetRequestBody(s.message(r))

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		s.log.Error("sendgrid request failed", "conversation_id", r.ConversationID, "error", err)
		return "", domain.NewDeliveryError("email", err)
	}
	if resp.StatusCode >= 400 {
		s.log.Error("sendgrid rejected email", "conversation_id", r.ConversationID, "status", resp.StatusCode, "body", resp.Body)
		return "", domain.NewDeliveryError("email", fmt.Errorf("sendgrid returned error status: %d", resp.StatusCode))
	}

	var id string
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		id = ids[0]
	}
	s.log.Info("email reply sent", "conversation_id", r.ConversationID, "status", resp.StatusCode, "message_id", id)
	return id, nil
}

// logEmail records the reply instead of sending it (development mode)
func (s *Service) logEmail(r Reply) string {
	id := "console-" + uuid.NewString()
	s.log.Info("email not sent (development mode)",
		"conversation_id", r.ConversationID,
		"subject", r.Subject,
		"message_id", id,
	)
	return id
}
