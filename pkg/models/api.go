package models

import "time"

// InboundEmail is the inbound email parse payload.
type InboundEmail struct {
	To          string            `json:"to" form:"to" validate:"required"`
	From        string            `json:"from" form:"from" validate:"required"`
	Subject     string            `json:"subject,omitempty" form:"subject"`
	Text        string            `json:"text,omitempty" form:"text"`
	HTML        string            `json:"html,omitempty" form:"html"`
	Attachments int               `json:"attachments" form:"attachments" validate:"min=0,max=5"`
	AttachmentN []Attachment      `json:"attachmentFiles,omitempty" form:"-"` // attachment1..5
	Headers     string            `json:"headers,omitempty" form:"headers"`
	DKIM        string            `json:"dkim,omitempty" form:"dkim"`
	Envelope    string            `json:"envelope,omitempty" form:"envelope"`
	ProjectID   string            `json:"projectId,omitempty" form:"projectId"`
	Extra       map[string]string `json:"-" form:"-"`
}

// PortalWebhook is the structured payload posted by real-estate portals.
type PortalWebhook struct {
	Source       string `json:"source" validate:"required"`
	PortalLeadID string `json:"portalLeadId" validate:"required,max=128"`
	ListingID    string `json:"listingId,omitempty" validate:"max=128"`
	Name         string `json:"name,omitempty" validate:"max=256"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	Phone        string `json:"phone,omitempty" validate:"max=32"`
	Message      string `json:"message,omitempty"`
	Type         string `json:"type,omitempty" validate:"omitempty,oneof=buy rent sell info other"`
	Priority     string `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	ProjectID    string `json:"projectId,omitempty"`
}

// WhatsAppInbound is an inbound WhatsApp message object.
type WhatsAppInbound struct {
	From        string `json:"from" validate:"required"`
	ProfileName string `json:"profileName,omitempty"`
	MessageID   string `json:"messageId" validate:"required"`
	Text        string `json:"text"`
	Timestamp   int64  `json:"timestamp,omitempty"`
	ProjectID   string `json:"projectId,omitempty"`
}

// WhatsAppReplyRequest asks to send a WhatsApp reply on a conversation.
type WhatsAppReplyRequest struct {
	ConvID     string            `json:"convId" validate:"required"`
	Text       string            `json:"text" validate:"required_without=TemplateID"`
	TemplateID string            `json:"templateId,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`
}

// EmailReplyRequest asks to send an email reply on a conversation.
type EmailReplyRequest struct {
	ConvID     string            `json:"convId" validate:"required"`
	TemplateID string            `json:"templateId,omitempty"`
	Text       string            `json:"text,omitempty" validate:"required_without=TemplateID"`
	Subject    string            `json:"subject,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`
}

// LeadCreationResponse is returned for every inbound payload.
type LeadCreationResponse struct {
	Success        bool       `json:"success"`
	LeadID         string     `json:"leadId,omitempty"`
	ConversationID string     `json:"conversationId,omitempty"`
	MessageID      string     `json:"messageId,omitempty"`
	SLADeadline    *time.Time `json:"slaDeadline,omitempty"`
	AssignedUserID string     `json:"assignedUserId,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// ReplyResponse is returned for every reply request.
type ReplyResponse struct {
	Success    bool   `json:"success"`
	MessageID  string `json:"messageId,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
	SLAImpact  bool   `json:"slaImpact"`
	Error      string `json:"error,omitempty"`
}

// ErrorResponse is returned by middleware and handlers on failure.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
