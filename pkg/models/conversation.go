package models

import "time"

// Channel is the transport a message travelled over.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelPortal   Channel = "portal"
	ChannelSMS      Channel = "sms"
)

// ConversationStatus is the lifecycle state of a conversation thread.
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationClosed   ConversationStatus = "closed"
	ConversationArchived ConversationStatus = "archived"
	ConversationSpam     ConversationStatus = "spam"
)

// Reopenable reports whether an inbound message brings the conversation back to active.
func (s ConversationStatus) Reopenable() bool {
	return s == ConversationClosed || s == ConversationArchived
}

// Conversation is the unified thread for one lead.
type Conversation struct {
	ID                string             `json:"id"`
	LeadID            string             `json:"leadId"`
	ProjectID         string             `json:"projectId"`
	Channel           Channel            `json:"channel,omitempty"`
	ChannelOverridden bool               `json:"channelOverridden,omitempty"`
	AssigneeUserID    string             `json:"assigneeUserId,omitempty"`
	LastMsgAt         *time.Time         `json:"lastMsgAt,omitempty"`
	UnreadCount       int                `json:"unreadCount"`
	MessageCount      int                `json:"messageCount"`
	Status            ConversationStatus `json:"status"`
	SLAStatus         SLAStatus          `json:"slaStatus"`
	SLADeadline       *time.Time         `json:"slaDeadline,omitempty"`
	Version           int64              `json:"version"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// Direction tells whether a message came from the customer or the agency.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// MessageStatus is the delivery state of a message.
type MessageStatus string

const (
	MessageReceived MessageStatus = "received"
	MessageSent     MessageStatus = "sent"
	MessageFailed   MessageStatus = "failed"
)

// Attachment describes a file carried by a message. Content lives in object
// storage under StorageKey; it is empty when no attachment store is configured.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	StorageKey  string `json:"storageKey,omitempty"`
}

// Message is one append-only communication inside a conversation.
type Message struct {
	ID          string        `json:"id"`
	ConvID      string        `json:"convId"`
	Direction   Direction     `json:"direction"`
	Channel     Channel       `json:"channel"`
	Subject     string        `json:"subject,omitempty"`
	Text        string        `json:"text,omitempty"`
	HTML        string        `json:"html,omitempty"`
	Attachments []Attachment  `json:"attachments,omitempty"`
	Sender      string        `json:"sender,omitempty"`
	Status      MessageStatus `json:"status"`
	SLAImpact   bool          `json:"slaImpact"`
	ExternalID  string        `json:"externalId,omitempty"`
	TemplateID  string        `json:"templateId,omitempty"`
	Seq         int64         `json:"seq"`
	CreatedAt   time.Time     `json:"createdAt"`
}
