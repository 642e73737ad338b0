package models

import "time"

// LeadSource identifies the channel or portal a lead arrived from.
type LeadSource string

const (
	SourceImmobiliare LeadSource = "immobiliare"
	SourceIdealista   LeadSource = "idealista"
	SourceCasa        LeadSource = "casa"
	SourceEmail       LeadSource = "email"
	SourceWhatsApp    LeadSource = "whatsapp"
	SourcePortal      LeadSource = "portal"
	SourceUnknown     LeadSource = "unknown"
)

// ParseLeadSource maps a free-form source string onto a known LeadSource.
func ParseLeadSource(s string) LeadSource {
	switch LeadSource(s) {
	case SourceImmobiliare, SourceIdealista, SourceCasa, SourceEmail, SourceWhatsApp, SourcePortal:
		return LeadSource(s)
	}
	return SourceUnknown
}

// LeadStatus is the commercial lifecycle status of a lead.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusLost      LeadStatus = "lost"
	LeadStatusWon       LeadStatus = "won"
	LeadStatusArchived  LeadStatus = "archived"
)

// IsOpen reports whether a lead still counts towards an owner's workload.
func (s LeadStatus) IsOpen() bool {
	return s == LeadStatusNew || s == LeadStatusContacted || s == LeadStatusQualified
}

// LeadPriority ranks leads for routing.
type LeadPriority string

const (
	PriorityLow    LeadPriority = "low"
	PriorityMedium LeadPriority = "medium"
	PriorityHigh   LeadPriority = "high"
	PriorityUrgent LeadPriority = "urgent"
)

// Lead is the identity of one customer inquiry.
type Lead struct {
	ID              string       `json:"id"`
	ProjectID       string       `json:"projectId"`
	Source          LeadSource   `json:"source"`
	PortalLeadID    string       `json:"portalLeadId,omitempty"`
	ListingID       string       `json:"listingId,omitempty"`
	Name            string       `json:"name,omitempty"`
	Email           string       `json:"email,omitempty"`
	Phone           string       `json:"phone,omitempty"`
	Type            string       `json:"type,omitempty"`
	ProjectPhase    string       `json:"projectPhase,omitempty"`
	RequiredSkills  []string     `json:"requiredSkills,omitempty"`
	Status          LeadStatus   `json:"status"`
	Priority        LeadPriority `json:"priority"`
	AssignedUserID  string       `json:"assignedUserId,omitempty"`
	SLAStatus       SLAStatus    `json:"slaStatus"`
	FirstResponseAt *time.Time   `json:"firstResponseAt,omitempty"`
	Tags            []string     `json:"tags,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// Contact holds the advisory contact fields extracted from a payload.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty"`
}

// HasIdentifier reports whether the contact can be used as a dedup key.
func (c Contact) HasIdentifier() bool {
	return c.Email != "" || c.Phone != ""
}

// RawLeadEvent is the canonical, channel-independent form of an inbound lead.
type RawLeadEvent struct {
	ProjectID    string       `json:"projectId"`
	Source       LeadSource   `json:"source"`
	PortalLeadID string       `json:"portalLeadId,omitempty"`
	ListingID    string       `json:"listingId,omitempty"`
	Contact      Contact      `json:"contact"`
	Channel      Channel      `json:"channel"`
	Subject      string       `json:"subject,omitempty"`
	Text         string       `json:"text"`
	HTML         string       `json:"html,omitempty"`
	ExternalID   string       `json:"externalId,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	Type         string       `json:"type,omitempty"`
	Priority     LeadPriority `json:"priority,omitempty"`
	ProjectPhase string       `json:"projectPhase,omitempty"`
	Skills       []string     `json:"skills,omitempty"`
	ReceivedAt   time.Time    `json:"receivedAt"`
}
