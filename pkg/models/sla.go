package models

import "time"

// SLAStatus is the first-response SLA state of a tracker.
type SLAStatus string

const (
	SLAOnTrack  SLAStatus = "on_track"
	SLAAtRisk   SLAStatus = "at_risk"
	SLABreached SLAStatus = "breached"
)

// rank orders statuses so transitions can be checked as forward-only.
func (s SLAStatus) rank() int {
	switch s {
	case SLAAtRisk:
		return 1
	case SLABreached:
		return 2
	}
	return 0
}

// Before reports whether s precedes other in the on_track → at_risk → breached cycle.
func (s SLAStatus) Before(other SLAStatus) bool {
	return s.rank() < other.rank()
}

// MaxEscalationLevel is the highest escalation level a tracker can reach.
const MaxEscalationLevel = 4

// BusinessHours is the window during which SLA clocks advance.
type BusinessHours struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Start      string `json:"start" yaml:"start"` // "09:00"
	End        string `json:"end" yaml:"end"`     // "18:00"
	Timezone   string `json:"timezone" yaml:"timezone"`
	DaysOfWeek []int  `json:"daysOfWeek" yaml:"daysOfWeek"` // 0 = Sunday
}

// SLAConfig is the per-project first-response policy.
type SLAConfig struct {
	ProjectID            string        `json:"projectId" yaml:"projectId"`
	FirstResponseMinutes int           `json:"firstResponseMinutes" yaml:"firstResponseMinutes"`
	AtRiskFraction       float64       `json:"atRiskFraction" yaml:"atRiskFraction"`
	BusinessHours        BusinessHours `json:"businessHours" yaml:"businessHours"`
	// EscalationLevels are minute offsets after the deadline for levels 1..4.
	EscalationLevels [MaxEscalationLevel]int `json:"escalationLevels" yaml:"escalationLevels"`
	UpdatedAt        time.Time               `json:"updatedAt" yaml:"-"`
}

// EscalationEntry is one append-only record in a tracker's escalation history.
type EscalationEntry struct {
	Level     int       `json:"level"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
}

// SLATracker is the live SLA state of one conversation.
type SLATracker struct {
	ID                    string            `json:"id"`
	LeadID                string            `json:"leadId"`
	ConversationID        string            `json:"conversationId"`
	ProjectID             string            `json:"projectId"`
	CreatedAt             time.Time         `json:"createdAt"`
	FirstResponseDeadline time.Time         `json:"firstResponseDeadline"`
	AtRiskAt              time.Time         `json:"atRiskAt"`
	FirstResponseAt       *time.Time        `json:"firstResponseAt,omitempty"`
	SLAStatus             SLAStatus         `json:"slaStatus"`
	EscalationLevel       int               `json:"escalationLevel"`
	EscalationHistory     []EscalationEntry `json:"escalationHistory"`
	BusinessHoursOnly     bool              `json:"businessHoursOnly"`
	LastEscalationAt      *time.Time        `json:"lastEscalationAt,omitempty"`
	ComputationError      string            `json:"computationError,omitempty"`
	Version               int64             `json:"version"`
	UpdatedAt             time.Time         `json:"updatedAt"`
}

// Open reports whether the tracker still needs sweeping.
func (t *SLATracker) Open() bool {
	if t.FirstResponseAt != nil {
		return false
	}
	return !(t.SLAStatus == SLABreached && t.EscalationLevel >= MaxEscalationLevel)
}
