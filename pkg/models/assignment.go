package models

// AssignmentType is the strategy an assignment rule applies.
type AssignmentType string

const (
	AssignmentAuto       AssignmentType = "auto"
	AssignmentManual     AssignmentType = "manual"
	AssignmentRoundRobin AssignmentType = "round_robin"
	AssignmentLeastBusy  AssignmentType = "least_busy"
)

// RuleConditions filter which leads a rule applies to. An empty list matches anything.
type RuleConditions struct {
	LeadSource   []LeadSource   `json:"leadSource,omitempty" yaml:"leadSource"`
	LeadType     []string       `json:"leadType,omitempty" yaml:"leadType"`
	ProjectPhase []string       `json:"projectPhase,omitempty" yaml:"projectPhase"`
	Skills       []string       `json:"skills,omitempty" yaml:"skills"`
	LeadPriority []LeadPriority `json:"leadPriority,omitempty" yaml:"leadPriority"`
}

// RuleAssignment describes who a matching rule routes to.
type RuleAssignment struct {
	Type           AssignmentType `json:"type" yaml:"type"`
	UserIDs        []string       `json:"userIds,omitempty" yaml:"userIds"`
	FallbackUserID string         `json:"fallbackUserId,omitempty" yaml:"fallbackUserId"`
}

// AssignmentRule is one ordered routing rule of a project.
type AssignmentRule struct {
	ID         string         `json:"id" yaml:"id"`
	ProjectID  string         `json:"projectId" yaml:"projectId"`
	Name       string         `json:"name" yaml:"name"`
	Priority   int            `json:"priority" yaml:"priority"`
	Active     bool           `json:"active" yaml:"active"`
	Conditions RuleConditions `json:"conditions" yaml:"conditions"`
	Assignment RuleAssignment `json:"assignment" yaml:"assignment"`
}
