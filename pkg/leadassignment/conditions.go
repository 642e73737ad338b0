package leadassignment

import (
	"slices"

	"github.com/jordanlanch/leaddesk/pkg/models"
)

// Matches reports whether every non-empty condition accepts the lead.
// Skills match when the lead's required skills are all offered by the rule.
func Matches(c models.RuleConditions, lead *models.Lead) bool {
	if len(c.LeadSource) > 0 && !slices.Contains(c.LeadSource, lead.Source) {
		return false
	}
	if len(c.LeadType) > 0 && !slices.Contains(c.LeadType, lead.Type) {
		return false
	}
	if len(c.ProjectPhase) > 0 && !slices.Contains(c.ProjectPhase, lead.ProjectPhase) {
		return false
	}
	if len(c.LeadPriority) > 0 && !slices.Contains(c.LeadPriority, lead.Priority) {
		return false
	}
	if len(c.Skills) > 0 {
		for _, skill := range lead.RequiredSkills {
			if !slices.Contains(c.Skills, skill) {
				return false
			}
		}
	}
	return true
}
