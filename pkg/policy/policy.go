// Package policy loads per-project SLA configuration, assignment rules and
// reply templates from a YAML document and seeds them into the store.
package policy

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/jordanlanch/leaddesk/pkg/store"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk policy file.
type Document struct {
	SLAConfigs []models.SLAConfig      `yaml:"slaConfigs"`
	Rules      []models.AssignmentRule `yaml:"rules"`
	Templates  []Template              `yaml:"templates"`
}

// Load reads and validates a policy file.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a policy document.
func Parse(raw []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the document for values the engine cannot act on.
func (d *Document) Validate() error {
	for _, c := range d.SLAConfigs {
		if c.ProjectID == "" {
			return domain.NewValidationError("sla config without projectId")
		}
		if c.FirstResponseMinutes <= 0 {
			return domain.NewValidationError(fmt.Sprintf("sla config %s: firstResponseMinutes must be positive", c.ProjectID))
		}
		if c.AtRiskFraction < 0 || c.AtRiskFraction >= 1 {
			return domain.NewValidationError(fmt.Sprintf("sla config %s: atRiskFraction must be in [0,1)", c.ProjectID))
		}
	}
	ids := make(map[string]bool, len(d.Rules))
	for _, r := range d.Rules {
		if r.ID == "" || r.ProjectID == "" {
			return domain.NewValidationError("assignment rule requires id and projectId")
		}
		if ids[r.ID] {
			return domain.NewValidationError(fmt.Sprintf("duplicate assignment rule %s", r.ID))
		}
		ids[r.ID] = true
		switch r.Assignment.Type {
		case models.AssignmentAuto, models.AssignmentManual, models.AssignmentRoundRobin, models.AssignmentLeastBusy:
		default:
			return domain.NewValidationError(fmt.Sprintf("assignment rule %s: unknown type %q", r.ID, r.Assignment.Type))
		}
	}
	for _, t := range d.Templates {
		if t.ID == "" || t.Body == "" {
			return domain.NewValidationError("template requires id and body")
		}
	}
	return nil
}

// Seed writes every SLA config and rule of the document into st.
func Seed(ctx context.Context, st store.PolicyStore, doc *Document, now time.Time) error {
	for i := range doc.SLAConfigs {
		cfg := doc.SLAConfigs[i]
		cfg.UpdatedAt = now.UTC()
		if err := st.PutSLAConfig(ctx, &cfg); err != nil {
			return fmt.Errorf("failed to seed sla config %s: %w", cfg.ProjectID, err)
		}
	}
	for i := range doc.Rules {
		rule := doc.Rules[i]
		if err := st.PutRule(ctx, &rule); err != nil {
			return fmt.Errorf("failed to seed assignment rule %s: %w", rule.ID, err)
		}
	}
	return nil
}
