package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jordanlanch/leaddesk/pkg/models"
)

// GetSLAConfig returns the SLA policy of a project.
func (s *Store) GetSLAConfig(ctx context.Context, projectID string) (*models.SLAConfig, error) {
	var (
		cfg           models.SLAConfig
		hours, levels sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT project_id, first_response_minutes, at_risk_fraction, business_hours, escalation_levels, updated_at
		FROM sla_configs WHERE project_id = $1`, projectID).
		Scan(&cfg.ProjectID, &cfg.FirstResponseMinutes, &cfg.AtRiskFraction, &hours, &levels, &cfg.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "sla config")
	}
	cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	if err := fromJSON(hours, &cfg.BusinessHours); err != nil {
		return nil, err
	}
	if err := fromJSON(levels, &cfg.EscalationLevels); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PutSLAConfig replaces the SLA policy of a project.
func (s *Store) PutSLAConfig(ctx context.Context, cfg *models.SLAConfig) error {
	hours, err := toJSON(cfg.BusinessHours)
	if err != nil {
		return err
	}
	levels, err := toJSON(cfg.EscalationLevels)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sla_configs (project_id, first_response_minutes, at_risk_fraction, business_hours, escalation_levels, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (project_id) DO UPDATE SET
			first_response_minutes = excluded.first_response_minutes,
			at_risk_fraction = excluded.at_risk_fraction,
			business_hours = excluded.business_hours,
			escalation_levels = excluded.escalation_levels,
			updated_at = excluded.updated_at`,
		cfg.ProjectID, cfg.FirstResponseMinutes, cfg.AtRiskFraction, hours, levels, cfg.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save sla config: %w", err)
	}
	return nil
}

// ListRules returns the active rules of a project ordered by ascending priority.
func (s *Store) ListRules(ctx context.Context, projectID string) ([]*models.AssignmentRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, priority, active, conditions, assignment
		FROM assignment_rules WHERE project_id = $1 AND active = $2
		ORDER BY priority, id`, projectID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignment rules: %w", err)
	}
	defer rows.Close()

	var out []*models.AssignmentRule
	for rows.Next() {
		var (
			r                      models.AssignmentRule
			conditions, assignment sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Name, &r.Priority, &r.Active, &conditions, &assignment); err != nil {
			return nil, fmt.Errorf("failed to scan assignment rule: %w", err)
		}
		if err := fromJSON(conditions, &r.Conditions); err != nil {
			return nil, err
		}
		if err := fromJSON(assignment, &r.Assignment); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// PutRule creates or replaces an assignment rule.
func (s *Store) PutRule(ctx context.Context, r *models.AssignmentRule) error {
	conditions, err := toJSON(r.Conditions)
	if err != nil {
		return err
	}
	assignment, err := toJSON(r.Assignment)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assignment_rules (id, project_id, name, priority, active, conditions, assignment)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			project_id = excluded.project_id,
			name = excluded.name,
			priority = excluded.priority,
			active = excluded.active,
			conditions = excluded.conditions,
			assignment = excluded.assignment`,
		r.ID, r.ProjectID, r.Name, r.Priority, r.Active, conditions, assignment)
	if err != nil {
		return fmt.Errorf("failed to save assignment rule: %w", err)
	}
	return nil
}
