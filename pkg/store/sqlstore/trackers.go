package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/jordanlanch/leaddesk/pkg/store"
)

const trackerColumns = `id, lead_id, conversation_id, project_id, created_at, first_response_deadline,
	at_risk_at, first_response_at, sla_status, escalation_level, escalation_history,
	business_hours_only, last_escalation_at, computation_error, version, updated_at`

func scanTracker(row scanner) (*models.SLATracker, error) {
	var (
		t                        models.SLATracker
		firstResponse, lastEscAt sql.NullTime
		history                  sql.NullString
	)
	err := row.Scan(&t.ID, &t.LeadID, &t.ConversationID, &t.ProjectID, &t.CreatedAt, &t.FirstResponseDeadline,
		&t.AtRiskAt, &firstResponse, &t.SLAStatus, &t.EscalationLevel, &history,
		&t.BusinessHoursOnly, &lastEscAt, &t.ComputationError, &t.Version, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.FirstResponseDeadline = t.FirstResponseDeadline.UTC()
	t.AtRiskAt = t.AtRiskAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	t.FirstResponseAt = timePtr(firstResponse)
	t.LastEscalationAt = timePtr(lastEscAt)
	if err := fromJSON(history, &t.EscalationHistory); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTracker stores a new tracker. A second tracker for the same
// conversation is rejected with VERSION_CONFLICT.
func (s *Store) CreateTracker(ctx context.Context, t *models.SLATracker) error {
	history, err := toJSON(t.EscalationHistory)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sla_trackers (`+trackerColumns+`) VALUES (`+placeholders(1, 16)+`) ON CONFLICT DO NOTHING`,
		t.ID, t.LeadID, t.ConversationID, t.ProjectID, t.CreatedAt.UTC(), t.FirstResponseDeadline.UTC(),
		t.AtRiskAt.UTC(), nullTime(t.FirstResponseAt), string(t.SLAStatus), t.EscalationLevel, history,
		t.BusinessHoursOnly, nullTime(t.LastEscalationAt), t.ComputationError, t.Version, t.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert sla tracker: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domain.NewVersionConflictError("sla tracker")
	}
	return nil
}

// GetTrackerByConversation returns the tracker of a conversation.
func (s *Store) GetTrackerByConversation(ctx context.Context, convID string) (*models.SLATracker, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+trackerColumns+` FROM sla_trackers WHERE conversation_id = $1`, convID)
	t, err := scanTracker(row)
	if err != nil {
		return nil, notFound(err, "sla tracker")
	}
	return t, nil
}

// UpdateTracker saves t if its stored version still equals expectedVersion.
func (s *Store) UpdateTracker(ctx context.Context, t *models.SLATracker, expectedVersion int64) error {
	history, err := toJSON(t.EscalationHistory)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sla_trackers SET first_response_deadline = $1, at_risk_at = $2, first_response_at = $3,
			sla_status = $4, escalation_level = $5, escalation_history = $6, business_hours_only = $7,
			last_escalation_at = $8, computation_error = $9, version = $10, updated_at = $11
		WHERE id = $12 AND version = $13`,
		t.FirstResponseDeadline.UTC(), t.AtRiskAt.UTC(), nullTime(t.FirstResponseAt), string(t.SLAStatus),
		t.EscalationLevel, history, t.BusinessHoursOnly, nullTime(t.LastEscalationAt), t.ComputationError,
		expectedVersion+1, t.UpdatedAt.UTC(), t.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update sla tracker: %w", err)
	}
	if err := s.versionedResult(ctx, s.db, res, "sla_trackers", t.ID, "sla tracker"); err != nil {
		return err
	}
	t.Version = expectedVersion + 1
	return nil
}

// ListOpenTrackers returns trackers still subject to sweeping, earliest deadline first.
func (s *Store) ListOpenTrackers(ctx context.Context, limit int) ([]*models.SLATracker, error) {
	return s.ListOpenTrackersAfter(ctx, store.TrackerCursor{}, limit)
}

// ListOpenTrackersAfter pages the open trackers by (deadline, id).
func (s *Store) ListOpenTrackersAfter(ctx context.Context, after store.TrackerCursor, limit int) ([]*models.SLATracker, error) {
	query := `SELECT ` + trackerColumns + ` FROM sla_trackers
		WHERE first_response_at IS NULL AND NOT (sla_status = $1 AND escalation_level >= $2)`
	args := []interface{}{string(models.SLABreached), models.MaxEscalationLevel}
	if !after.IsZero() {
		query += ` AND (first_response_deadline > $3 OR (first_response_deadline = $3 AND id > $4))`
		args = append(args, after.Deadline.UTC(), after.ID)
	}
	query += ` ORDER BY first_response_deadline, id`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list open sla trackers: %w", err)
	}
	defer rows.Close()

	var out []*models.SLATracker
	for rows.Next() {
		t, err := scanTracker(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sla tracker: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
