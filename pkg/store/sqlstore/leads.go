package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/jordanlanch/leaddesk/pkg/store"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

const leadColumns = `id, project_id, source, portal_lead_id, listing_id, name, email, phone, type,
	project_phase, required_skills, status, priority, assigned_user_id, sla_status,
	first_response_at, tags, created_at, updated_at`

func scanLead(row scanner) (*models.Lead, error) {
	var (
		l               models.Lead
		portalID        sql.NullString
		skills, tags    sql.NullString
		firstResponseAt sql.NullTime
	)
	err := row.Scan(&l.ID, &l.ProjectID, &l.Source, &portalID, &l.ListingID, &l.Name, &l.Email, &l.Phone, &l.Type,
		&l.ProjectPhase, &skills, &l.Status, &l.Priority, &l.AssignedUserID, &l.SLAStatus,
		&firstResponseAt, &tags, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.PortalLeadID = portalID.String
	l.FirstResponseAt = timePtr(firstResponseAt)
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	if err := fromJSON(skills, &l.RequiredSkills); err != nil {
		return nil, err
	}
	if err := fromJSON(tags, &l.Tags); err != nil {
		return nil, err
	}
	return &l, nil
}

// FindLeadByPortalID looks a lead up by its unique dedup key.
func (s *Store) FindLeadByPortalID(ctx context.Context, source models.LeadSource, portalLeadID string) (*models.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE source = $1 AND portal_lead_id = $2`,
		string(source), portalLeadID)
	l, err := scanLead(row)
	if err != nil {
		return nil, notFound(err, "lead")
	}
	return l, nil
}

// FindRecentLeadByContact returns the newest lead matching the contact key.
func (s *Store) FindRecentLeadByContact(ctx context.Context, key store.ContactKey) (*models.Lead, error) {
	column, value := "email", key.Email
	if key.Email == "" {
		if key.Phone == "" {
			return nil, domain.NewNotFoundError("lead")
		}
		column, value = "phone", key.Phone
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads
		WHERE source = $1 AND `+column+` = $2 AND listing_id = $3 AND created_at >= $4
		ORDER BY created_at DESC LIMIT 1`,
		string(key.Source), value, key.ListingID, key.Since.UTC())
	l, err := scanLead(row)
	if err != nil {
		return nil, notFound(err, "lead")
	}
	return l, nil
}

// CreateLeadWithConversation inserts both aggregates in one transaction. A
// duplicate (source, portal_lead_id) is reported as DEDUP_CONFLICT.
func (s *Store) CreateLeadWithConversation(ctx context.Context, lead *models.Lead, conv *models.Conversation) error {
	skills, err := toJSON(lead.RequiredSkills)
	if err != nil {
		return err
	}
	tags, err := toJSON(lead.Tags)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO leads (`+leadColumns+`) VALUES (`+placeholders(1, 19)+`) ON CONFLICT DO NOTHING`,
			lead.ID, lead.ProjectID, string(lead.Source), nullString(lead.PortalLeadID), lead.ListingID,
			lead.Name, lead.Email, lead.Phone, lead.Type, lead.ProjectPhase, skills,
			string(lead.Status), string(lead.Priority), lead.AssignedUserID, string(lead.SLAStatus),
			nullTime(lead.FirstResponseAt), tags, lead.CreatedAt.UTC(), lead.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert lead: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return domain.NewDedupConflictError(string(lead.Source) + "|" + lead.PortalLeadID)
		}
		return insertConversation(ctx, tx, conv)
	})
}

// GetLead returns a lead by id.
func (s *Store) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if err != nil {
		return nil, notFound(err, "lead")
	}
	return l, nil
}

func (s *Store) updateLead(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domain.NewNotFoundError("lead")
	}
	return nil
}

// SetLeadAssignee records the lead owner.
func (s *Store) SetLeadAssignee(ctx context.Context, leadID, userID string, at time.Time) error {
	return s.updateLead(ctx,
		`UPDATE leads SET assigned_user_id = $1, updated_at = $2 WHERE id = $3`,
		userID, at.UTC(), leadID)
}

// SetLeadSLA mirrors the tracker state onto the lead.
func (s *Store) SetLeadSLA(ctx context.Context, leadID string, status models.SLAStatus, firstResponseAt *time.Time, at time.Time) error {
	return s.updateLead(ctx,
		`UPDATE leads SET sla_status = $1, first_response_at = $2, updated_at = $3 WHERE id = $4`,
		string(status), nullTime(firstResponseAt), at.UTC(), leadID)
}

// SetLeadStatus changes the commercial status of a lead.
func (s *Store) SetLeadStatus(ctx context.Context, leadID string, status models.LeadStatus, at time.Time) error {
	return s.updateLead(ctx,
		`UPDATE leads SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), at.UTC(), leadID)
}

// CountOpenLeads counts open leads per owner.
func (s *Store) CountOpenLeads(ctx context.Context, userIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(userIDs))
	if len(userIDs) == 0 {
		return counts, nil
	}
	args := make([]interface{}, 0, len(userIDs)+3)
	args = append(args, string(models.LeadStatusNew), string(models.LeadStatusContacted), string(models.LeadStatusQualified))
	for _, id := range userIDs {
		counts[id] = 0
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT assigned_user_id, COUNT(*) FROM leads
		WHERE status IN ($1, $2, $3) AND assigned_user_id IN (`+placeholders(4, len(userIDs))+`)
		GROUP BY assigned_user_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count open leads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID string
			n      int
		)
		if err := rows.Scan(&userID, &n); err != nil {
			return nil, fmt.Errorf("failed to scan workload: %w", err)
		}
		counts[userID] = n
	}
	return counts, rows.Err()
}
