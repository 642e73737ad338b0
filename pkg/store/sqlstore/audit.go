package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jordanlanch/leaddesk/pkg/models"
)

// AppendAudit appends one audit record.
func (s *Store) AppendAudit(ctx context.Context, e *models.AuditLog) error {
	metadata, err := toJSON(e.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, event_type, entity_type, entity_id, actor, severity, occurred_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, string(e.EventType), e.EntityType, e.EntityID, e.Actor, string(e.Severity), e.Timestamp.UTC(), metadata)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// ListAudit returns the most recent audit records for an entity, oldest first.
func (s *Store) ListAudit(ctx context.Context, entityType, entityID string, limit int) ([]*models.AuditLog, error) {
	var (
		where []string
		args  []interface{}
	)
	if entityType != "" {
		args = append(args, entityType)
		where = append(where, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if entityID != "" {
		args = append(args, entityID)
		where = append(where, fmt.Sprintf("entity_id = $%d", len(args)))
	}
	query := `SELECT id, event_type, entity_type, entity_id, actor, severity, occurred_at, metadata FROM audit_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY occurred_at DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var out []*models.AuditLog
	for rows.Next() {
		var (
			e        models.AuditLog
			metadata sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.EventType, &e.EntityType, &e.EntityID, &e.Actor, &e.Severity, &e.Timestamp, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		if err := fromJSON(metadata, &e.Metadata); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
