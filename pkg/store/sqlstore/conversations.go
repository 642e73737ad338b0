package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jordanlanch/leaddesk/pkg/models"
)

const conversationColumns = `id, lead_id, project_id, channel, channel_overridden, assignee_user_id,
	last_msg_at, unread_count, message_count, status, sla_status, sla_deadline, version,
	created_at, updated_at`

const messageColumns = `id, conv_id, direction, channel, subject, text, html, attachments, sender,
	status, sla_impact, external_id, template_id, seq, created_at`

func scanConversation(row scanner) (*models.Conversation, error) {
	var (
		c                   models.Conversation
		lastMsgAt, deadline sql.NullTime
	)
	err := row.Scan(&c.ID, &c.LeadID, &c.ProjectID, &c.Channel, &c.ChannelOverridden, &c.AssigneeUserID,
		&lastMsgAt, &c.UnreadCount, &c.MessageCount, &c.Status, &c.SLAStatus, &deadline, &c.Version,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.LastMsgAt = timePtr(lastMsgAt)
	c.SLADeadline = timePtr(deadline)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func scanMessage(row scanner) (*models.Message, error) {
	var (
		m           models.Message
		attachments sql.NullString
		externalID  sql.NullString
	)
	err := row.Scan(&m.ID, &m.ConvID, &m.Direction, &m.Channel, &m.Subject, &m.Text, &m.HTML, &attachments, &m.Sender,
		&m.Status, &m.SLAImpact, &externalID, &m.TemplateID, &m.Seq, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.ExternalID = externalID.String
	m.CreatedAt = m.CreatedAt.UTC()
	if err := fromJSON(attachments, &m.Attachments); err != nil {
		return nil, err
	}
	return &m, nil
}

func insertConversation(ctx context.Context, tx *sql.Tx, c *models.Conversation) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (`+conversationColumns+`) VALUES (`+placeholders(1, 15)+`)`,
		c.ID, c.LeadID, c.ProjectID, string(c.Channel), c.ChannelOverridden, c.AssigneeUserID,
		nullTime(c.LastMsgAt), c.UnreadCount, c.MessageCount, string(c.Status), string(c.SLAStatus),
		nullTime(c.SLADeadline), c.Version, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

// GetConversation returns a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	c, err := scanConversation(row)
	if err != nil {
		return nil, notFound(err, "conversation")
	}
	return c, nil
}

// GetConversationByLead returns the conversation of a lead.
func (s *Store) GetConversationByLead(ctx context.Context, leadID string) (*models.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE lead_id = $1`, leadID)
	c, err := scanConversation(row)
	if err != nil {
		return nil, notFound(err, "conversation")
	}
	return c, nil
}

func (s *Store) saveConversation(ctx context.Context, q execer, c *models.Conversation, expectedVersion int64) error {
	res, err := q.ExecContext(ctx,
		`UPDATE conversations SET channel = $1, channel_overridden = $2, assignee_user_id = $3,
			last_msg_at = $4, unread_count = $5, message_count = $6, status = $7, sla_status = $8,
			sla_deadline = $9, version = $10, updated_at = $11
		WHERE id = $12 AND version = $13`,
		string(c.Channel), c.ChannelOverridden, c.AssigneeUserID, nullTime(c.LastMsgAt), c.UnreadCount,
		c.MessageCount, string(c.Status), string(c.SLAStatus), nullTime(c.SLADeadline), expectedVersion+1,
		c.UpdatedAt.UTC(), c.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return s.versionedResult(ctx, q, res, "conversations", c.ID, "conversation")
}

// UpdateConversation saves c if its stored version still equals expectedVersion.
func (s *Store) UpdateConversation(ctx context.Context, c *models.Conversation, expectedVersion int64) error {
	if err := s.saveConversation(ctx, s.db, c, expectedVersion); err != nil {
		return err
	}
	c.Version = expectedVersion + 1
	return nil
}

// AppendMessage inserts msg and saves c in one transaction.
func (s *Store) AppendMessage(ctx context.Context, c *models.Conversation, expectedVersion int64, msg *models.Message) error {
	attachments, err := toJSON(msg.Attachments)
	if err != nil {
		return err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.saveConversation(ctx, tx, c, expectedVersion); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (`+messageColumns+`) VALUES (`+placeholders(1, 15)+`)`,
			msg.ID, msg.ConvID, string(msg.Direction), string(msg.Channel), msg.Subject, msg.Text, msg.HTML,
			attachments, msg.Sender, string(msg.Status), msg.SLAImpact, nullString(msg.ExternalID),
			msg.TemplateID, msg.Seq, msg.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.Version = expectedVersion + 1
	return nil
}

// FindMessageByExternalID finds a previously stored provider message.
func (s *Store) FindMessageByExternalID(ctx context.Context, convID, externalID string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE conv_id = $1 AND external_id = $2`, convID, externalID)
	m, err := scanMessage(row)
	if err != nil {
		return nil, notFound(err, "message")
	}
	return m, nil
}

// ListMessages returns the conversation history in (createdAt, seq) order.
func (s *Store) ListMessages(ctx context.Context, convID string) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE conv_id = $1 ORDER BY created_at, seq`, convID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	out := []*models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
