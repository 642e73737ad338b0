package memory

import (
	"time"

	"github.com/jordanlanch/leaddesk/pkg/models"
)

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneLead(l *models.Lead) *models.Lead {
	c := *l
	c.RequiredSkills = append([]string(nil), l.RequiredSkills...)
	c.Tags = append([]string(nil), l.Tags...)
	c.FirstResponseAt = cloneTime(l.FirstResponseAt)
	return &c
}

func cloneConversation(conv *models.Conversation) *models.Conversation {
	c := *conv
	c.LastMsgAt = cloneTime(conv.LastMsgAt)
	c.SLADeadline = cloneTime(conv.SLADeadline)
	return &c
}

func cloneMessage(m *models.Message) *models.Message {
	c := *m
	c.Attachments = append([]models.Attachment(nil), m.Attachments...)
	return &c
}

func cloneTracker(t *models.SLATracker) *models.SLATracker {
	c := *t
	c.FirstResponseAt = cloneTime(t.FirstResponseAt)
	c.LastEscalationAt = cloneTime(t.LastEscalationAt)
	c.EscalationHistory = append([]models.EscalationEntry(nil), t.EscalationHistory...)
	return &c
}
