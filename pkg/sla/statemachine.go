package sla

import (
	"time"

	"github.com/jordanlanch/leaddesk/pkg/models"
)

// Escalation history actions.
const (
	ActionEscalated = "escalated"
	ActionReopened  = "reopened"
)

// Transition is one state change produced by Evaluate.
type Transition struct {
	From      models.SLAStatus
	To        models.SLAStatus
	Escalated bool
	Level     int
}

// Evaluate advances an unanswered tracker to now. It mutates t and returns
// what changed. Status moves forward only; escalation moves at most one level
// per call and only when now is later than the previous escalation.
func Evaluate(t *models.SLATracker, levels [models.MaxEscalationLevel]int, now time.Time) []Transition {
	if t.FirstResponseAt != nil {
		return nil
	}

	var out []Transition

	next := t.SLAStatus
	switch {
	case now.After(t.FirstResponseDeadline):
		next = models.SLABreached
	case !now.Before(t.AtRiskAt):
		next = models.SLAAtRisk
	}
	if t.SLAStatus.Before(next) {
		out = append(out, Transition{From: t.SLAStatus, To: next})
		t.SLAStatus = next
	}

	if t.EscalationLevel < models.MaxEscalationLevel && escalationDue(t, levels, now) {
		t.EscalationLevel++
		at := now
		t.LastEscalationAt = &at
		t.EscalationHistory = append(t.EscalationHistory, models.EscalationEntry{
			Level:     t.EscalationLevel,
			Timestamp: now,
			Actor:     models.ActorSystem,
			Action:    ActionEscalated,
		})
		out = append(out, Transition{From: t.SLAStatus, To: t.SLAStatus, Escalated: true, Level: t.EscalationLevel})
	}

	return out
}

func escalationDue(t *models.SLATracker, levels [models.MaxEscalationLevel]int, now time.Time) bool {
	if t.LastEscalationAt != nil && !now.After(*t.LastEscalationAt) {
		return false
	}
	threshold := t.FirstResponseDeadline.Add(time.Duration(levels[t.EscalationLevel]) * time.Minute)
	return now.After(threshold)
}

// Respond applies the first SLA-impacting reply at `at`. It reports false when
// the tracker was already answered. A reply after the deadline leaves the
// tracker breached.
func Respond(t *models.SLATracker, at time.Time) bool {
	if t.FirstResponseAt != nil {
		return false
	}
	responded := at
	t.FirstResponseAt = &responded
	if at.After(t.FirstResponseDeadline) {
		t.SLAStatus = models.SLABreached
	} else {
		t.SLAStatus = models.SLAOnTrack
	}
	return true
}

// Rearm restarts the first-response cycle after an explicit reopen.
func Rearm(t *models.SLATracker, deadline, atRiskAt, at time.Time, actor string) {
	t.FirstResponseDeadline = deadline
	t.AtRiskAt = atRiskAt
	t.FirstResponseAt = nil
	t.SLAStatus = models.SLAOnTrack
	t.EscalationLevel = 0
	t.LastEscalationAt = nil
	t.EscalationHistory = append(t.EscalationHistory, models.EscalationEntry{
		Level:     0,
		Timestamp: at,
		Actor:     actor,
		Action:    ActionReopened,
	})
}
