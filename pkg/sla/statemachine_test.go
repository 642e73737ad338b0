package sla

import (
	"testing"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLevels = [models.MaxEscalationLevel]int{0, 15, 60, 240}

func newTracker(created time.Time) *models.SLATracker {
	deadline := created.Add(15 * time.Minute)
	return &models.SLATracker{
		ID:                    "t1",
		CreatedAt:             created,
		FirstResponseDeadline: deadline,
		AtRiskAt:              deadline.Add(-3 * time.Minute),
		SLAStatus:             models.SLAOnTrack,
	}
}

func TestEvaluate(t *testing.T) {
	t0 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	t.Run("Success - nothing changes before at risk", func(t *testing.T) {
		tr := newTracker(t0)
		assert.Empty(t, Evaluate(tr, testLevels, t0.Add(5*time.Minute)))
		assert.Equal(t, models.SLAOnTrack, tr.SLAStatus)
	})

	t.Run("Success - at risk then breached", func(t *testing.T) {
		tr := newTracker(t0)
		out := Evaluate(tr, testLevels, t0.Add(12*time.Minute))
		require.Len(t, out, 1)
		assert.Equal(t, models.SLAAtRisk, tr.SLAStatus)

		// exactly at the deadline is not yet breached
		assert.Empty(t, Evaluate(tr, testLevels, t0.Add(15*time.Minute)))

		out = Evaluate(tr, testLevels, t0.Add(16*time.Minute))
		require.Len(t, out, 2)
		assert.Equal(t, models.SLABreached, tr.SLAStatus)
		assert.True(t, out[1].Escalated)
		assert.Equal(t, 1, tr.EscalationLevel)
	})

	t.Run("Success - one escalation level per evaluation", func(t *testing.T) {
		tr := newTracker(t0)
		late := t0.Add(10 * time.Hour)

		Evaluate(tr, testLevels, late)
		assert.Equal(t, 1, tr.EscalationLevel)

		// same instant again is a no-op
		assert.Empty(t, Evaluate(tr, testLevels, late))
		assert.Equal(t, 1, tr.EscalationLevel)

		for i := 1; i <= 5; i++ {
			Evaluate(tr, testLevels, late.Add(time.Duration(i)*time.Second))
		}
		assert.Equal(t, models.MaxEscalationLevel, tr.EscalationLevel)
		require.Len(t, tr.EscalationHistory, models.MaxEscalationLevel)
		for i, e := range tr.EscalationHistory {
			assert.Equal(t, i+1, e.Level)
			assert.Equal(t, ActionEscalated, e.Action)
			assert.Equal(t, models.ActorSystem, e.Actor)
		}
		assert.False(t, tr.Open())
	})

	t.Run("Success - answered trackers are not evaluated", func(t *testing.T) {
		tr := newTracker(t0)
		require.True(t, Respond(tr, t0.Add(5*time.Minute)))
		assert.Empty(t, Evaluate(tr, testLevels, t0.Add(time.Hour)))
		assert.Equal(t, models.SLAOnTrack, tr.SLAStatus)
	})
}

func TestRespond(t *testing.T) {
	t0 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	t.Run("Success - on time", func(t *testing.T) {
		tr := newTracker(t0)
		tr.SLAStatus = models.SLAAtRisk
		assert.True(t, Respond(tr, t0.Add(15*time.Minute)))
		assert.Equal(t, models.SLAOnTrack, tr.SLAStatus)
	})

	t.Run("Success - late response stays breached", func(t *testing.T) {
		tr := newTracker(t0)
		assert.True(t, Respond(tr, t0.Add(20*time.Minute)))
		assert.Equal(t, models.SLABreached, tr.SLAStatus)
	})

	t.Run("Success - second response does not move first response", func(t *testing.T) {
		tr := newTracker(t0)
		first := t0.Add(5 * time.Minute)
		Respond(tr, first)
		assert.False(t, Respond(tr, t0.Add(6*time.Minute)))
		assert.Equal(t, first, *tr.FirstResponseAt)
	})
}

func TestRearm(t *testing.T) {
	t0 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	tr := newTracker(t0)
	Evaluate(tr, testLevels, t0.Add(time.Hour))
	require.Equal(t, 1, tr.EscalationLevel)

	reopened := t0.Add(48 * time.Hour)
	Rearm(tr, reopened.Add(15*time.Minute), reopened.Add(12*time.Minute), reopened, "agent-1")

	assert.Equal(t, 0, tr.EscalationLevel)
	assert.Equal(t, models.SLAOnTrack, tr.SLAStatus)
	assert.Nil(t, tr.FirstResponseAt)
	require.Len(t, tr.EscalationHistory, 2)
	assert.Equal(t, ActionReopened, tr.EscalationHistory[1].Action)
	assert.Equal(t, "agent-1", tr.EscalationHistory[1].Actor)
}
