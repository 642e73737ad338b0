package sla

import (
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/models"
)

// maxWalkDays bounds the business-hours walk so a pathological policy cannot spin forever.
const maxWalkDays = 3660

// Window is a parsed, validated business-hours window.
type Window struct {
	Location *time.Location
	StartMin int // minutes after midnight, inclusive
	EndMin   int // minutes after midnight, exclusive
	Days     [7]bool
}

// ParseWindow validates a business-hours policy.
func ParseWindow(bh models.BusinessHours) (Window, error) {
	var w Window

	loc := time.UTC
	if bh.Timezone != "" {
		l, err := time.LoadLocation(bh.Timezone)
		if err != nil {
			return w, fmt.Errorf("invalid timezone %q: %w", bh.Timezone, err)
		}
		loc = l
	}
	w.Location = loc

	start, err := parseClock(bh.Start)
	if err != nil {
		return w, fmt.Errorf("invalid start: %w", err)
	}
	end, err := parseClock(bh.End)
	if err != nil {
		return w, fmt.Errorf("invalid end: %w", err)
	}
	if end <= start {
		return w, fmt.Errorf("end %s must be after start %s", bh.End, bh.Start)
	}
	w.StartMin, w.EndMin = start, end

	hasDay := false
	for _, d := range bh.DaysOfWeek {
		if d < 0 || d > 6 {
			return w, fmt.Errorf("invalid day of week %d", d)
		}
		w.Days[d] = true
		hasDay = true
	}
	if !hasDay {
		return w, errors.New("no business days configured")
	}
	return w, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (w Window) bounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, w.StartMin/60, w.StartMin%60, 0, 0, w.Location)
	end := time.Date(y, m, d, w.EndMin/60, w.EndMin%60, 0, 0, w.Location)
	return start, end
}

// NextBusinessInstant returns from itself when it falls inside business hours,
// otherwise the start of the next business window.
func NextBusinessInstant(from time.Time, w Window) (time.Time, error) {
	t := from.In(w.Location)
	for i := 0; i <= 7; i++ {
		if w.Days[t.Weekday()] {
			start, end := w.bounds(t)
			if t.Before(start) {
				return start.In(from.Location()), nil
			}
			if t.Before(end) {
				return t.In(from.Location()), nil
			}
		}
		y, m, d := t.Date()
		t = time.Date(y, m, d+1, 0, 0, 0, 0, w.Location)
	}
	return time.Time{}, errors.New("no business window within a week")
}

// AddBusinessMinutes advances from by minutes of business time only.
func AddBusinessMinutes(from time.Time, minutes int, w Window) (time.Time, error) {
	remaining := time.Duration(minutes) * time.Minute
	t, err := NextBusinessInstant(from, w)
	if err != nil {
		return time.Time{}, err
	}

	for i := 0; i < maxWalkDays; i++ {
		local := t.In(w.Location)
		_, end := w.bounds(local)
		avail := end.Sub(local)
		if remaining <= avail {
			return local.Add(remaining).In(from.Location()), nil
		}
		remaining -= avail
		if t, err = NextBusinessInstant(end, w); err != nil {
			return time.Time{}, err
		}
	}
	return time.Time{}, fmt.Errorf("deadline further than %d days away", maxWalkDays)
}

// Deadline computes the first-response deadline for a conversation created at createdAt.
// On a bad business-hours policy it returns the wall-clock deadline together with the error.
func Deadline(createdAt time.Time, cfg *models.SLAConfig) (time.Time, bool, error) {
	wallClock := createdAt.Add(time.Duration(cfg.FirstResponseMinutes) * time.Minute)
	if !cfg.BusinessHours.Enabled {
		return wallClock, false, nil
	}

	w, err := ParseWindow(cfg.BusinessHours)
	if err != nil {
		return wallClock, false, err
	}
	deadline, err := AddBusinessMinutes(createdAt, cfg.FirstResponseMinutes, w)
	if err != nil {
		return wallClock, false, err
	}
	return deadline, true, nil
}

// AtRiskAt is the instant a still-unanswered tracker turns at_risk.
func AtRiskAt(deadline time.Time, cfg *models.SLAConfig) time.Time {
	lead := time.Duration(cfg.AtRiskFraction * float64(cfg.FirstResponseMinutes) * float64(time.Minute))
	return deadline.Add(-lead)
}
