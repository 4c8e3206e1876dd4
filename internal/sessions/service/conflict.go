package service

import (
	"context"
	"fmt"
	"time"

	"coachdesk/pkg/model"
)

// minutesOfDay converts a "15:04" start time into minutes since midnight.
// Strictly zero-padded HH:MM; time.Parse alone would accept "9:30".
func minutesOfDay(clock string) (int, error) {
	if len(clock) != len("15:04") {
		return 0, fmt.Errorf("invalid time %q: must be zero-padded HH:MM", clock)
	}
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", clock, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// overlaps reports whether two half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Back-to-back sessions share a boundary minute
// and do not overlap.
func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}

// hasConflict checks the candidate slot against the coach's and the client's
// active sessions on the same day. excludeID skips the session being
// rescheduled so it never conflicts with itself.
func (s *sessionService) hasConflict(ctx context.Context, coachID, clientID, date, startTime string, duration int, excludeID string) (bool, error) {
	start, err := minutesOfDay(startTime)
	if err != nil {
		return false, err
	}
	end := start + duration

	coachSessions, err := s.repo.FindActiveByCoachOnDate(ctx, coachID, date, s.cfg.ConflictScanLimit)
	if err != nil {
		return false, err
	}
	if conflictsWith(coachSessions, start, end, excludeID) {
		return true, nil
	}

	clientSessions, err := s.repo.FindActiveByClientOnDate(ctx, clientID, date, s.cfg.ConflictScanLimit)
	if err != nil {
		return false, err
	}
	return conflictsWith(clientSessions, start, end, excludeID), nil
}

func conflictsWith(sessions []*model.Session, start, end int, excludeID string) bool {
	for _, existing := range sessions {
		if excludeID != "" && existing.ID == excludeID {
			continue
		}

		existingStart, err := minutesOfDay(existing.Time)
		if err != nil {
			// A stored session with an unparseable time cannot be placed on
			// the timeline; treat it as blocking rather than double-book.
			return true
		}

		if overlaps(start, end, existingStart, existingStart+existing.Duration) {
			return true
		}
	}
	return false
}
