// ABOUTME: Daily check-ins and the consecutive-day streak
// ABOUTME: One check-in per date; adding another on the same date replaces it

package journal

import (
	"time"

	"github.com/google/uuid"

	"github.com/2389/tatasbox/internal/kv"
)

// maxStreakDays bounds the streak scan.
const maxStreakDays = 365

// AddCheckIn stores a check-in, replacing any on the same date, and
// recomputes the streak.
func (s *Store) AddCheckIn(in NewCheckIn) (CheckIn, *kv.Write, error) {
	if err := s.check(in); err != nil {
		return CheckIn{}, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	date := in.Date
	if date == "" {
		date = s.today().Format(dateLayout)
	}
	c := CheckIn{
		ID:    uuid.NewString(),
		Date:  date,
		Mood:  in.Mood,
		Focus: in.Focus,
		Note:  in.Note,
	}

	next := make([]CheckIn, 0, len(s.checkIns)+1)
	for _, existing := range s.checkIns {
		if existing.Date != date {
			next = append(next, existing)
		}
	}
	s.checkIns = append(next, c)
	s.streak = computeStreak(s.checkIns, s.today())

	return c, s.persistLocked(), nil
}

// CheckIns returns all check-ins in stored order.
func (s *Store) CheckIns() []CheckIn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]CheckIn{}, s.checkIns...)
}

// Streak returns the number of consecutive days, ending today, with a check-in.
func (s *Store) Streak() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streak
}

// RefreshStreak recomputes the streak against the current date, for callers
// that keep a store open across midnight.
func (s *Store) RefreshStreak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streak = computeStreak(s.checkIns, s.today())
	return s.streak
}

func computeStreak(checkIns []CheckIn, today time.Time) int {
	dates := make(map[string]struct{}, len(checkIns))
	for _, c := range checkIns {
		dates[c.Date] = struct{}{}
	}

	streak := 0
	for i := 0; i < maxStreakDays; i++ {
		day := today.AddDate(0, 0, -i).Format(dateLayout)
		if _, ok := dates[day]; !ok {
			break
		}
		streak++
	}
	return streak
}
