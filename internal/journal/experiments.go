// ABOUTME: Time-boxed experiments with one tick per day
// ABOUTME: Status moves from active to done or abandoned, never back

package journal

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/2389/tatasbox/internal/kv"
)

// CreateExperiment builds an experiment with exactly Days unticked days
// starting at StartDate and puts it at the front of the list.
func (s *Store) CreateExperiment(in NewExperiment) (Experiment, *kv.Write, error) {
	if err := s.check(in); err != nil {
		return Experiment{}, nil, err
	}

	dates, err := dateRange(in.StartDate, in.Days)
	if err != nil {
		return Experiment{}, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	ticks := make([]ExperimentTick, len(dates))
	for i, d := range dates {
		ticks[i] = ExperimentTick{Date: d}
	}
	end := in.EndDate
	if end == "" {
		end = dates[len(dates)-1]
	}

	e := Experiment{
		ID:         uuid.NewString(),
		Title:      in.Title,
		Hypothesis: in.Hypothesis,
		Metric:     in.Metric,
		StartDate:  in.StartDate,
		EndDate:    end,
		Days:       in.Days,
		Ticks:      ticks,
		Status:     ExperimentActive,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Experiment, 0, len(s.experiments)+1)
	next = append(next, e)
	s.experiments = append(next, s.experiments...)

	return e.clone(), s.persistLocked(), nil
}

// dateRange returns days consecutive YYYY-MM-DD dates beginning at start.
func dateRange(start string, days int) ([]string, error) {
	t, err := time.ParseInLocation(dateLayout, start, time.UTC)
	if err != nil {
		return nil, err
	}
	out := make([]string, days)
	for i := range out {
		out[i] = t.AddDate(0, 0, i).Format(dateLayout)
	}
	return out, nil
}

// ToggleTick flips the done flag of the tick on date and sets its note.
func (s *Store) ToggleTick(id, date, note string) (Experiment, *kv.Write, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.experimentIndexLocked(id)
	if i < 0 {
		return Experiment{}, nil, ErrExperimentNotFound
	}

	next := s.experiments[i].clone()
	found := false
	for j := range next.Ticks {
		if next.Ticks[j].Date == date {
			next.Ticks[j].Done = !next.Ticks[j].Done
			next.Ticks[j].Note = note
			found = true
			break
		}
	}
	if !found {
		return Experiment{}, nil, ErrTickNotFound
	}
	s.experiments[i] = next

	return next.clone(), s.persistLocked(), nil
}

// CompleteExperiment marks an active experiment done.
func (s *Store) CompleteExperiment(id string) (Experiment, *kv.Write, error) {
	return s.finishExperiment(id, ExperimentDone)
}

// AbandonExperiment marks an active experiment abandoned.
func (s *Store) AbandonExperiment(id string) (Experiment, *kv.Write, error) {
	return s.finishExperiment(id, ExperimentAbandoned)
}

func (s *Store) finishExperiment(id string, status ExperimentStatus) (Experiment, *kv.Write, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.experimentIndexLocked(id)
	if i < 0 {
		return Experiment{}, nil, ErrExperimentNotFound
	}
	if s.experiments[i].Status != ExperimentActive {
		return Experiment{}, nil, fmt.Errorf("%w: experiment is %s", ErrInvalidTransition, s.experiments[i].Status)
	}

	next := s.experiments[i].clone()
	next.Status = status
	s.experiments[i] = next

	return next.clone(), s.persistLocked(), nil
}

// Experiment returns one experiment by id.
func (s *Store) Experiment(id string) (Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.experimentIndexLocked(id)
	if i < 0 {
		return Experiment{}, ErrExperimentNotFound
	}
	return s.experiments[i].clone(), nil
}

// Experiments returns all experiments, newest first.
func (s *Store) Experiments() []Experiment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Experiment, 0, len(s.experiments))
	for _, e := range s.experiments {
		out = append(out, e.clone())
	}
	return out
}

func (s *Store) experimentIndexLocked(id string) int {
	for i := range s.experiments {
		if s.experiments[i].ID == id {
			return i
		}
	}
	return -1
}
