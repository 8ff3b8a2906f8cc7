// ABOUTME: Guided dialogue sessions: start, append steps, end, and ephemeral reset
// ABOUTME: Ephemeral sessions live in memory only and are dropped by ResetEphemeralSessions

package journal

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/2389/tatasbox/internal/kv"
)

// StartSession begins a dialogue. An empty privacy uses the settings default.
// Starting an ephemeral session does not write anything.
func (s *Store) StartSession(path DialoguePath, privacy PrivacyLevel) (Session, *kv.Write, error) {
	if !path.Valid() {
		return Session{}, nil, fmt.Errorf("%w: path %q", ErrInvalidInput, path)
	}
	if privacy != "" && !privacy.Valid() {
		return Session{}, nil, fmt.Errorf("%w: privacy %q", ErrInvalidInput, privacy)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if privacy == "" {
		privacy = s.settings.PrivacyDefault
	}
	sess := Session{
		ID:        uuid.NewString(),
		Path:      path,
		Steps:     []DialogueStep{},
		Status:    SessionOngoing,
		StartedAt: s.now().UTC(),
		Privacy:   privacy,
	}
	s.sessions = append(s.sessions, sess)

	return sess.clone(), s.persistUnlessEphemeralLocked(privacy), nil
}

// PushStep appends a timestamped step to a session. Finished sessions still
// accept steps, and their answers count toward the monthly tally.
func (s *Store) PushStep(id string, in NewStep) (Session, *kv.Write, error) {
	if err := s.check(in); err != nil {
		return Session{}, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.sessionIndexLocked(id)
	if i < 0 {
		return Session{}, nil, ErrSessionNotFound
	}

	next := s.sessions[i].clone()
	next.Steps = append(next.Steps, DialogueStep{
		QID:        in.QID,
		Question:   in.Question,
		AnswerText: in.AnswerText,
		CreatedAt:  s.now().UTC(),
	})
	s.sessions[i] = next

	return next.clone(), s.persistUnlessEphemeralLocked(next.Privacy), nil
}

// EndSession marks an ongoing session done.
func (s *Store) EndSession(id string) (Session, *kv.Write, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.sessionIndexLocked(id)
	if i < 0 {
		return Session{}, nil, ErrSessionNotFound
	}
	if s.sessions[i].Status != SessionOngoing {
		return Session{}, nil, fmt.Errorf("%w: session is %s", ErrInvalidTransition, s.sessions[i].Status)
	}

	next := s.sessions[i].clone()
	finished := s.now().UTC()
	next.Status = SessionDone
	next.FinishedAt = &finished
	s.sessions[i] = next

	return next.clone(), s.persistUnlessEphemeralLocked(next.Privacy), nil
}

// Session returns one session by id, ephemeral ones included.
func (s *Store) Session(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.sessionIndexLocked(id)
	if i < 0 {
		return Session{}, ErrSessionNotFound
	}
	return s.sessions[i].clone(), nil
}

// Sessions returns every in-memory session, ephemeral ones included.
func (s *Store) Sessions() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.clone())
	}
	return out
}

// ResetEphemeralSessions drops ephemeral sessions and returns how many were
// removed. The persisted envelope never held them, so nothing is written.
func (s *Store) ResetEphemeralSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.Privacy != PrivacyEphemeral {
			kept = append(kept, sess)
		}
	}
	removed := len(s.sessions) - len(kept)
	s.sessions = kept
	return removed
}

func (s *Store) sessionIndexLocked(id string) int {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) persistUnlessEphemeralLocked(privacy PrivacyLevel) *kv.Write {
	if privacy == PrivacyEphemeral {
		return kv.Completed(nil)
	}
	return s.persistLocked()
}
