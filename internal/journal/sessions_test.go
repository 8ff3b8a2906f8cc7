// ABOUTME: Tests for dialogue sessions
// ABOUTME: Covers step appends, the ongoing->done transition and ephemeral reset

package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tatasbox/internal/kv"
)

func TestSession_Lifecycle(t *testing.T) {
	s := openTestStore(t, nil)

	sess, _, err := s.StartSession(PathMirrorDecision, PrivacyLocal)
	require.NoError(t, err)
	assert.Equal(t, SessionOngoing, sess.Status)
	assert.Empty(t, sess.Steps)
	assert.Nil(t, sess.FinishedAt)

	sess, _, err = s.PushStep(sess.ID, NewStep{QID: "q1", Question: "What matters?", AnswerText: "growth"})
	require.NoError(t, err)
	sess, _, err = s.PushStep(sess.ID, NewStep{QID: "q2", Question: "Why?"})
	require.NoError(t, err)
	require.Len(t, sess.Steps, 2)
	assert.Equal(t, "q1", sess.Steps[0].QID)
	assert.Equal(t, fixedNow, sess.Steps[0].CreatedAt)

	sess, w, err := s.EndSession(sess.ID)
	require.NoError(t, err)
	wait(t, w)
	assert.Equal(t, SessionDone, sess.Status)
	require.NotNil(t, sess.FinishedAt)
	assert.Equal(t, fixedNow, *sess.FinishedAt)

	_, _, err = s.EndSession(sess.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := s.Session(sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.Steps, 2)
}

func TestPushStep_FinishedSessionStillCounts(t *testing.T) {
	mem := kv.NewMemoryStore()
	s := openTestStore(t, mem)

	sess, _, err := s.StartSession(PathValues, PrivacySave)
	require.NoError(t, err)
	_, _, err = s.EndSession(sess.ID)
	require.NoError(t, err)

	late, w, err := s.PushStep(sess.ID, NewStep{QID: "q1", Question: "What matters?", AnswerText: "growth"})
	require.NoError(t, err)
	wait(t, w)
	assert.Equal(t, SessionDone, late.Status)
	require.Len(t, late.Steps, 1)

	env := persistedEnvelope(t, mem)
	require.Len(t, env.State.Sessions, 1)
	assert.Len(t, env.State.Sessions[0].Steps, 1)

	r, _, err := s.ComputeMonthlyReport("")
	require.NoError(t, err)
	assert.Equal(t, []string{"growth"}, r.TopValues)
}

func TestSession_NotFound(t *testing.T) {
	mem := kv.NewMemoryStore()
	s := openTestStore(t, mem)

	_, _, err := s.PushStep("nope", NewStep{QID: "q", Question: "q"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, _, err = s.EndSession("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.Session("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, mem.SetCount())
}

func TestSession_InvalidInput(t *testing.T) {
	s := openTestStore(t, nil)

	_, _, err := s.StartSession("dreams", PrivacySave)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, _, err = s.StartSession(PathValues, "secret")
	assert.ErrorIs(t, err, ErrInvalidInput)

	sess, _, err := s.StartSession(PathValues, "")
	require.NoError(t, err)
	_, _, err = s.PushStep(sess.ID, NewStep{Question: "missing qid"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSession_EphemeralNeverWritten(t *testing.T) {
	mem := kv.NewMemoryStore()
	s := openTestStore(t, mem)

	sess, w, err := s.StartSession(PathLifeLine, PrivacyEphemeral)
	require.NoError(t, err)
	wait(t, w)
	_, w, err = s.PushStep(sess.ID, NewStep{QID: "q1", Question: "?", AnswerText: "private"})
	require.NoError(t, err)
	wait(t, w)
	_, w, err = s.EndSession(sess.ID)
	require.NoError(t, err)
	wait(t, w)

	assert.Equal(t, 0, mem.SetCount())
}

func TestResetEphemeralSessions(t *testing.T) {
	mem := kv.NewMemoryStore()
	s := openTestStore(t, mem)

	kept, _, err := s.StartSession(PathValues, PrivacySave)
	require.NoError(t, err)
	_, _, err = s.StartSession(PathValues, PrivacyEphemeral)
	require.NoError(t, err)
	_, _, err = s.StartSession(PathStrengths, PrivacyEphemeral)
	require.NoError(t, err)

	assert.Equal(t, 2, s.ResetEphemeralSessions())
	sessions := s.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, kept.ID, sessions[0].ID)

	assert.Equal(t, 0, s.ResetEphemeralSessions())
}
