// ABOUTME: Tests for journal hydration, the persisted envelope and settings
// ABOUTME: Shared fixtures for the other journal tests live here

package journal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tatasbox/internal/kv"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func openTestStore(t *testing.T, mem *kv.MemoryStore) *Store {
	t.Helper()
	if mem == nil {
		mem = kv.NewMemoryStore()
	}
	s, err := Open(context.Background(), kv.NewBucket(mem, "dev"), Options{Now: clock(fixedNow)})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func wait(t *testing.T, w *kv.Write) {
	t.Helper()
	require.NoError(t, w.Wait(context.Background()))
}

func persistedEnvelope(t *testing.T, mem *kv.MemoryStore) envelope {
	t.Helper()
	raw, err := mem.Get(context.Background(), "dev", Key)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	return env
}

func TestOpen_EmptyDefaults(t *testing.T) {
	s := openTestStore(t, nil)

	assert.Empty(t, s.CheckIns())
	assert.Empty(t, s.Sessions())
	assert.Empty(t, s.Experiments())
	assert.Empty(t, s.Reports())
	assert.Equal(t, 0, s.Streak())
	assert.Equal(t, Settings{Language: "zh", PrivacyDefault: PrivacySave}, s.Settings())
}

func TestPersist_EnvelopeExcludesEphemeralSessions(t *testing.T) {
	mem := kv.NewMemoryStore()
	s := openTestStore(t, mem)

	saved, w, err := s.StartSession(PathValues, PrivacySave)
	require.NoError(t, err)
	wait(t, w)
	_, w, err = s.StartSession(PathStrengths, PrivacyEphemeral)
	require.NoError(t, err)
	wait(t, w)
	_, w, err = s.AddCheckIn(NewCheckIn{Date: "2024-03-15", Mood: 4, Focus: FocusWork})
	require.NoError(t, err)
	wait(t, w)

	assert.Len(t, s.Sessions(), 2)

	env := persistedEnvelope(t, mem)
	assert.Equal(t, Version, env.Version)
	require.Len(t, env.State.Sessions, 1)
	assert.Equal(t, saved.ID, env.State.Sessions[0].ID)
	assert.Len(t, env.State.CheckIns, 1)
	assert.Equal(t, 1, env.State.Streak)

	snap := s.Snapshot()
	for _, sess := range snap.Sessions {
		assert.NotEqual(t, PrivacyEphemeral, sess.Privacy)
	}
}

func TestPersist_RawJSONShape(t *testing.T) {
	mem := kv.NewMemoryStore()
	s := openTestStore(t, mem)

	w, err := s.SetLanguage("en")
	require.NoError(t, err)
	wait(t, w)

	raw, err := mem.Get(context.Background(), "dev", Key)
	require.NoError(t, err)

	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &generic))
	assert.JSONEq(t, "1", string(generic["version"]))

	var state map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(generic["state"], &state))
	for _, k := range []string{"checkIns", "sessions", "experiments", "reports", "settings", "streak"} {
		assert.Contains(t, state, k)
	}
	assert.JSONEq(t, `{"language":"en","privacyDefault":"save"}`, string(state["settings"]))
}

func TestOpen_HydratesAndRecomputesStreak(t *testing.T) {
	mem := kv.NewMemoryStore()
	env := envelope{
		Version: 1,
		State: State{
			CheckIns: []CheckIn{
				{ID: "a", Date: "2024-03-14", Mood: 3, Focus: FocusWork},
				{ID: "b", Date: "2024-03-15", Mood: 4, Focus: FocusHealth},
			},
			Sessions: []Session{
				{ID: "keep", Path: PathValues, Status: SessionDone, Privacy: PrivacyLocal, Steps: []DialogueStep{}},
				{ID: "drop", Path: PathValues, Status: SessionOngoing, Privacy: PrivacyEphemeral, Steps: []DialogueStep{}},
			},
			Settings: Settings{Language: "es", PrivacyDefault: PrivacyLocal},
			Streak:   42,
		},
	}
	data, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, mem.Set(context.Background(), "dev", Key, string(data)))

	s := openTestStore(t, mem)

	assert.Len(t, s.CheckIns(), 2)
	assert.Equal(t, 2, s.Streak(), "stored streak is ignored in favor of a fresh scan")
	sessions := s.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "keep", sessions[0].ID)
	assert.Equal(t, Settings{Language: "es", PrivacyDefault: PrivacyLocal}, s.Settings())
}

func TestOpen_UnreadableOrNewerEnvelopeStartsEmpty(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", "{not json"},
		{"newer version", `{"state":{"checkIns":[{"id":"x","date":"2024-03-15","mood":3,"focus":"work"}]},"version":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := kv.NewMemoryStore()
			require.NoError(t, mem.Set(context.Background(), "dev", Key, tt.raw))

			s := openTestStore(t, mem)
			assert.Empty(t, s.CheckIns())
			assert.Equal(t, DefaultSettings(), s.Settings())
		})
	}
}

func TestOpen_ReadErrorStartsEmpty(t *testing.T) {
	mem := kv.NewMemoryStore()
	mem.GetErr = errors.New("disk on fire")

	s := openTestStore(t, mem)
	assert.Empty(t, s.CheckIns())
}

func TestOpen_CancelledContext(t *testing.T) {
	mem := kv.NewMemoryStore()
	mem.GetErr = context.Canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, kv.NewBucket(mem, "dev"), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSettings_Validation(t *testing.T) {
	s := openTestStore(t, nil)

	_, err := s.SetLanguage("fr")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.SetPrivacyDefault("public")
	assert.ErrorIs(t, err, ErrInvalidInput)

	w, err := s.SetPrivacyDefault(PrivacyEphemeral)
	require.NoError(t, err)
	wait(t, w)

	sess, _, err := s.StartSession(PathBlockers, "")
	require.NoError(t, err)
	assert.Equal(t, PrivacyEphemeral, sess.Privacy)
}

func TestPersist_FailureSurfacesOnWrite(t *testing.T) {
	mem := kv.NewMemoryStore()
	s := openTestStore(t, mem)
	mem.Fail(errors.New("quota exceeded"))

	c, w, err := s.AddCheckIn(NewCheckIn{Mood: 2, Focus: FocusOther})
	require.NoError(t, err)
	assert.Error(t, w.Wait(context.Background()))

	// The in-memory state still holds the check-in.
	require.Len(t, s.CheckIns(), 1)
	assert.Equal(t, c.ID, s.CheckIns()[0].ID)
}
