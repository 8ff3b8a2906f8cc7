package roleplay

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScratch(t *testing.T) {
	s := New()
	assert.Nil(t, s.Temp())

	s.SetTemp(Setup{Scenario: "job interview", AIRole: "interviewer", MyRole: "candidate", Lang: "en"})
	got := s.Temp()
	require.NotNil(t, got)
	assert.Equal(t, "interviewer", got.AIRole)

	got.Scenario = "mutated"
	assert.Equal(t, "job interview", s.Temp().Scenario)

	s.SetTemp(Setup{Details: "only details"})
	assert.Equal(t, Setup{Details: "only details"}, *s.Temp())

	s.Clear()
	assert.Nil(t, s.Temp())
}

func TestScratch_ConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.SetTemp(Setup{Lang: "zh"})
		}()
		go func() {
			defer wg.Done()
			_ = s.Temp()
		}()
	}
	wg.Wait()
	assert.Equal(t, "zh", s.Temp().Lang)
}
