// ABOUTME: Roleplay scratch: the in-progress role-play setup for one device
// ABOUTME: Memory only; it is gone when the process restarts

package roleplay

import "sync"

// Setup is a role-play scenario being drafted. Every field is optional.
type Setup struct {
	Scenario string `json:"scenario,omitempty"`
	AIRole   string `json:"aiRole,omitempty"`
	MyRole   string `json:"myRole,omitempty"`
	Lang     string `json:"lang,omitempty"`
	Details  string `json:"details,omitempty"`
}

// Scratch holds at most one Setup.
type Scratch struct {
	mu   sync.RWMutex
	temp *Setup
}

func New() *Scratch {
	return &Scratch{}
}

// SetTemp replaces the current setup.
func (s *Scratch) SetTemp(setup Setup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temp = &setup
}

// Temp returns a copy of the current setup, or nil after Clear.
func (s *Scratch) Temp() *Setup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.temp == nil {
		return nil
	}
	c := *s.temp
	return &c
}

func (s *Scratch) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temp = nil
}
