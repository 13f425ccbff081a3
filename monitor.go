package boltfs

import (
	"sync"
)

// Monitor maintains the provider/readiness/error triple for UI
// consumption. The Manager writes it during initialization and health
// checks; the Searcher consults it to decide whether a native-search
// provider is still trustworthy mid-session.
type Monitor struct {
	mu    sync.RWMutex
	state ProviderState
}

// NewMonitor creates a monitor in the uninitialized state
func NewMonitor() *Monitor {
	return &Monitor{}
}

// SetActive records a newly selected active provider and clears any
// previous error.
func (m *Monitor) SetActive(provider ProviderKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = ProviderState{Provider: provider, Ready: true}
}

// SetError records a provider-level error without changing readiness
func (m *Monitor) SetError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Error = msg
}

// ClearError clears the error field
func (m *Monitor) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Error = ""
}

// Reset returns the monitor to the uninitialized state
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = ProviderState{}
}

// State returns a copy of the current triple
func (m *Monitor) State() ProviderState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Healthy reports whether the active provider is ready with no
// outstanding error.
func (m *Monitor) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Ready && m.state.Error == ""
}
