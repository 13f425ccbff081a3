package boltfs

import "testing"

func TestMonitorInitialState(t *testing.T) {
	m := NewMonitor()

	state := m.State()
	if state.Provider != "" || state.Ready || state.Error != "" {
		t.Fatalf("expected zero state, got %+v", state)
	}
	if m.Healthy() {
		t.Fatal("uninitialized monitor must not report healthy")
	}
}

func TestMonitorSetActiveClearsError(t *testing.T) {
	m := NewMonitor()
	m.SetError("boom")
	m.SetActive(ProviderEmbeddedRuntime)

	state := m.State()
	if state.Provider != ProviderEmbeddedRuntime {
		t.Fatalf("provider = %q", state.Provider)
	}
	if !state.Ready {
		t.Fatal("expected ready after SetActive")
	}
	if state.Error != "" {
		t.Fatalf("expected error cleared, got %q", state.Error)
	}
	if !m.Healthy() {
		t.Fatal("expected healthy")
	}
}

func TestMonitorErrorKeepsReadiness(t *testing.T) {
	m := NewMonitor()
	m.SetActive(ProviderLocal)
	m.SetError("listing failed")

	state := m.State()
	if !state.Ready {
		t.Fatal("an error must not flip readiness")
	}
	if m.Healthy() {
		t.Fatal("monitor with an error must not report healthy")
	}

	m.ClearError()
	if !m.Healthy() {
		t.Fatal("expected healthy after ClearError")
	}
}

func TestMonitorReset(t *testing.T) {
	m := NewMonitor()
	m.SetActive(ProviderRemoteCloud)
	m.Reset()

	if state := m.State(); state.Ready || state.Provider != "" {
		t.Fatalf("expected zero state after reset, got %+v", state)
	}
}
