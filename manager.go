package boltfs

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gostratum/core/logx"
)

// State is the lifecycle state of the Manager
type State int

const (
	// StateUninitialized means Initialize has not run yet
	StateUninitialized State = iota

	// StateProbing means the fallback chain is being walked
	StateProbing

	// StateReady means an active provider has been selected
	StateReady
)

func (s State) String() string {
	switch s {
	case StateProbing:
		return "probing"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// healthCheckTimeout bounds the read-only liveness probe
const healthCheckTimeout = 2 * time.Second

// Manager orchestrates the provider fallback chain and exposes the
// unified Storage contract over whichever adapter won initialization.
//
// Provider transitions are monotonic along the fixed priority chain:
// once READY the manager never reverts to a higher-priority provider
// automatically, and failures of individual operations never demote the
// active provider. Only an explicit re-run of Initialize re-selects.
type Manager struct {
	cfg     *Config
	logger  logx.Logger
	inst    *Instrumenter
	clock   func() time.Time
	chain   []Adapter
	monitor *Monitor

	mu     sync.RWMutex
	state  State
	active Adapter
}

// NewManager creates a manager over the given adapter chain, ordered by
// priority with the terminal adapter last. The terminal adapter must
// never fail to connect (the local in-memory adapter satisfies this).
func NewManager(cfg *Config, chain []Adapter, options ...Option) (*Manager, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if len(chain) == 0 {
		return nil, &StorageError{Op: "new_manager", Err: fmt.Errorf("%w: empty adapter chain", ErrInvalidConfig)}
	}

	opts := BuildOptions(options...)

	return &Manager{
		cfg:     cfg,
		logger:  opts.GetLogger(),
		inst:    opts.GetInstrumenter(),
		clock:   opts.GetClock(),
		chain:   chain,
		monitor: NewMonitor(),
		state:   StateUninitialized,
	}, nil
}

// Monitor returns the status monitor shared with collaborators
func (m *Manager) Monitor() *Monitor {
	return m.monitor
}

// Initialize walks the chain in priority order, bounding each connect
// attempt by InitTimeout, and activates the first adapter that
// succeeds. Initialization failures are absorbed inside the chain; with
// a never-failing terminal adapter Initialize always reaches READY.
// Calling Initialize again re-runs selection from the top of the chain.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	m.state = StateProbing
	m.active = nil
	m.mu.Unlock()
	m.monitor.Reset()

	var lastErr error
	for _, adapter := range m.chain {
		kind := adapter.Kind()
		m.logger.Debug("Probing provider", ArgsToFields("provider", kind)...)

		err := m.probe(ctx, adapter)
		if err == nil {
			m.mu.Lock()
			m.active = adapter
			m.state = StateReady
			m.mu.Unlock()
			m.monitor.SetActive(kind)
			m.inst.RecordProbe(kind, "ready")
			m.inst.RecordActiveProvider(kind)
			m.logger.Info("Provider selected", ArgsToFields("provider", kind)...)
			return nil
		}

		lastErr = err
		m.inst.RecordProbe(kind, classifyProbe(err))
		m.logger.Warn("Provider unavailable, falling back",
			ArgsToFields("provider", kind, "reason", classifyProbe(err), "error", err)...)
	}

	// Only reachable when the chain was built without a terminal
	// never-failing adapter.
	m.mu.Lock()
	m.state = StateUninitialized
	m.mu.Unlock()
	m.monitor.SetError(lastErr.Error())
	return &StorageError{Op: "initialize", Err: fmt.Errorf("all providers failed: %w", lastErr)}
}

// probe races the adapter's connect against the init timeout. Whichever
// settles first determines the outcome; the loser's eventual settlement
// is discarded without further side effects.
func (m *Manager) probe(ctx context.Context, adapter Adapter) error {
	timeout := m.cfg.InitTimeout
	if timeout <= 0 {
		return adapter.Connect(ctx)
	}

	done := make(chan error, 1)
	go func() {
		done <- adapter.Connect(ctx)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("%w: %s connect timed out after %s", ErrConnection, adapter.Kind(), timeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrConnection, ctx.Err())
	}
}

// classifyProbe maps an initialization failure to its taxonomy bucket
func classifyProbe(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "missing-credential"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrConnection):
		return "connection"
	default:
		return "error"
	}
}

// Provider returns the active provider kind, or empty before READY
func (m *Manager) Provider() ProviderKind {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return ""
	}
	return m.active.Kind()
}

// IsReady reports whether initialization completed
func (m *Manager) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateReady
}

// Status returns the provider/readiness/error triple
func (m *Manager) Status() ProviderState {
	return m.monitor.State()
}

// adapter returns the active adapter or ErrNotInitialized
func (m *Manager) adapter() (Adapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateReady || m.active == nil {
		return nil, &StorageError{Op: "forward", Err: ErrNotInitialized}
	}
	return m.active, nil
}

// ReadFile returns the full content of the file at path
func (m *Manager) ReadFile(ctx context.Context, p string) ([]byte, error) {
	a, err := m.adapter()
	if err != nil {
		return nil, err
	}
	p = normPath(p)

	var data []byte
	err = m.inst.TraceOperation(ctx, "read_file", p, func(ctx context.Context) error {
		var opErr error
		data, opErr = a.ReadFile(ctx, p)
		return opErr
	})
	return data, err
}

// WriteFile stores content at path on the active provider
func (m *Manager) WriteFile(ctx context.Context, p string, content []byte) error {
	a, err := m.adapter()
	if err != nil {
		return err
	}
	p = normPath(p)

	return m.inst.TraceOperation(ctx, "write_file", p, func(ctx context.Context) error {
		return a.WriteFile(ctx, p, content)
	})
}

// Readdir returns the immediate children of path
func (m *Manager) Readdir(ctx context.Context, p string) ([]DirEntry, error) {
	a, err := m.adapter()
	if err != nil {
		return nil, err
	}
	p = normPath(p)

	var entries []DirEntry
	err = m.inst.TraceOperation(ctx, "readdir", p, func(ctx context.Context) error {
		var opErr error
		entries, opErr = a.Readdir(ctx, p)
		return opErr
	})
	return entries, err
}

// Mkdir creates a directory on the active provider
func (m *Manager) Mkdir(ctx context.Context, p string, recursive bool) error {
	a, err := m.adapter()
	if err != nil {
		return err
	}
	p = normPath(p)

	return m.inst.TraceOperation(ctx, "mkdir", p, func(ctx context.Context) error {
		return a.Mkdir(ctx, p, recursive)
	})
}

// DeleteFile removes a single file
func (m *Manager) DeleteFile(ctx context.Context, p string) error {
	a, err := m.adapter()
	if err != nil {
		return err
	}
	p = normPath(p)

	return m.inst.TraceOperation(ctx, "delete_file", p, func(ctx context.Context) error {
		return a.DeleteFile(ctx, p)
	})
}

// DeleteDirectory removes a directory, recursively when requested
func (m *Manager) DeleteDirectory(ctx context.Context, p string, recursive bool) error {
	a, err := m.adapter()
	if err != nil {
		return err
	}
	p = normPath(p)

	return m.inst.TraceOperation(ctx, "delete_directory", p, func(ctx context.Context) error {
		return a.DeleteDirectory(ctx, p, recursive)
	})
}

// Exists reports whether a node exists at path
func (m *Manager) Exists(ctx context.Context, p string) (bool, error) {
	a, err := m.adapter()
	if err != nil {
		return false, err
	}
	p = normPath(p)

	var exists bool
	err = m.inst.TraceOperation(ctx, "exists", p, func(ctx context.Context) error {
		var opErr error
		exists, opErr = a.Exists(ctx, p)
		return opErr
	})
	return exists, err
}

// Stat returns metadata for the node at path
func (m *Manager) Stat(ctx context.Context, p string) (FileInfo, error) {
	a, err := m.adapter()
	if err != nil {
		return FileInfo{}, err
	}
	p = normPath(p)

	var info FileInfo
	err = m.inst.TraceOperation(ctx, "stat", p, func(ctx context.Context) error {
		var opErr error
		info, opErr = a.Stat(ctx, p)
		return opErr
	})
	return info, err
}

// UploadFiles decomposes a batch of blobs into sequential write calls
// directly under dir. The first failing write aborts the batch and is
// surfaced to the caller.
func (m *Manager) UploadFiles(ctx context.Context, dir string, blobs []Blob) error {
	dir = normPath(dir)

	for _, blob := range blobs {
		if blob.Name == "" {
			continue
		}
		target := path.Join(dir, blob.Name)
		if err := m.WriteFile(ctx, target, blob.Content); err != nil {
			m.inst.RecordUpload("upload_files", len(blobs), true)
			return fmt.Errorf("upload %q: %w", target, err)
		}
	}

	m.inst.RecordUpload("upload_files", len(blobs), false)
	m.logger.Debug("Uploaded file batch", ArgsToFields("dir", dir, "count", len(blobs))...)
	return nil
}

// UploadFolder writes blobs under dir preserving each blob's relative
// path, materializing the base directory first.
func (m *Manager) UploadFolder(ctx context.Context, dir string, blobs []Blob) error {
	dir = normPath(dir)

	if err := m.Mkdir(ctx, dir, true); err != nil {
		m.inst.RecordUpload("upload_folder", len(blobs), true)
		return fmt.Errorf("upload folder %q: %w", dir, err)
	}

	for _, blob := range blobs {
		rel := blob.RelPath
		if rel == "" {
			rel = blob.Name
		}
		if rel == "" {
			continue
		}
		target := path.Join(dir, rel)
		if err := m.WriteFile(ctx, target, blob.Content); err != nil {
			m.inst.RecordUpload("upload_folder", len(blobs), true)
			return fmt.Errorf("upload %q: %w", target, err)
		}
	}

	m.inst.RecordUpload("upload_folder", len(blobs), false)
	m.logger.Debug("Uploaded folder batch", ArgsToFields("dir", dir, "count", len(blobs))...)
	return nil
}

// HealthCheck issues a read-only listing probe against the active
// provider and reports liveness. It only mutates the monitor's error
// field and never triggers re-selection.
func (m *Manager) HealthCheck(ctx context.Context) bool {
	a, err := m.adapter()
	if err != nil {
		m.monitor.SetError(ErrNotInitialized.Error())
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := a.Ping(ctx); err != nil {
		m.monitor.SetError(err.Error())
		m.inst.RecordHealthCheck(a.Kind(), false)
		m.logger.Warn("Health check failed", ArgsToFields("provider", a.Kind(), "error", err)...)
		return false
	}

	m.monitor.ClearError()
	m.inst.RecordHealthCheck(a.Kind(), true)
	return true
}

// Close releases every adapter session in the chain
func (m *Manager) Close() error {
	m.mu.Lock()
	m.state = StateUninitialized
	m.active = nil
	m.mu.Unlock()
	m.monitor.Reset()

	var firstErr error
	for _, adapter := range m.chain {
		if err := adapter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// normPath cleans a path and anchors it at the namespace root
func normPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// Verify interface implementation
var _ Storage = (*Manager)(nil)
