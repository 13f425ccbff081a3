package boltfs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Domain Errors - use errors.Is for checking
var (
	// ErrNotFound indicates the requested path was not found
	ErrNotFound = errors.New("boltfs: path not found")

	// ErrNotEmpty indicates a non-recursive delete of a non-empty directory
	ErrNotEmpty = errors.New("boltfs: directory not empty")

	// ErrExists indicates the path already exists (e.g., non-recursive mkdir)
	ErrExists = errors.New("boltfs: path already exists")

	// ErrMissingCredential indicates a provider credential is absent; the
	// provider is skipped without a connection attempt
	ErrMissingCredential = errors.New("boltfs: missing credential")

	// ErrConnection indicates a connection or timeout failure while
	// establishing a provider session
	ErrConnection = errors.New("boltfs: connection failed")

	// ErrProtocol indicates a malformed or out-of-bounds response from a
	// provider; the provider is additionally marked unhealthy
	ErrProtocol = errors.New("boltfs: protocol violation")

	// ErrTimeout indicates the operation timed out
	ErrTimeout = errors.New("boltfs: operation timeout")

	// ErrBadPattern indicates an invalid search pattern; scanning skips
	// only the offending file
	ErrBadPattern = errors.New("boltfs: invalid search pattern")

	// ErrInvalidConfig indicates the storage configuration is invalid
	ErrInvalidConfig = errors.New("boltfs: invalid configuration")

	// ErrNotInitialized indicates an operation was issued before Initialize
	ErrNotInitialized = errors.New("boltfs: manager not initialized")
)

// StorageError wraps underlying errors with operation context
type StorageError struct {
	Op   string // operation that failed
	Path string // file path (if applicable)
	Err  error  // underlying error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("boltfs %s %q: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("boltfs %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsNotFound checks if an error is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNotEmpty checks if an error is or wraps ErrNotEmpty
func IsNotEmpty(err error) bool {
	return errors.Is(err, ErrNotEmpty)
}

// ProviderKind identifies one backing implementation of the storage contract
type ProviderKind string

const (
	// ProviderRemoteCloud is the highest-priority remote session provider
	ProviderRemoteCloud ProviderKind = "remote-cloud"

	// ProviderEmbeddedRuntime is the in-process indexed runtime provider
	ProviderEmbeddedRuntime ProviderKind = "embedded-runtime"

	// ProviderLocal is the terminal in-memory provider; it never fails
	ProviderLocal ProviderKind = "local"
)

// ProviderState is the readiness triple exposed to UI and collaborators.
// Exactly one provider is active at a time.
type ProviderState struct {
	// Provider names the active backing implementation
	Provider ProviderKind

	// Ready reports whether initialization reached this provider
	Ready bool

	// Error holds the most recent provider-level error message, if any
	Error string
}

// FileInfo contains node metadata. The node kind is explicit: a directory
// is never inferred from empty content.
type FileInfo struct {
	// Path is the absolute path within the provider namespace
	Path string

	// Size is the content size in bytes (0 for directories)
	Size int64

	// IsDir reports whether the node is a directory
	IsDir bool

	// IsBinary reports whether the content looks non-textual
	IsBinary bool

	// LastModified is when the node was last written
	LastModified time.Time
}

// DirEntry is a single immediate child returned by Readdir
type DirEntry struct {
	// Name is the entry name relative to the listed directory
	Name string

	// IsDir reports whether the entry is a directory
	IsDir bool
}

// Blob is one unit of an upload batch. RelPath is optional and carries
// the folder-relative path for folder uploads.
type Blob struct {
	Name    string
	RelPath string
	Content []byte
}

// Adapter is one backing provider of the storage contract. Adapters
// translate their raw primitives 1:1 into the unified operation set.
type Adapter interface {
	// Kind identifies the provider
	Kind() ProviderKind

	// Connect establishes the provider session. Failures are classified:
	// ErrMissingCredential (skipped without a connection attempt),
	// ErrConnection (timeout or network failure) and ErrProtocol
	// (malformed response; the adapter stays unhealthy afterwards).
	Connect(ctx context.Context) error

	// ReadFile returns the full content of the file at path
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile stores content at path, materializing parent directories
	WriteFile(ctx context.Context, path string, content []byte) error

	// Readdir returns the immediate children of path
	Readdir(ctx context.Context, path string) ([]DirEntry, error)

	// Mkdir creates a directory. With recursive=true it materializes every
	// missing intermediate segment and is idempotent.
	Mkdir(ctx context.Context, path string, recursive bool) error

	// DeleteFile removes a single file
	DeleteFile(ctx context.Context, path string) error

	// DeleteDirectory removes a directory. Non-recursive deletion of a
	// non-empty directory fails with ErrNotEmpty.
	DeleteDirectory(ctx context.Context, path string, recursive bool) error

	// Exists reports whether a node exists at path
	Exists(ctx context.Context, path string) (bool, error)

	// Stat returns metadata for the node at path
	Stat(ctx context.Context, path string) (FileInfo, error)

	// Ping is a lightweight read-only liveness probe (a listing call)
	Ping(ctx context.Context) error

	// Close releases the provider session
	Close() error
}

// Storage is the unified contract exposed to UI and collaborators. The
// Manager implements it by forwarding to the active adapter.
type Storage interface {
	// Provider returns the active provider kind
	Provider() ProviderKind

	// IsReady reports whether initialization completed
	IsReady() bool

	// Status returns the provider/readiness/error triple
	Status() ProviderState

	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, content []byte) error
	Readdir(ctx context.Context, path string) ([]DirEntry, error)
	Mkdir(ctx context.Context, path string, recursive bool) error
	DeleteFile(ctx context.Context, path string) error
	DeleteDirectory(ctx context.Context, path string, recursive bool) error
	Exists(ctx context.Context, path string) (bool, error)
	Stat(ctx context.Context, path string) (FileInfo, error)

	// UploadFiles decomposes a batch of blobs into sequential writes
	// directly under dir
	UploadFiles(ctx context.Context, dir string, blobs []Blob) error

	// UploadFolder writes blobs under dir preserving each blob's RelPath
	UploadFolder(ctx context.Context, dir string, blobs []Blob) error

	// HealthCheck re-verifies liveness of the active provider with a
	// read-only listing call. It never triggers re-selection.
	HealthCheck(ctx context.Context) bool
}
