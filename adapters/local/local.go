// Package local implements the terminal in-memory provider. It never
// fails to connect, which is what lets the fallback chain guarantee
// that initialization always reaches a READY state.
package local

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chyke007/boltfs"
	"github.com/gostratum/core/logx"
)

// node is one entry in the path-keyed store. Directories carry an
// explicit kind tag instead of being inferred from empty content, so an
// empty file and a directory stay distinguishable.
type node struct {
	content      []byte
	isDir        bool
	lastModified time.Time
}

// Adapter is a pure in-memory path-to-node store
type Adapter struct {
	logger logx.Logger
	clock  func() time.Time

	mu    sync.RWMutex
	nodes map[string]*node
}

// New creates a local adapter seeded with a minimal workspace scaffold
func New(options ...boltfs.Option) *Adapter {
	opts := boltfs.BuildOptions(options...)

	a := &Adapter{
		logger: opts.GetLogger(),
		clock:  opts.GetClock(),
		nodes:  make(map[string]*node),
	}
	a.seed()
	return a
}

// seed populates the scaffold every fresh workspace starts from
func (a *Adapter) seed() {
	now := a.clock()
	a.nodes["/"] = &node{isDir: true, lastModified: now}
	a.nodes["/README.md"] = &node{
		content:      []byte("# Workspace\n\nLocal in-memory workspace.\n"),
		lastModified: now,
	}
}

// Kind returns the provider kind
func (a *Adapter) Kind() boltfs.ProviderKind { return boltfs.ProviderLocal }

// Connect never fails; the local store is always reachable
func (a *Adapter) Connect(ctx context.Context) error { return nil }

// ReadFile returns the content of the file at path
func (a *Adapter) ReadFile(ctx context.Context, p string) ([]byte, error) {
	p = clean(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	n, ok := a.nodes[p]
	if !ok || n.isDir {
		return nil, &boltfs.StorageError{Op: "read_file", Path: p, Err: boltfs.ErrNotFound}
	}

	out := make([]byte, len(n.content))
	copy(out, n.content)
	return out, nil
}

// WriteFile stores content at path, implicitly materializing every
// missing intermediate segment of the parent chain as a directory.
func (a *Adapter) WriteFile(ctx context.Context, p string, content []byte) error {
	p = clean(p)
	if p == "/" {
		return &boltfs.StorageError{Op: "write_file", Path: p, Err: fmt.Errorf("cannot write to the namespace root")}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if n, ok := a.nodes[p]; ok && n.isDir {
		return &boltfs.StorageError{Op: "write_file", Path: p, Err: fmt.Errorf("%w: path is a directory", boltfs.ErrExists)}
	}

	now := a.clock()
	a.materializeParents(p, now)

	stored := make([]byte, len(content))
	copy(stored, content)
	a.nodes[p] = &node{content: stored, lastModified: now}
	return nil
}

// Readdir returns the immediate children of path, sorted by name
func (a *Adapter) Readdir(ctx context.Context, p string) ([]boltfs.DirEntry, error) {
	p = clean(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	n, ok := a.nodes[p]
	if !ok || !n.isDir {
		return nil, &boltfs.StorageError{Op: "readdir", Path: p, Err: boltfs.ErrNotFound}
	}

	prefix := p
	if prefix != "/" {
		prefix += "/"
	}

	var entries []boltfs.DirEntry
	for key, child := range a.nodes {
		if key == p || !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		if strings.Contains(rest, "/") {
			continue
		}
		entries = append(entries, boltfs.DirEntry{Name: rest, IsDir: child.isDir})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Mkdir creates a directory. With recursive it materializes every
// missing intermediate segment and tolerates an existing directory.
func (a *Adapter) Mkdir(ctx context.Context, p string, recursive bool) error {
	p = clean(p)

	a.mu.Lock()
	defer a.mu.Unlock()

	if n, ok := a.nodes[p]; ok {
		if n.isDir && recursive {
			return nil
		}
		return &boltfs.StorageError{Op: "mkdir", Path: p, Err: boltfs.ErrExists}
	}

	now := a.clock()
	if recursive {
		a.materializeParents(p, now)
	} else if parent := path.Dir(p); parent != "/" {
		if n, ok := a.nodes[parent]; !ok || !n.isDir {
			return &boltfs.StorageError{Op: "mkdir", Path: p, Err: fmt.Errorf("%w: parent directory", boltfs.ErrNotFound)}
		}
	}

	a.nodes[p] = &node{isDir: true, lastModified: now}
	return nil
}

// DeleteFile removes a single file
func (a *Adapter) DeleteFile(ctx context.Context, p string) error {
	p = clean(p)

	a.mu.Lock()
	defer a.mu.Unlock()

	n, ok := a.nodes[p]
	if !ok || n.isDir {
		return &boltfs.StorageError{Op: "delete_file", Path: p, Err: boltfs.ErrNotFound}
	}

	delete(a.nodes, p)
	return nil
}

// DeleteDirectory removes a directory. Non-recursive deletion of a
// non-empty directory fails; recursive deletion removes every
// descendant by prefix.
func (a *Adapter) DeleteDirectory(ctx context.Context, p string, recursive bool) error {
	p = clean(p)
	if p == "/" {
		return &boltfs.StorageError{Op: "delete_directory", Path: p, Err: fmt.Errorf("cannot delete the namespace root")}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	n, ok := a.nodes[p]
	if !ok || !n.isDir {
		return &boltfs.StorageError{Op: "delete_directory", Path: p, Err: boltfs.ErrNotFound}
	}

	prefix := p + "/"
	if !recursive {
		for key := range a.nodes {
			if strings.HasPrefix(key, prefix) {
				return &boltfs.StorageError{Op: "delete_directory", Path: p, Err: boltfs.ErrNotEmpty}
			}
		}
	} else {
		for key := range a.nodes {
			if strings.HasPrefix(key, prefix) {
				delete(a.nodes, key)
			}
		}
	}

	delete(a.nodes, p)
	return nil
}

// Exists reports whether a node exists at path
func (a *Adapter) Exists(ctx context.Context, p string) (bool, error) {
	p = clean(p)

	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.nodes[p]
	return ok, nil
}

// Stat returns metadata for the node at path
func (a *Adapter) Stat(ctx context.Context, p string) (boltfs.FileInfo, error) {
	p = clean(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	n, ok := a.nodes[p]
	if !ok {
		return boltfs.FileInfo{}, &boltfs.StorageError{Op: "stat", Path: p, Err: boltfs.ErrNotFound}
	}

	return boltfs.FileInfo{
		Path:         p,
		Size:         int64(len(n.content)),
		IsDir:        n.isDir,
		IsBinary:     boltfs.IsBinaryContent(n.content),
		LastModified: n.lastModified,
	}, nil
}

// Ping is the read-only liveness probe; the in-memory store is live as
// long as the process is.
func (a *Adapter) Ping(ctx context.Context) error {
	_, err := a.Readdir(ctx, "/")
	return err
}

// Close releases nothing; the store stays usable for a later re-probe
func (a *Adapter) Close() error { return nil }

// materializeParents creates every missing directory on the parent
// chain of p. Callers hold the write lock.
func (a *Adapter) materializeParents(p string, now time.Time) {
	for dir := path.Dir(p); ; dir = path.Dir(dir) {
		if _, ok := a.nodes[dir]; !ok {
			a.nodes[dir] = &node{isDir: true, lastModified: now}
		}
		if dir == "/" {
			return
		}
	}
}

// clean anchors a path at the namespace root
func clean(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// Verify interface implementation
var _ boltfs.Adapter = (*Adapter)(nil)
