// Package testutil provides scriptable fakes for exercising the
// fallback chain and search strategies in tests.
package testutil

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chyke007/boltfs"
)

// FakeAdapter is a thread-safe in-memory boltfs.Adapter whose connect
// and ping behavior can be scripted per test.
type FakeAdapter struct {
	// ProviderKind is what Kind reports
	ProviderKind boltfs.ProviderKind

	// ConnectErr, when set, fails every Connect attempt
	ConnectErr error

	// ConnectDelay stalls Connect before it settles; combined with a
	// short init timeout it simulates a provider that never answers.
	ConnectDelay time.Duration

	// PingErr, when set, fails every Ping
	PingErr error

	// ReadErrs fails ReadFile for specific paths
	ReadErrs map[string]error

	mu       sync.RWMutex
	files    map[string][]byte
	dirs     map[string]bool
	connects int
	closed   bool
}

// NewFakeAdapter creates an empty fake reporting the given kind
func NewFakeAdapter(kind boltfs.ProviderKind) *FakeAdapter {
	return &FakeAdapter{
		ProviderKind: kind,
		files:        make(map[string][]byte),
		dirs:         map[string]bool{"/": true},
	}
}

// Seed writes a file without going through WriteFile error paths
func (f *FakeAdapter) Seed(p string, content []byte) *FakeAdapter {
	_ = f.WriteFile(context.Background(), p, content)
	return f
}

// Connects reports how many Connect attempts were made
func (f *FakeAdapter) Connects() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connects
}

// Closed reports whether Close was called
func (f *FakeAdapter) Closed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.closed
}

func (f *FakeAdapter) Kind() boltfs.ProviderKind { return f.ProviderKind }

func (f *FakeAdapter) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connects++
	f.mu.Unlock()

	if f.ConnectDelay > 0 {
		select {
		case <-time.After(f.ConnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.ConnectErr
}

func (f *FakeAdapter) ReadFile(ctx context.Context, p string) ([]byte, error) {
	p = clean(p)
	if err, ok := f.ReadErrs[p]; ok {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	content, ok := f.files[p]
	if !ok {
		return nil, &boltfs.StorageError{Op: "read_file", Path: p, Err: boltfs.ErrNotFound}
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, nil
}

func (f *FakeAdapter) WriteFile(ctx context.Context, p string, content []byte) error {
	p = clean(p)

	f.mu.Lock()
	defer f.mu.Unlock()

	for dir := path.Dir(p); ; dir = path.Dir(dir) {
		f.dirs[dir] = true
		if dir == "/" {
			break
		}
	}

	stored := make([]byte, len(content))
	copy(stored, content)
	f.files[p] = stored
	return nil
}

func (f *FakeAdapter) Readdir(ctx context.Context, p string) ([]boltfs.DirEntry, error) {
	p = clean(p)

	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.dirs[p] {
		return nil, &boltfs.StorageError{Op: "readdir", Path: p, Err: boltfs.ErrNotFound}
	}

	prefix := p
	if prefix != "/" {
		prefix += "/"
	}

	seen := make(map[string]bool)
	var entries []boltfs.DirEntry

	for key := range f.files {
		name, ok := childName(key, prefix)
		if ok && !seen[name] {
			seen[name] = true
			entries = append(entries, boltfs.DirEntry{Name: name})
		}
	}
	for key, isDir := range f.dirs {
		if !isDir || key == p {
			continue
		}
		name, ok := childName(key, prefix)
		if ok && !seen[name] {
			seen[name] = true
			entries = append(entries, boltfs.DirEntry{Name: name, IsDir: true})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (f *FakeAdapter) Mkdir(ctx context.Context, p string, recursive bool) error {
	p = clean(p)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dirs[p] {
		if recursive {
			return nil
		}
		return &boltfs.StorageError{Op: "mkdir", Path: p, Err: boltfs.ErrExists}
	}

	if recursive {
		for dir := p; ; dir = path.Dir(dir) {
			f.dirs[dir] = true
			if dir == "/" {
				break
			}
		}
		return nil
	}
	f.dirs[p] = true
	return nil
}

func (f *FakeAdapter) DeleteFile(ctx context.Context, p string) error {
	p = clean(p)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.files[p]; !ok {
		return &boltfs.StorageError{Op: "delete_file", Path: p, Err: boltfs.ErrNotFound}
	}
	delete(f.files, p)
	return nil
}

func (f *FakeAdapter) DeleteDirectory(ctx context.Context, p string, recursive bool) error {
	p = clean(p)

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.dirs[p] {
		return &boltfs.StorageError{Op: "delete_directory", Path: p, Err: boltfs.ErrNotFound}
	}

	prefix := p + "/"
	if !recursive {
		for key := range f.files {
			if strings.HasPrefix(key, prefix) {
				return &boltfs.StorageError{Op: "delete_directory", Path: p, Err: boltfs.ErrNotEmpty}
			}
		}
		for key := range f.dirs {
			if strings.HasPrefix(key, prefix) {
				return &boltfs.StorageError{Op: "delete_directory", Path: p, Err: boltfs.ErrNotEmpty}
			}
		}
	} else {
		for key := range f.files {
			if strings.HasPrefix(key, prefix) {
				delete(f.files, key)
			}
		}
		for key := range f.dirs {
			if strings.HasPrefix(key, prefix) {
				delete(f.dirs, key)
			}
		}
	}

	delete(f.dirs, p)
	return nil
}

func (f *FakeAdapter) Exists(ctx context.Context, p string) (bool, error) {
	p = clean(p)

	f.mu.RLock()
	defer f.mu.RUnlock()
	_, isFile := f.files[p]
	return isFile || f.dirs[p], nil
}

func (f *FakeAdapter) Stat(ctx context.Context, p string) (boltfs.FileInfo, error) {
	p = clean(p)

	f.mu.RLock()
	defer f.mu.RUnlock()

	if content, ok := f.files[p]; ok {
		return boltfs.FileInfo{Path: p, Size: int64(len(content))}, nil
	}
	if f.dirs[p] {
		return boltfs.FileInfo{Path: p, IsDir: true}, nil
	}
	return boltfs.FileInfo{}, &boltfs.StorageError{Op: "stat", Path: p, Err: boltfs.ErrNotFound}
}

func (f *FakeAdapter) Ping(ctx context.Context) error { return f.PingErr }

func (f *FakeAdapter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func childName(key, prefix string) (string, bool) {
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	rest := key[len(prefix):]
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

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
var _ boltfs.Adapter = (*FakeAdapter)(nil)
