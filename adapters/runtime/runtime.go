// Package runtime implements the embedded-runtime provider: an
// in-process workspace store paired with an in-memory full-text index
// that backs a native search primitive. It sits between the
// remote-cloud provider and the terminal local provider in the chain.
package runtime

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/chyke007/boltfs"
	"github.com/chyke007/boltfs/adapters/local"
	"github.com/gostratum/core/logx"
)

// indexDocument is the shape stored per text file in the index
type indexDocument struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Adapter composes the in-memory store with a bleve index kept in sync
// on every mutation. The store handles the plain operation set; the
// index only serves candidate selection for NativeSearch.
type Adapter struct {
	cfg    *boltfs.Config
	logger logx.Logger
	store  *local.Adapter

	mu        sync.RWMutex
	index     bleve.Index
	indexed   map[string]struct{}
	connected bool
}

// New creates a runtime adapter. The store is usable immediately; the
// index is built during Connect.
func New(cfg *boltfs.Config, options ...boltfs.Option) *Adapter {
	opts := boltfs.BuildOptions(options...)

	return &Adapter{
		cfg:     cfg,
		logger:  opts.GetLogger(),
		store:   local.New(options...),
		indexed: make(map[string]struct{}),
	}
}

// Kind returns the provider kind
func (a *Adapter) Kind() boltfs.ProviderKind { return boltfs.ProviderEmbeddedRuntime }

// Connect boots the runtime: it builds a fresh in-memory index over the
// current store content. A disabled runtime or an index failure is a
// connection error, which sends the chain on to the next provider.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.cfg != nil && !a.cfg.RuntimeEnabled {
		return &boltfs.StorageError{Op: "connect", Err: fmt.Errorf("%w: runtime provider disabled", boltfs.ErrConnection)}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.index != nil {
		_ = a.index.Close()
		a.index = nil
		a.indexed = make(map[string]struct{})
	}

	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return &boltfs.StorageError{Op: "connect", Err: fmt.Errorf("%w: %v", boltfs.ErrConnection, err)}
	}

	a.index = idx
	a.connected = true

	if err := a.reindexLocked(ctx, "/"); err != nil {
		a.connected = false
		_ = a.index.Close()
		a.index = nil
		return &boltfs.StorageError{Op: "connect", Err: fmt.Errorf("%w: %v", boltfs.ErrConnection, err)}
	}
	return nil
}

// reindexLocked walks the store from dir and indexes every text file.
// Callers hold the write lock.
func (a *Adapter) reindexLocked(ctx context.Context, dir string) error {
	entries, err := a.store.Readdir(ctx, dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		child := path.Join(dir, entry.Name)
		if entry.IsDir {
			if err := a.reindexLocked(ctx, child); err != nil {
				return err
			}
			continue
		}

		content, err := a.store.ReadFile(ctx, child)
		if err != nil {
			return err
		}
		if err := a.indexLocked(child, content); err != nil {
			return err
		}
	}
	return nil
}

// indexLocked upserts one file in the index; binary content is dropped
// from the index rather than stored.
func (a *Adapter) indexLocked(p string, content []byte) error {
	if a.index == nil {
		return nil
	}

	if boltfs.IsBinaryContent(content) {
		return a.unindexLocked(p)
	}

	if err := a.index.Index(p, indexDocument{Path: p, Content: string(content)}); err != nil {
		return err
	}
	a.indexed[p] = struct{}{}
	return nil
}

func (a *Adapter) unindexLocked(p string) error {
	if a.index == nil {
		return nil
	}
	if _, ok := a.indexed[p]; !ok {
		return nil
	}
	if err := a.index.Delete(p); err != nil {
		return err
	}
	delete(a.indexed, p)
	return nil
}

// ReadFile returns the content of the file at path
func (a *Adapter) ReadFile(ctx context.Context, p string) ([]byte, error) {
	return a.store.ReadFile(ctx, p)
}

// WriteFile stores content and keeps the index in sync
func (a *Adapter) WriteFile(ctx context.Context, p string, content []byte) error {
	if err := a.store.WriteFile(ctx, p, content); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.indexLocked(normalize(p), content); err != nil {
		a.logger.Warn("Index update failed", boltfs.ArgsToFields("path", p, "error", err)...)
	}
	return nil
}

// Readdir returns the immediate children of path
func (a *Adapter) Readdir(ctx context.Context, p string) ([]boltfs.DirEntry, error) {
	return a.store.Readdir(ctx, p)
}

// Mkdir creates a directory
func (a *Adapter) Mkdir(ctx context.Context, p string, recursive bool) error {
	return a.store.Mkdir(ctx, p, recursive)
}

// DeleteFile removes a file and its index entry
func (a *Adapter) DeleteFile(ctx context.Context, p string) error {
	if err := a.store.DeleteFile(ctx, p); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.unindexLocked(normalize(p)); err != nil {
		a.logger.Warn("Index delete failed", boltfs.ArgsToFields("path", p, "error", err)...)
	}
	return nil
}

// DeleteDirectory removes a directory and drops every indexed
// descendant.
func (a *Adapter) DeleteDirectory(ctx context.Context, p string, recursive bool) error {
	if err := a.store.DeleteDirectory(ctx, p, recursive); err != nil {
		return err
	}

	prefix := normalize(p) + "/"
	a.mu.Lock()
	defer a.mu.Unlock()
	for indexed := range a.indexed {
		if strings.HasPrefix(indexed, prefix) {
			if err := a.unindexLocked(indexed); err != nil {
				a.logger.Warn("Index delete failed", boltfs.ArgsToFields("path", indexed, "error", err)...)
			}
		}
	}
	return nil
}

// Exists reports whether a node exists at path
func (a *Adapter) Exists(ctx context.Context, p string) (bool, error) {
	return a.store.Exists(ctx, p)
}

// Stat returns metadata for the node at path
func (a *Adapter) Stat(ctx context.Context, p string) (boltfs.FileInfo, error) {
	return a.store.Stat(ctx, p)
}

// Ping reports liveness of the runtime session
func (a *Adapter) Ping(ctx context.Context) error {
	a.mu.RLock()
	connected := a.connected
	a.mu.RUnlock()

	if !connected {
		return &boltfs.StorageError{Op: "ping", Err: boltfs.ErrNotInitialized}
	}
	return a.store.Ping(ctx)
}

// Close tears down the index; the store content survives for a later
// re-probe.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.connected = false
	a.indexed = make(map[string]struct{})
	if a.index != nil {
		err := a.index.Close()
		a.index = nil
		return err
	}
	return nil
}

func normalize(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// charSpan converts byte offsets within line to character offsets
func charSpan(line string, byteStart, byteEnd int) (int, int) {
	start := utf8.RuneCountInString(line[:byteStart])
	return start, start + utf8.RuneCountInString(line[byteStart:byteEnd])
}

// Verify interface implementations
var (
	_ boltfs.Adapter        = (*Adapter)(nil)
	_ boltfs.NativeSearcher = (*Adapter)(nil)
)
