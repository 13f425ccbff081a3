package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/chyke007/boltfs"
	"github.com/gostratum/core/logx"
)

// deleteBatchSize is the S3 DeleteObjects request limit
const deleteBatchSize = 1000

// Adapter is the remote-cloud provider. All keys live under the
// session's workspace prefix, so one bucket serves many workspaces.
type Adapter struct {
	cfg    *boltfs.Config
	logger logx.Logger

	mu      sync.RWMutex
	session *Session

	// unhealthy is set on protocol violations so health checks keep
	// failing even while a partial session object exists.
	unhealthy atomic.Bool
}

// New creates a remote adapter. The session is established in Connect.
func New(cfg *boltfs.Config, options ...boltfs.Option) *Adapter {
	opts := boltfs.BuildOptions(options...)
	return &Adapter{
		cfg:    cfg,
		logger: opts.GetLogger(),
	}
}

// Kind returns the provider kind
func (a *Adapter) Kind() boltfs.ProviderKind { return boltfs.ProviderRemoteCloud }

// Connect establishes the workspace session. Absent credentials skip
// the attempt entirely; a malformed validation response marks the
// adapter unhealthy while keeping the partial session around.
func (a *Adapter) Connect(ctx context.Context) error {
	if !a.cfg.HasRemoteCredentials() {
		return &boltfs.StorageError{Op: "connect", Err: fmt.Errorf("%w: access key and secret key not configured", boltfs.ErrMissingCredential)}
	}

	a.unhealthy.Store(false)

	session, err := NewSession(ctx, a.cfg, a.logger)
	if err != nil {
		mapped := mapConnectError(err)
		if errors.Is(mapped, boltfs.ErrProtocol) {
			a.unhealthy.Store(true)
			a.setSession(session)
		}
		return mapped
	}

	a.setSession(session)
	return nil
}

func (a *Adapter) setSession(s *Session) {
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
}

func (a *Adapter) getSession() (*Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return nil, &boltfs.StorageError{Op: "session", Err: boltfs.ErrNotInitialized}
	}
	return a.session, nil
}

// keyFor maps an absolute path to its workspace-scoped object key
func (s *Session) keyFor(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" {
		return s.workspace
	}
	return s.workspace + "/" + p
}

// prefixFor maps a directory path to its listing prefix
func (s *Session) prefixFor(p string) string {
	return s.keyFor(p) + "/"
}

// ReadFile fetches the object and verifies the body against the
// declared content length. A short or overlong body is a protocol
// violation and flips the adapter unhealthy.
func (a *Adapter) ReadFile(ctx context.Context, p string) ([]byte, error) {
	session, err := a.getSession()
	if err != nil {
		return nil, err
	}

	out, err := session.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(session.keyFor(p)),
	})
	if err != nil {
		return nil, mapError(err, "read_file", p)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		a.unhealthy.Store(true)
		return nil, &boltfs.StorageError{Op: "read_file", Path: p, Err: fmt.Errorf("%w: truncated body: %v", boltfs.ErrProtocol, err)}
	}

	if out.ContentLength != nil && int64(len(data)) != *out.ContentLength {
		a.unhealthy.Store(true)
		return nil, &boltfs.StorageError{Op: "read_file", Path: p,
			Err: fmt.Errorf("%w: body length %d does not match declared %d", boltfs.ErrProtocol, len(data), *out.ContentLength)}
	}

	return data, nil
}

// WriteFile stores content as one object. Parent directories are
// implicit in the key space, so nothing needs materializing. Bodies at
// or above the multipart threshold go through a chunked upload instead
// of a single PutObject.
func (a *Adapter) WriteFile(ctx context.Context, p string, content []byte) error {
	session, err := a.getSession()
	if err != nil {
		return err
	}

	if len(content) >= multipartThreshold {
		return a.writeMultipart(ctx, session, p, content)
	}

	contentType := http.DetectContentType(content)
	_, err = session.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(session.keyFor(p)),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	return mapError(err, "write_file", p)
}

// Readdir lists the immediate children of path using a delimited
// listing: common prefixes become directories, objects become files.
func (a *Adapter) Readdir(ctx context.Context, p string) ([]boltfs.DirEntry, error) {
	session, err := a.getSession()
	if err != nil {
		return nil, err
	}

	prefix := session.prefixFor(p)
	paginator := awss3.NewListObjectsV2Paginator(session.client, &awss3.ListObjectsV2Input{
		Bucket:    aws.String(a.cfg.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var entries []boltfs.DirEntry
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapError(err, "readdir", p)
		}

		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name != "" {
				entries = append(entries, boltfs.DirEntry{Name: name, IsDir: true})
			}
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			entries = append(entries, boltfs.DirEntry{Name: name, IsDir: false})
		}
	}

	if len(entries) == 0 && path.Clean("/"+p) != "/" {
		if ok, err := a.dirExists(ctx, session, p); err != nil {
			return nil, err
		} else if !ok {
			return nil, &boltfs.StorageError{Op: "readdir", Path: p, Err: boltfs.ErrNotFound}
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Mkdir writes a zero-byte directory marker. Intermediate segments are
// implicit in the key space, so recursive and plain creation differ
// only in how an existing directory is treated.
func (a *Adapter) Mkdir(ctx context.Context, p string, recursive bool) error {
	session, err := a.getSession()
	if err != nil {
		return err
	}

	exists, err := a.dirExists(ctx, session, p)
	if err != nil {
		return err
	}
	if exists {
		if recursive {
			return nil
		}
		return &boltfs.StorageError{Op: "mkdir", Path: p, Err: boltfs.ErrExists}
	}

	_, err = session.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(session.prefixFor(p)),
		Body:   bytes.NewReader(nil),
	})
	return mapError(err, "mkdir", p)
}

// DeleteFile removes a single object, surfacing ErrNotFound for a
// missing key since S3 deletes are silently idempotent.
func (a *Adapter) DeleteFile(ctx context.Context, p string) error {
	session, err := a.getSession()
	if err != nil {
		return err
	}

	key := session.keyFor(p)
	if _, err := session.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		return mapError(err, "delete_file", p)
	}

	_, err = session.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(key),
	})
	return mapError(err, "delete_file", p)
}

// DeleteDirectory removes the marker and, when recursive, every
// descendant under the prefix.
func (a *Adapter) DeleteDirectory(ctx context.Context, p string, recursive bool) error {
	session, err := a.getSession()
	if err != nil {
		return err
	}

	prefix := session.prefixFor(p)
	paginator := awss3.NewListObjectsV2Paginator(session.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(a.cfg.Bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	hasChildren := false
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return mapError(err, "delete_directory", p)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			keys = append(keys, key)
			if key != prefix {
				hasChildren = true
			}
		}
	}

	if len(keys) == 0 {
		return &boltfs.StorageError{Op: "delete_directory", Path: p, Err: boltfs.ErrNotFound}
	}
	if hasChildren && !recursive {
		return &boltfs.StorageError{Op: "delete_directory", Path: p, Err: boltfs.ErrNotEmpty}
	}

	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}

		identifiers := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			identifiers = append(identifiers, types.ObjectIdentifier{Key: aws.String(key)})
		}

		if _, err := session.client.DeleteObjects(ctx, &awss3.DeleteObjectsInput{
			Bucket: aws.String(a.cfg.Bucket),
			Delete: &types.Delete{Objects: identifiers, Quiet: aws.Bool(true)},
		}); err != nil {
			return mapError(err, "delete_directory", p)
		}
	}
	return nil
}

// Exists reports whether a file object, directory marker, or implicit
// directory prefix exists at path.
func (a *Adapter) Exists(ctx context.Context, p string) (bool, error) {
	session, err := a.getSession()
	if err != nil {
		return false, err
	}

	if _, err := session.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(session.keyFor(p)),
	}); err == nil {
		return true, nil
	} else if mapped := mapError(err, "exists", p); !boltfs.IsNotFound(mapped) {
		return false, mapped
	}

	return a.dirExists(ctx, session, p)
}

// dirExists checks for a marker object or any object under the prefix
func (a *Adapter) dirExists(ctx context.Context, session *Session, p string) (bool, error) {
	if path.Clean("/"+p) == "/" {
		return true, nil
	}

	out, err := session.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket:  aws.String(a.cfg.Bucket),
		Prefix:  aws.String(session.prefixFor(p)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, mapError(err, "exists", p)
	}
	return len(out.Contents) > 0, nil
}

// Stat returns metadata for the node at path
func (a *Adapter) Stat(ctx context.Context, p string) (boltfs.FileInfo, error) {
	session, err := a.getSession()
	if err != nil {
		return boltfs.FileInfo{}, err
	}

	clean := path.Clean("/" + p)
	out, err := session.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(session.keyFor(p)),
	})
	if err == nil {
		return boltfs.FileInfo{
			Path:         clean,
			Size:         aws.ToInt64(out.ContentLength),
			IsBinary:     looksBinaryContentType(aws.ToString(out.ContentType)),
			LastModified: aws.ToTime(out.LastModified),
		}, nil
	}
	if mapped := mapError(err, "stat", p); !boltfs.IsNotFound(mapped) {
		return boltfs.FileInfo{}, mapped
	}

	if ok, err := a.dirExists(ctx, session, p); err != nil {
		return boltfs.FileInfo{}, err
	} else if ok {
		return boltfs.FileInfo{Path: clean, IsDir: true}, nil
	}

	return boltfs.FileInfo{}, &boltfs.StorageError{Op: "stat", Path: p, Err: boltfs.ErrNotFound}
}

// Ping issues a one-key listing against the workspace prefix. A
// protocol-violation flag short-circuits it to a failure.
func (a *Adapter) Ping(ctx context.Context) error {
	if a.unhealthy.Load() {
		return &boltfs.StorageError{Op: "ping", Err: fmt.Errorf("%w: provider marked unhealthy", boltfs.ErrProtocol)}
	}

	session, err := a.getSession()
	if err != nil {
		return err
	}

	_, err = session.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket:  aws.String(a.cfg.Bucket),
		Prefix:  aws.String(session.workspace + "/"),
		MaxKeys: aws.Int32(1),
	})
	return mapError(err, "ping", "")
}

// Close drops the session. The SDK client needs no explicit cleanup.
func (a *Adapter) Close() error {
	a.setSession(nil)
	a.unhealthy.Store(false)
	return nil
}

// looksBinaryContentType is a coarse text/binary split on the stored
// content type. Unknown types count as text so search stays usable.
func looksBinaryContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType := contentType
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))

	if strings.HasPrefix(mediaType, "text/") {
		return false
	}
	switch mediaType {
	case "", "application/json", "application/xml", "application/javascript", "application/x-yaml":
		return false
	}
	return true
}

// Verify interface implementation
var _ boltfs.Adapter = (*Adapter)(nil)
