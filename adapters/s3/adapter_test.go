package s3

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chyke007/boltfs"
)

const testBucket = "workspace-bucket"

func fakeS3(t *testing.T) *httptest.Server {
	t.Helper()

	backend := s3mem.New()
	require.NoError(t, backend.CreateBucket(testBucket))

	ts := httptest.NewServer(gofakes3.New(backend).Server())
	t.Cleanup(ts.Close)
	return ts
}

func fakeConfig(endpoint string) *boltfs.Config {
	cfg := boltfs.DefaultConfig()
	cfg.Bucket = testBucket
	cfg.Region = "us-east-1"
	cfg.Endpoint = endpoint
	cfg.UsePathStyle = true
	cfg.AccessKey = "test-access"
	cfg.SecretKey = "test-secret"
	cfg.WorkspaceID = "ws-test"
	cfg.MaxRetries = 1
	cfg.RequestTimeout = 5 * time.Second
	cfg.BackoffInitial = 10 * time.Millisecond
	cfg.BackoffMax = 50 * time.Millisecond
	return cfg
}

func connectedAdapter(t *testing.T) *Adapter {
	t.Helper()

	ts := fakeS3(t)
	a := New(fakeConfig(ts.URL))
	require.NoError(t, a.Connect(context.Background()))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestConnectWithoutCredentials(t *testing.T) {
	cfg := boltfs.DefaultConfig()
	cfg.Bucket = testBucket

	a := New(cfg)
	err := a.Connect(context.Background())
	assert.ErrorIs(t, err, boltfs.ErrMissingCredential)
}

func TestConnectToUnreachableEndpoint(t *testing.T) {
	ts := fakeS3(t)
	endpoint := ts.URL
	ts.Close()

	a := New(fakeConfig(endpoint))
	err := a.Connect(context.Background())
	assert.ErrorIs(t, err, boltfs.ErrConnection)
}

func TestKind(t *testing.T) {
	a := New(boltfs.DefaultConfig())
	assert.Equal(t, boltfs.ProviderRemoteCloud, a.Kind())
}

func TestReadWriteRoundTrip(t *testing.T) {
	a := connectedAdapter(t)
	ctx := context.Background()

	content := []byte("remote content\nsecond line\n")
	require.NoError(t, a.WriteFile(ctx, "/docs/readme.txt", content))

	got, err := a.ReadFile(ctx, "/docs/readme.txt")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestWriteFileLargeBodyMultipartRoundTrip(t *testing.T) {
	a := connectedAdapter(t)
	ctx := context.Background()

	// Three parts: two full-size and one remainder. The modulus is
	// prime so a dropped or reordered part cannot reproduce the
	// original byte sequence.
	content := make([]byte, multipartThreshold+3*(1<<20))
	for i := range content {
		content[i] = byte(i % 251)
	}

	require.NoError(t, a.WriteFile(ctx, "/assets/archive.bin", content))

	got, err := a.ReadFile(ctx, "/assets/archive.bin")
	require.NoError(t, err)
	require.Equal(t, len(content), len(got))
	assert.Equal(t, content, got)

	info, err := a.Stat(ctx, "/assets/archive.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), info.Size)
}

func TestReadMissingFile(t *testing.T) {
	a := connectedAdapter(t)

	_, err := a.ReadFile(context.Background(), "/absent.txt")
	assert.True(t, boltfs.IsNotFound(err))
}

func TestReaddirDelimitedListing(t *testing.T) {
	a := connectedAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.WriteFile(ctx, "/proj/a.txt", []byte("a")))
	require.NoError(t, a.WriteFile(ctx, "/proj/sub/b.txt", []byte("b")))
	require.NoError(t, a.WriteFile(ctx, "/elsewhere.txt", []byte("e")))

	entries, err := a.Readdir(ctx, "/proj")
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.False(t, entries[0].IsDir)
	assert.Equal(t, "sub", entries[1].Name)
	assert.True(t, entries[1].IsDir)
}

func TestReaddirMissingDirectory(t *testing.T) {
	a := connectedAdapter(t)

	_, err := a.Readdir(context.Background(), "/no-such-dir")
	assert.True(t, boltfs.IsNotFound(err))
}

func TestMkdirSemantics(t *testing.T) {
	a := connectedAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Mkdir(ctx, "/made", true))
	require.NoError(t, a.Mkdir(ctx, "/made", true), "recursive mkdir is idempotent")

	err := a.Mkdir(ctx, "/made", false)
	assert.ErrorIs(t, err, boltfs.ErrExists)

	exists, err := a.Exists(ctx, "/made")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDeleteFileSemantics(t *testing.T) {
	a := connectedAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.WriteFile(ctx, "/victim.txt", []byte("v")))
	require.NoError(t, a.DeleteFile(ctx, "/victim.txt"))

	err := a.DeleteFile(ctx, "/victim.txt")
	assert.True(t, boltfs.IsNotFound(err), "second delete must surface not-found")
}

func TestDeleteDirectorySemantics(t *testing.T) {
	a := connectedAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.WriteFile(ctx, "/dir/one.txt", []byte("1")))
	require.NoError(t, a.WriteFile(ctx, "/dir/deep/two.txt", []byte("2")))

	err := a.DeleteDirectory(ctx, "/dir", false)
	assert.True(t, boltfs.IsNotEmpty(err))

	require.NoError(t, a.DeleteDirectory(ctx, "/dir", true))

	for _, p := range []string{"/dir/one.txt", "/dir/deep/two.txt", "/dir"} {
		exists, err := a.Exists(ctx, p)
		require.NoError(t, err)
		assert.False(t, exists, "expected %s to be gone", p)
	}
}

func TestStatFileAndDirectory(t *testing.T) {
	a := connectedAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.WriteFile(ctx, "/s/file.txt", []byte("12345")))

	info, err := a.Stat(ctx, "/s/file.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.False(t, info.IsDir)
	assert.False(t, info.IsBinary)

	dir, err := a.Stat(ctx, "/s")
	require.NoError(t, err)
	assert.True(t, dir.IsDir)

	_, err = a.Stat(ctx, "/nothing-here")
	assert.True(t, boltfs.IsNotFound(err))
}

func TestWorkspaceIsolation(t *testing.T) {
	ts := fakeS3(t)
	ctx := context.Background()

	first := New(fakeConfig(ts.URL))
	require.NoError(t, first.Connect(ctx))
	defer first.Close()

	otherCfg := fakeConfig(ts.URL)
	otherCfg.WorkspaceID = "ws-other"
	second := New(otherCfg)
	require.NoError(t, second.Connect(ctx))
	defer second.Close()

	require.NoError(t, first.WriteFile(ctx, "/shared-name.txt", []byte("mine")))

	exists, err := second.Exists(ctx, "/shared-name.txt")
	require.NoError(t, err)
	assert.False(t, exists, "workspaces must not see each other's keys")
}

func TestPing(t *testing.T) {
	a := connectedAdapter(t)
	assert.NoError(t, a.Ping(context.Background()))

	a.unhealthy.Store(true)
	err := a.Ping(context.Background())
	assert.ErrorIs(t, err, boltfs.ErrProtocol)
}

func TestOperationsBeforeConnect(t *testing.T) {
	a := New(fakeConfig("http://127.0.0.1:1"))

	_, err := a.ReadFile(context.Background(), "/x")
	assert.ErrorIs(t, err, boltfs.ErrNotInitialized)
}

func TestLooksBinaryContentType(t *testing.T) {
	cases := []struct {
		contentType string
		binary      bool
	}{
		{"text/plain; charset=utf-8", false},
		{"application/json", false},
		{"", false},
		{"application/octet-stream", true},
		{"image/png", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.binary, looksBinaryContentType(tc.contentType), "content type %q", tc.contentType)
	}
}
