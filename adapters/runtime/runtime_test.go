package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/chyke007/boltfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *boltfs.Config {
	cfg := boltfs.DefaultConfig()
	cfg.RuntimeEnabled = true
	return cfg
}

func connected(t *testing.T) *Adapter {
	t.Helper()
	a := New(testConfig())
	require.NoError(t, a.Connect(context.Background()))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestConnectDisabledRuntime(t *testing.T) {
	cfg := testConfig()
	cfg.RuntimeEnabled = false

	a := New(cfg)
	err := a.Connect(context.Background())
	assert.ErrorIs(t, err, boltfs.ErrConnection)
}

func TestKind(t *testing.T) {
	a := New(testConfig())
	assert.Equal(t, boltfs.ProviderEmbeddedRuntime, a.Kind())
}

func TestRoundTripThroughStore(t *testing.T) {
	a := connected(t)
	ctx := context.Background()

	content := []byte("alpha beta\ngamma\n")
	require.NoError(t, a.WriteFile(ctx, "/notes.txt", content))

	got, err := a.ReadFile(ctx, "/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestNativeSearchFindsWrittenFile(t *testing.T) {
	a := connected(t)
	ctx := context.Background()

	require.NoError(t, a.WriteFile(ctx, "/src/app.go", []byte("package app\n\nvar sentinel = 42\n")))

	var batches map[string][]boltfs.RawMatch
	err := a.NativeSearch(ctx, "sentinel", boltfs.SearchOptions{}, func(p string, raw []boltfs.RawMatch) error {
		if batches == nil {
			batches = make(map[string][]boltfs.RawMatch)
		}
		batches[p] = raw
		return nil
	})
	require.NoError(t, err)

	raw, ok := batches["/src/app.go"]
	require.True(t, ok, "expected a batch for /src/app.go")
	require.Len(t, raw, 1)

	assert.Equal(t, 3, raw[0].Line)
	assert.Equal(t, 4, raw[0].StartCol)
	assert.Equal(t, 12, raw[0].EndCol)
	assert.Equal(t, 2, raw[0].PreviewStartLine, "preview should start one line before the match")
	assert.Equal(t, "\nvar sentinel = 42", raw[0].Preview)
}

func TestNativeSearchSubstringAcrossTokens(t *testing.T) {
	a := connected(t)
	ctx := context.Background()

	// "rom B" spans the token boundary between "from" and "Bolt", so a
	// token-based index lookup would return nothing. Substring queries
	// must not depend on the index for candidate selection.
	require.NoError(t, a.WriteFile(ctx, "/greeting.txt", []byte("Hello from Bolt!")))

	var raws []boltfs.RawMatch
	err := a.NativeSearch(ctx, "rom B", boltfs.SearchOptions{}, func(p string, raw []boltfs.RawMatch) error {
		require.Equal(t, "/greeting.txt", p)
		raws = append(raws, raw...)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, raws, 1)
	assert.Equal(t, 1, raws[0].Line)
	assert.Equal(t, 7, raws[0].StartCol)
	assert.Equal(t, 12, raws[0].EndCol)
}

func TestNativeSearchSubstringInsideToken(t *testing.T) {
	a := connected(t)
	ctx := context.Background()

	require.NoError(t, a.WriteFile(ctx, "/src/app.go", []byte("var sentinel = 42\n")))

	var paths []string
	err := a.NativeSearch(ctx, "entin", boltfs.SearchOptions{}, func(p string, raw []boltfs.RawMatch) error {
		paths = append(paths, p)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/app.go"}, paths)
}

func TestNativeSearchWholeWordUsesIndex(t *testing.T) {
	a := connected(t)
	ctx := context.Background()

	require.NoError(t, a.WriteFile(ctx, "/greeting.txt", []byte("Hello from Bolt!")))
	require.NoError(t, a.WriteFile(ctx, "/other.txt", []byte("nothing relevant\n")))

	var paths []string
	err := a.NativeSearch(ctx, "Bolt", boltfs.SearchOptions{WholeWord: true}, func(p string, raw []boltfs.RawMatch) error {
		paths = append(paths, p)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/greeting.txt"}, paths)
}

func TestNativeSearchRegexp(t *testing.T) {
	a := connected(t)
	ctx := context.Background()

	require.NoError(t, a.WriteFile(ctx, "/log.txt", []byte("error code 404\nall good\nerror code 500\n")))

	var lines []int
	err := a.NativeSearch(ctx, `error code \d+`, boltfs.SearchOptions{UseRegExp: true}, func(p string, raw []boltfs.RawMatch) error {
		for _, r := range raw {
			lines = append(lines, r.Line)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, lines)
}

func TestNativeSearchBadRegexp(t *testing.T) {
	a := connected(t)

	err := a.NativeSearch(context.Background(), "(unclosed", boltfs.SearchOptions{UseRegExp: true}, func(string, []boltfs.RawMatch) error {
		t.Fatal("no batches expected for an invalid pattern")
		return nil
	})
	assert.ErrorIs(t, err, boltfs.ErrBadPattern)
}

func TestNativeSearchExcludePattern(t *testing.T) {
	a := connected(t)
	ctx := context.Background()

	require.NoError(t, a.WriteFile(ctx, "/keep.txt", []byte("needle here\n")))
	require.NoError(t, a.WriteFile(ctx, "/skip.log", []byte("needle here too\n")))

	var paths []string
	err := a.NativeSearch(ctx, "needle", boltfs.SearchOptions{ExcludePattern: "*.log"}, func(p string, raw []boltfs.RawMatch) error {
		paths = append(paths, p)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/keep.txt"}, paths)
}

func TestNativeSearchMaxResults(t *testing.T) {
	a := connected(t)
	ctx := context.Background()

	require.NoError(t, a.WriteFile(ctx, "/many.txt", []byte("tok\ntok\ntok\ntok\n")))

	total := 0
	err := a.NativeSearch(ctx, "tok", boltfs.SearchOptions{MaxResults: 2}, func(p string, raw []boltfs.RawMatch) error {
		total += len(raw)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestDeletedFileLeavesIndex(t *testing.T) {
	a := connected(t)
	ctx := context.Background()

	require.NoError(t, a.WriteFile(ctx, "/gone.txt", []byte("ephemeral content\n")))
	require.NoError(t, a.DeleteFile(ctx, "/gone.txt"))

	err := a.NativeSearch(ctx, "ephemeral", boltfs.SearchOptions{}, func(p string, raw []boltfs.RawMatch) error {
		t.Fatalf("unexpected batch for deleted file %s", p)
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteDirectoryDropsDescendantsFromIndex(t *testing.T) {
	a := connected(t)
	ctx := context.Background()

	require.NoError(t, a.WriteFile(ctx, "/tmp/a.txt", []byte("transient alpha\n")))
	require.NoError(t, a.WriteFile(ctx, "/tmp/deep/b.txt", []byte("transient beta\n")))
	require.NoError(t, a.DeleteDirectory(ctx, "/tmp", true))

	err := a.NativeSearch(ctx, "transient", boltfs.SearchOptions{}, func(p string, raw []boltfs.RawMatch) error {
		t.Fatalf("unexpected batch for %s", p)
		return nil
	})
	require.NoError(t, err)
}

func TestNativeSearchBeforeConnect(t *testing.T) {
	a := New(testConfig())

	err := a.NativeSearch(context.Background(), "x", boltfs.SearchOptions{}, func(string, []boltfs.RawMatch) error {
		return nil
	})
	assert.ErrorIs(t, err, boltfs.ErrNotInitialized)
}

func TestNativeSearchCancellation(t *testing.T) {
	a := connected(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, a.WriteFile(context.Background(), "/c.txt", []byte("payload\n")))

	err := a.NativeSearch(ctx, "payload", boltfs.SearchOptions{}, func(string, []boltfs.RawMatch) error {
		return nil
	})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPingRequiresConnect(t *testing.T) {
	a := New(testConfig())
	assert.ErrorIs(t, a.Ping(context.Background()), boltfs.ErrNotInitialized)

	require.NoError(t, a.Connect(context.Background()))
	assert.NoError(t, a.Ping(context.Background()))

	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Ping(context.Background()), boltfs.ErrNotInitialized)
}
