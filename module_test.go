package boltfs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/chyke007/boltfs"
	"github.com/chyke007/boltfs/adapters/local"
	"github.com/chyke007/boltfs/internal/testutil"
)

func TestModuleLifecycleWithLocalAdapter(t *testing.T) {
	var storage boltfs.Storage
	var searcher *boltfs.Searcher

	app := fxtest.New(t,
		boltfs.ModuleWithConfig(testConfig()),
		local.Module(),
		fx.Invoke(func(s boltfs.Storage, sr *boltfs.Searcher) {
			storage = s
			searcher = sr
		}),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, storage)
	require.NotNil(t, searcher)
	assert.True(t, storage.IsReady(), "the lifecycle hook runs initialization on start")
	assert.Equal(t, boltfs.ProviderLocal, storage.Provider())

	ctx := context.Background()
	require.NoError(t, storage.WriteFile(ctx, "/hello.txt", []byte("hi")))
	got, err := storage.ReadFile(ctx, "/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), got)
}

func TestAdapterGroupOrderIsPriorityNotRegistration(t *testing.T) {
	// Adapters are registered local-first here; the chain must still
	// probe the embedded runtime first.
	var storage boltfs.Storage

	app := fxtest.New(t,
		boltfs.ModuleWithConfig(testConfig()),
		boltfs.AsAdapter(func() boltfs.Adapter {
			return testutil.NewFakeAdapter(boltfs.ProviderLocal)
		}),
		boltfs.AsAdapter(func() boltfs.Adapter {
			return testutil.NewFakeAdapter(boltfs.ProviderEmbeddedRuntime)
		}),
		fx.Invoke(func(s boltfs.Storage) { storage = s }),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.Equal(t, boltfs.ProviderEmbeddedRuntime, storage.Provider())
}
