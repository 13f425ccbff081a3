// Package boltfs provides a dependency-injectable workspace file store
// with interchangeable providers and a unified text search layer.
//
// The package is designed to be imported from the module root:
//
//	import "github.com/chyke007/boltfs"
//
// A Manager fronts a priority-ordered fallback chain of providers
// (remote-cloud, embedded-runtime, local) and selects the first one
// that connects within the configured timeout. The chain terminates in
// the local in-memory provider, which never fails, so initialization
// always reaches a usable store. Concrete providers live under
// adapters/ and are opted in explicitly, either through their fx
// modules or by constructing the chain by hand:
//
//	chain := []boltfs.Adapter{s3.New(cfg), runtime.New(cfg), local.New()}
//	mgr, err := boltfs.NewManager(cfg, chain)
//
// A Searcher runs text queries over whichever provider is active,
// using the provider's native search primitive when it offers one and
// a walk-based scan otherwise.
package boltfs
