package boltfs

import (
	"context"
	"fmt"
	"sort"

	"github.com/gostratum/core/configx"
	"github.com/gostratum/core/logx"
	"github.com/gostratum/metricsx"
	"github.com/gostratum/tracingx"
	"go.uber.org/fx"
)

// AdapterGroup is the fx value group that adapter modules contribute to.
// The manager sorts collected adapters into the fixed priority chain, so
// inclusion order of adapter modules does not matter.
const AdapterGroup = "boltfs_adapters"

// Module provides the boltfs manager and searcher for fx. The base
// module carries configuration, observability, and lifecycle but no
// providers. Include adapter modules to populate the fallback chain:
//
//	app := fx.New(
//	    boltfs.Module(),
//	    s3.Module(),      // remote-cloud provider
//	    runtime.Module(), // embedded-runtime provider
//	    local.Module(),   // terminal never-failing provider
//	    fx.Invoke(func(storage boltfs.Storage) {
//	        // Use storage...
//	    }),
//	)
func Module() fx.Option {
	return fx.Module("boltfs",
		fx.Provide(
			NewConfig,
			NewObservabilityInstrumenter,
			provideManager,
			provideSearcher,
			func(m *Manager) Storage { return m },
		),
		fx.Invoke(registerLifecycle),
	)
}

// ModuleWithConfig is Module with a fixed configuration instead of the
// configx loader. Useful for tests and for applications that assemble
// configuration themselves.
func ModuleWithConfig(cfg *Config) fx.Option {
	return fx.Module("boltfs",
		fx.Supply(cfg),
		fx.Provide(
			NewObservabilityInstrumenter,
			provideManager,
			provideSearcher,
			func(m *Manager) Storage { return m },
		),
		fx.Invoke(registerLifecycle),
	)
}

// AsAdapter annotates an adapter constructor so its result joins the
// manager's fallback chain. Adapter modules use this to register
// themselves.
func AsAdapter(constructor any) fx.Option {
	return fx.Provide(fx.Annotated{
		Group:  AdapterGroup,
		Target: constructor,
	})
}

// NewConfig creates a new configuration from the configx loader
func NewConfig(loader configx.Loader) (*Config, error) {
	cfg := DefaultConfig()
	if err := loader.Bind(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg = cfg.Normalize()
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ObservabilityDeps defines optional observability dependencies
type ObservabilityDeps struct {
	fx.In

	Metrics metricsx.Metrics `optional:"true"`
	Tracer  tracingx.Tracer  `optional:"true"`
}

// NewObservabilityInstrumenter creates an instrumenter for storage and
// search operations.
func NewObservabilityInstrumenter(deps ObservabilityDeps) *Instrumenter {
	return NewInstrumenter(deps.Metrics, deps.Tracer)
}

// ManagerParams defines the parameters needed for manager creation
type ManagerParams struct {
	fx.In

	Config       *Config
	Adapters     []Adapter     `group:"boltfs_adapters"`
	Logger       logx.Logger   `optional:"true"`
	Instrumenter *Instrumenter `optional:"true"`
}

func provideManager(params ManagerParams) (*Manager, error) {
	chain := sortChain(params.Adapters)

	var opts []Option
	if params.Logger != nil {
		opts = append(opts, WithLogger(params.Logger))
	}
	if params.Instrumenter != nil {
		opts = append(opts, WithInstrumenter(params.Instrumenter))
	}

	return NewManager(params.Config, chain, opts...)
}

// SearcherParams defines the parameters needed for searcher creation
type SearcherParams struct {
	fx.In

	Manager      *Manager
	Logger       logx.Logger   `optional:"true"`
	Instrumenter *Instrumenter `optional:"true"`
}

func provideSearcher(params SearcherParams) *Searcher {
	var opts []Option
	if params.Logger != nil {
		opts = append(opts, WithLogger(params.Logger))
	}
	if params.Instrumenter != nil {
		opts = append(opts, WithInstrumenter(params.Instrumenter))
	}
	return NewSearcher(params.Manager, opts...)
}

// sortChain orders adapters by the fixed provider priority, remote-cloud
// first and local last. Unknown kinds sort after the known chain.
func sortChain(adapters []Adapter) []Adapter {
	chain := make([]Adapter, len(adapters))
	copy(chain, adapters)
	sort.SliceStable(chain, func(i, j int) bool {
		return chainPriority(chain[i].Kind()) < chainPriority(chain[j].Kind())
	})
	return chain
}

func chainPriority(kind ProviderKind) int {
	switch kind {
	case ProviderRemoteCloud:
		return 0
	case ProviderEmbeddedRuntime:
		return 1
	case ProviderLocal:
		return 2
	default:
		return 3
	}
}

// LifecycleParams defines parameters for lifecycle management
type LifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Manager   *Manager
	Logger    logx.Logger `optional:"true"`
}

// registerLifecycle runs fallback initialization on start and releases
// all adapter sessions on stop.
func registerLifecycle(params LifecycleParams) {
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := params.Manager.Initialize(ctx); err != nil {
				return err
			}
			if params.Logger != nil {
				params.Logger.Info("Boltfs started",
					ArgsToFields("provider", params.Manager.Provider())...)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := params.Manager.Close(); err != nil {
				if params.Logger != nil {
					params.Logger.Error("Error closing storage", ArgsToFields("error", err)...)
				}
				return err
			}
			if params.Logger != nil {
				params.Logger.Info("Boltfs stopped")
			}
			return nil
		},
	})
}
