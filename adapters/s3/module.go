package s3

import (
	"github.com/chyke007/boltfs"
	"github.com/gostratum/core"
	"github.com/gostratum/core/logx"
	"go.uber.org/fx"
)

// Module contributes the remote-cloud adapter to the fallback chain and
// registers a readiness check for it.
func Module() fx.Option {
	return fx.Module("boltfs-s3",
		fx.Provide(newAdapter),
		boltfs.AsAdapter(func(a *Adapter) boltfs.Adapter { return a }),
		fx.Provide(
			fx.Annotated{
				Target: func(a *Adapter) core.Check {
					return &healthCheck{adapter: a}
				},
				Group: "health_checkers",
			},
		),
	)
}

// AdapterParams defines the parameters for remote adapter creation
type AdapterParams struct {
	fx.In

	Config *boltfs.Config
	Logger logx.Logger `optional:"true"`
}

func newAdapter(params AdapterParams) *Adapter {
	var opts []boltfs.Option
	if params.Logger != nil {
		opts = append(opts, boltfs.WithLogger(params.Logger))
	}
	return New(params.Config, opts...)
}
