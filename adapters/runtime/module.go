package runtime

import (
	"github.com/chyke007/boltfs"
	"github.com/gostratum/core/logx"
	"go.uber.org/fx"
)

// Module contributes the embedded-runtime adapter to the fallback chain
func Module() fx.Option {
	return fx.Module("boltfs-runtime",
		boltfs.AsAdapter(newAdapter),
	)
}

// AdapterParams defines the parameters for runtime adapter creation
type AdapterParams struct {
	fx.In

	Config *boltfs.Config
	Logger logx.Logger `optional:"true"`
}

func newAdapter(params AdapterParams) boltfs.Adapter {
	var opts []boltfs.Option
	if params.Logger != nil {
		opts = append(opts, boltfs.WithLogger(params.Logger))
	}
	return New(params.Config, opts...)
}
