package local

import (
	"github.com/chyke007/boltfs"
	"github.com/gostratum/core/logx"
	"go.uber.org/fx"
)

// Module contributes the local adapter to the manager's fallback chain.
// It belongs in every chain: it is the terminal provider that makes
// initialization infallible.
func Module() fx.Option {
	return fx.Module("boltfs-local",
		boltfs.AsAdapter(newAdapter),
	)
}

// AdapterParams defines the parameters for local adapter creation
type AdapterParams struct {
	fx.In

	Logger logx.Logger `optional:"true"`
}

func newAdapter(params AdapterParams) boltfs.Adapter {
	var opts []boltfs.Option
	if params.Logger != nil {
		opts = append(opts, boltfs.WithLogger(params.Logger))
	}
	return New(opts...)
}
