package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/gostratum/core"
)

// healthCheck implements core.Check for the remote workspace session
type healthCheck struct {
	adapter *Adapter
}

func (h *healthCheck) Name() string { return "boltfs.s3" }

func (h *healthCheck) Kind() core.Kind { return core.Readiness }

func (h *healthCheck) Check(ctx context.Context) error {
	if h.adapter == nil {
		return fmt.Errorf("no remote adapter")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.adapter.Ping(ctx); err != nil {
		return fmt.Errorf("remote workspace ping failed: %w", err)
	}
	return nil
}
