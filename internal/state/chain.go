package state

import (
	"context"
	"errors"

	"github.com/nerrad567/rfbridge/internal/device"
)

// Chain writes to every store and reads from the first that knows a path.
type Chain struct {
	stores []device.Store
	logger Logger
}

// NewChain orders reads by the order of stores.
func NewChain(logger Logger, stores ...device.Store) *Chain {
	return &Chain{stores: stores, logger: orNoop(logger)}
}

// Len returns the number of backends.
func (c *Chain) Len() int {
	return len(c.stores)
}

// Get returns the first known state. Backend read errors are logged and
// the next backend is tried.
func (c *Chain) Get(ctx context.Context, path string) (string, bool, error) {
	for _, s := range c.stores {
		state, ok, err := s.Get(ctx, path)
		if err != nil {
			c.logger.Warn("state backend read failed", "path", path, "error", err)
			continue
		}
		if ok {
			return state, true, nil
		}
	}
	return "", false, nil
}

// Set writes to every backend, even after a failure.
func (c *Chain) Set(ctx context.Context, path, state string) error {
	var errs []error
	for _, s := range c.stores {
		if err := s.Set(ctx, path, state); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
