package bootstrap

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Seeder prepares reference data or storage layout before the bot starts.
type Seeder interface {
	Seed(ctx context.Context) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc func(ctx context.Context) error

// Seed executes the underlying function.
func (f SeederFunc) Seed(ctx context.Context) error {
	return f(ctx)
}

// RunSeeders runs every seeder concurrently and returns the first error.
// The shared context is cancelled as soon as one seeder fails.
func RunSeeders(ctx context.Context, seeders ...Seeder) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range seeders {
		if s == nil {
			continue
		}
		g.Go(func() error { return s.Seed(ctx) })
	}
	return g.Wait()
}
