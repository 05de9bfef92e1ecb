package realtime

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"
)

// Fanout writes to every sink concurrently and reports all failures.
type Fanout []Broadcaster

func (f Fanout) Set(ctx context.Context, key string, value any) error {
	return f.each(func(b Broadcaster) error { return b.Set(ctx, key, value) })
}

func (f Fanout) Remove(ctx context.Context, key string) error {
	return f.each(func(b Broadcaster) error { return b.Remove(ctx, key) })
}

func (f Fanout) each(op func(Broadcaster) error) error {
	switch len(f) {
	case 0:
		return nil
	case 1:
		return op(f[0])
	}
	p := pool.New().WithErrors()
	for _, b := range f {
		p.Go(func() error {
			if err := op(b); err != nil {
				return fmt.Errorf("%T: %w", b, err)
			}
			return nil
		})
	}
	return p.Wait()
}
