package util

import (
	"context"

	"github.com/ash2k/stager/wait"
)

// ForEachLimited calls fn for every i in [0, n), each on its own goroutine,
// with at most limit calls running at once.  A limit of zero means no limit.
// Calls which have not started by the time ctx is done are skipped.  It
// returns once every started call has returned.
func ForEachLimited(ctx context.Context, n, limit int, fn func(ctx context.Context, i int)) {
	if limit <= 0 || limit > n {
		limit = n
	}
	sem := make(chan struct{}, limit)

	var wg wait.Group
	defer wg.Wait()

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case sem <- struct{}{}:
		}
		i := i
		wg.Start(func() {
			defer func() { <-sem }()
			fn(ctx, i)
		})
	}
}
