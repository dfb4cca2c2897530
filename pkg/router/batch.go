package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/waddlebot/core/pkg/envelope"
)

// MaxBatchSize bounds the batch ingest endpoint, per spec.md §4.2: "The
// router exposes a batch ingest accepting <=100 events per call."
const MaxBatchSize = 100

// ErrBatchTooLarge is returned when a caller exceeds MaxBatchSize.
var ErrBatchTooLarge = fmt.Errorf("router: batch exceeds %d events", MaxBatchSize)

// ProcessBatch runs ProcessEvent over envs concurrently, bounded by the
// Router's configured MaxConcurrent, per spec.md §4.2: "Processing is
// concurrent internally." Results preserve the input order.
func (r *Router) ProcessBatch(ctx context.Context, envs []*envelope.Envelope) ([]Result, error) {
	if len(envs) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}

	results := make([]Result, len(envs))
	sem := make(chan struct{}, r.cfg.MaxConcurrent)
	var wg sync.WaitGroup

	for i, env := range envs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, env *envelope.Envelope) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = r.ProcessEvent(ctx, env)
		}(i, env)
	}
	wg.Wait()

	return results, nil
}
