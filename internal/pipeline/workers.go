package pipeline

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/fuelmx/pipa/internal/aggregate"
	"github.com/fuelmx/pipa/internal/filter"
	"github.com/fuelmx/pipa/internal/geography"
	"github.com/fuelmx/pipa/internal/model"
	"github.com/fuelmx/pipa/internal/normalize"
)

// chunk is a half-open index range [start, end) over the record slice.
type chunk struct {
	start int
	end   int
}

// splitChunks divides n items into at most `workers` contiguous ranges.
// Contiguity keeps every stage's output in input order regardless of
// scheduling, which is what makes parallel runs reproduce sequential ones.
func splitChunks(n, workers int) []chunk {
	if n == 0 {
		return nil
	}
	if workers > n {
		workers = n
	}
	size := (n + workers - 1) / workers
	chunks := make([]chunk, 0, workers)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		chunks = append(chunks, chunk{start: start, end: end})
	}
	return chunks
}

// normalizeAll runs normalization and geography resolution over the records,
// preserving input order. Each worker writes only its own index range.
func (p *Pipeline) normalizeAll(ctx context.Context, normalizer *normalize.Normalizer, resolver *geography.Resolver, records []model.RawStationRecord, bar *progressbar.ProgressBar) ([]model.CleanedObservation, error) {
	observations := make([]model.CleanedObservation, len(records))

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range splitChunks(len(records), p.config.Workers) {
		g.Go(func() error {
			for i := c.start; i < c.end; i++ {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				obs := normalizer.Normalize(records[i])
				obs = resolver.Resolve(obs)
				observations[i] = obs
				if bar != nil {
					_ = bar.Add(1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("normalization failed: %w", err)
	}
	return observations, nil
}

// aggregateAll applies the fitted filter and accumulates buckets. Each worker
// owns a private accumulator set; the sets are merged in worker order and
// finalized once, so the result is identical to a sequential pass.
func (p *Pipeline) aggregateAll(ctx context.Context, screen *filter.Filter, observations []model.CleanedObservation) ([]model.AggregateBucket, error) {
	engine := aggregate.New(p.config.Periods)

	chunks := splitChunks(len(observations), p.config.Workers)
	partials := make([]aggregate.Accumulators, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	for ci, c := range chunks {
		g.Go(func() error {
			acc := engine.NewAccumulators()
			for i := c.start; i < c.end; i++ {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				observations[i] = screen.Apply(observations[i])
				engine.Add(acc, &observations[i])
			}
			partials[ci] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregation failed: %w", err)
	}

	merged := engine.NewAccumulators()
	for _, acc := range partials {
		aggregate.Merge(merged, acc)
	}
	return engine.Finalize(merged)
}
