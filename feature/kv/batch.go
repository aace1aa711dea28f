package kv

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Apply reconciles every manifest entry, at most Concurrency at a time.
// Entry failures are reported in the results and never stop the batch; the
// returned error is only for a manifest that fails validation.
func (s *Service) Apply(ctx context.Context, m *Manifest) (*BatchResult, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	reqs := m.Requests()
	results := make([]Result, len(reqs))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			results[i], _ = s.Reconcile(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchResult{Results: results, Summary: Summary{Total: len(results)}}
	for _, r := range results {
		switch {
		case !r.Success:
			batch.Summary.Failed++
		case r.Changed:
			batch.Summary.Changed++
		default:
			batch.Summary.Unchanged++
		}
	}

	s.logger.Info("Manifest applied",
		zap.Int("total", batch.Summary.Total),
		zap.Int("changed", batch.Summary.Changed),
		zap.Int("unchanged", batch.Summary.Unchanged),
		zap.Int("failed", batch.Summary.Failed),
	)
	return batch, nil
}
