package sacct

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/zhaobenny/slurmusage/cli/internal/daterange"
	"github.com/zhaobenny/slurmusage/internal/model"
	"github.com/zhaobenny/slurmusage/internal/parser"
)

// CollectOptions bounds the per-user fan-out
type CollectOptions struct {
	Parallel         int     // Concurrent queries, <= 0 means one at a time
	QueriesPerSecond float64 // Query start rate, <= 0 means unlimited
}

// Collect fetches the accounting lines of every user and parses them.
// Queries run concurrently; parsing starts only after all of them
// succeeded. The first failure cancels the outstanding queries and no
// records are returned.
func Collect(ctx context.Context, src Source, users []string, r daterange.Range, opts CollectOptions, logger *zap.Logger) ([]model.JobRecord, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if opts.QueriesPerSecond > 0 {
		limit = rate.Limit(opts.QueriesPerSecond)
	}
	limiter := rate.NewLimiter(limit, 1)

	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = 1
	}

	outputs := make([]string, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, user := range users {
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return errors.Wrapf(err, "waiting to query user %s", user)
			}
			text, err := src.Fetch(gctx, user, r)
			if err != nil {
				return err
			}
			outputs[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []model.JobRecord
	for i, user := range users {
		parsed, err := parser.ParseText(outputs[i])
		if err != nil {
			return nil, errors.Wrapf(err, "parsing accounting data for user %s", user)
		}
		logger.Debug("parsed accounting data", zap.String("user", user), zap.Int("jobs", len(parsed)))
		records = append(records, parsed...)
	}
	return records, nil
}
