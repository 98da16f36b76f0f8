package schedule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zhaobenny/slurmusage/cli/internal/daterange"
	"github.com/zhaobenny/slurmusage/cli/internal/output"
	"github.com/zhaobenny/slurmusage/cli/internal/report"
	"github.com/zhaobenny/slurmusage/internal/pricing"
)

// Runner periodically writes the month-to-date report of a fixed set of
// users as CSV into a directory
type Runner struct {
	Generator *report.Generator
	Users     []string
	OutDir    string
	Cost      bool
	Rates     pricing.Rates
	Logger    *zap.Logger

	// Now defaults to time.Now
	Now func() time.Time
}

// FileName returns the report file name for the month containing t
func FileName(t time.Time) string {
	return fmt.Sprintf("usage-%s.csv", t.Format("2006-01"))
}

// RunOnce generates the current month-to-date report and writes it,
// replacing the previous file for the same month. It returns the path written.
func (r *Runner) RunOnce(ctx context.Context) (string, error) {
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}

	rep, err := r.Generator.Generate(ctx, report.Request{
		Users: r.Users,
		Range: daterange.MonthToDate(now),
	})
	if err != nil {
		return "", errors.Wrap(err, "generating report")
	}

	if err := os.MkdirAll(r.OutDir, 0755); err != nil {
		return "", errors.Wrap(err, "creating output directory")
	}

	path := filepath.Join(r.OutDir, FileName(now))
	tmp, err := os.CreateTemp(r.OutDir, ".usage-*.csv")
	if err != nil {
		return "", errors.Wrap(err, "creating report file")
	}
	defer os.Remove(tmp.Name())

	opts := output.Options{Cost: r.Cost, Rates: r.Rates}
	if err := output.Print(tmp, rep, opts, output.FormatCSV); err != nil {
		tmp.Close()
		return "", errors.Wrap(err, "writing report")
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, "writing report")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", errors.Wrap(err, "replacing report file")
	}
	return path, nil
}

// Run writes a report immediately and then on every tick until ctx is done.
// Failed runs are logged and retried on the next tick.
func (r *Runner) Run(ctx context.Context, interval time.Duration) {
	logger := r.logger()

	r.runLogged(ctx, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.runLogged(ctx, logger)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) runLogged(ctx context.Context, logger *zap.Logger) {
	started := time.Now()
	path, err := r.RunOnce(ctx)
	if err != nil {
		logger.Error("scheduled report failed", zap.Error(err))
		return
	}
	logger.Info("scheduled report written",
		zap.String("path", path),
		zap.Int("users", len(r.Users)),
		zap.Duration("took", time.Since(started)))
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
