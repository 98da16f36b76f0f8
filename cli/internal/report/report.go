package report

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/zhaobenny/slurmusage/cli/internal/aggregator"
	"github.com/zhaobenny/slurmusage/cli/internal/daterange"
	"github.com/zhaobenny/slurmusage/cli/internal/sacct"
	"github.com/zhaobenny/slurmusage/internal/model"
)

// ErrNoUsers is returned when a report is requested for nobody
var ErrNoUsers = errors.New("no users given")

// Request describes one usage report
type Request struct {
	Users       []string
	Range       daterange.Range
	ByPartition bool
}

// Generator fetches, derives and aggregates accounting data
type Generator struct {
	Source  sacct.Source
	Collect sacct.CollectOptions
	Logger  *zap.Logger
}

// Generate builds the report for req. Any fetch or parse failure fails the
// whole report.
func (g *Generator) Generate(ctx context.Context, req Request) (*model.Report, error) {
	logger := g.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	users := NormalizeUsers(req.Users)
	if len(users) == 0 {
		return nil, ErrNoUsers
	}

	logger.Debug("generating report",
		zap.Strings("users", users),
		zap.Stringer("range", req.Range),
		zap.Bool("partitions", req.ByPartition))

	records, err := sacct.Collect(ctx, g.Source, users, req.Range, g.Collect, logger)
	if err != nil {
		return nil, err
	}

	jobs := model.DeriveAll(records)
	report := aggregator.Aggregate(jobs, aggregator.Options{ByPartition: req.ByPartition})

	logger.Debug("report aggregated", zap.Int("jobs", len(jobs)), zap.Int("rows", len(report.Keys)))
	return report, nil
}
