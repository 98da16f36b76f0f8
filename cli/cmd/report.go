package cmd

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhaobenny/slurmusage/cli/internal/config"
	"github.com/zhaobenny/slurmusage/cli/internal/daterange"
	"github.com/zhaobenny/slurmusage/cli/internal/output"
	"github.com/zhaobenny/slurmusage/cli/internal/report"
	"github.com/zhaobenny/slurmusage/cli/internal/sacct"
)

type reportOptions struct {
	user       string
	users      string
	userFile   string
	start      string
	end        string
	partitions bool
	cost       bool
	format     string
	input      string
}

var (
	rootReport   reportOptions
	reportReport reportOptions
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show CPU, GPU and RAM hours per user",
	Long: `Query sacct for every given user and print the summed CPU, GPU and RAM
hours, with a grand total row first.

Dates are YYYY-MM-DD or YYYY-MM. A month-only end covers the whole month; a
month-only start without an end covers that month.`,
	Example: `  slurmusage report --user alice --start 2024-01
  slurmusage report --users alice,bob --start 2024-01-01 --end 2024-01-15 --partitions
  slurmusage report --userfile staff.txt --start 2024-01 --cost --format json`,
	Args: cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		return runReport(c, &reportReport)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	addReportFlags(reportCmd, &reportReport)
}

func addReportFlags(c *cobra.Command, o *reportOptions) {
	fs := c.Flags()
	fs.StringVar(&o.user, "user", "", "Single user ID")
	fs.StringVar(&o.users, "users", "", "Comma-separated user IDs")
	fs.StringVar(&o.userFile, "userfile", "", "File with one user ID per line")
	fs.StringVar(&o.start, "start", "", "Start date (YYYY-MM-DD or YYYY-MM)")
	fs.StringVar(&o.end, "end", "", "End date (YYYY-MM-DD or YYYY-MM)")
	fs.BoolVar(&o.partitions, "partitions", false, "Break usage down by partition")
	fs.BoolVar(&o.cost, "cost", false, "Add an energy cost estimate (ignored with --partitions)")
	fs.StringVar(&o.format, "format", string(output.FormatAuto), "Output format: auto, grid, csv or json")
	fs.StringVar(&o.input, "input", "", "Read sacct output from a file instead of running sacct (--start/--end do not filter it)")
	c.MarkFlagsMutuallyExclusive("user", "users", "userfile")
}

func runReport(c *cobra.Command, o *reportOptions) error {
	format, err := output.ParseFormat(o.format)
	if err != nil {
		return err
	}

	r, err := daterange.Parse(o.start, o.end, time.Now())
	if err != nil {
		return err
	}

	users, err := o.resolveUsers(cfg)
	if err != nil {
		return err
	}

	gen := &report.Generator{
		Source:  newSource(o.input, cfg),
		Collect: sacct.CollectOptions{Parallel: cfg.Parallel, QueriesPerSecond: cfg.QueriesPerSecond},
		Logger:  logger,
	}

	rep, err := gen.Generate(c.Context(), report.Request{
		Users:       users,
		Range:       r,
		ByPartition: o.partitions,
	})
	if err != nil {
		return err
	}

	outOpts := output.Options{Cost: o.cost, Rates: cfg.Rates}
	if output.CostDropped(rep, outOpts) {
		logger.Warn("cost column is not shown together with a partition breakdown")
	}
	return output.Print(c.OutOrStdout(), rep, outOpts, format)
}

// resolveUsers picks the users from the flags, falling back to the
// configured list
func (o *reportOptions) resolveUsers(cfg *config.Config) ([]string, error) {
	var users []string
	switch {
	case o.user != "":
		users = report.NormalizeUsers([]string{o.user})
	case o.users != "":
		users = report.SplitUsers(o.users)
	case o.userFile != "":
		var err error
		if users, err = report.ReadUserFile(o.userFile); err != nil {
			return nil, err
		}
	default:
		users = report.NormalizeUsers(cfg.Users)
	}
	if len(users) == 0 {
		return nil, errors.New("no users given: use --user, --users or --userfile, or set users in the config file")
	}
	return users, nil
}

func newSource(input string, cfg *config.Config) sacct.Source {
	if input != "" {
		logger.Debug("reading accounting data from file", zap.String("path", input))
		return sacct.FileSource{Path: input}
	}
	return sacct.NewClient(cfg.SacctPath, cfg.Timeout, logger)
}
