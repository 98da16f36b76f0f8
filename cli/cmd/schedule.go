package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kardianos/service"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhaobenny/slurmusage/cli/internal/logging"
	"github.com/zhaobenny/slurmusage/cli/internal/report"
	"github.com/zhaobenny/slurmusage/cli/internal/sacct"
	"github.com/zhaobenny/slurmusage/cli/internal/schedule"
)

var scheduleFlags struct {
	interval time.Duration
	outDir   string
	cost     bool
	logFile  string
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Write month-to-date reports in the background",
	Long: `Install slurmusage as a background service that writes the month-to-date
CSV report of the configured users into a directory, once on start and
then on every interval. Reports are named usage-YYYY-MM.csv.`,
	Example: `  slurmusage config --users alice,bob
  slurmusage schedule install --interval 6h --out-dir /srv/reports
  slurmusage schedule status
  slurmusage schedule uninstall`,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	fs := scheduleCmd.PersistentFlags()
	fs.DurationVar(&scheduleFlags.interval, "interval", time.Hour, "Report interval (e.g. 1h, 30m)")
	fs.StringVar(&scheduleFlags.outDir, "out-dir", defaultOutDir(), "Directory the reports are written to")
	fs.BoolVar(&scheduleFlags.cost, "cost", false, "Add an energy cost estimate to the reports")
	fs.StringVar(&scheduleFlags.logFile, "log-file", "", "Service log file (default stderr)")

	for _, c := range []struct {
		use, short string
		run        func(*scheduleService, service.Service, *cobra.Command) error
	}{
		{"install", "Install and start the background service", scheduleInstall},
		{"start", "Start the background service", scheduleStart},
		{"stop", "Stop the background service", scheduleStop},
		{"uninstall", "Remove the background service", scheduleUninstall},
		{"status", "Show service status", scheduleStatus},
		{"run", "Run the service in the foreground", scheduleRun},
	} {
		scheduleCmd.AddCommand(&cobra.Command{
			Use:   c.use,
			Short: c.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, s, err := newScheduleService()
				if err != nil {
					return err
				}
				return c.run(svc, s, cmd)
			},
		})
	}
}

func defaultOutDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "slurmusage-reports"
	}
	return filepath.Join(home, "slurmusage-reports")
}

// scheduleService implements service.Interface for background reports
type scheduleService struct {
	runner   *schedule.Runner
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func (s *scheduleService) Start(svc service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.runner.Run(ctx, s.interval)
	}()
	return nil
}

func (s *scheduleService) Stop(svc service.Service) error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

func newScheduleService() (*scheduleService, service.Service, error) {
	if scheduleFlags.interval <= 0 {
		return nil, nil, fmt.Errorf("interval must be positive, got %s", scheduleFlags.interval)
	}
	outDir, err := filepath.Abs(scheduleFlags.outDir)
	if err != nil {
		return nil, nil, errors.Wrap(err, "resolving output directory")
	}

	args := []string{
		"schedule", "run",
		fmt.Sprintf("--interval=%s", scheduleFlags.interval),
		fmt.Sprintf("--out-dir=%s", outDir),
	}
	if scheduleFlags.cost {
		args = append(args, "--cost")
	}
	if scheduleFlags.logFile != "" {
		args = append(args, fmt.Sprintf("--log-file=%s", scheduleFlags.logFile))
	}
	if cfgFile != "" {
		args = append(args, fmt.Sprintf("--config=%s", cfgFile))
	}

	svcConfig := &service.Config{
		Name:        "slurmusage-schedule",
		DisplayName: "slurmusage Report Service",
		Description: "Writes month-to-date SLURM usage reports",
		Arguments:   args,
	}

	svc := &scheduleService{
		interval: scheduleFlags.interval,
		runner: &schedule.Runner{
			Users:  report.NormalizeUsers(cfg.Users),
			OutDir: outDir,
			Cost:   scheduleFlags.cost,
			Rates:  cfg.Rates,
		},
	}
	s, err := service.New(svc, svcConfig)
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating service")
	}
	return svc, s, nil
}

func requireConfiguredUsers() error {
	if len(report.NormalizeUsers(cfg.Users)) == 0 {
		return errors.New("no users configured: run 'slurmusage config --users <a,b>' first")
	}
	return nil
}

func scheduleInstall(_ *scheduleService, s service.Service, c *cobra.Command) error {
	if err := requireConfiguredUsers(); err != nil {
		return err
	}
	if err := s.Install(); err != nil {
		return errors.Wrap(err, "installing service")
	}
	if err := s.Start(); err != nil {
		return errors.Wrap(err, "service installed but failed to start")
	}
	fmt.Fprintln(c.OutOrStdout(), "Service installed and started.")
	fmt.Fprintf(c.OutOrStdout(), "Report interval: %s\n", scheduleFlags.interval)
	return nil
}

func scheduleStart(_ *scheduleService, s service.Service, c *cobra.Command) error {
	if err := s.Start(); err != nil {
		return errors.Wrap(err, "starting service")
	}
	fmt.Fprintln(c.OutOrStdout(), "Service started.")
	return nil
}

func scheduleStop(_ *scheduleService, s service.Service, c *cobra.Command) error {
	if err := s.Stop(); err != nil {
		return errors.Wrap(err, "stopping service")
	}
	fmt.Fprintln(c.OutOrStdout(), "Service stopped.")
	return nil
}

func scheduleUninstall(_ *scheduleService, s service.Service, c *cobra.Command) error {
	_ = s.Stop()
	if err := s.Uninstall(); err != nil {
		return errors.Wrap(err, "uninstalling service")
	}
	fmt.Fprintln(c.OutOrStdout(), "Service uninstalled.")
	return nil
}

func scheduleStatus(_ *scheduleService, s service.Service, c *cobra.Command) error {
	status, err := s.Status()
	if err != nil {
		fmt.Fprintf(c.OutOrStdout(), "Service status: not installed or error (%v)\n", err)
		return nil
	}
	switch status {
	case service.StatusRunning:
		fmt.Fprintln(c.OutOrStdout(), "Service status: running")
	case service.StatusStopped:
		fmt.Fprintln(c.OutOrStdout(), "Service status: stopped")
	default:
		fmt.Fprintln(c.OutOrStdout(), "Service status: unknown")
	}
	return nil
}

// scheduleRun is what the installed service executes
func scheduleRun(svc *scheduleService, s service.Service, c *cobra.Command) error {
	if err := requireConfiguredUsers(); err != nil {
		return err
	}

	var paths []string
	if scheduleFlags.logFile != "" {
		paths = append(paths, scheduleFlags.logFile)
	}
	svcLogger, err := logging.NewService(paths...)
	if err != nil {
		return errors.Wrap(err, "creating service logger")
	}
	defer svcLogger.Sync()

	svc.runner.Logger = svcLogger
	svc.runner.Generator = &report.Generator{
		Source:  sacct.NewClient(cfg.SacctPath, cfg.Timeout, svcLogger),
		Collect: sacct.CollectOptions{Parallel: cfg.Parallel, QueriesPerSecond: cfg.QueriesPerSecond},
		Logger:  svcLogger,
	}

	svcLogger.Info("report service starting",
		zap.Duration("interval", svc.interval),
		zap.String("out_dir", svc.runner.OutDir),
		zap.Strings("users", svc.runner.Users))
	return s.Run()
}
