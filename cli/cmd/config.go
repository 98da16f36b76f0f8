package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zhaobenny/slurmusage/cli/internal/config"
	"github.com/zhaobenny/slurmusage/cli/internal/report"
)

var configFlags struct {
	show             bool
	sacctPath        string
	timeout          time.Duration
	parallel         int
	queriesPerSecond float64
	users            string
	cpuPowerW        float64
	gpuPowerW        float64
	pricePerKWh      float64
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the configuration",
	Example: `  slurmusage config --show
  slurmusage config --users alice,bob --parallel 8
  slurmusage config --price-per-kwh 0.32`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)

	fs := configCmd.Flags()
	fs.BoolVar(&configFlags.show, "show", false, "Show current configuration")
	fs.StringVar(&configFlags.sacctPath, "sacct-path", "", "Path to the sacct binary")
	fs.DurationVar(&configFlags.timeout, "timeout", 0, "Timeout of a single sacct query (e.g. 2m)")
	fs.IntVar(&configFlags.parallel, "parallel", 0, "Number of concurrent sacct queries")
	fs.Float64Var(&configFlags.queriesPerSecond, "queries-per-second", 0, "Maximum sacct queries started per second")
	fs.StringVar(&configFlags.users, "users", "", "Comma-separated default user IDs")
	fs.Float64Var(&configFlags.cpuPowerW, "cpu-power-w", 0, "Power draw of one CPU core in watts")
	fs.Float64Var(&configFlags.gpuPowerW, "gpu-power-w", 0, "Power draw of one GPU in watts")
	fs.Float64Var(&configFlags.pricePerKWh, "price-per-kwh", 0, "Energy price in EUR per kWh")
}

func runConfig(c *cobra.Command, args []string) error {
	if configFlags.show {
		return showConfig(c.OutOrStdout(), cfg)
	}

	changed := applyConfigFlags(c, cfg)
	if !changed {
		return c.Usage()
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfgFile, cfg); err != nil {
		return errors.Wrap(err, "saving config")
	}

	fmt.Fprintln(c.OutOrStdout(), "Configuration saved.")
	return nil
}

// applyConfigFlags copies every explicitly set flag into cfg
func applyConfigFlags(c *cobra.Command, cfg *config.Config) bool {
	fs := c.Flags()
	changed := false
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
			changed = true
		}
	}

	set("sacct-path", func() { cfg.SacctPath = configFlags.sacctPath })
	set("timeout", func() { cfg.Timeout = configFlags.timeout })
	set("parallel", func() { cfg.Parallel = configFlags.parallel })
	set("queries-per-second", func() { cfg.QueriesPerSecond = configFlags.queriesPerSecond })
	set("users", func() { cfg.Users = report.SplitUsers(configFlags.users) })
	set("cpu-power-w", func() { cfg.Rates.CPUPowerW = configFlags.cpuPowerW })
	set("gpu-power-w", func() { cfg.Rates.GPUPowerW = configFlags.gpuPowerW })
	set("price-per-kwh", func() { cfg.Rates.PricePerKWh = configFlags.pricePerKWh })
	return changed
}

func showConfig(w io.Writer, cfg *config.Config) error {
	path := cfgFile
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "# %s\n%s", path, data)
	return nil
}
