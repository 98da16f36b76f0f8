package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/zhaobenny/slurmusage/cli/internal/config"
	"github.com/zhaobenny/slurmusage/cli/internal/logging"
)

var (
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger = zap.NewNop()
)

// rootCmd runs a report when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "slurmusage",
	Short: "Per-user SLURM resource usage reports",
	Long: `slurmusage queries the SLURM accounting database with sacct and reports
CPU, GPU and RAM hours per user, optionally broken down by partition or
with an energy cost estimate.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(verbose)

		if verbose {
			fullCmd := cmd.CommandPath()
			cmd.Flags().Visit(func(f *pflag.Flag) {
				fullCmd += " --" + f.Name + "=" + f.Value.String()
			})
			if len(args) > 0 {
				fullCmd += " " + strings.Join(args, " ")
			}
			logger.Debug("command", zap.String("cmd", fullCmd))
		}

		var err error
		cfg, err = config.Load(cfgFile)
		return err
	},
	Args: cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		return runReport(c, &rootReport)
	},
}

// Execute runs the root command and exits with status 1 on failure
func Execute() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.slurmusage.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	addReportFlags(rootCmd, &rootReport)
}
