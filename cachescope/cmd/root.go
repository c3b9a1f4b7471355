// Package cmd implements the cachescope command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cachescope/instrumentation/gate"
)

type rootOptions struct {
	logLevel string
	envFiles []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "cachescope",
		Short:         "Cache and coherence simulator for memory access traces",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logrus.ParseLevel(opts.logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q", opts.logLevel)
			}

			logrus.SetLevel(level)
			logrus.SetOutput(cmd.ErrOrStderr())

			gate.LoadEnv(logrus.StandardLogger(), opts.envFiles...)

			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warning",
		"Log level (trace, debug, info, warning, error)")
	rootCmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil,
		"Files with environment variables to load (default .env)")

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newPresetsCmd())
	rootCmd.AddCommand(newEnvCmd())

	return rootCmd
}

// Execute runs the command line and exits the process.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
