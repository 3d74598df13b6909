// Command vtshave shaves vector tiles down to what a Mapbox GL style uses.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newRootCmd() *cobra.Command {
	var (
		verbose       bool
		logger        *zap.Logger
		restoreLogger func()
	)

	cmd := &cobra.Command{
		Use:           "vtshave",
		Short:         "Remove the layers, features and properties a style does not use from vector tiles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			config := zap.NewProductionConfig()
			config.Encoding = "console"
			config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
			config.OutputPaths = []string{"stderr"}
			if verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			logger, err = config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			restoreLogger = zap.ReplaceGlobals(logger)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if logger != nil {
				_ = logger.Sync()
				restoreLogger()
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every layer decision")

	cmd.AddCommand(newShaveCmd())
	cmd.AddCommand(newFiltersCmd())
	cmd.AddCommand(newBatchCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vtshave:", err)
		os.Exit(1)
	}
}
