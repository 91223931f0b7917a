// Command gapscan builds residue/gap frequency maps from a prime list,
// scores anchors against them, and benchmarks successor predictors.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gapscan/pkg/config"
)

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:           "gapscan",
		Short:         "Prime gap residue/frequency analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath+" if present)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newBuildCmd(), newScoreCmd(), newBenchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gapscan:", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	c := zap.NewProductionConfig()
	if verbose {
		c.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return c.Build()
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}
