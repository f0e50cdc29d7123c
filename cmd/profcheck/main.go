// Command profcheck verifies that a named instance appears in the freshest
// profiler log matching a glob pattern. It prints exactly "SUCCESS" to stdout
// and exits 0 when the name is found; every failure path prints a
// "FAILURE: ..." line to stderr and exits 1.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/suranap/legion/internal/config"
	"github.com/suranap/legion/internal/logging"
	"github.com/suranap/legion/internal/verify"
	"github.com/suranap/legion/pkg/prof"
)

var errMissingPattern = errors.New("log file pattern not provided")

var (
	flagName          string
	flagNodes         string
	flagCallThreshold time.Duration
	flagVerbose       bool
	flagLogLevel      string
	flagConfigFile    string
)

var rootCmd = &cobra.Command{
	Use:   "profcheck [log-pattern]",
	Short: "Verify an instance name in the latest profiler log",
	Long: `profcheck locates the most recently written profiler log matching the given
glob pattern, reconstructs the profiler state from it, and checks that an
instance with the expected name exists.

Intended as a regression-test oracle: a calling harness greps stdout for
SUCCESS and inspects the exit code.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func run(cmd *cobra.Command, args []string) error {
	// The missing-pattern check runs before any config or filesystem work.
	if len(args) < 1 {
		return errMissingPattern
	}
	pattern := args[0]

	cfg := config.Load()
	if flagConfigFile != "" {
		if err := cfg.ApplyFile(flagConfigFile); err != nil {
			return err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("name") {
		cfg.ExpectedName = flagName
	}
	if flags.Changed("nodes") {
		cfg.Nodes = flagNodes
	}
	if flags.Changed("call-threshold") {
		cfg.CallThreshold = flagCallThreshold
	}
	if flags.Changed("verbose") {
		cfg.Verbose = flagVerbose
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logging.Init(level, cfg.LogJSON)

	nodes, err := prof.ParseNodeSet(cfg.Nodes)
	if err != nil {
		return err
	}

	opts := verify.Options{
		ExpectedName:  cfg.ExpectedName,
		Verbose:       cfg.Verbose,
		VisibleNodes:  nodes,
		CallThreshold: cfg.CallThreshold,
	}
	if err := verify.Run(pattern, opts); err != nil {
		return err
	}

	fmt.Println("SUCCESS")
	return nil
}

func init() {
	rootCmd.Flags().StringVar(&flagName, "name", "my_test_instance", "expected instance name")
	rootCmd.Flags().StringVar(&flagNodes, "nodes", "", "comma-separated node ids to ingest (default all)")
	rootCmd.Flags().DurationVar(&flagCallThreshold, "call-threshold", 0, "drop mapper/runtime calls shorter than this")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "per-record debug logging")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "diagnostic log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&flagConfigFile, "config", "", "optional YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "FAILURE: %v\n", err)
		os.Exit(1)
	}
}
