package main

import (
	"fmt"
	"io"
	"os"

	"shardinfo/pkg/collector"
	"shardinfo/pkg/config"
	"shardinfo/pkg/inspect"
	"shardinfo/pkg/report"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "0.1.0"

var (
	confPaths []string
	confDir   string
	human     bool
	noColor   bool
	verbose   bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	// A bad environment is reported when a command runs, not while building
	// the command tree.
	settings, settingsErr := config.LoadSettings()
	if settingsErr != nil {
		settings = &config.Settings{}
	}

	rootCmd := &cobra.Command{
		Use:   "shardinfo",
		Short: "Report container sharding state across local devices",
		Long: `Reads every container database on the devices of the local container servers
and reports each root container together with all of its shards.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if settingsErr != nil {
				return settingsErr
			}
			logger := setupLogger(verbose)
			defer logger.Sync()

			paths, err := resolveConfPaths()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			r := report.NewRenderer(out, report.Options{
				Color:      !noColor && isTerminal(out),
				HumanSizes: human,
			})
			return newInspector(settings, logger).Run(paths, r)
		},
	}

	rootCmd.PersistentFlags().StringArrayVar(&confPaths, "conf", nil, "container server config file or conf.d directory (repeatable)")
	rootCmd.PersistentFlags().StringVar(&confDir, "conf-dir", settings.ConfDir, "directory searched for container server configs")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&human, "human", false, "print byte counts in human readable units")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		rootsCmd(settings, settingsErr),
		treeCmd(settings, settingsErr),
		versionCmd(),
	)
	return rootCmd
}

func newInspector(settings *config.Settings, logger *zap.Logger) *inspect.Inspector {
	return inspect.New(collector.NewFromSettings(settings, logger), logger)
}

// resolveConfPaths prefers explicit --conf values over the configs found in
// --conf-dir.
func resolveConfPaths() ([]string, error) {
	if len(confPaths) > 0 {
		return confPaths, nil
	}
	paths, err := config.DiscoverConfPaths(confDir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no container server configs found in %s", confDir)
	}
	return paths, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shardinfo v%s\n", version)
		},
	}
}

// setupLogger logs to stderr so log lines never interleave with the report.
func setupLogger(verbose bool) *zap.Logger {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
