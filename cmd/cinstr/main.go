// Command cinstr rewrites a C translation unit for the branch-outcome runtime:
// it applies a manifest of branch classifications, redirects global variables
// through accessor functions, or inserts trace hooks, and prints the result.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cinstr/pkg/config"
	"cinstr/pkg/instrument"
)

// app carries the state shared by the subcommands of one invocation.
type app struct {
	configPath string
	verbose    bool
	frontend   string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "cinstr",
		Short: "Manifest-driven C source instrumentation",
		Long: `cinstr rewrites one C source file and prints the result.

apply-manifest wraps every if condition in a classification helper and
compiles out the functions the manifest does not list. patch-globals
redirects reads of file-scope variables through generated accessors.
extract-trace inserts trace hooks at function entry and at every branch.

Arguments after "--" are compiler arguments; -I, -D, -U and -include are
honored and everything else is ignored.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return config.Wrap(err, "invalid flags")
	})

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&a.frontend, "frontend", "", "C frontend: native or treesitter (default from config)")

	root.AddCommand(
		a.applyManifestCmd(),
		a.patchGlobalsCmd(),
		a.extractTraceCmd(),
		a.skeletonCmd(),
		a.dumpCmd(),
	)
	return root
}

// setup loads the configuration, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.frontend != "" {
		cfg.Frontend.Kind = a.frontend
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.Logging, a.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	return nil
}

func newLogger(lc config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = lc.Format
	if lc.Format == "console" {
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true
	return zc.Build()
}

// names maps the configured runtime symbols onto the rewriting passes.
func (a *app) names() instrument.Names {
	return instrument.Names{
		Prefix:         a.cfg.Runtime.Prefix,
		TranslateHook:  a.cfg.Runtime.TranslateHook,
		ConditionHook:  a.cfg.Trace.ConditionHook,
		FunctionHook:   a.cfg.Trace.FunctionHook,
		SwitchHook:     a.cfg.Trace.SwitchHook,
		AccessorSuffix: a.cfg.Globals.AccessorSuffix,
	}
}

func (a *app) options() []instrument.Option {
	return []instrument.Option{
		instrument.WithLogger(a.logger),
		instrument.WithNames(a.names()),
	}
}

// exitCode maps a command error onto the process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ce *config.Error
	if errors.As(err, &ce) {
		return 2
	}
	return 1
}

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cinstr:", err)
	}
	os.Exit(exitCode(err))
}
