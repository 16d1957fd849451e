package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cinstr/pkg/config"
	"cinstr/pkg/csource"
	"cinstr/pkg/tsfront"
)

// positional checks the argument count before "--"; what follows the dash
// belongs to the frontend.
func positional(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, beforeDash(cmd, args)); err != nil {
			return config.Wrap(err, "invalid arguments")
		}
		return nil
	}
}

func beforeDash(cmd *cobra.Command, args []string) []string {
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		return args[:dash]
	}
	return args
}

func afterDash(cmd *cobra.Command, args []string) []string {
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		return args[dash:]
	}
	return nil
}

// parseFrontendArgs picks the preprocessor options out of a compiler command
// line. Unknown arguments, and a trailing option missing its value, are ignored.
func parseFrontendArgs(args []string) csource.Options {
	var opts csource.Options
	for i := 0; i < len(args); i++ {
		arg := args[i]
		value := func(flag string) (string, bool) {
			if arg != flag {
				return strings.TrimPrefix(arg, flag), true
			}
			if i+1 < len(args) {
				i++
				return args[i], true
			}
			return "", false
		}

		switch {
		case arg == "-include":
			if v, ok := value("-include"); ok {
				opts.Includes = append(opts.Includes, v)
			}
		case strings.HasPrefix(arg, "-I"):
			if v, ok := value("-I"); ok {
				opts.IncludeDirs = append(opts.IncludeDirs, v)
			}
		case strings.HasPrefix(arg, "-D"):
			if v, ok := value("-D"); ok {
				opts.Defines = append(opts.Defines, v)
			}
		case strings.HasPrefix(arg, "-U"):
			if v, ok := value("-U"); ok {
				opts.Undefs = append(opts.Undefs, v)
			}
		}
	}
	return opts
}

// frontendOptions merges the configured include directories and defines with
// the ones given on the command line, configuration first.
func (a *app) frontendOptions(cmd *cobra.Command, args []string) csource.Options {
	opts := parseFrontendArgs(afterDash(cmd, args))
	opts.IncludeDirs = append(append([]string{}, a.cfg.Frontend.IncludeDirs...), opts.IncludeDirs...)
	opts.Defines = append(append([]string{}, a.cfg.Frontend.Defines...), opts.Defines...)
	return opts
}

// loadUnit parses the primary file with the configured frontend.
func (a *app) loadUnit(ctx context.Context, path string, opts csource.Options) (*csource.TranslationUnit, error) {
	var (
		tu  *csource.TranslationUnit
		err error
	)
	switch a.cfg.Frontend.Kind {
	case config.FrontendTreeSitter:
		if len(opts.IncludeDirs)+len(opts.Defines)+len(opts.Undefs)+len(opts.Includes) > 0 {
			a.logger.Debug("tree-sitter frontend does not preprocess; frontend arguments ignored",
				zap.Strings("include_dirs", opts.IncludeDirs), zap.Strings("defines", opts.Defines))
		}
		tu, err = tsfront.Load(ctx, path)
	default:
		tu, err = csource.Load(path, opts)
	}
	if err != nil {
		return nil, err
	}

	for _, header := range tu.Skipped {
		a.logger.Debug("skipped include", zap.String("header", header))
	}
	a.logger.Debug("parsed translation unit",
		zap.String("file", path),
		zap.String("frontend", a.cfg.Frontend.Kind),
		zap.Int("files", len(tu.Files)),
		zap.Int("decls", len(tu.Decls)))
	return tu, nil
}
