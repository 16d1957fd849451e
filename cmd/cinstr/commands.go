package main

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cinstr/pkg/config"
	"cinstr/pkg/csource"
	"cinstr/pkg/instrument"
	"cinstr/pkg/manifest"
)

func (a *app) applyManifestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply-manifest <primary.c> <manifest> [-- compiler-args...]",
		Short: "Annotate branches and elide functions according to a manifest",
		Args:  positional(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManifest(args[1])
			if err != nil {
				return err
			}
			tu, err := a.loadUnit(cmd.Context(), args[0], a.frontendOptions(cmd, args))
			if err != nil {
				return err
			}
			return a.write(cmd, instrument.ApplyManifest(tu, m, a.options()...))
		},
	}
}

func (a *app) patchGlobalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patch-globals <primary.c> [-- compiler-args...]",
		Short: "Redirect global variable references through accessor functions",
		Args:  positional(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tu, err := a.loadUnit(cmd.Context(), args[0], a.frontendOptions(cmd, args))
			if err != nil {
				return err
			}
			return a.write(cmd, instrument.PatchGlobals(tu, a.options()...))
		},
	}
}

func (a *app) extractTraceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract-trace <primary.c> [-- compiler-args...]",
		Short: "Insert trace hooks at function entry and at every branch",
		Args:  positional(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tu, err := a.loadUnit(cmd.Context(), args[0], a.frontendOptions(cmd, args))
			if err != nil {
				return err
			}
			return a.write(cmd, instrument.ExtractTrace(tu, a.options()...))
		},
	}
}

func (a *app) skeletonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skeleton <primary.c> [-- compiler-args...]",
		Short: "Print a manifest listing every function with all branches unknown",
		Args:  positional(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tu, err := a.loadUnit(cmd.Context(), args[0], a.frontendOptions(cmd, args))
			if err != nil {
				return err
			}
			m, _ := instrument.Skeleton(tu, a.options()...)
			_, err = m.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
}

func (a *app) dumpCmd() *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "dump <primary.c> [-- compiler-args...]",
		Short: "Print the tokens, declarations and name bindings the frontend produced",
		Args:  positional(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.frontendOptions(cmd, args)
			tu, err := a.loadUnit(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.cfg.Frontend.Kind == config.FrontendNative {
				pp, err := csource.Preprocess(tu.Primary, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Tokens (%d)\n", len(pp.Tokens))
				for _, tok := range pp.Tokens {
					fmt.Fprintln(out, " ", tok)
				}
				fmt.Fprintln(out)
			}
			dumpUnit(out, tu, root)
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", "main", "Function whose call graph is listed")
	return cmd
}

// loadManifest reads the manifest file. A file that cannot be read is a bad
// invocation; a file that does not parse is a format error.
func loadManifest(path string) (*manifest.Manifest, error) {
	m, err := manifest.Load(path)
	if err != nil {
		var fe *manifest.FormatError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, config.Wrap(err, "cannot load "+path)
	}
	return m, nil
}

func (a *app) write(cmd *cobra.Command, res *instrument.Result) error {
	if len(res.Diagnostics) > 0 {
		a.logger.Info("rewrite finished with diagnostics", zap.Int("count", len(res.Diagnostics)))
	}
	_, err := res.WriteTo(cmd.OutOrStdout())
	return err
}

func dumpUnit(out io.Writer, tu *csource.TranslationUnit, root string) {
	fmt.Fprintln(out, "Declarations")
	for _, d := range tu.Decls {
		fmt.Fprintln(out, " ", d)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Bindings")
	for _, d := range tu.Decls {
		fn, ok := d.(*csource.FunctionDecl)
		if !ok || !fn.HasBody() {
			continue
		}
		csource.Inspect(fn.Body, func(n csource.Node) bool {
			id, ok := n.(*csource.Ident)
			if !ok {
				return true
			}
			target := "(undeclared)"
			switch b := id.Binding.(type) {
			case *csource.VariableDecl:
				target = fmt.Sprintf("%s line %d (%s)", b.Type.Declare(b.Name), b.NameLoc.Line, b.Scope)
			case *csource.FunctionDecl:
				target = fmt.Sprintf("function %s", b.Name)
			case *csource.EnumConstDecl:
				target = fmt.Sprintf("enumerator %s", b.Name)
			}
			fmt.Fprintf(out, "  %s:%d %s -> %s\n", fn.Name, id.Loc.Line, id.Name, target)
			return true
		})
	}

	if len(tu.Skipped) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Skipped includes")
		for _, s := range tu.Skipped {
			fmt.Fprintln(out, " ", s)
		}
	}

	reachable := csource.Reachable(tu.Decls, root)
	if len(reachable) > 0 {
		names := make([]string, 0, len(reachable))
		for name := range reachable {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Reachable from %s\n", root)
		for _, name := range names {
			fmt.Fprintln(out, " ", name)
		}
	}
}
