package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tinyrange/aot/internal/compiler"
	"github.com/tinyrange/aot/internal/ids"
	"github.com/tinyrange/aot/internal/ir/cgen"
	"github.com/tinyrange/aot/internal/libfuncs"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/types"
)

type coreRegistry = program.Registry[types.Core, *libfuncs.CoreLibfunc]
type coreModule = compiler.NativeModule[types.Core, *libfuncs.CoreLibfunc]

func loadProgram(path string) (*program.Program, *coreRegistry, error) {
	prog, err := program.Load(path)
	if err != nil {
		return nil, nil, err
	}
	reg, err := program.NewRegistry[types.Core, *libfuncs.CoreLibfunc](prog, types.CoreCatalog{}, libfuncs.CoreCatalog{})
	if err != nil {
		return nil, nil, err
	}
	return prog, reg, nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *app) buildModule(path string) (*coreModule, error) {
	prog, reg, err := loadProgram(path)
	if err != nil {
		return nil, err
	}

	opts := compiler.Options{
		InitialGas: a.cfg.Gas,
		Logger:     a.logger,
	}
	if isTerminal(a.stderr) {
		bar := progressbar.NewOptions(len(prog.Funcs),
			progressbar.OptionSetWriter(a.stderr),
			progressbar.OptionSetDescription("lowering"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		opts.Progress = func(done, total int, fn ids.FunctionId) {
			bar.Describe("lowering " + fn.String())
			bar.Set(done)
		}
	}

	return compiler.Compile(prog, reg, libfuncs.NewCoreTable[types.Core, *libfuncs.CoreLibfunc](), opts)
}

func (a *app) compileCmd() *cobra.Command {
	var (
		output string
		emitC  bool
	)
	cmd := &cobra.Command{
		Use:   "compile <program.yaml>",
		Short: "Compile a program into a shared object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := a.buildModule(args[0])
			if err != nil {
				return err
			}

			if emitC {
				src, err := cgen.Emit(mod.Module)
				if err != nil {
					return err
				}
				_, err = a.stdout.Write(src)
				return err
			}

			if output == "" {
				base := filepath.Base(args[0])
				output = base[:len(base)-len(filepath.Ext(base))] + ".so"
			}
			backend := a.cfg.Backend()
			obj, err := backend.CompileObject(cmd.Context(), mod.Module, a.cfg.Opt())
			if err != nil {
				return err
			}
			if err := backend.LinkShared(cmd.Context(), obj, output); err != nil {
				return err
			}
			a.logger.Info("wrote shared object", "path", output, "module", mod.ID, "functions", len(mod.Module.Exported))
			fmt.Fprintln(a.stdout, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default <program>.so)")
	cmd.Flags().BoolVar(&emitC, "emit-c", false, "print the generated C instead of building")
	return cmd
}
