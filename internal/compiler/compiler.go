// Package compiler lowers every function of a program into one IR module,
// dispatching each invocation to the lowering procedure of its libfunc.
package compiler

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/tinyrange/aot/internal/ids"
	"github.com/tinyrange/aot/internal/ir"
	"github.com/tinyrange/aot/internal/libfuncs"
	"github.com/tinyrange/aot/internal/metadata"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/types"
)

// ABIVersion is stamped into every module. Loaders accept artifacts with
// the same major version.
const ABIVersion = "v1.0.0"

type Options struct {
	// InitialGas assigns the initial gas budget of functions, keyed by
	// function name or decimal id.
	InitialGas map[string]uint64

	Logger *slog.Logger

	// Progress is called after each function is lowered.
	Progress func(done, total int, fn ids.FunctionId)
}

// NativeModule is the output of a compilation: the IR module and everything
// an executor needs to invoke it.
type NativeModule[T types.Builder, L libfuncs.Libfunc] struct {
	ID       string
	Module   *ir.Program
	Registry *program.Registry[T, L]
	Metadata *metadata.Storage
}

// Compile lowers prog. reg must have been built from prog.
func Compile[T types.Builder, L libfuncs.Libfunc](
	prog *program.Program,
	reg *program.Registry[T, L],
	table *libfuncs.Table[T, L],
	opts Options,
) (*NativeModule[T, L], error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := Validate(prog, reg, table); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger = logger.With("module", id)

	module := ir.NewProgram(ABIVersion)
	meta := metadata.NewStorage()
	ctx := &libfuncs.Context{Module: module, Logger: logger}

	funcs := reg.Functions()
	for i, fn := range funcs {
		c := &functionCompiler[T, L]{
			ctx:   ctx,
			prog:  prog,
			reg:   reg,
			table: table,
			meta:  meta,
			fn:    fn,
		}
		method, err := c.compile()
		if err != nil {
			return nil, fmt.Errorf("compiler: %s: %w", fn.Id, err)
		}
		if err := module.AddMethod(ids.EntrySymbol(fn.Id), method, true); err != nil {
			return nil, fmt.Errorf("compiler: %s: %w", fn.Id, err)
		}
		logger.Debug("lowered function", "function", fn.Id.String(), "statements", c.lowered)
		if opts.Progress != nil {
			opts.Progress(i+1, len(funcs), fn.Id)
		}
	}

	if err := assignInitialGas(reg, meta, opts.InitialGas); err != nil {
		return nil, err
	}

	logger.Info("compiled module", "functions", len(funcs), "methods", len(module.Methods))

	return &NativeModule[T, L]{
		ID:       id,
		Module:   module,
		Registry: reg,
		Metadata: meta,
	}, nil
}

// assignInitialGas records the configured budgets in the GasMetadata entry,
// creating it for programs that never withdraw gas.
func assignInitialGas[T types.Builder, L libfuncs.Libfunc](reg *program.Registry[T, L], meta *metadata.Storage, budgets map[string]uint64) error {
	gas := metadata.GetOrInsert(meta, func() metadata.GasMetadata {
		return metadata.GasMetadata{
			InitialGas: make(map[uint64]uint64),
			StaticCost: make(map[uint64]uint64),
		}
	})
	if gas.InitialGas == nil {
		gas.InitialGas = make(map[uint64]uint64)
	}
	for key, amount := range budgets {
		fn, err := reg.FunctionByName(key)
		if err != nil {
			id, perr := strconv.ParseUint(key, 10, 64)
			if perr != nil {
				return fmt.Errorf("compiler: initial gas for %q: %w", key, err)
			}
			if fn, err = reg.Function(ids.FunctionId{Id: id}); err != nil {
				return fmt.Errorf("compiler: initial gas for %q: %w", key, err)
			}
		}
		gas.InitialGas[fn.Id.Id] = amount
	}
	return nil
}
