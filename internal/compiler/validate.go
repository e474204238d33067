package compiler

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/tinyrange/aot/internal/ids"
	"github.com/tinyrange/aot/internal/libfuncs"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/types"
)

// Validate checks the shape of every statement against the registry and the
// lowering table. All problems are reported together.
func Validate[T types.Builder, L libfuncs.Libfunc](prog *program.Program, reg *program.Registry[T, L], table *libfuncs.Table[T, L]) error {
	var result *multierror.Error
	missing := make(map[ids.GenericLibfuncId]bool)

	for i, stmt := range prog.Statements {
		idx := ids.StatementIdx(i)
		if stmt.IsReturn() {
			continue
		}
		inv := stmt.Invocation
		lf, err := reg.Libfunc(inv.Libfunc)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("statement %d: %w", idx, err))
			continue
		}
		generic := lf.GenericId()
		if !table.Has(generic) {
			if !missing[generic] {
				missing[generic] = true
				result = multierror.Append(result, fmt.Errorf("statement %d: %w: %s", idx, libfuncs.ErrUnsupportedLibfunc, generic))
			}
			continue
		}

		sig := lf.Signature()
		if len(inv.Args) != len(sig.Params) {
			result = multierror.Append(result, fmt.Errorf("statement %d: %s takes %d arguments, got %d", idx, inv.Libfunc, len(sig.Params), len(inv.Args)))
		}
		if len(inv.Branches) != len(sig.Branches) {
			result = multierror.Append(result, fmt.Errorf("statement %d: %s has %d branches, got %d", idx, inv.Libfunc, len(sig.Branches), len(inv.Branches)))
			continue
		}
		for b, br := range inv.Branches {
			if len(br.Results) != len(sig.Branches[b].Vars) {
				result = multierror.Append(result, fmt.Errorf("statement %d: branch %d of %s produces %d results, got %d",
					idx, b, inv.Libfunc, len(sig.Branches[b].Vars), len(br.Results)))
			}
			if br.Target.Fallthrough && b != sig.FallthroughBranch {
				result = multierror.Append(result, fmt.Errorf("statement %d: branch %d of %s cannot fall through", idx, b, inv.Libfunc))
			}
			if target := br.Target.Resolve(idx); int(target) < 0 || int(target) >= len(prog.Statements) {
				result = multierror.Append(result, fmt.Errorf("statement %d: branch %d targets statement %d out of range", idx, b, target))
			}
		}
	}

	for _, fn := range reg.Functions() {
		if int(fn.EntryPoint) < 0 || int(fn.EntryPoint) >= len(prog.Statements) {
			result = multierror.Append(result, fmt.Errorf("function %s: entry point %d out of range", fn.Id, fn.EntryPoint))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("compiler: invalid program: %w", err)
	}
	return nil
}
