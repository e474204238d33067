package libfuncs

import (
	"errors"

	"github.com/tinyrange/aot/internal/ids"
	"github.com/tinyrange/aot/internal/ir"
	"github.com/tinyrange/aot/internal/metadata"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/types"
)

// BuildFunctionCall calls the entry point of another function of the same
// program, sharing the gas counter and runtime block. A trap in the callee
// is propagated unchanged.
func BuildFunctionCall[T types.Builder, L Libfunc](
	_ *Context,
	reg *program.Registry[T, L],
	entry *ir.BlockBuilder,
	loc Location,
	helper *Helper,
	_ *metadata.Storage,
	info L,
) error {
	fid, err := functionArg(loc, info, 0)
	if err != nil {
		return err
	}
	callee, err := reg.Function(fid)
	if err != nil {
		if errors.Is(err, program.ErrUnknownFunction) {
			return &Error{Loc: loc, Kind: MissingFunction, Err: err}
		}
		return err
	}

	args := concat(helper.Args()...)
	results := helper.Results(0)
	if len(results) != len(callee.Signature.RetTypes) {
		return newError(loc, InvalidSignature, "%s returns %d values, branch takes %d", callee.Id, len(callee.Signature.RetTypes), len(results))
	}
	retWords := 0
	for _, r := range results {
		retWords += len(r)
	}

	code := helper.Temp("code")
	entry.Append(ir.WithStackSlot(ir.StackSlotConfig{
		Words: max(len(args), 1),
		Body: func(argBuf ir.StackSlot) ir.Fragment {
			return ir.WithStackSlot(ir.StackSlotConfig{
				Words: max(retWords, 1),
				Body: func(retBuf ir.StackSlot) ir.Fragment {
					block := ir.Block{}
					for i, w := range args {
						block = append(block, ir.Assign(argBuf.Word(i), w))
					}
					block = append(block,
						ir.CallMethod(ids.EntrySymbol(callee.Id), []ir.Fragment{
							argBuf.Pointer(), retBuf.Pointer(), GasParam, RuntimeParam,
						}, code),
						ir.If(ir.IsNotEqual(code, ir.Int64(0)), ir.Return(code)),
					)
					rets := make([]Slots, len(results))
					off := 0
					for i, r := range results {
						rets[i] = make(Slots, len(r))
						for k := range r {
							rets[i][k] = retBuf.Word(off + k)
						}
						off += len(r)
					}
					return append(block, helper.Br(0, rets...))
				},
			})
		},
	}))
	return nil
}
