package libfuncs

import (
	"github.com/tinyrange/aot/internal/hostcall"
	"github.com/tinyrange/aot/internal/ir"
	"github.com/tinyrange/aot/internal/metadata"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/types"
)

// Syscall returns a procedure forwarding its operands to the host. Successor
// 0 receives the response words; successor 1 receives the revert array.
func Syscall[T types.Builder, L Libfunc](sel hostcall.Selector) BuildFunc[T, L] {
	return func(ctx *Context, _ *program.Registry[T, L], entry *ir.BlockBuilder, loc Location, helper *Helper, meta *metadata.Storage, _ L) error {
		layout, ok := hostcall.LayoutOf(sel)
		if !ok {
			return newError(loc, InvalidSignature, "unknown host selector %s", sel)
		}
		req := concat(helper.Args()...)
		if len(req) != layout.Request {
			return newError(loc, LayoutMismatch, "%s takes %d request words, operands have %d", sel, layout.Request, len(req))
		}
		if helper.NumBranches() != 2 {
			return newError(loc, LayoutMismatch, "%s needs a success and a failure branch, got %d branches", sel, helper.NumBranches())
		}
		okResults := helper.Results(0)
		okWords := 0
		for _, r := range okResults {
			okWords += len(r)
		}
		if okWords != layout.Response {
			return newError(loc, LayoutMismatch, "%s answers %d words, branch takes %d", sel, layout.Response, okWords)
		}
		if failure := helper.Results(1); len(failure) != 1 || len(failure[0]) != hostcall.RevertWords {
			return newError(loc, LayoutMismatch, "%s failure branch must take one array", sel)
		}

		bindings := metadata.GetOrInsert(meta, func() metadata.RuntimeBindings { return metadata.RuntimeBindings{} })
		code := helper.Temp("host")

		var callErr error
		frag := ir.WithStackSlot(ir.StackSlotConfig{
			Words: max(len(req), 1),
			Body: func(reqBuf ir.StackSlot) ir.Fragment {
				return ir.WithStackSlot(ir.StackSlotConfig{
					Words: hostcall.ResponseWords(sel),
					Body: func(respBuf ir.StackSlot) ir.Fragment {
						block := ir.Block{}
						for i, w := range req {
							block = append(block, ir.Assign(reqBuf.Word(i), w))
						}
						call, err := bindings.HostCall(ctx.Module, RuntimeParam, ir.Int64(int64(sel)),
							reqBuf.Pointer(), respBuf.Pointer(), GasParam, code)
						if err != nil {
							callErr = err
							return block
						}
						okSlots := make([]Slots, len(okResults))
						off := 0
						for i, r := range okResults {
							okSlots[i] = make(Slots, len(r))
							for k := range r {
								okSlots[i][k] = respBuf.Word(off + k)
							}
							off += len(r)
						}
						revert := Slots{respBuf.Word(0), respBuf.Word(1)}
						return append(block,
							call,
							helper.CondBr(ir.IsZero(code), 0, 1, okSlots, []Slots{revert}),
						)
					},
				})
			},
		})
		if callErr != nil {
			return &Error{Loc: loc, Kind: Declaration, Err: callErr}
		}
		entry.Append(frag)
		return nil
	}
}
