package libfuncs

import (
	"github.com/tinyrange/aot/internal/ir"
	"github.com/tinyrange/aot/internal/metadata"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/types"
	"github.com/tinyrange/aot/internal/values"
)

// Arrays are two words: a pointer to runtime-owned memory and an element
// count. Elements are stored contiguously, each taking the words of the
// element type. Appending always copies, so earlier array values stay valid.

// BuildArrayNew produces an empty array.
func BuildArrayNew[T types.Builder, L Libfunc](
	_ *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	_ Location,
	helper *Helper,
	_ *metadata.Storage,
	_ L,
) {
	entry.Append(helper.Br(0, Slots{ir.Int64(0), ir.Int64(0)}))
}

// elemAddr returns the address expression of word k of element idx.
func elemAddr(base ir.Var, idx ir.Fragment, elemWords, k int) ir.MemVar {
	return base.MemWithDisp(ir.Op(ir.OpAdd,
		ir.Op(ir.OpMul, idx, ir.Int64(int64(elemWords)*8)),
		ir.Int64(int64(k)*8),
	))
}

// BuildArrayAppend grows the array by one element through the runtime.
func BuildArrayAppend[T types.Builder, L Libfunc](
	ctx *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	loc Location,
	helper *Helper,
	meta *metadata.Storage,
	_ L,
) error {
	arr, elem := helper.Arg(0), helper.Arg(1)
	if len(arr) != types.ArrayHeaderSlots {
		return newError(loc, LayoutMismatch, "array operand has %d words", len(arr))
	}
	ptr, length := arr[0], arr[1]
	grown := ir.Op(ir.OpAdd, length, ir.Int64(1))
	es := len(elem)

	if es == 0 {
		entry.Append(helper.Br(0, Slots{ptr, grown}))
		return nil
	}

	bindings := metadata.GetOrInsert(meta, func() metadata.RuntimeBindings { return metadata.RuntimeBindings{} })
	next := helper.Temp("ptr")
	call, err := bindings.Realloc(ctx.Module, RuntimeParam, ptr,
		ir.Op(ir.OpMul, length, ir.Int64(int64(es))),
		ir.Op(ir.OpMul, grown, ir.Int64(int64(es))),
		next,
	)
	if err != nil {
		return &Error{Loc: loc, Kind: Declaration, Err: err}
	}

	entry.Append(
		call,
		ir.If(ir.IsZero(next), helper.Trap(values.TrapOutOfMemory)),
	)
	for k, w := range elem {
		entry.Append(ir.Assign(elemAddr(next, length, es, k), w))
	}
	entry.Append(helper.Br(0, Slots{next, grown}))
	return nil
}

// BuildArrayLen produces the element count.
func BuildArrayLen[T types.Builder, L Libfunc](
	_ *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	_ Location,
	helper *Helper,
	_ *metadata.Storage,
	_ L,
) {
	arr := helper.Arg(0)
	entry.Append(helper.Br(0, Slots{arr[1]}))
}

// BuildArrayGet branches to 0 with the element at the index, or to 1 when
// the index is out of range.
func BuildArrayGet[T types.Builder, L Libfunc](
	_ *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	loc Location,
	helper *Helper,
	_ *metadata.Storage,
	_ L,
) error {
	arr, idx := helper.Arg(0), helper.Arg(1)
	if len(arr) != types.ArrayHeaderSlots {
		return newError(loc, LayoutMismatch, "array operand has %d words", len(arr))
	}
	es := helper.ResultWords(0, 0)
	words := make(Slots, es)
	for k := range words {
		words[k] = elemAddr(arr[0], idx[0], es, k)
	}
	entry.Append(helper.CondBr(ir.IsUnsignedLess(idx[0], arr[1]), 0, 1, []Slots{words}, nil))
	return nil
}
