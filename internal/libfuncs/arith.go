package libfuncs

import (
	"github.com/tinyrange/aot/internal/ir"
	"github.com/tinyrange/aot/internal/metadata"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/types"
)

// BuildConst materialises the value argument (index 1) of felt252_const and
// u64_const.
func BuildConst[T types.Builder, L Libfunc](
	_ *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	loc Location,
	helper *Helper,
	_ *metadata.Storage,
	info L,
) error {
	c, err := valueArg(loc, info, 1)
	if err != nil {
		return err
	}
	entry.Append(helper.Br(0, Slots{ir.Int64(c)}))
	return nil
}

// BinaryOp returns a procedure applying kind to the two single-word operands.
// Arithmetic wraps modulo 2^64.
func BinaryOp[T types.Builder, L Libfunc](kind ir.OpKind) InfallibleFunc[T, L] {
	return func(_ *Context, _ *program.Registry[T, L], entry *ir.BlockBuilder, _ Location, helper *Helper, _ *metadata.Storage, _ L) {
		lhs, rhs := helper.Arg(0), helper.Arg(1)
		entry.Append(helper.Br(0, Slots{ir.Op(kind, lhs[0], rhs[0])}))
	}
}

// BuildFeltIsZero branches to 0 when the operand is zero and to 1 with the
// operand as a non-zero value otherwise.
func BuildFeltIsZero[T types.Builder, L Libfunc](
	_ *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	_ Location,
	helper *Helper,
	_ *metadata.Storage,
	_ L,
) {
	v := helper.Arg(0)
	entry.Append(helper.CondBr(ir.IsZero(v[0]), 0, 1, nil, []Slots{VarSlots(v)}))
}

// BuildU64OverflowingAdd branches to 0 with the sum, or to 1 with the wrapped
// sum when the addition overflows.
func BuildU64OverflowingAdd[T types.Builder, L Libfunc](
	_ *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	_ Location,
	helper *Helper,
	_ *metadata.Storage,
	_ L,
) {
	lhs, rhs := helper.Arg(0), helper.Arg(1)
	sum := helper.Temp("sum")
	entry.Append(
		ir.Assign(sum, ir.Op(ir.OpAdd, lhs[0], rhs[0])),
		helper.CondBr(ir.IsUnsignedLess(sum, lhs[0]), 1, 0, []Slots{{sum}}, []Slots{{sum}}),
	)
}

// BuildU64Eq branches to 1 when the operands are equal and to 0 otherwise.
func BuildU64Eq[T types.Builder, L Libfunc](
	_ *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	_ Location,
	helper *Helper,
	_ *metadata.Storage,
	_ L,
) {
	lhs, rhs := helper.Arg(0), helper.Arg(1)
	entry.Append(helper.CondBr(ir.IsEqual(lhs[0], rhs[0]), 1, 0, nil, nil))
}
