package libfuncs

import (
	"github.com/tinyrange/aot/internal/ir"
	"github.com/tinyrange/aot/internal/metadata"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/types"
	"github.com/tinyrange/aot/internal/values"
)

// BuildBranchAlign only continues to its single successor.
func BuildBranchAlign[T types.Builder, L Libfunc](
	_ *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	_ Location,
	helper *Helper,
	_ *metadata.Storage,
	_ L,
) {
	entry.Append(helper.Br(0))
}

// BuildTrap leaves the function with a user trap code.
func BuildTrap[T types.Builder, L Libfunc](
	_ *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	loc Location,
	helper *Helper,
	_ *metadata.Storage,
	info L,
) error {
	code, err := valueArg(loc, info, 0)
	if err != nil {
		return err
	}
	entry.Append(helper.Trap(values.TrapUser + uint64(code)))
	return nil
}

// BuildDup copies its operand into both results.
func BuildDup[T types.Builder, L Libfunc](
	_ *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	_ Location,
	helper *Helper,
	_ *metadata.Storage,
	_ L,
) {
	v := VarSlots(helper.Arg(0))
	entry.Append(helper.Br(0, v, v))
}

// BuildDrop discards its operand.
func BuildDrop[T types.Builder, L Libfunc](
	_ *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	_ Location,
	helper *Helper,
	_ *metadata.Storage,
	_ L,
) {
	entry.Append(helper.Br(0))
}

// BuildIdentity forwards its operand unchanged. It serves store_temp and
// rename, which only matter to the source VM's memory model.
func BuildIdentity[T types.Builder, L Libfunc](
	_ *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	_ Location,
	helper *Helper,
	_ *metadata.Storage,
	_ L,
) {
	entry.Append(helper.Br(0, VarSlots(helper.Arg(0))))
}
