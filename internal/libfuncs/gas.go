package libfuncs

import (
	"github.com/tinyrange/aot/internal/ir"
	"github.com/tinyrange/aot/internal/metadata"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/types"
)

// BuildWithdrawGas subtracts the cost from the gas counter and continues to
// successor 0, or leaves the counter untouched and continues to successor 1
// when the remaining gas is insufficient. The cost is recorded in the
// compilation's GasMetadata.
func BuildWithdrawGas[T types.Builder, L Libfunc](
	_ *Context,
	_ *program.Registry[T, L],
	entry *ir.BlockBuilder,
	loc Location,
	helper *Helper,
	meta *metadata.Storage,
	info L,
) error {
	cost, err := valueArg(loc, info, 0)
	if err != nil {
		return err
	}

	gas := metadata.GetOrInsert(meta, func() metadata.GasMetadata {
		return metadata.GasMetadata{
			InitialGas: make(map[uint64]uint64),
			StaticCost: make(map[uint64]uint64),
		}
	})
	gas.Metered = true
	gas.StaticCost[loc.Function.Id] += uint64(cost)

	counter := GasParam.Mem()
	entry.Append(ir.If(
		ir.IsUnsignedGreaterOrEqual(counter, ir.Int64(cost)),
		ir.Block{
			ir.Assign(counter, ir.Op(ir.OpSub, counter, ir.Int64(cost))),
			helper.Br(0),
		},
		helper.Br(1),
	))
	return nil
}
