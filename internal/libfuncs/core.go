package libfuncs

import (
	"github.com/tinyrange/aot/internal/hostcall"
	"github.com/tinyrange/aot/internal/ir"
	"github.com/tinyrange/aot/internal/types"
)

// RegisterCore adds the procedures of the core catalog to t.
func RegisterCore[T types.Builder, L Libfunc](t *Table[T, L]) {
	t.Register("jump", Infallible[T, L](BuildJump[T, L]))
	t.Register("branch_align", Infallible[T, L](BuildBranchAlign[T, L]))
	t.Register("trap", BuildTrap[T, L])

	t.Register("dup", Infallible[T, L](BuildDup[T, L]))
	t.Register("drop", Infallible[T, L](BuildDrop[T, L]))
	t.Register("store_temp", Infallible[T, L](BuildIdentity[T, L]))
	t.Register("rename", Infallible[T, L](BuildIdentity[T, L]))

	t.Register("felt252_const", BuildConst[T, L])
	t.Register("felt252_add", Infallible[T, L](BinaryOp[T, L](ir.OpAdd)))
	t.Register("felt252_sub", Infallible[T, L](BinaryOp[T, L](ir.OpSub)))
	t.Register("felt252_mul", Infallible[T, L](BinaryOp[T, L](ir.OpMul)))
	t.Register("felt252_is_zero", Infallible[T, L](BuildFeltIsZero[T, L]))

	t.Register("u64_const", BuildConst[T, L])
	t.Register("u64_overflowing_add", Infallible[T, L](BuildU64OverflowingAdd[T, L]))
	t.Register("u64_eq", Infallible[T, L](BuildU64Eq[T, L]))

	t.Register("struct_construct", Infallible[T, L](BuildStructConstruct[T, L]))
	t.Register("struct_deconstruct", Infallible[T, L](BuildStructDeconstruct[T, L]))
	t.Register("enum_init", BuildEnumInit[T, L])
	t.Register("enum_match", Infallible[T, L](BuildEnumMatch[T, L]))

	t.Register("array_new", Infallible[T, L](BuildArrayNew[T, L]))
	t.Register("array_append", BuildArrayAppend[T, L])
	t.Register("array_len", Infallible[T, L](BuildArrayLen[T, L]))
	t.Register("array_get", BuildArrayGet[T, L])

	t.Register("withdraw_gas", BuildWithdrawGas[T, L])
	t.Register("function_call", BuildFunctionCall[T, L])

	t.Register("storage_read_syscall", Syscall[T, L](hostcall.SelectorStorageRead))
	t.Register("storage_write_syscall", Syscall[T, L](hostcall.SelectorStorageWrite))
	t.Register("emit_event_syscall", Syscall[T, L](hostcall.SelectorEmitEvent))
	t.Register("call_contract_syscall", Syscall[T, L](hostcall.SelectorCallContract))
	t.Register("get_block_number_syscall", Syscall[T, L](hostcall.SelectorGetBlockNumber))
}

// NewCoreTable returns a table holding the core catalog.
func NewCoreTable[T types.Builder, L Libfunc]() *Table[T, L] {
	t := NewTable[T, L]()
	RegisterCore(t)
	return t
}
