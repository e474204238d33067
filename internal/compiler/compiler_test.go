package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrange/aot/internal/ids"
	"github.com/tinyrange/aot/internal/ir"
	"github.com/tinyrange/aot/internal/ir/cgen"
	"github.com/tinyrange/aot/internal/libfuncs"
	"github.com/tinyrange/aot/internal/metadata"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/types"
)

type coreRegistry = program.Registry[types.Core, *libfuncs.CoreLibfunc]

func load(t *testing.T, src string) (*program.Program, *coreRegistry) {
	t.Helper()
	prog, err := program.Parse([]byte(src))
	require.NoError(t, err)
	reg, err := program.NewRegistry[types.Core, *libfuncs.CoreLibfunc](prog, types.CoreCatalog{}, libfuncs.CoreCatalog{})
	require.NoError(t, err)
	return prog, reg
}

func loadFile(t *testing.T, path string) (*program.Program, *coreRegistry) {
	t.Helper()
	prog, err := program.Load(path)
	require.NoError(t, err)
	reg, err := program.NewRegistry[types.Core, *libfuncs.CoreLibfunc](prog, types.CoreCatalog{}, libfuncs.CoreCatalog{})
	require.NoError(t, err)
	return prog, reg
}

func coreTable() *libfuncs.Table[types.Core, *libfuncs.CoreLibfunc] {
	return libfuncs.NewCoreTable[types.Core, *libfuncs.CoreLibfunc]()
}

func TestCompileDouble(t *testing.T) {
	prog, reg := loadFile(t, "testdata/double.yaml")

	var progress []int
	mod, err := Compile(prog, reg, coreTable(), Options{
		InitialGas: map[string]uint64{"fn_double": 100},
		Progress: func(done, total int, _ ids.FunctionId) {
			progress = append(progress, done, total)
		},
	})
	require.NoError(t, err)

	_, err = uuid.Parse(mod.ID)
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 1}, progress)
	assert.Equal(t, ABIVersion, mod.Module.ABIVersion)

	symbol := ids.EntrySymbol(ids.FunctionId{Id: 0, DebugName: "fn_double"})
	require.True(t, mod.Module.HasMethod(symbol))
	assert.Equal(t, []string{symbol}, mod.Module.Exported)
	assert.Equal(t, []string{"args", "rets", "gas", "rt"}, ir.Params(mod.Module.Methods[symbol]))

	gas, ok := metadata.Get[metadata.GasMetadata](mod.Metadata)
	require.True(t, ok)
	assert.True(t, gas.Metered)
	fid := ids.FunctionId{Id: 0, DebugName: "fn_double"}
	cost, ok := gas.Cost(fid)
	require.True(t, ok)
	assert.Equal(t, uint64(10), cost)

	initial, err := gas.InitialAvailableGas(fid, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), initial)

	src, err := cgen.Emit(mod.Module)
	require.NoError(t, err)
	for _, want := range []string{"s0:;", "s4:;", symbol, "v3_0"} {
		assert.Contains(t, string(src), want)
	}
}

const unmetered = `
types:
  - {id: 0, name: felt252, generic: felt252}
  - {id: 1, name: Pair, generic: Struct, args: [{type: 0}, {type: 0}]}
libfuncs:
  - {id: 0, name: "struct_construct<Pair>", generic: struct_construct, args: [{type: 1}]}
  - {id: 1, name: "struct_deconstruct<Pair>", generic: struct_deconstruct, args: [{type: 1}]}
  - {id: 2, name: "jump", generic: jump}
statements:
  - {invoke: 0, args: [0, 1], branches: [{results: [2]}]}
  - {invoke: 2, branches: [{target: 3}]}
  - {return: [2]}
  - {invoke: 1, args: [2], branches: [{results: [4, 5]}]}
  - {return: [5, 4]}
functions:
  - {id: 7, name: swap, params: [{var: 0, type: 0}, {var: 1, type: 0}], rets: [0, 0], entry: 0}
`

func TestCompileUnmeteredSkipsUnreachable(t *testing.T) {
	prog, reg := load(t, unmetered)
	mod, err := Compile(prog, reg, coreTable(), Options{})
	require.NoError(t, err)

	gas, ok := metadata.Get[metadata.GasMetadata](mod.Metadata)
	require.True(t, ok)
	assert.False(t, gas.Metered)
	initial, err := gas.InitialAvailableGas(ids.FunctionId{Id: 7}, nil)
	require.NoError(t, err)
	assert.Zero(t, initial)

	src, err := cgen.Emit(mod.Module)
	require.NoError(t, err)
	assert.Contains(t, string(src), "s3:;")
	assert.NotContains(t, string(src), "s2:;")
}

func TestCompileInitialGasById(t *testing.T) {
	prog, reg := load(t, unmetered)
	mod, err := Compile(prog, reg, coreTable(), Options{InitialGas: map[string]uint64{"7": 55}})
	require.NoError(t, err)
	gas, _ := metadata.Get[metadata.GasMetadata](mod.Metadata)
	assert.Equal(t, uint64(55), gas.InitialGas[7])

	_, err = Compile(prog, reg, coreTable(), Options{InitialGas: map[string]uint64{"nope": 1}})
	assert.True(t, errors.Is(err, program.ErrUnknownFunction))
}

func TestValidateReportsEveryUnsupportedLibfunc(t *testing.T) {
	prog, reg := loadFile(t, "testdata/double.yaml")
	table := libfuncs.NewTable[types.Core, *libfuncs.CoreLibfunc]()
	table.Register("withdraw_gas", libfuncs.BuildWithdrawGas[types.Core, *libfuncs.CoreLibfunc])

	_, err := Compile(prog, reg, table, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, libfuncs.ErrUnsupportedLibfunc))
	for _, g := range []string{"dup", "felt252_add", "trap"} {
		assert.Contains(t, err.Error(), g)
	}
}

func TestValidateStatementShape(t *testing.T) {
	src := `
types:
  - {id: 0, name: felt252, generic: felt252}
libfuncs:
  - {id: 0, name: "dup<felt252>", generic: dup, args: [{type: 0}]}
  - {id: 1, name: "jump", generic: jump}
statements:
  - {invoke: 0, args: [0, 0], branches: [{results: [1]}]}
  - {invoke: 1, branches: [{}]}
  - {invoke: 1, branches: [{target: 9}]}
functions:
  - {id: 0, name: f, params: [{var: 0, type: 0}], entry: 5}
`
	prog, reg := load(t, src)
	err := Validate(prog, reg, coreTable())
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "takes 1 arguments, got 2")
	assert.Contains(t, msg, "produces 2 results, got 1")
	assert.Contains(t, msg, "cannot fall through")
	assert.Contains(t, msg, "out of range")
	assert.Contains(t, msg, "entry point 5")
}

func TestCompileRejectsUndefinedVariable(t *testing.T) {
	src := `
types:
  - {id: 0, name: felt252, generic: felt252}
statements:
  - {return: [3]}
functions:
  - {id: 0, name: f, params: [{var: 0, type: 0}], rets: [0], entry: 0}
`
	prog, reg := load(t, src)
	_, err := Compile(prog, reg, coreTable(), Options{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "used before it is defined"))
}

func TestCompileRejectsTypeMismatch(t *testing.T) {
	src := `
types:
  - {id: 0, name: felt252, generic: felt252}
  - {id: 1, name: u64, generic: u64}
libfuncs:
  - {id: 0, name: felt252_add, generic: felt252_add, args: [{type: 0}]}
statements:
  - {invoke: 0, args: [0, 0], branches: [{results: [1]}]}
  - {return: [1]}
functions:
  - {id: 0, name: f, params: [{var: 0, type: 1}], rets: [0], entry: 0}
`
	prog, reg := load(t, src)
	_, err := Compile(prog, reg, coreTable(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want")
}

func TestCompileRejectsRetypedVariable(t *testing.T) {
	src := `
types:
  - {id: 0, name: felt252, generic: felt252}
  - {id: 1, name: u64, generic: u64}
  - {id: 2, name: Pair, generic: Struct, args: [{type: 0}, {type: 0}]}
libfuncs:
  - {id: 0, name: "u64_const<7>", generic: u64_const, args: [{type: 1}, {value: 7}]}
  - {id: 1, name: "drop<u64>", generic: drop, args: [{type: 1}]}
  - {id: 2, name: "struct_construct<Pair>", generic: struct_construct, args: [{type: 2}]}
statements:
  - {invoke: 0, branches: [{results: [1]}]}
  - {invoke: 1, args: [1], branches: [{}]}
  - {invoke: 2, args: [2, 3], branches: [{results: [1]}]}
  - {return: [1]}
functions:
  - {id: 0, name: f, params: [{var: 2, type: 0}, {var: 3, type: 0}], rets: [2], entry: 0}
`
	prog, reg := load(t, src)
	require.NoError(t, Validate(prog, reg, coreTable()))
	var err error
	require.NotPanics(t, func() { _, err = Compile(prog, reg, coreTable(), Options{}) })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVariableRetyped))
}

func TestCompileAllowsReusingVariableWithSameType(t *testing.T) {
	src := `
types:
  - {id: 0, name: felt252, generic: felt252}
libfuncs:
  - {id: 0, name: felt252_add, generic: felt252_add, args: [{type: 0}]}
statements:
  - {invoke: 0, args: [0, 0], branches: [{results: [1]}]}
  - {invoke: 0, args: [1, 1], branches: [{results: [1]}]}
  - {return: [1]}
functions:
  - {id: 0, name: f, params: [{var: 0, type: 0}], rets: [0], entry: 0}
`
	prog, reg := load(t, src)
	_, err := Compile(prog, reg, coreTable(), Options{})
	require.NoError(t, err)
}

func TestCompileCallsShareCalleeSymbol(t *testing.T) {
	src := `
types:
  - {id: 0, name: felt252, generic: felt252}
libfuncs:
  - {id: 0, name: "call_inner", generic: function_call, args: [{function: 1}]}
statements:
  - {invoke: 0, args: [0], branches: [{results: [1]}]}
  - {return: [1]}
  - {return: [0]}
functions:
  - {id: 0, name: outer, params: [{var: 0, type: 0}], rets: [0], entry: 0}
  - {id: 1, name: inner, params: [{var: 0, type: 0}], rets: [0], entry: 2}
`
	prog, reg := load(t, src)
	mod, err := Compile(prog, reg, coreTable(), Options{})
	require.NoError(t, err)
	inner := ids.EntrySymbol(ids.FunctionId{Id: 1, DebugName: "inner"})
	assert.Len(t, mod.Module.Exported, 2)

	c, err := cgen.Emit(mod.Module)
	require.NoError(t, err)
	assert.Contains(t, string(c), inner+"(")
}

func TestLabelsAndWords(t *testing.T) {
	assert.Equal(t, ir.Label("s12"), StatementLabel(12))
	assert.Equal(t, []ir.Var{"v3_0", "v3_1"}, VarWords(3, 2))
	assert.Empty(t, VarWords(3, 0))
}
