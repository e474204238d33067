//go:build (linux || darwin) && (amd64 || arm64)

package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrange/aot/internal/compiler"
	"github.com/tinyrange/aot/internal/hostcall"
	"github.com/tinyrange/aot/internal/ids"
	"github.com/tinyrange/aot/internal/ir"
	"github.com/tinyrange/aot/internal/ir/cgen"
	"github.com/tinyrange/aot/internal/libfuncs"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/trace"
	"github.com/tinyrange/aot/internal/types"
	"github.com/tinyrange/aot/internal/values"
)

func buildNative(t *testing.T, path string, gas map[string]uint64, opts ...Option) *AotNativeExecutor {
	t.Helper()
	if !cgen.DefaultToolchain().Available() {
		t.Skip("no C compiler available")
	}

	prog, err := program.Load(path)
	require.NoError(t, err)
	reg, err := program.NewRegistry[types.Core, *libfuncs.CoreLibfunc](prog, types.CoreCatalog{}, libfuncs.CoreCatalog{})
	require.NoError(t, err)
	mod, err := compiler.Compile(prog, reg, libfuncs.NewCoreTable[types.Core, *libfuncs.CoreLibfunc](), compiler.Options{InitialGas: gas})
	require.NoError(t, err)

	e, err := FromNativeModule(context.Background(), mod, ir.OptDefault, append(opts, WithTempDir(t.TempDir()))...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestNativeDouble(t *testing.T) {
	e := buildNative(t, "testdata/double.yaml", map[string]uint64{"fn_double": 100})
	fn := ids.FunctionId{Id: 0, DebugName: "fn_double"}

	ptr, err := e.FindFunctionPtr(fn)
	require.NoError(t, err)
	assert.NotZero(t, ptr)

	first, err := e.InvokeDynamic(fn, []values.Value{values.Scalar(21)}, nil)
	require.NoError(t, err)
	require.Nil(t, first.Failure)
	assert.Equal(t, []values.Value{values.Scalar(42)}, first.ReturnValues)
	assert.Equal(t, uint64(90), first.RemainingGas)

	second, err := e.InvokeDynamic(fn, []values.Value{values.Scalar(21)}, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	starved, err := e.InvokeDynamic(fn, []values.Value{values.Scalar(21)}, u64p(5))
	require.NoError(t, err)
	require.NotNil(t, starved.Failure)
	assert.Equal(t, values.TrapUser, starved.Failure.Code)
	assert.Empty(t, starved.ReturnValues)

	_, err = e.FindFunctionPtr(ids.FunctionId{Id: 99})
	assert.True(t, errors.Is(err, ErrSymbolNotFound))
}

func TestNativeContractStorageRead(t *testing.T) {
	buf := &trace.Buffer{}
	e := buildNative(t, "testdata/counter.yaml", nil, WithTrace(trace.NewWriter(buf)))
	entry := ids.FunctionId{Id: 0, DebugName: "entry"}

	state := hostcall.NewState()
	state.Cost = 3
	seed := uint64(10)
	require.NoError(t, state.StorageWrite(0, 5, 77, &seed))

	ok, err := e.InvokeContractDynamic(entry, []int64{1, 2}, u64p(1000), state)
	require.NoError(t, err)
	assert.False(t, ok.FailureFlag)
	assert.Equal(t, []int64{77}, ok.ReturnValues)
	assert.Equal(t, uint64(997), ok.RemainingGas)

	rejected, err := e.InvokeContractDynamic(entry, []int64{1, 2}, u64p(1000), nil)
	require.NoError(t, err)
	assert.True(t, rejected.FailureFlag)
	assert.Equal(t, "storage_read: "+hostcall.ErrUnsupported.Error(), rejected.ErrorMessage)
	assert.Equal(t, uint64(1000), rejected.RemainingGas)

	starved, err := e.InvokeContractDynamic(entry, nil, u64p(2), state)
	require.NoError(t, err)
	assert.True(t, starved.FailureFlag)
	assert.Equal(t, "Out of gas", starved.ErrorMessage)

	r, err := trace.NewReader(buf, int64(buf.Len()))
	require.NoError(t, err)
	var calls []trace.HostCall
	require.NoError(t, r.Search(trace.SearchOptions{Kinds: []trace.Kind{trace.KindHostCall}}, func(rec trace.Record) error {
		assert.Equal(t, "entry", rec.Source)
		c, err := trace.DecodeHostCall(rec.Data)
		require.NoError(t, err)
		calls = append(calls, c)
		return nil
	}))
	require.Len(t, calls, 3)
	assert.Equal(t, hostcall.SelectorStorageRead, calls[0].Selector)
	assert.Equal(t, []uint64{0, 5}, calls[0].Request)
	assert.Equal(t, []uint64{77}, calls[0].Response)
	assert.Equal(t, uint64(1000), calls[0].GasBefore)
	assert.Equal(t, uint64(997), calls[0].GasAfter)
	assert.Equal(t, hostcall.ResultRevert, calls[1].Result)
	assert.Equal(t, hostcall.ResultRevert, calls[2].Result)

	n, err := r.Count(trace.SearchOptions{Kinds: []trace.Kind{trace.KindInvocation}})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
