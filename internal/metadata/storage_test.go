package metadata

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrange/aot/internal/ids"
	"github.com/tinyrange/aot/internal/ir"
)

type counter struct{ n int }

type label string

func TestStorageIsTypeIndexed(t *testing.T) {
	s := NewStorage()
	require.True(t, Insert(s, counter{n: 1}))
	require.False(t, Insert(s, counter{n: 2}), "second insert of the same type must be rejected")
	require.True(t, Insert(s, label("x")))
	assert.Equal(t, 2, s.Len())

	c, ok := Get[counter](s)
	require.True(t, ok)
	assert.Equal(t, 1, c.n)

	c.n++
	c2, _ := Get[counter](s)
	assert.Equal(t, 2, c2.n, "Get must expose the stored entry, not a copy")

	_, ok = Get[*counter](s)
	assert.False(t, ok, "pointer and value types are distinct keys")
}

func TestStorageGetOrInsertAndRemove(t *testing.T) {
	s := NewStorage()
	calls := 0
	init := func() counter { calls++; return counter{n: 10} }

	first := GetOrInsert(s, init)
	second := GetOrInsert(s, init)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)

	v, ok := Remove[counter](s)
	require.True(t, ok)
	assert.Equal(t, 10, v.n)
	assert.Equal(t, 0, s.Len())

	_, ok = Remove[counter](s)
	assert.False(t, ok)
}

func TestInitialAvailableGas(t *testing.T) {
	fn := ids.FunctionId{Id: 1, DebugName: "fn_double"}
	other := ids.FunctionId{Id: 2}
	explicit := uint64(7)

	metered := GasMetadata{Metered: true, InitialGas: map[uint64]uint64{1: 100}}
	unmetered := GasMetadata{}

	cases := []struct {
		name     string
		meta     GasMetadata
		id       ids.FunctionId
		explicit *uint64
		want     uint64
		wantErr  bool
	}{
		{"explicit wins over metadata", metered, fn, &explicit, 7, false},
		{"metadata entry", metered, fn, nil, 100, false},
		{"metered without entry", metered, other, nil, 0, true},
		{"metered without entry but explicit", metered, other, &explicit, 7, false},
		{"unmetered defaults to zero", unmetered, other, nil, 0, false},
		{"unmetered explicit", unmetered, other, &explicit, 7, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.meta.InitialAvailableGas(tc.id, tc.explicit)
			if tc.wantErr {
				require.True(t, errors.Is(err, ErrInsufficientGas), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGasCost(t *testing.T) {
	meta := GasMetadata{StaticCost: map[uint64]uint64{3: 12}}
	c, ok := meta.Cost(ids.FunctionId{Id: 3})
	assert.True(t, ok)
	assert.Equal(t, uint64(12), c)
	_, ok = meta.Cost(ids.FunctionId{Id: 4})
	assert.False(t, ok)
}

func TestRuntimeBindingsDeclareOnce(t *testing.T) {
	module := ir.NewProgram("v1.0.0")
	s := NewStorage()
	bindings := GetOrInsert(s, func() RuntimeBindings { return RuntimeBindings{} })

	for i := 0; i < 3; i++ {
		call, err := bindings.Realloc(module, ir.Var("rt"), ir.Int64(0), ir.Int64(0), ir.Int64(4), "p")
		require.NoError(t, err)
		frag, ok := call.(ir.CallFragment)
		require.True(t, ok)
		assert.Equal(t, ir.MethodPointerFragment{Name: RuntimeReallocMethod}, frag.Target)
		assert.Len(t, frag.Args, 4)
	}
	assert.Equal(t, []string{RuntimeReallocMethod}, module.MethodNames())

	again := GetOrInsert(s, func() RuntimeBindings { return RuntimeBindings{} })
	_, err := again.HostCall(module, ir.Var("rt"), ir.Int64(1), ir.Int64(0), ir.Int64(0), ir.Var("gas"), "code")
	require.NoError(t, err)
	_, err = again.HostCall(module, ir.Var("rt"), ir.Int64(1), ir.Int64(0), ir.Int64(0), ir.Var("gas"), "code")
	require.NoError(t, err)

	assert.Equal(t, []string{RuntimeHostCallMethod, RuntimeReallocMethod}, module.MethodNames())
	assert.Equal(t, []string{RuntimeReallocMethod, RuntimeHostCallMethod}, again.Declared())
	assert.Empty(t, module.Exported)
}
