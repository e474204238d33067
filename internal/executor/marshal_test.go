package executor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrange/aot/internal/ids"
	"github.com/tinyrange/aot/internal/libfuncs"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/types"
	"github.com/tinyrange/aot/internal/values"
)

const marshalTypes = `
types:
  - {id: 0, name: felt252, generic: felt252}
  - {id: 1, name: u64, generic: u64}
  - {id: 2, name: "NonZero<felt252>", generic: NonZero, args: [{type: 0}]}
  - {id: 3, name: "Array<felt252>", generic: Array, args: [{type: 0}]}
  - {id: 4, name: Pair, generic: Struct, args: [{type: 0}, {type: 1}]}
  - {id: 5, name: Result, generic: Enum, args: [{type: 4}, {type: 0}]}
  - {id: 6, name: "Array<Pair>", generic: Array, args: [{type: 4}]}
`

// sliceMemory hands out addresses into a word slice starting at 0x1000.
type sliceMemory struct {
	words []uint64
}

const sliceBase = 0x1000

func (m *sliceMemory) Store(words []uint64) (uint64, error) {
	ptr := sliceBase + uint64(len(m.words))*8
	m.words = append(m.words, words...)
	return ptr, nil
}

func (m *sliceMemory) Load(ptr uint64, n int) ([]uint64, error) {
	if ptr < sliceBase || (ptr-sliceBase)%8 != 0 {
		return nil, fmt.Errorf("bad address %#x", ptr)
	}
	off := int((ptr - sliceBase) / 8)
	if off+n > len(m.words) {
		return nil, errors.New("load past end")
	}
	return append([]uint64(nil), m.words[off:off+n]...), nil
}

type marshalFixture struct {
	m   *marshaler
	mem *sliceMemory
	reg *program.Registry[types.Core, *libfuncs.CoreLibfunc]
}

func newMarshalFixture(t *testing.T) marshalFixture {
	t.Helper()
	prog, err := program.Parse([]byte(marshalTypes))
	require.NoError(t, err)
	reg, err := program.NewRegistry[types.Core, *libfuncs.CoreLibfunc](prog, types.CoreCatalog{}, libfuncs.CoreCatalog{})
	require.NoError(t, err)
	mem := &sliceMemory{}
	return marshalFixture{m: &marshaler{reg: reg, mem: mem}, mem: mem, reg: reg}
}

func (f marshalFixture) ty(t *testing.T, id uint64) ids.ConcreteTypeId {
	t.Helper()
	tid, ok := f.reg.TypeId(id)
	require.True(t, ok)
	return tid
}

func TestEncodeLayout(t *testing.T) {
	f := newMarshalFixture(t)

	words, err := f.m.encode(nil, values.Enum{Tag: 1, Payload: values.Scalar(9)}, f.ty(t, 5))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 9, 0}, words, "short variant is padded to the widest")

	words, err = f.m.encode(nil, values.Enum{Tag: 0, Payload: values.Struct{Fields: []values.Value{values.Scalar(-1), values.U64(7)}}}, f.ty(t, 5))
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, ^uint64(0), 7}, words)

	words, err = f.m.encode(nil, values.Array{Elems: values.Scalars([]int64{4, 5, 6})}, f.ty(t, 3))
	require.NoError(t, err)
	assert.Equal(t, []uint64{sliceBase, 3}, words)
	assert.Equal(t, []uint64{4, 5, 6}, f.mem.words)

	words, err = f.m.encode(nil, values.Array{}, f.ty(t, 3))
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 0}, words)
}

func TestMarshalRoundTrip(t *testing.T) {
	f := newMarshalFixture(t)
	pairs := f.ty(t, 6)
	in := values.Array{Elems: []values.Value{
		values.Struct{DebugName: "Pair", Fields: []values.Value{values.Scalar(1), values.U64(2)}},
		values.Struct{DebugName: "Pair", Fields: []values.Value{values.Scalar(3), values.U64(4)}},
	}}

	words, err := f.m.encode(nil, in, pairs)
	require.NoError(t, err)
	out, n, err := f.m.decode(words, pairs)
	require.NoError(t, err)
	assert.Equal(t, types.ArrayHeaderSlots, n)
	assert.Equal(t, in, out)

	result := f.ty(t, 5)
	enum := values.Enum{Tag: 1, Payload: values.Scalar(11), DebugName: "Result"}
	words, err = f.m.encode(nil, enum, result)
	require.NoError(t, err)
	out, n, err = f.m.decode(words, result)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, enum, out)
}

func TestEncodeArgsAndDecodeRets(t *testing.T) {
	f := newMarshalFixture(t)
	tys := []ids.ConcreteTypeId{f.ty(t, 0), f.ty(t, 4), f.ty(t, 1)}
	args := []values.Value{
		values.Scalar(5),
		values.Struct{DebugName: "Pair", Fields: []values.Value{values.Scalar(6), values.U64(7)}},
		values.U64(8),
	}

	words, err := f.m.encodeArgs(tys, args)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5, 6, 7, 8}, words)

	n, err := f.m.frameWords(tys)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	rets, err := f.m.decodeRets(tys, words)
	require.NoError(t, err)
	assert.Equal(t, args, rets)
}

func TestEncodeRejectsMismatchedValues(t *testing.T) {
	f := newMarshalFixture(t)
	cases := []struct {
		name string
		v    values.Value
		ty   uint64
	}{
		{"scalar for u64", values.Scalar(1), 1},
		{"u64 for scalar", values.U64(1), 0},
		{"zero nonzero", values.Scalar(0), 2},
		{"struct arity", values.Struct{Fields: []values.Value{values.Scalar(1)}}, 4},
		{"enum tag", values.Enum{Tag: 2, Payload: values.Scalar(1)}, 5},
		{"enum payload", values.Enum{Tag: 1, Payload: values.U64(1)}, 5},
		{"array element", values.Array{Elems: []values.Value{values.U64(1)}}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.m.encode(nil, tc.v, f.ty(t, tc.ty))
			assert.True(t, errors.Is(err, ErrInvalidArguments), "got %v", err)
		})
	}

	_, err := f.m.encodeArgs([]ids.ConcreteTypeId{f.ty(t, 0)}, nil)
	assert.True(t, errors.Is(err, ErrInvalidArguments))
}

func TestDecodeRejectsBadTag(t *testing.T) {
	f := newMarshalFixture(t)
	_, _, err := f.m.decode([]uint64{2, 0, 0}, f.ty(t, 5))
	assert.Error(t, err)
	_, _, err = f.m.decode([]uint64{0}, f.ty(t, 5))
	assert.Error(t, err)
}
