package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrange/aot/internal/ids"
)

type mapResolver map[uint64]Core

func (m mapResolver) ResolveType(id ids.ConcreteTypeId) (Builder, error) {
	ty, ok := m[id.Id]
	if !ok {
		return nil, fmt.Errorf("no type %s", id)
	}
	return ty, nil
}

func tid(id uint64) ids.ConcreteTypeId { return ids.ConcreteTypeId{Id: id} }

func testResolver() mapResolver {
	return mapResolver{
		0: Scalar(),
		1: U64(),
		2: Array(tid(0)),
		3: NonZero(tid(1)),
		4: Struct(tid(0), tid(2)),
		5: Enum(tid(4), tid(0)),
		6: Struct(),
		7: Enum(tid(6)),
		8: Struct(tid(5), tid(3)),
		9: Struct(tid(99)),
	}
}

func TestSlotsOf(t *testing.T) {
	r := testResolver()
	cases := []struct {
		id   uint64
		want int
	}{
		{0, 1},
		{1, 1},
		{2, ArrayHeaderSlots},
		{3, 1},
		{4, 3},
		{5, 4},
		{6, 0},
		{7, 1},
		{8, 5},
	}
	for _, tc := range cases {
		l, err := SlotsOf(r, tid(tc.id))
		require.NoError(t, err, "type %d", tc.id)
		assert.Equal(t, tc.want, l.Slots, "type %d", tc.id)
	}
}

func TestSlotsOfUnknownMember(t *testing.T) {
	r := testResolver()
	_, err := SlotsOf(r, tid(9))
	assert.Error(t, err)
	_, err = SlotsOf(r, tid(42))
	assert.Error(t, err)
}

func TestMemberOffsets(t *testing.T) {
	r := testResolver()
	offsets, err := MemberOffsets(r, []ids.ConcreteTypeId{tid(0), tid(2), tid(5), tid(1)})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 3, 7}, offsets)

	_, err = MemberOffsets(r, []ids.ConcreteTypeId{tid(0), tid(42)})
	assert.Error(t, err)
}

func TestCoreCatalogSpecializeType(t *testing.T) {
	var c CoreCatalog
	id := ids.ConcreteTypeId{Id: 3, DebugName: "T"}

	cases := []struct {
		generic ids.GenericTypeId
		args    []ids.GenericArg
		kind    Kind
		members []ids.ConcreteTypeId
	}{
		{"felt252", nil, KindScalar, nil},
		{"u64", nil, KindU64, nil},
		{"Struct", nil, KindStruct, []ids.ConcreteTypeId{}},
		{"Struct", []ids.GenericArg{ids.TypeArg(tid(0)), ids.TypeArg(tid(1))}, KindStruct, []ids.ConcreteTypeId{tid(0), tid(1)}},
		{"Enum", []ids.GenericArg{ids.TypeArg(tid(1))}, KindEnum, []ids.ConcreteTypeId{tid(1)}},
		{"Array", []ids.GenericArg{ids.TypeArg(tid(0))}, KindArray, []ids.ConcreteTypeId{tid(0)}},
		{"NonZero", []ids.GenericArg{ids.TypeArg(tid(1))}, KindNonZero, []ids.ConcreteTypeId{tid(1)}},
	}
	for _, tc := range cases {
		ty, err := c.SpecializeType(id, tc.generic, tc.args)
		require.NoError(t, err, string(tc.generic))
		assert.Equal(t, tc.kind, ty.Kind(), string(tc.generic))
		assert.Equal(t, tc.members, ty.Members(), string(tc.generic))
	}
}

func TestCoreCatalogRejectsBadDeclarations(t *testing.T) {
	var c CoreCatalog
	id := ids.ConcreteTypeId{Id: 3, DebugName: "T"}

	_, err := c.SpecializeType(id, "Box", nil)
	assert.True(t, errors.Is(err, ErrUnknownGenericType))

	bad := map[string]struct {
		generic ids.GenericTypeId
		args    []ids.GenericArg
	}{
		"enum without variants": {"Enum", nil},
		"array without element": {"Array", nil},
		"array with two types":  {"Array", []ids.GenericArg{ids.TypeArg(tid(0)), ids.TypeArg(tid(1))}},
		"nonzero with two":      {"NonZero", []ids.GenericArg{ids.TypeArg(tid(0)), ids.TypeArg(tid(1))}},
		"struct with a value":   {"Struct", []ids.GenericArg{ids.ValueArg(1)}},
	}
	for name, tc := range bad {
		_, err := c.SpecializeType(id, tc.generic, tc.args)
		assert.Error(t, err, name)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "enum", KindEnum.String())
	assert.Equal(t, "non_zero", KindNonZero.String())
	assert.Equal(t, "invalid", Kind(99).String())
}
