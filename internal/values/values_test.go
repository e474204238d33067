package values

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalldataArgumentPreservesOrder(t *testing.T) {
	in := []int64{3, 1, 2}
	arg := CalldataArgument(in)
	in[0] = 99

	want := Struct{Fields: []Value{Array{Elems: []Value{Scalar(3), Scalar(1), Scalar(2)}}}}
	assert.Equal(t, want, arg)
	assert.Equal(t, "{[3, 1, 2]}", arg.String())
}

func TestValueStrings(t *testing.T) {
	v := Enum{Tag: 1, DebugName: "Option", Payload: Struct{DebugName: "Pair", Fields: []Value{U64(2), Scalar(-1)}}}
	assert.Equal(t, "Option::1(Pair{2_u64, -1})", v.String())
	assert.Equal(t, "E::0(())", Enum{DebugName: "E"}.String())
}

func TestTrapReason(t *testing.T) {
	assert.Equal(t, "out of gas", TrapReason(TrapOutOfGas))
	assert.Equal(t, "trap 5", TrapReason(TrapUser+5))
	assert.Equal(t, "unknown trap 9", TrapReason(9))
}

func TestShortStrings(t *testing.T) {
	msg := "Insufficient balance"
	enc := EncodeShortStrings(msg)
	assert.Len(t, enc, 3)
	assert.Equal(t, msg, DecodeShortStrings(enc))

	assert.Empty(t, EncodeShortStrings(""))
	assert.Equal(t, "abc, 0x0", DecodeShortStrings([]int64{0x616263, 0}))
}

func success(data ...int64) *ExecutionResult {
	return &ExecutionResult{
		RemainingGas: 40,
		ReturnValues: []Value{Enum{Tag: 0, Payload: Struct{Fields: []Value{Array{Elems: Scalars(data)}}}}},
	}
}

func TestContractResultFromSuccess(t *testing.T) {
	res, err := ContractResultFrom(success(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, ContractExecutionResult{ReturnValues: []int64{1, 2, 3}, RemainingGas: 40}, res)
}

func TestContractResultFromRevert(t *testing.T) {
	data := EncodeShortStrings("denied")
	r := &ExecutionResult{
		ReturnValues: []Value{Enum{Tag: 1, Payload: Struct{Fields: []Value{
			Struct{},
			Array{Elems: Scalars(data)},
		}}}},
	}
	res, err := ContractResultFrom(r)
	require.NoError(t, err)
	assert.True(t, res.FailureFlag)
	assert.Equal(t, "denied", res.ErrorMessage)
	assert.Equal(t, data, res.ReturnValues)
}

func TestContractResultFromTrap(t *testing.T) {
	r := &ExecutionResult{RemainingGas: 0, Failure: &Failure{Code: TrapOutOfGas, Reason: TrapReason(TrapOutOfGas)}}
	res, err := ContractResultFrom(r)
	require.NoError(t, err)
	assert.True(t, res.FailureFlag)
	assert.Equal(t, "out of gas", res.ErrorMessage)
	assert.Empty(t, res.ReturnValues)
}

func TestContractResultFromRejectsOtherShapes(t *testing.T) {
	for _, r := range []*ExecutionResult{
		{},
		{ReturnValues: []Value{Scalar(1)}},
		{ReturnValues: []Value{Enum{Tag: 2, Payload: Struct{}}}},
		{ReturnValues: []Value{Enum{Tag: 0, Payload: Scalar(1)}}},
		{ReturnValues: []Value{Enum{Tag: 0, Payload: Struct{Fields: []Value{Array{Elems: []Value{U64(1)}}}}}}},
	} {
		_, err := ContractResultFrom(r)
		assert.True(t, errors.Is(err, ErrUnexpectedReturn), "got %v", err)
	}
}
