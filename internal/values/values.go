// Package values defines the value trees exchanged with compiled code and the
// result shapes returned by the executor.
package values

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a runtime value crossing the native boundary.
type Value interface {
	isValue()
	String() string
}

// Scalar is a field element. Native code operates on it modulo 2^64.
type Scalar int64

// U64 is an unsigned 64-bit integer.
type U64 uint64

// Array is an ordered sequence of values of one type.
type Array struct {
	Elems []Value
}

// Struct is a record of positional fields.
type Struct struct {
	Fields    []Value
	DebugName string
}

// Enum is a tagged variant. Payload is the value of variant Tag.
type Enum struct {
	Tag       int
	Payload   Value
	DebugName string
}

func (Scalar) isValue() {}
func (U64) isValue()    {}
func (Array) isValue()  {}
func (Struct) isValue() {}
func (Enum) isValue()   {}

func (s Scalar) String() string { return strconv.FormatInt(int64(s), 10) }

func (u U64) String() string { return strconv.FormatUint(uint64(u), 10) + "_u64" }

func (a Array) String() string {
	return "[" + join(a.Elems) + "]"
}

func (s Struct) String() string {
	return s.DebugName + "{" + join(s.Fields) + "}"
}

func (e Enum) String() string {
	payload := "()"
	if e.Payload != nil {
		payload = e.Payload.String()
	}
	return fmt.Sprintf("%s::%d(%s)", e.DebugName, e.Tag, payload)
}

func join(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// Scalars wraps raw field values.
func Scalars(in []int64) []Value {
	out := make([]Value, len(in))
	for i, v := range in {
		out[i] = Scalar(v)
	}
	return out
}

// CalldataArgument wraps a flat sequence of field values into the single
// composite argument taken by contract entry points: Struct{Array{...}}.
// Order is preserved and the input slice is not retained.
func CalldataArgument(calldata []int64) Value {
	return Struct{Fields: []Value{Array{Elems: Scalars(calldata)}}}
}
