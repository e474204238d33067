package values

import (
	"errors"
	"fmt"
	"strings"
)

// Trap codes returned by compiled entry points. Zero means success; codes at
// or above TrapUser come from explicit trap statements.
const (
	TrapUnreachable uint64 = 1
	TrapOutOfGas    uint64 = 2
	TrapOutOfMemory uint64 = 3
	TrapPanic       uint64 = 4
	TrapUser        uint64 = 0x100
)

// TrapReason describes a trap code.
func TrapReason(code uint64) string {
	switch {
	case code == TrapUnreachable:
		return "unreachable"
	case code == TrapOutOfGas:
		return "out of gas"
	case code == TrapOutOfMemory:
		return "out of memory"
	case code == TrapPanic:
		return "panic"
	case code >= TrapUser:
		return fmt.Sprintf("trap %d", code-TrapUser)
	default:
		return fmt.Sprintf("unknown trap %d", code)
	}
}

// Failure describes an in-program fault. It is data, not a call error.
type Failure struct {
	Code   uint64
	Reason string
}

func (f Failure) String() string {
	return fmt.Sprintf("%s (code %d)", f.Reason, f.Code)
}

// ExecutionResult is the outcome of one invocation.
type ExecutionResult struct {
	ReturnValues []Value
	RemainingGas uint64
	// Failure is set when the program trapped; ReturnValues is then empty.
	Failure *Failure
}

func (r *ExecutionResult) Failed() bool {
	return r.Failure != nil
}

// ContractExecutionResult is an ExecutionResult reshaped for the calldata
// convention.
type ContractExecutionResult struct {
	FailureFlag  bool
	ReturnValues []int64
	ErrorMessage string
	RemainingGas uint64
}

var ErrUnexpectedReturn = errors.New("unexpected contract return shape")

// ContractResultFrom reshapes r. Contract entry points return a single enum:
// variant 0 carries Struct{Array} with the return data, variant 1 carries
// Struct{_, Array} with the revert reason as short strings.
func ContractResultFrom(r *ExecutionResult) (ContractExecutionResult, error) {
	out := ContractExecutionResult{RemainingGas: r.RemainingGas}
	if r.Failure != nil {
		out.FailureFlag = true
		out.ErrorMessage = r.Failure.Reason
		return out, nil
	}
	if len(r.ReturnValues) == 0 {
		return out, fmt.Errorf("%w: no return value", ErrUnexpectedReturn)
	}

	enum, ok := r.ReturnValues[len(r.ReturnValues)-1].(Enum)
	if !ok {
		return out, fmt.Errorf("%w: got %T, want enum", ErrUnexpectedReturn, r.ReturnValues[len(r.ReturnValues)-1])
	}
	payload, ok := enum.Payload.(Struct)
	if !ok {
		return out, fmt.Errorf("%w: enum payload %T is not a struct", ErrUnexpectedReturn, enum.Payload)
	}

	switch enum.Tag {
	case 0:
		if len(payload.Fields) != 1 {
			return out, fmt.Errorf("%w: success payload has %d fields", ErrUnexpectedReturn, len(payload.Fields))
		}
		data, err := scalarsOf(payload.Fields[0])
		if err != nil {
			return out, err
		}
		out.ReturnValues = data
	case 1:
		if len(payload.Fields) != 2 {
			return out, fmt.Errorf("%w: revert payload has %d fields", ErrUnexpectedReturn, len(payload.Fields))
		}
		data, err := scalarsOf(payload.Fields[1])
		if err != nil {
			return out, err
		}
		out.FailureFlag = true
		out.ReturnValues = data
		out.ErrorMessage = DecodeShortStrings(data)
	default:
		return out, fmt.Errorf("%w: enum tag %d", ErrUnexpectedReturn, enum.Tag)
	}
	return out, nil
}

func scalarsOf(v Value) ([]int64, error) {
	arr, ok := v.(Array)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want array", ErrUnexpectedReturn, v)
	}
	out := make([]int64, len(arr.Elems))
	for i, e := range arr.Elems {
		s, ok := e.(Scalar)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is %T", ErrUnexpectedReturn, i, e)
		}
		out[i] = int64(s)
	}
	return out, nil
}

// ShortStringBytes is the number of ASCII bytes packed into one field value.
const ShortStringBytes = 7

// EncodeShortStrings packs msg big-endian into field values of at most
// ShortStringBytes bytes each.
func EncodeShortStrings(msg string) []int64 {
	var out []int64
	for len(msg) > 0 {
		n := min(len(msg), ShortStringBytes)
		var v int64
		for i := 0; i < n; i++ {
			v = v<<8 | int64(msg[i])
		}
		out = append(out, v)
		msg = msg[n:]
	}
	return out
}

// DecodeShortStrings is the inverse of EncodeShortStrings. Values that do not
// decode to printable ASCII are rendered as hex and the parts are joined with
// ", ".
func DecodeShortStrings(data []int64) string {
	var b strings.Builder
	printable := true
	for _, v := range data {
		chunk := shortString(v)
		if chunk == "" {
			printable = false
			break
		}
		b.WriteString(chunk)
	}
	if printable {
		return b.String()
	}
	parts := make([]string, len(data))
	for i, v := range data {
		if s := shortString(v); s != "" {
			parts[i] = s
		} else {
			parts[i] = fmt.Sprintf("0x%x", uint64(v))
		}
	}
	return strings.Join(parts, ", ")
}

func shortString(v int64) string {
	if v <= 0 {
		return ""
	}
	var buf []byte
	for u := uint64(v); u != 0; u >>= 8 {
		c := byte(u)
		if c < 0x20 || c > 0x7e {
			return ""
		}
		buf = append(buf, c)
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}
