package ids

import (
	"fmt"
	"strconv"
	"strings"
)

// EntrySymbolPrefix is prepended to the mangled function name of every
// exported entry point in a compiled artifact.
const EntrySymbolPrefix = "_aot_ciface_"

// FunctionId identifies a callable unit inside a program. Only Id takes part
// in equality; DebugName is carried for diagnostics and symbol readability.
type FunctionId struct {
	Id        uint64
	DebugName string
}

func (f FunctionId) String() string {
	if f.DebugName != "" {
		return f.DebugName
	}
	return "f" + strconv.FormatUint(f.Id, 10)
}

// Key returns the map key used for registry lookups.
func (f FunctionId) Key() uint64 { return f.Id }

type ConcreteTypeId struct {
	Id        uint64
	DebugName string
}

func (t ConcreteTypeId) String() string {
	if t.DebugName != "" {
		return t.DebugName
	}
	return "t" + strconv.FormatUint(t.Id, 10)
}

type ConcreteLibfuncId struct {
	Id        uint64
	DebugName string
}

func (l ConcreteLibfuncId) String() string {
	if l.DebugName != "" {
		return l.DebugName
	}
	return "l" + strconv.FormatUint(l.Id, 10)
}

// GenericTypeId names a type template, for example "felt252" or "Array".
type GenericTypeId string

// GenericLibfuncId names an operation template, for example "jump".
type GenericLibfuncId string

type VarId uint64

func (v VarId) String() string {
	return "v" + strconv.FormatUint(uint64(v), 10)
}

type StatementIdx int

func (s StatementIdx) Next() StatementIdx { return s + 1 }

// MangleFunction returns the canonical symbol-safe form of id. The result only
// contains C identifier characters and is unique per numeric id.
func MangleFunction(id FunctionId) string {
	var b strings.Builder
	b.WriteString("f")
	b.WriteString(strconv.FormatUint(id.Id, 10))
	if id.DebugName == "" {
		return b.String()
	}
	b.WriteByte('_')
	for i := 0; i < len(id.DebugName); i++ {
		c := id.DebugName[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '_':
			b.WriteString("__")
		default:
			fmt.Fprintf(&b, "_x%02X", c)
		}
	}
	return b.String()
}

// EntrySymbol returns the exported symbol name for id.
func EntrySymbol(id FunctionId) string {
	return EntrySymbolPrefix + MangleFunction(id)
}

// GenericArg is one argument of a generic type or libfunc declaration.
// Exactly one field is set.
type GenericArg struct {
	Type     *ConcreteTypeId
	Value    *int64
	Function *FunctionId
}

func TypeArg(id ConcreteTypeId) GenericArg { return GenericArg{Type: &id} }

func ValueArg(v int64) GenericArg { return GenericArg{Value: &v} }

func FunctionArg(id FunctionId) GenericArg { return GenericArg{Function: &id} }

func (a GenericArg) String() string {
	switch {
	case a.Type != nil:
		return a.Type.String()
	case a.Value != nil:
		return strconv.FormatInt(*a.Value, 10)
	case a.Function != nil:
		return "user@" + a.Function.String()
	default:
		return "<invalid>"
	}
}
