package ir

import (
	"fmt"
	"sort"
)

type Fragment interface{}

type MemoryFragment interface {
	Fragment
	WithDisp(disp any) Fragment
}

func asFragment(v any) Fragment {
	if f, ok := v.(Fragment); ok {
		return f
	}
	panic(fmt.Sprintf("cannot convert %T to Fragment", v))
}

type Condition interface {
	Fragment
}

type CompareKind int

const (
	CompareEqual CompareKind = iota
	CompareNotEqual
	CompareLess
	CompareLessOrEqual
	CompareGreater
	CompareGreaterOrEqual
	// Unsigned variants compare both operands as uint64.
	CompareUnsignedLess
	CompareUnsignedGreaterOrEqual
)

type CompareCondition struct {
	Kind  CompareKind
	Left  Fragment
	Right Fragment
}

func compare(kind CompareKind, left, right any) Condition {
	return CompareCondition{
		Kind:  kind,
		Left:  asFragment(left),
		Right: asFragment(right),
	}
}

func IsEqual(left, right any) Condition { return compare(CompareEqual, left, right) }

func IsNotEqual(left, right any) Condition { return compare(CompareNotEqual, left, right) }

func IsLessThan(left, right any) Condition { return compare(CompareLess, left, right) }

func IsLessOrEqual(left, right any) Condition { return compare(CompareLessOrEqual, left, right) }

func IsGreaterThan(left, right any) Condition { return compare(CompareGreater, left, right) }

func IsGreaterOrEqual(left, right any) Condition {
	return compare(CompareGreaterOrEqual, left, right)
}

func IsUnsignedLess(left, right any) Condition {
	return compare(CompareUnsignedLess, left, right)
}

func IsUnsignedGreaterOrEqual(left, right any) Condition {
	return compare(CompareUnsignedGreaterOrEqual, left, right)
}

type IsZeroCondition struct {
	Value Fragment
}

func IsZero(value Fragment) Condition {
	return IsZeroCondition{Value: value}
}

type IsNegativeCondition struct {
	Value Fragment
}

func IsNegative(value Fragment) Condition {
	return IsNegativeCondition{Value: value}
}

type Method []Fragment

type Block []Fragment

type DeclareParam string

type Int64 int64

type Var string

type ValueWidth uint8

const (
	Width8  ValueWidth = 8
	Width16 ValueWidth = 16
	Width32 ValueWidth = 32
	Width64 ValueWidth = 64
)

type MemVar struct {
	Base  Var
	Disp  Fragment
	Width ValueWidth
}

func (m MemVar) WithDisp(disp any) Fragment {
	m.Disp = asFragment(disp)
	return m
}

func (m MemVar) withWidth(width ValueWidth) MemVar {
	m.Width = width
	return m
}

func (m MemVar) As8() MemVar {
	return m.withWidth(Width8)
}

func (m MemVar) As16() MemVar {
	return m.withWidth(Width16)
}

func (m MemVar) As32() MemVar {
	return m.withWidth(Width32)
}

func (v Var) AsMem() MemoryFragment {
	return MemVar{Base: v, Width: Width64}
}

// Mem exposes a typed memory reference so width helpers (As8/As16/As32) may be
// chained without losing the underlying MemVar type.
func (v Var) Mem() MemVar {
	return MemVar{Base: v, Width: Width64}
}

// MemWithDisp is equivalent to Mem().WithDisp(disp) but preserves the MemVar
// type so callers can chain width conversions.
func (v Var) MemWithDisp(disp any) MemVar {
	return MemVar{Base: v, Width: Width64, Disp: asFragment(disp)}
}

// Word addresses the idx-th 64-bit word behind the pointer held in v.
func (v Var) Word(idx int) MemVar {
	return v.MemWithDisp(Int64(int64(idx) * 8))
}

type Label string

type ReturnFragment struct {
	Value Fragment
}

func Return(value any) Fragment {
	return ReturnFragment{Value: asFragment(value)}
}

type AssignFragment struct {
	Dst Fragment
	Src Fragment
}

func Assign(dst Fragment, src Fragment) Fragment {
	return AssignFragment{Dst: dst, Src: src}
}

type IfFragment struct {
	Cond      Condition
	Then      Fragment
	Otherwise Fragment
}

func If(cond Condition, then Fragment, otherwise ...Fragment) Fragment {
	if len(otherwise) > 0 {
		return IfFragment{Cond: cond, Then: then, Otherwise: otherwise[0]}
	}
	return IfFragment{Cond: cond, Then: then}
}

type GotoFragment struct {
	Label Fragment
}

func Goto(label Fragment) Fragment {
	return GotoFragment{Label: label}
}

type CallFragment struct {
	Target Fragment
	Args   []Fragment
	Result Var
}

// Call emits a call to target with args passed in the platform C calling
// convention. When result is specified the callee's return value is stored
// into that variable.
func Call(target any, args []Fragment, result ...Var) Fragment {
	var res Var
	if len(result) > 0 {
		res = result[0]
	}
	return CallFragment{
		Target: asFragment(target),
		Args:   args,
		Result: res,
	}
}

type LabelFragment struct {
	Label Label
	Block Block
}

func DeclareLabel(label Label, block Block) Fragment {
	return LabelFragment{Label: label, Block: block}
}

type OpKind int

const (
	OpInvalid OpKind = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpShr
	OpShl
	OpAnd
	OpOr
	OpXor
)

type OpFragment struct {
	Kind  OpKind
	Left  Fragment
	Right Fragment
}

func Op(kind OpKind, left, right Fragment) Fragment {
	return OpFragment{Kind: kind, Left: left, Right: right}
}

// Program is the unit handed to a backend: a set of named methods, the subset
// exported from the final artifact, and the ABI version it implements.
type Program struct {
	Methods    map[string]Method
	Exported   []string
	ABIVersion string
}

func NewProgram(abiVersion string) *Program {
	return &Program{
		Methods:    make(map[string]Method),
		ABIVersion: abiVersion,
	}
}

// AddMethod registers a method. Names must be unique within a program.
func (p *Program) AddMethod(name string, method Method, exported bool) error {
	if name == "" {
		return fmt.Errorf("ir: method name must be non-empty")
	}
	if _, exists := p.Methods[name]; exists {
		return fmt.Errorf("ir: method %q already defined", name)
	}
	p.Methods[name] = method
	if exported {
		p.Exported = append(p.Exported, name)
	}
	return nil
}

func (p *Program) HasMethod(name string) bool {
	_, ok := p.Methods[name]
	return ok
}

// MethodNames returns the method names in sorted order.
func (p *Program) MethodNames() []string {
	names := make([]string, 0, len(p.Methods))
	for name := range p.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	_ Fragment = Block(nil)
	_ Fragment = DeclareParam("")
	_ Fragment = Var("")
	_ Fragment = Label("")
	_ Fragment = AssignFragment{}
	_ Fragment = IfFragment{}
	_ Fragment = GotoFragment{}
	_ Fragment = Method(nil)
	_ Fragment = ReturnFragment{}
	_ Fragment = MethodPointerFragment{}
	_ Fragment = BranchFragment{}
	_ Fragment = StackSlotFragment{}
)
