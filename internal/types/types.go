// Package types defines the type-builder capability every concrete type in a
// program catalog provides, together with the core catalog used by the
// compiler and the executor.
package types

import (
	"errors"
	"fmt"

	"github.com/tinyrange/aot/internal/ids"
)

type Kind int

const (
	KindInvalid Kind = iota
	KindScalar
	KindU64
	KindStruct
	KindEnum
	KindArray
	KindNonZero
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindU64:
		return "u64"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindArray:
		return "array"
	case KindNonZero:
		return "non_zero"
	default:
		return "invalid"
	}
}

// Layout describes how a value is spread over 64-bit words across the native
// boundary and inside lowered code.
type Layout struct {
	Slots int
}

// Builder is the capability contract for a concrete type: it exposes enough
// structure for layout computation and for the invocation core to walk values.
type Builder interface {
	Kind() Kind
	// Members returns struct members, enum variants, or the single element
	// type of arrays and non-zero wrappers.
	Members() []ids.ConcreteTypeId
	Layout(r Resolver) (Layout, error)
}

// Resolver resolves concrete type ids against a program catalog.
type Resolver interface {
	ResolveType(id ids.ConcreteTypeId) (Builder, error)
}

var ErrUnknownGenericType = errors.New("unknown generic type")

// ArrayHeaderSlots is the number of words used by an array value: a data
// pointer followed by the element count.
const ArrayHeaderSlots = 2

// Core is the concrete type used by the core catalog.
type Core struct {
	kind    Kind
	members []ids.ConcreteTypeId
}

var _ Builder = Core{}

func (c Core) Kind() Kind { return c.kind }

func (c Core) Members() []ids.ConcreteTypeId { return c.members }

func (c Core) Layout(r Resolver) (Layout, error) {
	switch c.kind {
	case KindScalar, KindU64:
		return Layout{Slots: 1}, nil
	case KindArray:
		return Layout{Slots: ArrayHeaderSlots}, nil
	case KindNonZero:
		return SlotsOf(r, c.members[0])
	case KindStruct:
		total := 0
		for _, m := range c.members {
			l, err := SlotsOf(r, m)
			if err != nil {
				return Layout{}, err
			}
			total += l.Slots
		}
		return Layout{Slots: total}, nil
	case KindEnum:
		widest := 0
		for _, m := range c.members {
			l, err := SlotsOf(r, m)
			if err != nil {
				return Layout{}, err
			}
			widest = max(widest, l.Slots)
		}
		return Layout{Slots: 1 + widest}, nil
	default:
		return Layout{}, fmt.Errorf("types: no layout for kind %s", c.kind)
	}
}

func Scalar() Core { return Core{kind: KindScalar} }

func U64() Core { return Core{kind: KindU64} }

func Struct(members ...ids.ConcreteTypeId) Core {
	return Core{kind: KindStruct, members: members}
}

func Enum(variants ...ids.ConcreteTypeId) Core {
	return Core{kind: KindEnum, members: variants}
}

func Array(elem ids.ConcreteTypeId) Core {
	return Core{kind: KindArray, members: []ids.ConcreteTypeId{elem}}
}

func NonZero(inner ids.ConcreteTypeId) Core {
	return Core{kind: KindNonZero, members: []ids.ConcreteTypeId{inner}}
}

// SlotsOf resolves id and computes its layout.
func SlotsOf(r Resolver, id ids.ConcreteTypeId) (Layout, error) {
	b, err := r.ResolveType(id)
	if err != nil {
		return Layout{}, err
	}
	return b.Layout(r)
}

// MemberOffsets returns the word offset of each struct member.
func MemberOffsets(r Resolver, members []ids.ConcreteTypeId) ([]int, error) {
	offsets := make([]int, len(members))
	off := 0
	for i, m := range members {
		offsets[i] = off
		l, err := SlotsOf(r, m)
		if err != nil {
			return nil, err
		}
		off += l.Slots
	}
	return offsets, nil
}

// CoreCatalog specializes the generic types understood by the core catalog.
type CoreCatalog struct{}

func (CoreCatalog) SpecializeType(id ids.ConcreteTypeId, generic ids.GenericTypeId, args []ids.GenericArg) (Core, error) {
	typeArgs := func(min int) ([]ids.ConcreteTypeId, error) {
		out := make([]ids.ConcreteTypeId, 0, len(args))
		for i, a := range args {
			if a.Type == nil {
				return nil, fmt.Errorf("types: %s argument %d of %s must be a type", generic, i, id)
			}
			out = append(out, *a.Type)
		}
		if len(out) < min {
			return nil, fmt.Errorf("types: %s expects at least %d type arguments, got %d", generic, min, len(out))
		}
		return out, nil
	}

	switch generic {
	case "felt252":
		return Scalar(), nil
	case "u64":
		return U64(), nil
	case "Struct":
		members, err := typeArgs(0)
		if err != nil {
			return Core{}, err
		}
		return Struct(members...), nil
	case "Enum":
		variants, err := typeArgs(1)
		if err != nil {
			return Core{}, err
		}
		return Enum(variants...), nil
	case "Array":
		elem, err := typeArgs(1)
		if err != nil {
			return Core{}, err
		}
		if len(elem) != 1 {
			return Core{}, fmt.Errorf("types: Array takes exactly one type argument")
		}
		return Array(elem[0]), nil
	case "NonZero":
		inner, err := typeArgs(1)
		if err != nil {
			return Core{}, err
		}
		if len(inner) != 1 {
			return Core{}, fmt.Errorf("types: NonZero takes exactly one type argument")
		}
		return NonZero(inner[0]), nil
	default:
		return Core{}, fmt.Errorf("%w %q for %s", ErrUnknownGenericType, generic, id)
	}
}
