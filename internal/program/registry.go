package program

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tinyrange/aot/internal/ids"
	"github.com/tinyrange/aot/internal/types"
)

var (
	ErrUnknownType     = errors.New("unknown concrete type")
	ErrUnknownLibfunc  = errors.New("unknown concrete libfunc")
	ErrUnknownFunction = errors.New("unknown function")
	ErrDuplicateId     = errors.New("duplicate declaration")
)

// BranchSignature lists the types of the values a branch produces.
type BranchSignature struct {
	Vars []ids.ConcreteTypeId
}

type LibfuncSignature struct {
	Params   []ids.ConcreteTypeId
	Branches []BranchSignature
	// FallthroughBranch is the index of the branch that may fall through to
	// the next statement, or -1.
	FallthroughBranch int
}

// Libfunc is the minimum every concrete libfunc in a catalog exposes to the
// registry. Lowering capabilities are layered on top by package libfuncs.
type Libfunc interface {
	GenericId() ids.GenericLibfuncId
	Signature() *LibfuncSignature
}

type TypeCatalog[T types.Builder] interface {
	SpecializeType(id ids.ConcreteTypeId, generic ids.GenericTypeId, args []ids.GenericArg) (T, error)
}

// SpecializationContext is handed to libfunc catalogs so they can derive
// signatures from already specialized types and declared functions.
type SpecializationContext interface {
	types.Resolver
	Function(id ids.FunctionId) (*Function, error)
}

type LibfuncCatalog[L Libfunc] interface {
	SpecializeLibfunc(decl LibfuncDeclaration, ctx SpecializationContext) (L, error)
}

// Registry is the immutable catalog of a program. Lookups are safe for
// concurrent use once NewRegistry returns.
type Registry[T types.Builder, L Libfunc] struct {
	types     map[uint64]T
	typeIds   map[uint64]ids.ConcreteTypeId
	libfuncs  map[uint64]L
	functions map[uint64]*Function
}

func NewRegistry[T types.Builder, L Libfunc](prog *Program, tc TypeCatalog[T], lc LibfuncCatalog[L]) (*Registry[T, L], error) {
	if prog == nil {
		return nil, fmt.Errorf("program: registry requires a program")
	}
	r := &Registry[T, L]{
		types:     make(map[uint64]T, len(prog.Types)),
		typeIds:   make(map[uint64]ids.ConcreteTypeId, len(prog.Types)),
		libfuncs:  make(map[uint64]L, len(prog.Libfuncs)),
		functions: make(map[uint64]*Function, len(prog.Funcs)),
	}

	for _, decl := range prog.Types {
		if _, exists := r.types[decl.Id.Id]; exists {
			return nil, fmt.Errorf("program: type %s: %w", decl.Id, ErrDuplicateId)
		}
		ty, err := tc.SpecializeType(decl.Id, decl.Generic, decl.Args)
		if err != nil {
			return nil, fmt.Errorf("program: specialize type %s: %w", decl.Id, err)
		}
		r.types[decl.Id.Id] = ty
		r.typeIds[decl.Id.Id] = decl.Id
	}

	for i := range prog.Funcs {
		fn := &prog.Funcs[i]
		if _, exists := r.functions[fn.Id.Id]; exists {
			return nil, fmt.Errorf("program: function %s: %w", fn.Id, ErrDuplicateId)
		}
		if len(fn.Params) != len(fn.Signature.ParamTypes) {
			return nil, fmt.Errorf("program: function %s declares %d params but signature has %d",
				fn.Id, len(fn.Params), len(fn.Signature.ParamTypes))
		}
		for _, ty := range append(append([]ids.ConcreteTypeId(nil), fn.Signature.ParamTypes...), fn.Signature.RetTypes...) {
			if _, ok := r.types[ty.Id]; !ok {
				return nil, fmt.Errorf("program: function %s references %s: %w", fn.Id, ty, ErrUnknownType)
			}
		}
		r.functions[fn.Id.Id] = fn
	}

	for _, decl := range prog.Libfuncs {
		if _, exists := r.libfuncs[decl.Id.Id]; exists {
			return nil, fmt.Errorf("program: libfunc %s: %w", decl.Id, ErrDuplicateId)
		}
		lf, err := lc.SpecializeLibfunc(decl, r)
		if err != nil {
			return nil, fmt.Errorf("program: specialize libfunc %s: %w", decl.Id, err)
		}
		r.libfuncs[decl.Id.Id] = lf
	}

	return r, nil
}

func (r *Registry[T, L]) Type(id ids.ConcreteTypeId) (T, error) {
	ty, ok := r.types[id.Id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrUnknownType, id)
	}
	return ty, nil
}

// ResolveType implements types.Resolver.
func (r *Registry[T, L]) ResolveType(id ids.ConcreteTypeId) (types.Builder, error) {
	ty, err := r.Type(id)
	if err != nil {
		return nil, err
	}
	return ty, nil
}

// TypeId returns the declared id (including its debug name) for a numeric id.
func (r *Registry[T, L]) TypeId(id uint64) (ids.ConcreteTypeId, bool) {
	tid, ok := r.typeIds[id]
	return tid, ok
}

func (r *Registry[T, L]) Libfunc(id ids.ConcreteLibfuncId) (L, error) {
	lf, ok := r.libfuncs[id.Id]
	if !ok {
		var zero L
		return zero, fmt.Errorf("%w: %s", ErrUnknownLibfunc, id)
	}
	return lf, nil
}

func (r *Registry[T, L]) Function(id ids.FunctionId) (*Function, error) {
	fn, ok := r.functions[id.Id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, id)
	}
	return fn, nil
}

// FunctionByName finds a function by its debug name.
func (r *Registry[T, L]) FunctionByName(name string) (*Function, error) {
	for _, fn := range r.functions {
		if fn.Id.DebugName == name {
			return fn, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
}

// Functions returns every declared function ordered by id.
func (r *Registry[T, L]) Functions() []*Function {
	out := make([]*Function, 0, len(r.functions))
	for _, fn := range r.functions {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id.Id < out[j].Id.Id })
	return out
}
