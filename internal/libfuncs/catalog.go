package libfuncs

import (
	"fmt"

	"github.com/tinyrange/aot/internal/ids"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/types"
)

// CoreLibfunc is a concrete libfunc of the core catalog.
type CoreLibfunc struct {
	generic ids.GenericLibfuncId
	args    []ids.GenericArg
	sig     *program.LibfuncSignature
}

var _ Libfunc = (*CoreLibfunc)(nil)

func (c *CoreLibfunc) GenericId() ids.GenericLibfuncId     { return c.generic }
func (c *CoreLibfunc) Signature() *program.LibfuncSignature { return c.sig }
func (c *CoreLibfunc) Args() []ids.GenericArg               { return c.args }

// CoreCatalog derives signatures for the core libfuncs.
type CoreCatalog struct{}

var _ program.LibfuncCatalog[*CoreLibfunc] = CoreCatalog{}

type specializer struct {
	decl program.LibfuncDeclaration
	ctx  program.SpecializationContext
}

func (s specializer) errorf(format string, args ...any) error {
	return fmt.Errorf("%s<%v>: %s", s.decl.Generic, s.decl.Args, fmt.Sprintf(format, args...))
}

func (s specializer) arity(n int) error {
	if len(s.decl.Args) != n {
		return s.errorf("expects %d generic arguments, got %d", n, len(s.decl.Args))
	}
	return nil
}

// typeArg resolves argument i as a type of one of kinds.
func (s specializer) typeArg(i int, kinds ...types.Kind) (ids.ConcreteTypeId, types.Builder, error) {
	if i >= len(s.decl.Args) || s.decl.Args[i].Type == nil {
		return ids.ConcreteTypeId{}, nil, s.errorf("argument %d must be a type", i)
	}
	id := *s.decl.Args[i].Type
	ty, err := s.ctx.ResolveType(id)
	if err != nil {
		return ids.ConcreteTypeId{}, nil, err
	}
	if len(kinds) == 0 {
		return id, ty, nil
	}
	for _, k := range kinds {
		if ty.Kind() == k {
			return id, ty, nil
		}
	}
	return ids.ConcreteTypeId{}, nil, s.errorf("argument %d is a %s, want %v", i, ty.Kind(), kinds)
}

func (s specializer) valueArg(i int) (int64, error) {
	if i >= len(s.decl.Args) || s.decl.Args[i].Value == nil {
		return 0, s.errorf("argument %d must be a value", i)
	}
	return *s.decl.Args[i].Value, nil
}

// revertArray resolves argument i as Array<felt252> and returns it with its
// element type.
func (s specializer) revertArray(i int) (ids.ConcreteTypeId, ids.ConcreteTypeId, error) {
	arr, ty, err := s.typeArg(i, types.KindArray)
	if err != nil {
		return arr, arr, err
	}
	elem := ty.Members()[0]
	et, err := s.ctx.ResolveType(elem)
	if err != nil {
		return arr, arr, err
	}
	if et.Kind() != types.KindScalar {
		return arr, arr, s.errorf("argument %d must be an array of felt252", i)
	}
	return arr, elem, nil
}

func vars(tys ...ids.ConcreteTypeId) program.BranchSignature {
	return program.BranchSignature{Vars: tys}
}

func signature(params []ids.ConcreteTypeId, ft int, branches ...program.BranchSignature) *program.LibfuncSignature {
	return &program.LibfuncSignature{Params: params, Branches: branches, FallthroughBranch: ft}
}

func params(tys ...ids.ConcreteTypeId) []ids.ConcreteTypeId { return tys }

func (CoreCatalog) SpecializeLibfunc(decl program.LibfuncDeclaration, ctx program.SpecializationContext) (*CoreLibfunc, error) {
	s := specializer{decl: decl, ctx: ctx}
	sig, err := s.signature()
	if err != nil {
		return nil, err
	}
	return &CoreLibfunc{generic: decl.Generic, args: decl.Args, sig: sig}, nil
}

func (s specializer) signature() (*program.LibfuncSignature, error) {
	switch s.decl.Generic {
	case "jump":
		if err := s.arity(0); err != nil {
			return nil, err
		}
		return signature(nil, -1, vars()), nil

	case "branch_align":
		if err := s.arity(0); err != nil {
			return nil, err
		}
		return signature(nil, 0, vars()), nil

	case "felt252_const", "u64_const":
		kind := types.KindScalar
		if s.decl.Generic == "u64_const" {
			kind = types.KindU64
		}
		if err := s.arity(2); err != nil {
			return nil, err
		}
		ty, _, err := s.typeArg(0, kind)
		if err != nil {
			return nil, err
		}
		if _, err := s.valueArg(1); err != nil {
			return nil, err
		}
		return signature(nil, 0, vars(ty)), nil

	case "felt252_add", "felt252_sub", "felt252_mul":
		if err := s.arity(1); err != nil {
			return nil, err
		}
		f, _, err := s.typeArg(0, types.KindScalar)
		if err != nil {
			return nil, err
		}
		return signature(params(f, f), 0, vars(f)), nil

	case "felt252_is_zero":
		if err := s.arity(2); err != nil {
			return nil, err
		}
		f, _, err := s.typeArg(0, types.KindScalar)
		if err != nil {
			return nil, err
		}
		nz, nzTy, err := s.typeArg(1, types.KindNonZero)
		if err != nil {
			return nil, err
		}
		if nzTy.Members()[0].Id != f.Id {
			return nil, s.errorf("%s does not wrap %s", nz, f)
		}
		return signature(params(f), 0, vars(), vars(nz)), nil

	case "u64_overflowing_add":
		if err := s.arity(1); err != nil {
			return nil, err
		}
		u, _, err := s.typeArg(0, types.KindU64)
		if err != nil {
			return nil, err
		}
		return signature(params(u, u), 0, vars(u), vars(u)), nil

	case "u64_eq":
		if err := s.arity(1); err != nil {
			return nil, err
		}
		u, _, err := s.typeArg(0, types.KindU64)
		if err != nil {
			return nil, err
		}
		return signature(params(u, u), 0, vars(), vars()), nil

	case "dup", "drop", "store_temp", "rename":
		if err := s.arity(1); err != nil {
			return nil, err
		}
		ty, _, err := s.typeArg(0)
		if err != nil {
			return nil, err
		}
		switch s.decl.Generic {
		case "dup":
			return signature(params(ty), 0, vars(ty, ty)), nil
		case "drop":
			return signature(params(ty), 0, vars()), nil
		default:
			return signature(params(ty), 0, vars(ty)), nil
		}

	case "struct_construct", "struct_deconstruct":
		if err := s.arity(1); err != nil {
			return nil, err
		}
		st, ty, err := s.typeArg(0, types.KindStruct)
		if err != nil {
			return nil, err
		}
		if s.decl.Generic == "struct_construct" {
			return signature(ty.Members(), 0, vars(st)), nil
		}
		return signature(params(st), 0, vars(ty.Members()...)), nil

	case "enum_init":
		if err := s.arity(2); err != nil {
			return nil, err
		}
		e, ty, err := s.typeArg(0, types.KindEnum)
		if err != nil {
			return nil, err
		}
		idx, err := s.valueArg(1)
		if err != nil {
			return nil, err
		}
		if idx < 0 || int(idx) >= len(ty.Members()) {
			return nil, s.errorf("variant %d out of range for %s", idx, e)
		}
		return signature(params(ty.Members()[idx]), 0, vars(e)), nil

	case "enum_match":
		if err := s.arity(1); err != nil {
			return nil, err
		}
		e, ty, err := s.typeArg(0, types.KindEnum)
		if err != nil {
			return nil, err
		}
		branches := make([]program.BranchSignature, len(ty.Members()))
		for i, v := range ty.Members() {
			branches[i] = vars(v)
		}
		return signature(params(e), 0, branches...), nil

	case "array_new", "array_append":
		if err := s.arity(1); err != nil {
			return nil, err
		}
		arr, ty, err := s.typeArg(0, types.KindArray)
		if err != nil {
			return nil, err
		}
		if s.decl.Generic == "array_new" {
			return signature(nil, 0, vars(arr)), nil
		}
		return signature(params(arr, ty.Members()[0]), 0, vars(arr)), nil

	case "array_len", "array_get":
		if err := s.arity(2); err != nil {
			return nil, err
		}
		arr, ty, err := s.typeArg(0, types.KindArray)
		if err != nil {
			return nil, err
		}
		u, _, err := s.typeArg(1, types.KindU64)
		if err != nil {
			return nil, err
		}
		if s.decl.Generic == "array_len" {
			return signature(params(arr), 0, vars(u)), nil
		}
		return signature(params(arr, u), 0, vars(ty.Members()[0]), vars()), nil

	case "withdraw_gas":
		if err := s.arity(1); err != nil {
			return nil, err
		}
		cost, err := s.valueArg(0)
		if err != nil {
			return nil, err
		}
		if cost < 0 {
			return nil, s.errorf("negative cost %d", cost)
		}
		return signature(nil, 0, vars(), vars()), nil

	case "function_call":
		if err := s.arity(1); err != nil {
			return nil, err
		}
		if s.decl.Args[0].Function == nil {
			return nil, s.errorf("argument 0 must be a function")
		}
		fn, err := s.ctx.Function(*s.decl.Args[0].Function)
		if err != nil {
			return nil, err
		}
		return signature(fn.Signature.ParamTypes, 0, vars(fn.Signature.RetTypes...)), nil

	case "trap":
		if err := s.arity(1); err != nil {
			return nil, err
		}
		code, err := s.valueArg(0)
		if err != nil {
			return nil, err
		}
		if code < 0 {
			return nil, s.errorf("negative trap code %d", code)
		}
		return signature(nil, -1), nil

	case "storage_read_syscall", "storage_write_syscall", "get_block_number_syscall":
		if err := s.arity(2); err != nil {
			return nil, err
		}
		arr, felt, err := s.revertArray(0)
		if err != nil {
			return nil, err
		}
		u, _, err := s.typeArg(1, types.KindU64)
		if err != nil {
			return nil, err
		}
		switch s.decl.Generic {
		case "storage_read_syscall":
			return signature(params(u, felt), 0, vars(felt), vars(arr)), nil
		case "storage_write_syscall":
			return signature(params(u, felt, felt), 0, vars(), vars(arr)), nil
		default:
			return signature(nil, 0, vars(u), vars(arr)), nil
		}

	case "emit_event_syscall", "call_contract_syscall":
		if err := s.arity(1); err != nil {
			return nil, err
		}
		arr, felt, err := s.revertArray(0)
		if err != nil {
			return nil, err
		}
		if s.decl.Generic == "emit_event_syscall" {
			return signature(params(arr, arr), 0, vars(), vars(arr)), nil
		}
		return signature(params(felt, felt, arr), 0, vars(arr), vars(arr)), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLibfunc, s.decl.Generic)
	}
}
