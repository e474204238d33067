package program

import (
	"fmt"
	"os"

	"github.com/tinyrange/aot/internal/ids"
	"gopkg.in/yaml.v3"
)

// The on-disk program format. Declarations reference each other by numeric
// id; debug names are attached while converting to the in-memory model.

type fileGenericArg struct {
	Type     *uint64 `yaml:"type,omitempty"`
	Value    *int64  `yaml:"value,omitempty"`
	Function *uint64 `yaml:"function,omitempty"`
}

type fileDeclaration struct {
	Id      uint64           `yaml:"id"`
	Name    string           `yaml:"name,omitempty"`
	Generic string           `yaml:"generic"`
	Args    []fileGenericArg `yaml:"args,omitempty"`
}

type fileBranch struct {
	Target  *int     `yaml:"target,omitempty"`
	Results []uint64 `yaml:"results,omitempty"`
}

type fileStatement struct {
	Invoke   *uint64      `yaml:"invoke,omitempty"`
	Args     []uint64     `yaml:"args,omitempty"`
	Branches []fileBranch `yaml:"branches,omitempty"`
	Return   *[]uint64    `yaml:"return,omitempty"`
}

type fileParam struct {
	Var  uint64 `yaml:"var"`
	Type uint64 `yaml:"type"`
}

type fileFunction struct {
	Id     uint64      `yaml:"id"`
	Name   string      `yaml:"name,omitempty"`
	Params []fileParam `yaml:"params,omitempty"`
	Rets   []uint64    `yaml:"rets,omitempty"`
	Entry  int         `yaml:"entry"`
}

type file struct {
	Types      []fileDeclaration `yaml:"types"`
	Libfuncs   []fileDeclaration `yaml:"libfuncs"`
	Statements []fileStatement   `yaml:"statements"`
	Functions  []fileFunction    `yaml:"functions"`
}

// Load reads a YAML program description from path.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program %s: %w", path, err)
	}
	prog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse program %s: %w", path, err)
	}
	return prog, nil
}

// Parse decodes a YAML program description.
func Parse(data []byte) (*Program, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	typeNames := make(map[uint64]string, len(f.Types))
	for _, t := range f.Types {
		typeNames[t.Id] = t.Name
	}
	funcNames := make(map[uint64]string, len(f.Functions))
	for _, fn := range f.Functions {
		funcNames[fn.Id] = fn.Name
	}
	typeId := func(id uint64) ids.ConcreteTypeId {
		return ids.ConcreteTypeId{Id: id, DebugName: typeNames[id]}
	}

	convertArgs := func(owner string, in []fileGenericArg) ([]ids.GenericArg, error) {
		out := make([]ids.GenericArg, 0, len(in))
		for i, a := range in {
			set := 0
			var arg ids.GenericArg
			if a.Type != nil {
				set++
				arg = ids.TypeArg(typeId(*a.Type))
			}
			if a.Value != nil {
				set++
				arg = ids.ValueArg(*a.Value)
			}
			if a.Function != nil {
				set++
				arg = ids.FunctionArg(ids.FunctionId{Id: *a.Function, DebugName: funcNames[*a.Function]})
			}
			if set != 1 {
				return nil, fmt.Errorf("%s: generic argument %d must set exactly one of type, value, function", owner, i)
			}
			out = append(out, arg)
		}
		return out, nil
	}

	prog := &Program{}

	for _, t := range f.Types {
		args, err := convertArgs("type "+t.Name, t.Args)
		if err != nil {
			return nil, err
		}
		prog.Types = append(prog.Types, TypeDeclaration{
			Id:      typeId(t.Id),
			Generic: ids.GenericTypeId(t.Generic),
			Args:    args,
		})
	}

	libfuncNames := make(map[uint64]string, len(f.Libfuncs))
	for _, l := range f.Libfuncs {
		libfuncNames[l.Id] = l.Name
		args, err := convertArgs("libfunc "+l.Name, l.Args)
		if err != nil {
			return nil, err
		}
		prog.Libfuncs = append(prog.Libfuncs, LibfuncDeclaration{
			Id:      ids.ConcreteLibfuncId{Id: l.Id, DebugName: l.Name},
			Generic: ids.GenericLibfuncId(l.Generic),
			Args:    args,
		})
	}

	for idx, s := range f.Statements {
		switch {
		case s.Invoke != nil && s.Return != nil:
			return nil, fmt.Errorf("statement %d: invoke and return are mutually exclusive", idx)
		case s.Return != nil:
			prog.Statements = append(prog.Statements, Statement{Return: varIds(*s.Return)})
		case s.Invoke != nil:
			inv := &Invocation{
				Libfunc: ids.ConcreteLibfuncId{Id: *s.Invoke, DebugName: libfuncNames[*s.Invoke]},
				Args:    varIds(s.Args),
			}
			for _, b := range s.Branches {
				target := Fallthrough()
				if b.Target != nil {
					target = Goto(ids.StatementIdx(*b.Target))
				}
				inv.Branches = append(inv.Branches, BranchInfo{Target: target, Results: varIds(b.Results)})
			}
			prog.Statements = append(prog.Statements, Statement{Invocation: inv})
		default:
			return nil, fmt.Errorf("statement %d: expected invoke or return", idx)
		}
	}

	for _, fn := range f.Functions {
		out := Function{
			Id:         ids.FunctionId{Id: fn.Id, DebugName: fn.Name},
			EntryPoint: ids.StatementIdx(fn.Entry),
		}
		for _, p := range fn.Params {
			out.Params = append(out.Params, Param{Id: ids.VarId(p.Var), Ty: typeId(p.Type)})
			out.Signature.ParamTypes = append(out.Signature.ParamTypes, typeId(p.Type))
		}
		for _, r := range fn.Rets {
			out.Signature.RetTypes = append(out.Signature.RetTypes, typeId(r))
		}
		prog.Funcs = append(prog.Funcs, out)
	}

	return prog, nil
}

func varIds(in []uint64) []ids.VarId {
	out := make([]ids.VarId, len(in))
	for i, v := range in {
		out[i] = ids.VarId(v)
	}
	return out
}
