package compiler

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tinyrange/aot/internal/ids"
	"github.com/tinyrange/aot/internal/ir"
	"github.com/tinyrange/aot/internal/libfuncs"
	"github.com/tinyrange/aot/internal/metadata"
	"github.com/tinyrange/aot/internal/program"
	"github.com/tinyrange/aot/internal/types"
)

// ErrVariableRetyped is returned when a variable id is defined again with a
// different type inside one function.
var ErrVariableRetyped = errors.New("variable redefined with a different type")

// StatementLabel names the block holding the lowered statement idx.
func StatementLabel(idx ids.StatementIdx) ir.Label {
	return ir.Label(fmt.Sprintf("s%d", idx))
}

// VarWords names the words of variable id.
func VarWords(id ids.VarId, slots int) []ir.Var {
	out := make([]ir.Var, slots)
	for k := range out {
		out[k] = ir.Var(fmt.Sprintf("v%d_%d", id, k))
	}
	return out
}

type functionCompiler[T types.Builder, L libfuncs.Libfunc] struct {
	ctx   *libfuncs.Context
	prog  *program.Program
	reg   *program.Registry[T, L]
	table *libfuncs.Table[T, L]
	meta  *metadata.Storage
	fn    *program.Function

	varTypes map[ids.VarId]ids.ConcreteTypeId
	lowered  int
}

func (c *functionCompiler[T, L]) slots(ty ids.ConcreteTypeId) (int, error) {
	l, err := types.SlotsOf(c.reg, ty)
	if err != nil {
		return 0, err
	}
	return l.Slots, nil
}

func (c *functionCompiler[T, L]) words(v ids.VarId) ([]ir.Var, error) {
	ty, ok := c.varTypes[v]
	if !ok {
		return nil, fmt.Errorf("variable %s used before it is defined", v)
	}
	n, err := c.slots(ty)
	if err != nil {
		return nil, err
	}
	return VarWords(v, n), nil
}

// infer walks the statements reachable from the entry point breadth first,
// assigning every variable the type its defining libfunc declares. It
// returns the reachable statements in program order.
func (c *functionCompiler[T, L]) infer() ([]ids.StatementIdx, error) {
	c.varTypes = make(map[ids.VarId]ids.ConcreteTypeId)
	for _, p := range c.fn.Params {
		c.varTypes[p.Id] = p.Ty
	}

	visited := map[ids.StatementIdx]bool{c.fn.EntryPoint: true}
	queue := []ids.StatementIdx{c.fn.EntryPoint}
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]

		stmt, err := c.prog.Statement(idx)
		if err != nil {
			return nil, err
		}
		if stmt.IsReturn() {
			if len(stmt.Return) != len(c.fn.Signature.RetTypes) {
				return nil, fmt.Errorf("statement %d returns %d values, function returns %d", idx, len(stmt.Return), len(c.fn.Signature.RetTypes))
			}
			for i, v := range stmt.Return {
				if err := c.checkType(idx, v, c.fn.Signature.RetTypes[i]); err != nil {
					return nil, err
				}
			}
			continue
		}

		lf, err := c.reg.Libfunc(stmt.Invocation.Libfunc)
		if err != nil {
			return nil, err
		}
		sig := lf.Signature()
		for i, v := range stmt.Invocation.Args {
			if err := c.checkType(idx, v, sig.Params[i]); err != nil {
				return nil, err
			}
		}
		for b, br := range stmt.Invocation.Branches {
			for i, v := range br.Results {
				if err := c.define(idx, v, sig.Branches[b].Vars[i]); err != nil {
					return nil, err
				}
			}
			next := br.Target.Resolve(idx)
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	order := make([]ids.StatementIdx, 0, len(visited))
	for idx := range visited {
		order = append(order, idx)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	return order, nil
}

// define records ty for v. Variable words are named by id alone, so an id may
// only be reused with the type it already has.
func (c *functionCompiler[T, L]) define(idx ids.StatementIdx, v ids.VarId, ty ids.ConcreteTypeId) error {
	if prev, ok := c.varTypes[v]; ok && prev.Id != ty.Id {
		return fmt.Errorf("statement %d: variable %s is %s, defined again as %s: %w", idx, v, prev, ty, ErrVariableRetyped)
	}
	c.varTypes[v] = ty
	return nil
}

func (c *functionCompiler[T, L]) checkType(idx ids.StatementIdx, v ids.VarId, want ids.ConcreteTypeId) error {
	got, ok := c.varTypes[v]
	if !ok {
		return fmt.Errorf("statement %d: variable %s used before it is defined", idx, v)
	}
	if got.Id != want.Id {
		return fmt.Errorf("statement %d: variable %s is %s, want %s", idx, v, got, want)
	}
	return nil
}

// compile produces the entry method of the function:
//
//	uint64 entry(args, rets, gas, rt)
//
// Parameters are read from the args buffer, results are written to the
// rets buffer, and the method returns 0 or a trap code.
func (c *functionCompiler[T, L]) compile() (ir.Method, error) {
	order, err := c.infer()
	if err != nil {
		return nil, err
	}

	method := ir.Method{
		ir.DeclareParam(libfuncs.ArgsParam),
		ir.DeclareParam(libfuncs.RetsParam),
		ir.DeclareParam(libfuncs.GasParam),
		ir.DeclareParam(libfuncs.RuntimeParam),
	}

	off := 0
	for _, p := range c.fn.Params {
		words, err := c.words(p.Id)
		if err != nil {
			return nil, err
		}
		for _, w := range words {
			method = append(method, ir.Assign(w, libfuncs.ArgsParam.Word(off)))
			off++
		}
	}
	method = append(method, ir.Goto(StatementLabel(c.fn.EntryPoint)))

	for _, idx := range order {
		block, err := c.lowerStatement(idx)
		if err != nil {
			return nil, err
		}
		method = append(method, block)
		c.lowered++
	}
	return method, nil
}

func (c *functionCompiler[T, L]) lowerStatement(idx ids.StatementIdx) (ir.Fragment, error) {
	stmt, err := c.prog.Statement(idx)
	if err != nil {
		return nil, err
	}
	entry := ir.NewBlockBuilder(StatementLabel(idx))

	if stmt.IsReturn() {
		off := 0
		for _, v := range stmt.Return {
			words, err := c.words(v)
			if err != nil {
				return nil, err
			}
			for _, w := range words {
				entry.Append(ir.Assign(libfuncs.RetsParam.Word(off), w))
				off++
			}
		}
		entry.Append(ir.Return(ir.Int64(0)))
		return entry.Finish()
	}

	inv := stmt.Invocation
	info, err := c.reg.Libfunc(inv.Libfunc)
	if err != nil {
		return nil, err
	}

	args := make([][]ir.Var, len(inv.Args))
	for i, v := range inv.Args {
		if args[i], err = c.words(v); err != nil {
			return nil, err
		}
	}
	successors := make([]libfuncs.Successor, len(inv.Branches))
	for b, br := range inv.Branches {
		results := make([][]ir.Var, len(br.Results))
		for i, v := range br.Results {
			if results[i], err = c.words(v); err != nil {
				return nil, err
			}
		}
		successors[b] = libfuncs.Successor{Label: StatementLabel(br.Target.Resolve(idx)), Results: results}
	}

	loc := libfuncs.Location{Function: c.fn.Id, Statement: idx, Libfunc: inv.Libfunc}
	helper := libfuncs.NewHelper(idx, args, successors)
	if err := c.table.Build(c.ctx, c.reg, entry, loc, helper, c.meta, info); err != nil {
		return nil, err
	}
	block, err := entry.Finish()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", loc, err)
	}
	return block, nil
}
