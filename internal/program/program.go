// Package program holds the typed intermediate representation consumed by the
// compiler and the immutable registry built from it.
package program

import (
	"fmt"

	"github.com/tinyrange/aot/internal/ids"
)

type TypeDeclaration struct {
	Id      ids.ConcreteTypeId
	Generic ids.GenericTypeId
	Args    []ids.GenericArg
}

type LibfuncDeclaration struct {
	Id      ids.ConcreteLibfuncId
	Generic ids.GenericLibfuncId
	Args    []ids.GenericArg
}

// BranchTarget is either the next statement (Fallthrough) or an explicit
// statement index.
type BranchTarget struct {
	Fallthrough bool
	Statement   ids.StatementIdx
}

func Fallthrough() BranchTarget { return BranchTarget{Fallthrough: true} }

func Goto(idx ids.StatementIdx) BranchTarget { return BranchTarget{Statement: idx} }

// Resolve returns the statement index control transfers to when the branch
// is taken from statement at.
func (t BranchTarget) Resolve(at ids.StatementIdx) ids.StatementIdx {
	if t.Fallthrough {
		return at.Next()
	}
	return t.Statement
}

type BranchInfo struct {
	Target  BranchTarget
	Results []ids.VarId
}

type Invocation struct {
	Libfunc  ids.ConcreteLibfuncId
	Args     []ids.VarId
	Branches []BranchInfo
}

// Statement is either an invocation or a return. Exactly one of Invocation
// and Return is meaningful; Return is used when Invocation is nil.
type Statement struct {
	Invocation *Invocation
	Return     []ids.VarId
}

func (s Statement) IsReturn() bool { return s.Invocation == nil }

type Param struct {
	Id ids.VarId
	Ty ids.ConcreteTypeId
}

type FunctionSignature struct {
	ParamTypes []ids.ConcreteTypeId
	RetTypes   []ids.ConcreteTypeId
}

type Function struct {
	Id         ids.FunctionId
	Signature  FunctionSignature
	Params     []Param
	EntryPoint ids.StatementIdx
}

type Program struct {
	Types      []TypeDeclaration
	Libfuncs   []LibfuncDeclaration
	Statements []Statement
	Funcs      []Function
}

// Statement returns the statement at idx or an error when idx is out of range.
func (p *Program) Statement(idx ids.StatementIdx) (Statement, error) {
	if idx < 0 || int(idx) >= len(p.Statements) {
		return Statement{}, fmt.Errorf("program: statement %d out of range (%d statements)", idx, len(p.Statements))
	}
	return p.Statements[idx], nil
}

// Reachable returns the statement indices reachable from entry in ascending
// program order.
func (p *Program) Reachable(entry ids.StatementIdx) ([]ids.StatementIdx, error) {
	seen := make(map[ids.StatementIdx]bool)
	queue := []ids.StatementIdx{entry}
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		if seen[idx] {
			continue
		}
		stmt, err := p.Statement(idx)
		if err != nil {
			return nil, err
		}
		seen[idx] = true
		if stmt.IsReturn() {
			continue
		}
		for _, br := range stmt.Invocation.Branches {
			queue = append(queue, br.Target.Resolve(idx))
		}
	}

	out := make([]ids.StatementIdx, 0, len(seen))
	for idx := range p.Statements {
		if seen[ids.StatementIdx(idx)] {
			out = append(out, ids.StatementIdx(idx))
		}
	}
	return out, nil
}
