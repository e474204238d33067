package libfuncs

import (
	"fmt"

	"github.com/tinyrange/aot/internal/ids"
	"github.com/tinyrange/aot/internal/ir"
)

// Slots is one value spread over 64-bit words.
type Slots []ir.Fragment

// VarSlots converts the words of a variable to Slots.
func VarSlots(vars []ir.Var) Slots {
	out := make(Slots, len(vars))
	for i, v := range vars {
		out[i] = v
	}
	return out
}

// Successor is one declared branch of the statement being lowered: the block
// it jumps to and the variables receiving each branch result.
type Successor struct {
	Label   ir.Label
	Results [][]ir.Var
}

// Helper exposes the operands and successors of the statement being lowered
// and builds the branches that leave it.
type Helper struct {
	stmt       ids.StatementIdx
	args       [][]ir.Var
	successors []Successor
}

func NewHelper(stmt ids.StatementIdx, args [][]ir.Var, successors []Successor) *Helper {
	return &Helper{stmt: stmt, args: args, successors: successors}
}

// Args returns the words of every operand.
func (h *Helper) Args() [][]ir.Var { return h.args }

// Arg returns the words of operand i.
func (h *Helper) Arg(i int) []ir.Var {
	if i < 0 || i >= len(h.args) {
		panic(fmt.Sprintf("libfuncs: statement %d has %d operands, index %d out of range", h.stmt, len(h.args), i))
	}
	return h.args[i]
}

func (h *Helper) NumBranches() int { return len(h.successors) }

func (h *Helper) successor(idx int) Successor {
	if idx < 0 || idx >= len(h.successors) {
		panic(fmt.Sprintf("libfuncs: statement %d has %d branches, index %d out of range", h.stmt, len(h.successors), idx))
	}
	return h.successors[idx]
}

// Results returns the destination words of every result of branch idx.
func (h *Helper) Results(idx int) [][]ir.Var {
	return h.successor(idx).Results
}

// ResultWords returns the word count of result i of branch idx.
func (h *Helper) ResultWords(idx, i int) int {
	results := h.Results(idx)
	if i < 0 || i >= len(results) {
		panic(fmt.Sprintf("libfuncs: branch %d of statement %d has %d results, index %d out of range", idx, h.stmt, len(results), i))
	}
	return len(results[i])
}

// Br jumps to successor idx carrying results. The number of results and the
// words of each must match the successor's declaration.
func (h *Helper) Br(idx int, results ...Slots) ir.Fragment {
	succ := h.successor(idx)
	if len(results) != len(succ.Results) {
		panic(fmt.Sprintf("libfuncs: branch %d of statement %d takes %d results, got %d", idx, h.stmt, len(succ.Results), len(results)))
	}
	var dsts []ir.Var
	var srcs []ir.Fragment
	for i, r := range results {
		if len(r) != len(succ.Results[i]) {
			panic(fmt.Sprintf("libfuncs: result %d of branch %d of statement %d has %d words, got %d",
				i, idx, h.stmt, len(succ.Results[i]), len(r)))
		}
		dsts = append(dsts, succ.Results[i]...)
		srcs = append(srcs, r...)
	}
	return ir.Br(succ.Label, dsts, srcs)
}

// CondBr jumps to then when cond holds and to otherwise when it does not.
func (h *Helper) CondBr(cond ir.Condition, then, otherwise int, thenResults, otherwiseResults []Slots) ir.Fragment {
	return ir.If(cond, h.Br(then, thenResults...), h.Br(otherwise, otherwiseResults...))
}

// Trap leaves the function with code.
func (h *Helper) Trap(code uint64) ir.Fragment {
	return ir.Return(ir.Int64(int64(code)))
}

// Temp names a scratch variable private to the statement being lowered.
func (h *Helper) Temp(name string) ir.Var {
	return ir.Var(fmt.Sprintf("t%d_%s", h.stmt, name))
}
