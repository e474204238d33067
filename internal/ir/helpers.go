package ir

import (
	"fmt"
	"sync/atomic"
)

var (
	helperVarCounter uint64
	stackSlotCounter uint64
)

func newHelperVar(prefix string) Var {
	id := atomic.AddUint64(&helperVarCounter, 1)
	return Var(fmt.Sprintf("__ir_%s_%d", prefix, id))
}

type MethodPointerFragment struct {
	Name string
}

// MethodPointer returns a placeholder for the entry address of the named IR method.
// The name must correspond to a method included in the Program.
func MethodPointer(name string) Fragment {
	if name == "" {
		panic("ir: MethodPointer requires a method name")
	}
	return MethodPointerFragment{Name: name}
}

// CallMethod emits a direct call to another IR method.
func CallMethod(name string, args []Fragment, result ...Var) Fragment {
	return Call(MethodPointer(name), args, result...)
}

// Move is one element of a parallel copy performed when a branch is taken.
type Move struct {
	Dst Var
	Src Fragment
}

// BranchFragment transfers control to Target after performing Moves as a
// parallel copy: every source is read before any destination is written.
type BranchFragment struct {
	Target Label
	Moves  []Move
}

// Br builds a branch to target. dsts and srcs are paired positionally.
func Br(target Label, dsts []Var, srcs []Fragment) Fragment {
	if len(dsts) != len(srcs) {
		panic(fmt.Sprintf("ir: branch to %s moves %d values into %d destinations", target, len(srcs), len(dsts)))
	}
	moves := make([]Move, len(dsts))
	for i := range dsts {
		moves[i] = Move{Dst: dsts[i], Src: asFragment(srcs[i])}
	}
	return BranchFragment{Target: target, Moves: moves}
}

// IsTerminator reports whether control never falls off the end of f.
func IsTerminator(f Fragment) bool {
	switch frag := f.(type) {
	case BranchFragment, GotoFragment, ReturnFragment:
		return true
	case IfFragment:
		return frag.Otherwise != nil && IsTerminator(frag.Then) && IsTerminator(frag.Otherwise)
	case Block:
		return len(frag) > 0 && IsTerminator(frag[len(frag)-1])
	case StackSlotFragment:
		return IsTerminator(frag.Body)
	default:
		return false
	}
}

// StackSlotConfig describes a temporary array of 64-bit words that lives for
// the duration of Body.
type StackSlotConfig struct {
	// Words is the number of 64-bit words required by the caller. Must be > 0.
	Words int
	// Body builds the fragment that will run while the stack slot is active.
	Body func(StackSlot) Fragment
}

// StackSlot allows callers to address the reserved memory without having to
// juggle raw stack pointer arithmetic.
type StackSlot struct {
	name  string
	words int
}

func (s StackSlot) Name() string { return s.name }

// Word returns the memory reference of the idx-th word of the slot.
func (s StackSlot) Word(idx int) StackSlotMemFragment {
	if idx < 0 || idx >= s.words {
		panic(fmt.Sprintf("ir: stack slot %s has %d words, index %d out of range", s.name, s.words, idx))
	}
	return StackSlotMemFragment{Slot: s.name, Index: idx}
}

// Pointer returns the address of the slot base.
func (s StackSlot) Pointer() Fragment {
	return StackSlotPtrFragment{Slot: s.name}
}

// Words reports the number of words reserved for the slot.
func (s StackSlot) Words() int {
	return s.words
}

type StackSlotFragment struct {
	Name  string
	Words int
	Body  Fragment
}

// WithStackSlot creates a temporary stack allocation for the duration of Body.
func WithStackSlot(cfg StackSlotConfig) Fragment {
	if cfg.Words <= 0 {
		panic("ir: WithStackSlot requires a positive size")
	}
	if cfg.Body == nil {
		panic("ir: WithStackSlot requires a body builder")
	}
	id := atomic.AddUint64(&stackSlotCounter, 1)
	slot := StackSlot{name: fmt.Sprintf("__ir_slot_%d", id), words: cfg.Words}
	return StackSlotFragment{
		Name:  slot.name,
		Words: slot.words,
		Body:  cfg.Body(slot),
	}
}

type StackSlotMemFragment struct {
	Slot  string
	Index int
}

type StackSlotPtrFragment struct {
	Slot string
}
